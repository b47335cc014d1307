package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fedsearch/internal/events"
	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// trackQuery accumulates the de-duplicated tracks of one pipeline query.
type trackQuery struct {
	handle *models.QueryHandle
	text   string

	mu     sync.Mutex
	seen   map[string]struct{}
	tracks []models.Track
}

// merge appends unseen tracks and reports whether the list grew.
func (q *trackQuery) merge(tracks []models.Track) bool {
	grew := false
	for _, t := range tracks {
		key := t.CacheKey()
		if _, ok := q.seen[key]; ok || key == "|" {
			continue
		}
		q.seen[key] = struct{}{}
		q.tracks = append(q.tracks, t)
		grew = true
	}
	return grew
}

func (q *trackQuery) items() []models.ResultItem {
	items := make([]models.ResultItem, len(q.tracks))
	for i, t := range q.tracks {
		items[i] = t.ResultItem()
	}
	return items
}

// Pipeline resolves free text into tracks by asking every [TrackResolver].
//
// Background queries share a weighted semaphore; interactive queries bypass it. After each resolver answers, the full
// merged track list of the query is published as one [models.CategoryTrack] event.
type Pipeline struct {
	resolvers []TrackResolver
	publisher events.Publisher
	sem       *semaphore.Weighted
	timeout   time.Duration
	logger    *log.Logger

	mu      sync.Mutex
	running map[*models.QueryHandle]context.CancelFunc
	wg      sync.WaitGroup
}

// NewPipeline creates a pipeline publishing on pub. A zero max_concurrent leaves background queries unbounded.
func NewPipeline(pub events.Publisher, cfg shared.PipelineConfig, logger *log.Logger, resolvers ...TrackResolver) *Pipeline {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	var sem *semaphore.Weighted
	if cfg.MaxConcurrent > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}

	return &Pipeline{
		resolvers: resolvers,
		publisher: pub,
		sem:       sem,
		timeout:   cfg.Timeout,
		logger:    shared.WithLogger(logger, "component", "pipeline"),
		running:   make(map[*models.QueryHandle]context.CancelFunc),
	}
}

// Resolvers returns the names of the configured resolvers.
func (p *Pipeline) Resolvers() []string {
	names := make([]string, len(p.resolvers))
	for i, r := range p.resolvers {
		names[i] = r.Name()
	}
	return names
}

// Resolve starts resolving text. It returns (nil, nil) for blank text.
func (p *Pipeline) Resolve(text string, interactive bool) (*models.QueryHandle, error) {
	text = shared.NormalizeQuery(text)
	if text == "" {
		return nil, nil
	}
	if len(p.resolvers) == 0 {
		return nil, fmt.Errorf("%w: no track resolvers configured", shared.ErrServiceUnavailable)
	}

	q := &trackQuery{
		handle: models.NewQueryHandle(models.BackendTrack),
		text:   text,
		seen:   make(map[string]struct{}),
	}
	ctx, cancel := withTimeout(p.timeout)

	p.mu.Lock()
	p.running[q.handle] = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx, q, interactive)
	return q.handle, nil
}

// Cancel stops the query behind h and reports whether it was still running.
func (p *Pipeline) Cancel(h *models.QueryHandle) bool {
	p.mu.Lock()
	cancel, ok := p.running[h]
	delete(p.running, h)
	p.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Wait blocks until every started query has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Close cancels every running query and waits for them.
func (p *Pipeline) Close() {
	p.mu.Lock()
	for h, cancel := range p.running {
		cancel()
		delete(p.running, h)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pipeline) run(ctx context.Context, q *trackQuery, interactive bool) {
	defer p.wg.Done()

	err := p.resolve(ctx, q, interactive)

	p.mu.Lock()
	cancel, ok := p.running[q.handle]
	delete(p.running, q.handle)
	p.mu.Unlock()
	if ok {
		cancel()
	}

	p.publisher.Finish(q.handle, err)
}

// resolve runs every resolver concurrently. It fails only when every resolver failed.
func (p *Pipeline) resolve(ctx context.Context, q *trackQuery, interactive bool) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)

	for _, r := range p.resolvers {
		g.Go(func() error {
			if err := p.ask(ctx, q, r, interactive); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == len(p.resolvers) {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		p.logger.Warn("resolver failed", "query", q.text, "err", err)
	}
	return nil
}

func (p *Pipeline) ask(ctx context.Context, q *trackQuery, r TrackResolver, interactive bool) error {
	if !interactive && p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer p.sem.Release(1)
	}

	tracks, err := r.Resolve(ctx, q.text)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.logger.Debug("resolver answered", "resolver", r.Name(), "query", q.text, "tracks", len(tracks))

	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.merge(tracks) {
		return nil
	}
	p.publisher.Publish(models.PartialResultEvent{Source: q.handle, Category: models.CategoryTrack, Items: q.items()})
	return nil
}
