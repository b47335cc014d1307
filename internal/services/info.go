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
	"golang.org/x/time/rate"
)

// InfoSystem resolves artists, albums and users by asking every [InfoProvider] concurrently.
//
// Each provider answer is published as one event per non-empty category. Provider calls share one rate limiter.
type InfoSystem struct {
	providers []InfoProvider
	publisher events.Publisher
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *log.Logger

	mu      sync.Mutex
	running map[*models.QueryHandle]context.CancelFunc
	wg      sync.WaitGroup
}

// NewInfoSystem creates an info system publishing on pub. A zero rate disables limiting; a zero timeout means none.
func NewInfoSystem(pub events.Publisher, cfg shared.InfoConfig, logger *log.Logger, providers ...InfoProvider) *InfoSystem {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)

	return &InfoSystem{
		providers: providers,
		publisher: pub,
		limiter:   rate.NewLimiter(limit, burst),
		timeout:   cfg.Timeout,
		logger:    shared.WithLogger(logger, "component", "info"),
		running:   make(map[*models.QueryHandle]context.CancelFunc),
	}
}

// Providers returns the names of the configured providers.
func (s *InfoSystem) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// Resolve starts a lookup for text and returns its handle. Results arrive on the event bus.
func (s *InfoSystem) Resolve(text string) (*models.QueryHandle, error) {
	if len(s.providers) == 0 {
		return nil, fmt.Errorf("%w: no info providers configured", shared.ErrServiceUnavailable)
	}

	h := models.NewQueryHandle(models.BackendInfo)
	ctx, cancel := withTimeout(s.timeout)

	s.mu.Lock()
	s.running[h] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, h, shared.NormalizeQuery(text))
	return h, nil
}

// Cancel stops the lookup behind h and reports whether it was still running.
func (s *InfoSystem) Cancel(h *models.QueryHandle) bool {
	s.mu.Lock()
	cancel, ok := s.running[h]
	delete(s.running, h)
	s.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Wait blocks until every started lookup has finished.
func (s *InfoSystem) Wait() {
	s.wg.Wait()
}

// Close cancels every running lookup and waits for them.
func (s *InfoSystem) Close() {
	s.mu.Lock()
	for h, cancel := range s.running {
		cancel()
		delete(s.running, h)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *InfoSystem) run(ctx context.Context, h *models.QueryHandle, text string) {
	defer s.wg.Done()

	err := s.lookup(ctx, h, text)

	s.mu.Lock()
	cancel, ok := s.running[h]
	delete(s.running, h)
	s.mu.Unlock()
	if ok {
		cancel()
	}

	s.publisher.Finish(h, err)
}

// lookup fans text out to every provider. It fails only when every provider failed.
func (s *InfoSystem) lookup(ctx context.Context, h *models.QueryHandle, text string) error {
	if text == "" {
		return nil
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)

	for _, p := range s.providers {
		g.Go(func() error {
			if err := s.ask(ctx, h, p, text); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == len(s.providers) {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		s.logger.Warn("provider failed", "query", text, "err", err)
	}
	return nil
}

func (s *InfoSystem) ask(ctx context.Context, h *models.QueryHandle, p InfoProvider, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	results, err := p.Search(ctx, text)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.Debug("provider answered", "provider", p.Name(), "query", text, "took", time.Since(start).Round(time.Millisecond))

	for _, c := range infoCategories {
		items := results.Items(c)
		if len(items) == 0 {
			continue
		}
		s.publisher.Publish(models.PartialResultEvent{Source: h, Category: c, Items: items})
	}
	return nil
}
