package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fedsearch/internal/formatter"
	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/shared"
	"github.com/urfave/cli/v3"
)

// cliConsumer signals result changes to the waiting command and logs notices.
type cliConsumer struct {
	changed  chan struct{}
	logger   *log.Logger
	progress func(set models.AggregatedResultSet)

	mu      sync.Mutex
	notices []error
}

func newCLIConsumer(logger *log.Logger, progress func(models.AggregatedResultSet)) *cliConsumer {
	return &cliConsumer{changed: make(chan struct{}, 1), logger: logger, progress: progress}
}

func (c *cliConsumer) OnSearchStarted(text string) {
	c.logger.Debug("search started", "query", text)
}

func (c *cliConsumer) OnResultSetChanged(set models.AggregatedResultSet) {
	if c.progress != nil {
		c.progress(set)
	}
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

func (c *cliConsumer) OnNotice(err error) {
	c.mu.Lock()
	c.notices = append(c.notices, err)
	c.mu.Unlock()
	c.logger.Warn("search notice", "err", err)
}

func (c *cliConsumer) Notices() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.notices...)
}

// Search attaches a session, runs the query and prints the results once they have been quiet for --wait.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	text := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		format = formatter.FormatJSON
	}

	b, err := r.openBackends()
	if err != nil {
		return err
	}
	defer b.close()

	stop := b.watch(ctx)
	defer stop()

	var progress func(models.AggregatedResultSet)
	if cmd.Bool("progress") {
		progress = func(set models.AggregatedResultSet) {
			r.writePlain("… %s\n", formatter.Summary(set))
		}
	}
	consumer := newCLIConsumer(r.logger, progress)
	session := b.newSession(consumer)
	session.Attach()

	started := time.Now()
	if err := session.Search(text); err != nil {
		r.logger.Warn("search partially dispatched", "err", err)
	}

	waitQuiet(ctx, consumer.changed, cmd.Duration("wait"))
	session.Close()

	set := session.Snapshot()
	stats := session.Stats()
	r.logger.Info("search finished",
		"query", text,
		"results", set.Len(),
		"events", stats.Accepted,
		"notices", len(consumer.Notices()),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	return r.writeResults(cmd, set, format)
}

// waitQuiet returns when changed has been silent for quiet, or when ctx is done.
func waitQuiet(ctx context.Context, changed <-chan struct{}, quiet time.Duration) {
	if quiet <= 0 {
		quiet = defaultQuiet
	}
	timer := time.NewTimer(quiet)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			timer.Reset(quiet)
		case <-timer.C:
			return
		}
	}
}

func (r *Runner) writeResults(cmd *cli.Command, set models.AggregatedResultSet, format formatter.Format) error {
	if dir := cmd.String("export-dir"); dir != "" {
		res, err := formatter.WriteMarkdownExport(set, dir, r.httpClient)
		if err != nil {
			return err
		}
		r.logger.Info("markdown export written", "dir", res.Directory, "files", len(res.Files), "cover", res.CoverSize)
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteExport(set, format, path); err != nil {
			return err
		}
		return r.writePlain("%s written to %s\n", formatter.Summary(set), path)
	}

	if format == formatter.FormatJSON {
		data, err := formatter.ExportToJSON(set, cmd.Bool("pretty"))
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	}

	data, err := formatter.Render(set, format)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}
