package main

import (
	"context"
	"time"

	"github.com/desertthunder/fedsearch/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP server until ctx is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	b, err := r.openBackends()
	if err != nil {
		return err
	}
	defer b.close()

	stop := b.watch(ctx)
	defer stop()

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	return server.Serve(ctx, addr, r.router(b, cmd.Duration("quiet")), r.logger)
}

func (r *Runner) router(b *backends, quiet time.Duration) *server.BasicRouter {
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	router.Handler(server.NewSearchHandler(b.newSession, quiet, r.logger))
	router.Handler(server.NewHealthHandler(b.monitor, b.info.Providers(), b.pipeline.Resolvers()))
	return router
}
