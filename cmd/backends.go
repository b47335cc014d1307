package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fedsearch/internal/connectivity"
	"github.com/desertthunder/fedsearch/internal/events"
	"github.com/desertthunder/fedsearch/internal/repositories"
	"github.com/desertthunder/fedsearch/internal/search"
	"github.com/desertthunder/fedsearch/internal/services"
	"github.com/desertthunder/fedsearch/internal/shared"
)

// backends is the search stack shared by every session one command creates.
type backends struct {
	config   *shared.Config
	logger   *log.Logger
	db       *sql.DB
	library  *repositories.LibraryRepository
	bus      *events.Bus
	info     *services.InfoSystem
	pipeline *services.Pipeline
	monitor  *connectivity.Monitor
}

// openBackends opens the library and builds the info system, the track pipeline and the connectivity monitor.
func (r *Runner) openBackends() (*backends, error) {
	db, err := shared.OpenLibrary(r.config.Database)
	if err != nil {
		return nil, err
	}
	library := repositories.NewLibraryRepository(db)

	providers := r.providers
	if providers == nil {
		providers = configuredProviders(r.config, r.logger)
	}
	resolvers := r.resolvers
	if resolvers == nil {
		resolvers = configuredResolvers(r.config, library, r.httpClient)
	}

	bus := events.NewBus(r.logger)
	b := &backends{
		config:   r.config,
		logger:   r.logger,
		db:       db,
		library:  library,
		bus:      bus,
		info:     services.NewInfoSystem(bus, r.config.Info, r.logger, providers...),
		pipeline: services.NewPipeline(bus, r.config.Pipeline, r.logger, resolvers...),
		monitor:  connectivity.NewMonitor(r.config.Connectivity, r.probe, r.logger),
	}

	r.logger.Debug("backends ready", "providers", b.info.Providers(), "resolvers", b.pipeline.Resolvers())
	return b, nil
}

// configuredProviders builds the info providers whose credentials are present.
func configuredProviders(cfg *shared.Config, logger *log.Logger) []services.InfoProvider {
	providers := []services.InfoProvider{}

	if lastfm, err := services.NewLastfmProvider(cfg.Lastfm); err == nil {
		providers = append(providers, lastfm)
	} else if !errors.Is(err, shared.ErrMissingCredentials) {
		logger.Warn("lastfm provider disabled", "err", err)
	}

	if spotify, err := services.NewSpotifyProvider(cfg.Spotify); err == nil {
		providers = append(providers, spotify)
	} else if !errors.Is(err, shared.ErrMissingCredentials) {
		logger.Warn("spotify provider disabled", "err", err)
	}

	return providers
}

// configuredResolvers always resolves from the library; the YouTube Music proxy is added when configured.
func configuredResolvers(cfg *shared.Config, library *repositories.LibraryRepository, client *http.Client) []services.TrackResolver {
	resolvers := []services.TrackResolver{services.NewLibraryResolver(library, cfg.Pipeline.LibraryLimit)}
	if cfg.YouTube.ProxyURL != "" {
		resolvers = append(resolvers, services.NewProxyResolver(cfg.YouTube, client))
	}
	return resolvers
}

// newSession creates a detached session wired to the shared backends.
func (b *backends) newSession(c search.Consumer) *search.Session {
	return search.NewSession(search.Options{
		Info:             b.info,
		Track:            b.pipeline,
		Events:           b.bus,
		Monitor:          b.monitor,
		Consumer:         c,
		RetryMinInterval: b.config.Retry.MinInterval,
		Logger:           b.logger,
	})
}

// watch runs the connectivity monitor until the returned func is called.
func (b *backends) watch(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := b.monitor.Run(ctx); err != nil {
			b.logger.Warn("connectivity monitor stopped", "err", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// close stops every running query and closes the library.
func (b *backends) close() {
	b.info.Close()
	b.pipeline.Close()
	if err := b.db.Close(); err != nil {
		b.logger.Warn("failed to close library", "err", err)
	}
}
