package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/fedsearch/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the library database and runs migrations, or rolls the latest one back.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path := r.config.Database.Path
	if path == "" {
		p, err := shared.DefaultDatabasePath()
		if err != nil {
			return fmt.Errorf("failed to resolve database path: %w", err)
		}
		path = p
	}

	r.logger.Info("initializing database", "path", path)

	db, err := shared.NewDatabase(path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if cmd.Bool("rollback") {
		r.logger.Info("rolling back latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
	} else {
		r.logger.Info("running database migrations")
		if err := shared.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	applied, err := shared.AppliedMigrations(db)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v", path)
	return r.writePlain("✓ %s (%d migrations applied)\n", path, len(applied))
}

// SetupConfig writes the example config to --path, the --config location, or the XDG config dir.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if path == "" {
		path = r.configPath
	}
	if path == "" {
		p, err := shared.DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}
		path = p
	}

	if err := shared.CreateConfigFile(path); err != nil {
		if errors.Is(err, os.ErrExist) {
			r.logger.Warn("config file already exists, leaving it untouched", "path", path)
			return nil
		}
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Configuration written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Add Last.fm and Spotify credentials to enable artist and album search\n")
	r.writePlain("2. Run 'fedsearch library import <dir>' to index local music\n")
	return nil
}
