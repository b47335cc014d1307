package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/fedsearch/internal/shared"
	"github.com/desertthunder/fedsearch/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive search terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	b, err := r.openBackends()
	if err != nil {
		return err
	}
	defer b.close()

	consumer := ui.NewConsumer()
	session := b.newSession(consumer)
	defer session.Close()

	p := tea.NewProgram(ui.NewModel(session), tea.WithAltScreen(), tea.WithContext(ctx))
	consumer.Bind(p)
	session.Attach()

	stop := b.watch(ctx)
	defer stop()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
