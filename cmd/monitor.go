package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/shelfreq/internal/shared"
	"github.com/desertthunder/shelfreq/internal/ui"
	"github.com/urfave/cli/v3"
)

// Monitor launches the interactive sync monitor.
func (r *Runner) Monitor(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	if r.service == nil {
		fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		r.SetLogger(fileLogger)
	}
	if err := r.open(cmd); err != nil {
		return err
	}

	model := ui.NewModel(ctx, r.service, actorID(cmd))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running monitor: %w", err)
	}

	return nil
}
