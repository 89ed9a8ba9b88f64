package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/srg/hrmon/internal/monitor"
)

// Source is the engine side of the screen.
type Source interface {
	Dispatcher
	OnChange(fn func(monitor.Snapshot))
	Snapshot() monitor.Snapshot
}

// Run shows the screen until the user quits or ctx is done. Snapshots from
// src are forwarded to the program as they are produced.
func Run(ctx context.Context, src Source, opts Options, progOpts ...tea.ProgramOption) error {
	model := NewModel(src, src.Snapshot(), opts)
	program := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, progOpts...)...)

	src.OnChange(func(s monitor.Snapshot) {
		program.Send(SnapshotMsg{Snapshot: s})
	})

	go func() {
		<-ctx.Done()
		program.Send(QuitMsg{})
	}()

	_, err := program.Run()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Headless returns program options for running without a terminal.
func Headless(in io.Reader, out io.Writer) []tea.ProgramOption {
	return []tea.ProgramOption{tea.WithInput(in), tea.WithOutput(out), tea.WithoutRenderer()}
}
