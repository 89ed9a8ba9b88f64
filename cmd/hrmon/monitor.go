package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/hrmon/internal/groutine"
	"github.com/srg/hrmon/internal/tui"
	"golang.org/x/term"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive heart rate screen (default)",
	Long: `Show the live heart rate of a connected sensor.

Press 's' to search for sensors, pick one with the arrow keys and enter,
'd' to disconnect and 'q' to quit.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

var monitorASCII bool

func init() {
	// the monitor is also the root command's default action
	for _, fs := range []*pflag.FlagSet{monitorCmd.Flags(), rootCmd.Flags()} {
		fs.BoolVar(&monitorASCII, "ascii", false, "Use plain ASCII symbols")
	}
}

// isTerminal and runScreen are variables so tests can drive the monitor
// without a TTY.
var (
	isTerminal = func() bool {
		return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	}
	runScreen = func(ctx context.Context, src tui.Source, opts tui.Options) error {
		return tui.Run(ctx, src, opts)
	}
)

func runMonitor(cmd *cobra.Command, _ []string) error {
	if !isTerminal() {
		return ErrNotATerminal
	}

	s, err := loadSettings(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := newSession(ctx, s)
	if err != nil {
		return err
	}
	defer sess.close()

	engineCtx, cancelEngine := context.WithCancel(ctx)
	defer cancelEngine()

	var engineErr error
	engineDone := groutine.Go(engineCtx, "monitor-engine", func(ctx context.Context) {
		engineErr = sess.engine.Run(ctx)
	})

	screenErr := runScreen(ctx, sess.engine, tui.Options{ASCII: monitorASCII || s.cfg.UI.ASCII})
	cancelEngine()
	<-engineDone

	if screenErr != nil && !errors.Is(screenErr, context.Canceled) {
		return screenErr
	}
	if engineErr != nil && !errors.Is(engineErr, context.Canceled) {
		return engineErr
	}
	return nil
}
