package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/hrmon/internal/groutine"
	"github.com/srg/hrmon/internal/monitor"
)

var streamCmd = &cobra.Command{
	Use:   "stream <device-id>",
	Short: "Print live readings of a sensor",
	Long: `Connect to a sensor by its identifier (see 'hrmon scan'), subscribe to
its heart rate and print one line per reading until Ctrl+C or until the
sensor disconnects.`,
	Args: cobra.ExactArgs(1),
	RunE: runStream,
}

var (
	bpmColor   = color.New(color.FgRed, color.Bold)
	infoColor  = color.New(color.FgCyan)
	errorColor = color.New(color.FgYellow)
)

// linePrinter is a ReadingSink writing one line per reading
type linePrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *linePrinter) Publish(_ context.Context, _ monitor.ConnectedDevice, r monitor.HeartRateReading) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, "%s  rr=%s\n", bpmColor.Sprint(r.DisplayBPM()), formatRR(r.RawSamples))
	return err
}

func formatRR(rr []float64) string {
	parts := make([]string, len(rr))
	for i, v := range rr {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// streamWatcher follows engine snapshots and decides when streaming ends
type streamWatcher struct {
	out  io.Writer
	errs io.Writer

	mu        sync.Mutex
	connected bool
	lastError string
	result    chan error
}

func (w *streamWatcher) finish(err error) {
	select {
	case w.result <- err:
	default:
	}
}

func (w *streamWatcher) observe(s monitor.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if s.UI.LastError != "" && s.UI.LastError != w.lastError {
		errorColor.Fprintf(w.errs, "%s\n", s.UI.LastError)
	}
	w.lastError = s.UI.LastError

	switch {
	case s.Connected != nil && !w.connected:
		w.connected = true
		infoColor.Fprintf(w.out, "Connected to %s (%s)\n", s.Connected.Serial, s.Connected.Address)
	case s.Connected == nil && w.connected:
		w.finish(ErrConnectionLost)
	case s.Connected == nil && !s.UI.IsLoading && s.UI.LastError != "":
		w.finish(errors.New(s.UI.LastError))
	}
}

func runStream(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := &linePrinter{out: cmd.OutOrStdout()}
	sess, err := newSession(ctx, s, printer)
	if err != nil {
		return err
	}
	defer sess.close()

	watcher := &streamWatcher{
		out:    cmd.OutOrStdout(),
		errs:   cmd.ErrOrStderr(),
		result: make(chan error, 1),
	}
	sess.engine.OnChange(watcher.observe)

	engineCtx, cancelEngine := context.WithCancel(ctx)
	defer cancelEngine()

	var engineErr error
	engineDone := groutine.Go(engineCtx, "stream-engine", func(ctx context.Context) {
		engineErr = sess.engine.Run(ctx)
	})

	sess.engine.Dispatch(monitor.DeviceSelected{ID: args[0]})

	select {
	case err = <-watcher.result:
	case <-ctx.Done():
		err = nil
	case <-engineDone:
		if engineErr != nil && !errors.Is(engineErr, context.Canceled) {
			return engineErr
		}
		return nil
	}

	cancelEngine()
	<-engineDone
	return err
}
