package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/devicefactory"
	"github.com/srg/hrmon/internal/permission"
	"github.com/srg/hrmon/scanner"
	"golang.org/x/term"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for heart rate sensors",
	Long: `Scan for nearby sensors whose advertised name matches the name filter
and print them once the scan ends.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanFormat   string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default from config, 10s)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
}

func runScan(cmd *cobra.Command, _ []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	s, err := loadSettings(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()
	cmd.SilenceUsage = true

	duration := s.cfg.Scan.Duration
	if scanDuration > 0 {
		duration = scanDuration
	}

	backend, err := devicefactory.BackendFactory(devicefactory.Options{Simulate: s.cfg.Sensor.Simulate}, s.logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nCtrl+C pressed, cancelling scan...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if !s.cfg.Sensor.Simulate {
		permission.Run(ctx, permission.NewGate(s.logger), s.logger)
	}

	sc := scanner.New(backend.Scanner, scanner.Options{
		NameFilter:      s.cfg.Scan.NameFilter,
		AllowDuplicates: s.cfg.Scan.AllowDuplicates,
	}, s.logger)

	var progressOut io.Writer = io.Discard
	if term.IsTerminal(int(os.Stderr.Fd())) {
		progressOut = os.Stderr
	}
	progress := NewProgressPrinter(progressOut, "Scanning for heart rate sensors", duration)
	progress.Start()
	defer progress.Stop()

	if err := sc.Start(ctx); err != nil {
		return err
	}
	defer sc.Stop()

	found := 0
	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case ev := <-sc.Events():
			if ev.Type == scanner.EventFailed {
				return ev.Err
			}
			found++
			progress.Found(found)
		}
	}
	sc.Stop()
	progress.Stop()

	if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	return displayDevices(cmd.OutOrStdout(), sc.Devices(), scanFormat)
}

func displayDevices(out io.Writer, devices []device.DiscoveredDevice, format string) error {
	if format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(devices)
	}

	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices discovered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tID\tRSSI")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\t%d dBm\n", d.Name, d.ID, d.RSSI)
	}
	return w.Flush()
}
