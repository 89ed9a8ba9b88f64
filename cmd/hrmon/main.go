package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd runs the interactive monitor when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "hrmon",
	Short: "Heart rate monitor for BLE chest straps",
	Long: `Heart rate monitor for Bluetooth Low Energy sensors.

- Search for nearby sensors and pick one from a list
- Show the live heart rate of the connected sensor
- Stream readings headlessly or publish them to an MQTT broker

Without a subcommand the interactive monitor screen is started.`,
	Version: formatVersion(version),
	RunE:    runMonitor,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// main() prints errors itself
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("hrmon {{.Version}} (commit %s, built %s)\n", commit, date))

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(streamCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default ~/.config/hrmon/config.yaml)")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-file", "", "Write logs to this file")
	pf.String("name-filter", "", "Only list devices whose name contains this text")
	pf.Bool("simulate", false, "Use simulated sensors instead of the BLE adapter")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
