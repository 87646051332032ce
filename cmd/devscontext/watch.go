package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	watchOnce     bool
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the background watcher",
	Long: `Poll the issue tracker for tickets in the trigger status and pre-build
context for them. Runs until interrupted; with --once it polls a single
time and exits, which suits cron jobs and CI.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Poll once and exit")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0,
		"Override the configured poll interval (e.g. 2m)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	app, cleanup, err := loadApp()
	if err != nil {
		return err
	}
	defer cleanup()

	w, err := app.NewWatcher(watchInterval)
	if err != nil {
		return err
	}

	if watchOnce {
		stats, err := w.PollOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Polled %d tickets: %d built, %d skipped, %d failed\n",
			stats.Listed, stats.Built, stats.Skipped, stats.Failed)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); ctx.Err() == nil {
		return err
	}
	return nil
}
