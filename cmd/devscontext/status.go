package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show storage stats and source health",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, cleanup, err := loadApp()
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := app.Store.GetStats()
	if err != nil {
		return err
	}

	fmt.Println("Pre-built contexts")
	fmt.Printf("  Total:    %d (%d active, %d expired)\n", stats.Total, stats.Active, stats.Expired)
	if stats.Total > 0 {
		fmt.Printf("  Quality:  %.2f average\n", stats.AvgQuality)
	}
	if stats.LastBuild != nil {
		fmt.Printf("  Last:     %s ago\n", time.Since(*stats.LastBuild).Round(time.Second))
	}

	health := app.Registry.HealthCheck(cmd.Context())
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Sources")
	for _, name := range names {
		state := "ok"
		if !health[name] {
			state = "unavailable"
		}
		fmt.Printf("  %-14s %s\n", name, state)
	}
	return nil
}
