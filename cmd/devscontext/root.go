package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/devscontext/devscontext/internal/config"
	"github.com/devscontext/devscontext/internal/logging"
	"github.com/devscontext/devscontext/internal/server"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "devscontext",
	Short: "devscontext - engineering context orchestration",
	Long: `devscontext aggregates engineering context for tasks — tickets, meeting
transcripts, team chat, and documentation — synthesizes it into one
briefing, and serves it over MCP. Context for tickets entering the
trigger status is pre-built in the background so it is ready before
anyone asks.`,
	Version: server.Version,
}

func init() {
	rootCmd.SetVersionTemplate("devscontext version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "",
		"Directory containing .devscontext.yaml (default: current directory)")
}

// loadApp reads the configuration and wires the application. Logs go to
// stderr: stdout belongs to the MCP transport.
func loadApp() (*server.App, func(), error) {
	dir := configDir
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return nil, func() {}, err
		}
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, func() {}, err
	}
	log := logging.NewStderr(cfg.Logging.Level)
	return server.NewApp(cfg, log)
}
