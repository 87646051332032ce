package main

import (
	"context"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

var serveWithWatcher bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Start the MCP server. Tools are exposed over stdio, so this is the
command an MCP client configuration should point at. With --watcher the
background poll loop runs in the same process and pre-builds context for
tickets entering the trigger status.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithWatcher, "watcher", false,
		"Also run the background watcher in this process")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, cleanup, err := loadApp()
	if err != nil {
		return err
	}
	defer cleanup()

	if serveWithWatcher {
		w, err := app.NewWatcher(0)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go func() {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				app.Log.Error("watcher stopped", "error", err)
			}
		}()
	}

	app.Log.Info("starting MCP server", "sources", app.Registry.Len())
	return mcpserver.ServeStdio(app.NewMCPServer())
}
