package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var buildForce bool

var buildCmd = &cobra.Command{
	Use:   "build <task-id>",
	Short: "Pre-build context for a single task",
	Long: `Run the full preprocessing pipeline for one task: deep fetch from all
sources, synthesis, quality scoring, and persistence. Unchanged source
data skips the rebuild unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVarP(&buildForce, "force", "f", false,
		"Rebuild even when the source data is unchanged")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	app, cleanup, err := loadApp()
	if err != nil {
		return err
	}
	defer cleanup()

	rec, err := app.Builder.Build(cmd.Context(), args[0], buildForce)
	if err != nil {
		return err
	}

	fmt.Printf("Built context for %s\n", rec.TaskID)
	fmt.Printf("  Quality:  %.2f\n", rec.QualityScore)
	fmt.Printf("  Sources:  %s\n", strings.Join(rec.SourcesUsed, ", "))
	fmt.Printf("  Expires:  %s\n", rec.ExpiresAt.Format("2006-01-02 15:04 MST"))
	if len(rec.Gaps) > 0 {
		fmt.Println("  Gaps:")
		for _, gap := range rec.Gaps {
			fmt.Printf("    - %s\n", gap)
		}
	}
	return nil
}
