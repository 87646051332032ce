package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/devscontext/devscontext/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example configuration file",
	Long: `Write .devscontext.yaml.example to the current directory (or
--config-dir). Copy it to .devscontext.yaml and fill in credentials;
until then the demo and docs sources keep the server usable.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing example file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := configDir
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return err
		}
	}

	path := filepath.Join(dir, ".devscontext.yaml.example")
	if _, err := os.Stat(path); err == nil && !initForce {
		fmt.Printf("%s already exists (use --force to overwrite)\n", path)
		return nil
	}

	if err := config.WriteExample(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Copy it to .devscontext.yaml and fill in your source credentials.")
	return nil
}
