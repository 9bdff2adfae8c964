// Package cli provides the sentinel command-line interface.
package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var dataDir string

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:   "sentinel",
		Short: "Distributed HTTP uptime monitoring engine",
		Long: `Sentinel discovers and monitors subdomains of a target domain from
several geographically distributed agents, aggregates their check
results into a three-strike state machine, and exposes the result over
a small read/write HTTP API.

Get started:
  sentinel init      Create the database schema
  sentinel seed      Seed the registry with known subdomains
  sentinel serve     Start the server and scheduler`,
		Version:       Version + " (" + Commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	home, _ := os.UserHomeDir()
	dataDir = filepath.Join(home, "data", "blueprints", "sentinel")
	root.PersistentFlags().StringVar(&dataDir, "data", dataDir, "Data directory")
	root.PersistentFlags().Bool("dev", false, "Enable development mode")

	root.AddCommand(NewServe())
	root.AddCommand(NewInit())
	root.AddCommand(NewSeed())

	return fang.Execute(ctx, root)
}
