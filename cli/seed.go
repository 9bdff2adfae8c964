package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-mizu/blueprints/sentinel/pkg/seed"
	"github.com/go-mizu/blueprints/sentinel/store/sqlite"
)

// NewSeed creates the seed command
func NewSeed() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the registry with known subdomains",
		Long: `Seed the sentinel registry with the built-in known-subdomain list.

This registers every entry in the known-subdomain list with
discovery_method = "seed-list" and active = true, ahead of the first
discovery pass.

Examples:
  sentinel seed                     # Seed with defaults
  sentinel seed --data /path/to/dir # Seed a specific database`,
		RunE: runSeed,
	}

	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	Blank()
	Header("", "Seed Registry")
	Blank()

	Summary("Data", dataDir, "Domain", seed.Domain)
	Blank()

	st, err := sqlite.New(dataDir)
	if err != nil {
		Error(fmt.Sprintf("Failed to open store: %v", err))
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Ensure(ctx); err != nil {
		Error(fmt.Sprintf("Failed to ensure schema: %v", err))
		return err
	}

	if err := seed.Seed(ctx, st.Registry(), seed.Domain); err != nil {
		Error(fmt.Sprintf("Failed to seed registry: %v", err))
		return err
	}

	Success(fmt.Sprintf("Seeded %d known subdomains", len(seed.KnownSubdomains)))
	return nil
}
