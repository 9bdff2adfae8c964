package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-mizu/blueprints/sentinel/store"
	"github.com/go-mizu/blueprints/sentinel/store/postgres"
	"github.com/go-mizu/blueprints/sentinel/store/sqlite"
)

// NewInit creates the init command
func NewInit() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database schema and exit",
		Long: `Create the subdomains, uptime_checks and agent_heartbeats tables
(and their indexes) if they don't already exist, then exit without
starting the server or seeding any data.

Examples:
  sentinel init                        # Create the local SQLite schema
  sentinel init --dsn postgres://...   # Create the Postgres schema`,
		RunE: runInit,
	}

	cmd.Flags().String("dsn", "", "Postgres DSN (postgres://...); also read from DATABASE_URL. Defaults to a local SQLite database")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	dsn, _ := cmd.Flags().GetString("dsn")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}

	Blank()
	Header("", "Initialize Schema")
	Blank()

	var st store.Store
	var err error
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		Summary("Backend", "postgres")
		st, err = postgres.New(dsn)
	} else {
		Summary("Backend", "sqlite", "Data", dataDir)
		st, err = sqlite.New(dataDir)
	}
	if err != nil {
		Error(fmt.Sprintf("Failed to open store: %v", err))
		return err
	}
	defer st.Close()
	Blank()

	if err := st.Ensure(context.Background()); err != nil {
		Error(fmt.Sprintf("Failed to create schema: %v", err))
		return err
	}

	Success("Schema created")
	return nil
}
