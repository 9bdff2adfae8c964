package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/go-mizu/blueprints/sentinel/app/web"
)

// NewServe creates the serve command
func NewServe() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sentinel server",
		Long: `Start the sentinel server including:
  - Read/write REST API on :8080/api
  - Background probe and discovery scheduler

Examples:
  sentinel serve                       # Start with defaults
  sentinel serve --addr :9000          # Custom port
  sentinel serve --dsn postgres://...  # Use Postgres instead of SQLite`,
		RunE: runServe,
	}

	cmd.Flags().StringP("addr", "a", ":8080", "Server address")
	cmd.Flags().String("dsn", "", "Postgres DSN (postgres://...); also read from DATABASE_URL. Defaults to a local SQLite database")
	cmd.Flags().String("domain", "", "Target domain to monitor; defaults to the built-in seed domain")
	cmd.Flags().Duration("probe-interval", web.DefaultProbeInterval, "Interval between probe job firings")
	cmd.Flags().Duration("discovery-interval", web.DefaultDiscoveryInterval, "Interval between discovery job firings")
	cmd.Flags().Duration("probe-timeout", 0, "Per-probe timeout; 0 uses the prober's own default")
	cmd.Flags().Int("connection-cap", 0, "Max in-flight probes; 0 uses the prober's own default")
	cmd.Flags().Int64("probe-body-limit", 0, "Max response bytes read for fingerprinting; 0 uses the prober's own default")
	cmd.Flags().Duration("heartbeat-window", 0, "How recent a geo-agent heartbeat must be to count as online; 0 uses readapi's own default")
	cmd.Flags().String("allowed-locations", "", "Comma-separated geo-agent location tags accepted at /api/geo-report; empty uses the built-in default")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	database, _ := cmd.Flags().GetString("dsn")
	if database == "" {
		database = os.Getenv("DATABASE_URL")
	}
	domain, _ := cmd.Flags().GetString("domain")
	probeInterval, _ := cmd.Flags().GetDuration("probe-interval")
	discoveryInterval, _ := cmd.Flags().GetDuration("discovery-interval")
	probeTimeout, _ := cmd.Flags().GetDuration("probe-timeout")
	connectionCap, _ := cmd.Flags().GetInt("connection-cap")
	probeBodyLimit, _ := cmd.Flags().GetInt64("probe-body-limit")
	heartbeatWindow, _ := cmd.Flags().GetDuration("heartbeat-window")

	var allowedLocations []string
	if raw, _ := cmd.Flags().GetString("allowed-locations"); raw != "" {
		for _, loc := range strings.Split(raw, ",") {
			if loc = strings.TrimSpace(loc); loc != "" {
				allowedLocations = append(allowedLocations, loc)
			}
		}
	}

	dev, _ := cmd.Root().PersistentFlags().GetBool("dev")

	Blank()
	Header("", "Sentinel Server")
	Blank()

	Summary(
		"Listen", addr,
		"Data", dataDir,
		"Mode", modeString(dev),
		"Version", Version,
	)
	Blank()

	srv, err := web.New(web.Config{
		Addr:              addr,
		DataDir:           dataDir,
		Dev:               dev,
		DatabaseDSN:       database,
		Domain:            domain,
		ProbeInterval:     probeInterval,
		DiscoveryInterval: discoveryInterval,
		ProbeTimeout:      probeTimeout,
		ConnectionCap:     connectionCap,
		ProbeBodyLimit:    probeBodyLimit,
		HeartbeatWindow:   heartbeatWindow,
		AllowedLocations:  allowedLocations,
	})
	if err != nil {
		Error(fmt.Sprintf("Failed to create server: %v", err))
		return err
	}
	defer srv.Close()

	errCh := make(chan error, 1)
	go func() {
		Step("", fmt.Sprintf("Listening on http://localhost%s", addr))
		Blank()
		errCh <- srv.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		Error(fmt.Sprintf("Server error: %v", err))
		return err
	case <-quit:
		Blank()
		Step("", "Shutting down...")
		Success("Server stopped")
	}

	return nil
}
