package web

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-mizu/mizu"

	"github.com/go-mizu/blueprints/sentinel/app/web/handler/api"
	"github.com/go-mizu/blueprints/sentinel/assets"
	"github.com/go-mizu/blueprints/sentinel/feature/discovery"
	"github.com/go-mizu/blueprints/sentinel/feature/geoingest"
	"github.com/go-mizu/blueprints/sentinel/feature/prober"
	"github.com/go-mizu/blueprints/sentinel/feature/readapi"
	"github.com/go-mizu/blueprints/sentinel/feature/statemachine"
	"github.com/go-mizu/blueprints/sentinel/feature/sync"
	"github.com/go-mizu/blueprints/sentinel/pkg/seed"
	"github.com/go-mizu/blueprints/sentinel/store"
	"github.com/go-mizu/blueprints/sentinel/store/postgres"
	"github.com/go-mizu/blueprints/sentinel/store/sqlite"
)

// Default job intervals, per the scheduler's two fixed jobs.
const (
	DefaultProbeInterval     = time.Minute
	DefaultDiscoveryInterval = 6 * time.Hour
	probeMisfireGrace        = 30 * time.Second
	discoveryMisfireGrace    = 5 * time.Minute
)

// Config holds server configuration.
type Config struct {
	Addr    string
	DataDir string
	Dev     bool

	// DatabaseDSN, if set, is a postgres://... DSN. Otherwise a SQLite
	// database under DataDir is used.
	DatabaseDSN string

	// Domain is the monitored target domain, used to seed the registry
	// and to scope discovery.
	Domain string

	// ProbeInterval and DiscoveryInterval override the two scheduled
	// jobs' firing intervals. Zero means DefaultProbeInterval /
	// DefaultDiscoveryInterval.
	ProbeInterval     time.Duration
	DiscoveryInterval time.Duration

	// ProbeTimeout, ConnectionCap and ProbeBodyLimit tune feature/prober.
	// Zero means its own package default.
	ProbeTimeout   time.Duration
	ConnectionCap  int
	ProbeBodyLimit int64

	// HeartbeatWindow tunes feature/readapi's online/offline cutoff.
	// Zero means readapi.DefaultHeartbeatWindow.
	HeartbeatWindow time.Duration

	// AllowedLocations restricts which geo-agent location tags
	// /api/geo-report accepts. Empty means geoingest.AllowedLocations.
	AllowedLocations []string
}

func (c Config) withDefaults() Config {
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = DefaultProbeInterval
	}
	if c.DiscoveryInterval <= 0 {
		c.DiscoveryInterval = DefaultDiscoveryInterval
	}
	if c.HeartbeatWindow <= 0 {
		c.HeartbeatWindow = readapi.DefaultHeartbeatWindow
	}
	return c
}

// Server is the HTTP server.
type Server struct {
	app       *mizu.App
	cfg       Config
	store     store.Store
	scheduler *sync.Scheduler

	subdomainsHandler *api.Subdomains
	checksHandler     *api.Checks
	geoingestHandler  *api.GeoIngest
	schedulerHandler  *api.Scheduler
	healthHandler     *api.Health
}

// New creates a new server.
func New(cfg Config) (*Server, error) {
	if cfg.Domain == "" {
		cfg.Domain = seed.Domain
	}
	cfg = cfg.withDefaults()

	var st store.Store
	var err error
	if strings.HasPrefix(cfg.DatabaseDSN, "postgres://") || strings.HasPrefix(cfg.DatabaseDSN, "postgresql://") {
		st, err = postgres.New(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("create postgres store: %w", err)
		}
	} else {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		st, err = sqlite.New(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("create store: %w", err)
		}
	}

	if err := st.Ensure(context.Background()); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	if err := seed.Seed(context.Background(), st.Registry(), cfg.Domain); err != nil {
		return nil, fmt.Errorf("seed registry: %w", err)
	}

	s := &Server{
		app:   mizu.New(),
		cfg:   cfg,
		store: st,
	}

	s.scheduler = sync.NewScheduler(log.Default())
	s.registerJobs()

	readSvc := readapi.New(st, cfg.HeartbeatWindow)
	ingestSvc := geoingest.New(st, cfg.Domain, cfg.AllowedLocations)

	s.subdomainsHandler = api.NewSubdomains(readSvc)
	s.checksHandler = api.NewChecks(readSvc)
	s.geoingestHandler = api.NewGeoIngest(ingestSvc)
	s.schedulerHandler = api.NewScheduler(s.scheduler)
	s.healthHandler = api.NewHealth(st, s.scheduler)

	s.setupRoutes()

	return s, nil
}

// registerJobs wires the two fixed background jobs against the server's
// store: probe checks every active host, discovery finds new ones.
func (s *Server) registerJobs() {
	logger := slog.Default()

	prb := prober.New(prober.Config{
		Timeout:       s.cfg.ProbeTimeout,
		ConnectionCap: s.cfg.ConnectionCap,
		BodyLimit:     s.cfg.ProbeBodyLimit,
	}, logger)
	disc := discovery.New(discovery.Config{Domain: s.cfg.Domain, CommonPrefixes: seed.CommonPrefixes}, logger)

	s.scheduler.Register("probe", s.cfg.ProbeInterval, probeMisfireGrace, func(ctx context.Context) error {
		hosts, err := s.store.Registry().ListActive(ctx)
		if err != nil {
			return fmt.Errorf("list active hosts: %w", err)
		}
		records := prb.ProbeAll(ctx, hosts)
		for _, rec := range records {
			err := s.store.WithTx(ctx, func(tx store.Store) error {
				if err := tx.Checks().Append(ctx, rec); err != nil {
					return fmt.Errorf("append check: %w", err)
				}
				recent, err := tx.Checks().Recent(ctx, rec.Subdomain, 5)
				if err != nil {
					return fmt.Errorf("read recent checks: %w", err)
				}
				outcomes := make([]bool, len(recent))
				for i, r := range recent {
					outcomes[i] = r.Up
				}
				if err := tx.Registry().CommitState(ctx, rec.Subdomain, func(fields store.StateFields) store.StateFields {
					return statemachine.Evaluate(fields, outcomes, time.Now())
				}); err != nil {
					return fmt.Errorf("commit state: %w", err)
				}
				if rec.Platform != "" {
					if err := tx.Registry().SetPlatform(ctx, rec.Subdomain, rec.Platform, time.Now()); err != nil {
						return fmt.Errorf("set platform: %w", err)
					}
				}
				return nil
			})
			if err != nil {
				logger.Error("probe ingest failed", "subdomain", rec.Subdomain, "err", err)
			}
		}
		return nil
	})

	s.scheduler.Register("discovery", s.cfg.DiscoveryInterval, discoveryMisfireGrace, func(ctx context.Context) error {
		return disc.Run(ctx, s.store.Registry(), seed.KnownSubdomains)
	})
}

// Run starts the background scheduler and the server. The scheduler
// loop's lifecycle is owned entirely by schedulerHandler, so that the
// POST /api/scheduler/{start,stop} endpoints and this startup path never
// race to start or stop the underlying loop twice.
func (s *Server) Run() error {
	if err := s.schedulerHandler.StartLoop(0); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer s.schedulerHandler.StopLoop()

	slog.Info("starting sentinel server", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// Close shuts down the server.
func (s *Server) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler { return s.app }

// Store returns the underlying store.
func (s *Server) Store() store.Store { return s.store }

func (s *Server) setupRoutes() {
	s.app.Group("/api", func(apiGroup *mizu.Router) {
		apiGroup.Get("/health", s.healthHandler.Status)

		apiGroup.Post("/geo-report", s.geoingestHandler.Report)

		apiGroup.Get("/subdomains", s.subdomainsHandler.List)
		apiGroup.Get("/subdomains/non-up", s.subdomainsHandler.NonUp)
		apiGroup.Get("/subdomains/inactive", s.subdomainsHandler.Inactive)
		apiGroup.Get("/subdomains/{host}/checks", s.checksHandler.History)

		apiGroup.Get("/agent-status", s.checksHandler.AgentStatus)

		apiGroup.Get("/scheduler/status", s.schedulerHandler.Status)
		apiGroup.Post("/scheduler/start", s.schedulerHandler.Start)
		apiGroup.Post("/scheduler/stop", s.schedulerHandler.Stop)
		apiGroup.Post("/checks/run", s.schedulerHandler.RunChecks)
	})

	s.serveStatic()
}

func (s *Server) serveStatic() {
	staticFS := assets.Static()

	staticHandler := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))

	s.app.Get("/static/{path...}", func(c *mizu.Ctx) error {
		ext := filepath.Ext(c.Request().URL.Path)
		if contentType := mime.TypeByExtension(ext); contentType != "" {
			c.Writer().Header().Set("Content-Type", contentType)
		}
		c.Writer().Header().Set("Cache-Control", "public, max-age=31536000, immutable")

		staticHandler.ServeHTTP(c.Writer(), c.Request())
		return nil
	})

	s.app.Get("/{path...}", func(c *mizu.Ctx) error {
		reqPath := c.Request().URL.Path

		if strings.HasPrefix(reqPath, "/api/") {
			return c.JSON(404, map[string]string{"message": "not found"})
		}
		if strings.HasPrefix(reqPath, "/static/") {
			return c.JSON(404, map[string]string{"message": "not found"})
		}

		if reqPath != "/" && reqPath != "" {
			cleanPath := strings.TrimPrefix(reqPath, "/")
			distPath := "dist/" + cleanPath
			if info, err := fs.Stat(staticFS, distPath); err == nil && !info.IsDir() {
				ext := filepath.Ext(cleanPath)
				if contentType := mime.TypeByExtension(ext); contentType != "" {
					c.Writer().Header().Set("Content-Type", contentType)
				}
				http.ServeFileFS(c.Writer(), c.Request(), staticFS, distPath)
				return nil
			}
		}

		indexContent, err := fs.ReadFile(staticFS, "dist/index.html")
		if err != nil {
			c.Writer().Header().Set("Content-Type", "text/html; charset=utf-8")
			c.Writer().Write([]byte(defaultIndexHTML))
			return nil
		}

		c.Writer().Header().Set("Content-Type", "text/html; charset=utf-8")
		c.Writer().Write(indexContent)
		return nil
	})
}

const defaultIndexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Sentinel - Uptime Monitoring</title>
  <style>
    * { box-sizing: border-box; margin: 0; padding: 0; }
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, sans-serif;
      background: #f9fbfc;
      color: #2e353b;
      min-height: 100vh;
      display: flex;
      align-items: center;
      justify-content: center;
    }
    .empty {
      text-align: center;
      padding: 60px 20px;
      color: #949aab;
    }
    .empty h2 { margin-bottom: 12px; color: #2e353b; }
    code {
      background: #eef1f4;
      padding: 2px 6px;
      border-radius: 4px;
    }
  </style>
</head>
<body>
  <div class="empty">
    <h2>Sentinel</h2>
    <p>Check <code>/api/subdomains</code> and <code>/api/health</code>.</p>
    <p style="margin-top: 20px; font-size: 12px;">
      Build the frontend with 'make frontend-build' for the full dashboard.
    </p>
  </div>
</body>
</html>`
