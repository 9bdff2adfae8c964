// Package seed holds the fixed bootstrap data for the subdomain registry:
// the known-host list and the common prefixes tried during discovery.
package seed

import (
	"context"
	"time"

	"github.com/go-mizu/blueprints/sentinel/store"
)

// Domain is the fixed target domain this deployment monitors.
const Domain = "bettergov.ph"

// KnownSubdomains are hosts known to exist ahead of any discovery pass.
// www.bettergov.ph is deliberately excluded: it only redirects to the
// root domain.
var KnownSubdomains = []string{
	"bettergov.ph",
	"visualizations.bettergov.ph",
	"api.bettergov.ph",
	"admin.bettergov.ph",
	"portal.bettergov.ph",
	"dashboard.bettergov.ph",
	"docs.bettergov.ph",
	"dev.bettergov.ph",
	"staging.bettergov.ph",
	"test.bettergov.ph",
	"monitoring.bettergov.ph",
}

// CommonPrefixes are tried against Domain during the common-prefix
// discovery pass. "www" is omitted: it is handled as a known subdomain's
// redirect target, not monitored on its own.
var CommonPrefixes = []string{
	"api", "admin", "portal", "dashboard", "docs", "dev", "staging",
	"test", "app", "web", "service", "services", "data", "db", "database",
	"auth", "login", "secure", "ssl", "mail", "email", "smtp", "ftp",
	"git", "gitlab", "github", "jenkins", "ci", "cd", "build", "deploy",
	"monitor", "monitoring", "metrics", "logs", "log", "status", "health",
	"ping", "check", "probe", "grafana", "kibana", "elasticsearch",
}

// Seed upserts every KnownSubdomains entry into the registry with
// discovery method seed-list. It is idempotent: re-running it against an
// already-seeded registry never resets a host's state machine.
func Seed(ctx context.Context, registry store.RegistryStore, domain string) error {
	now := time.Now()
	for _, host := range KnownSubdomains {
		sub := &store.Subdomain{
			Subdomain:       host,
			Domain:          domain,
			DiscoveredAt:    now,
			LastSeen:        now,
			Active:          true,
			DiscoveryMethod: store.DiscoverySeedList,
		}
		if err := registry.Upsert(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}
