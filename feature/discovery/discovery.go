// Package discovery implements the periodic subdomain discovery pass
// (C2): seeding from a known list, scraping the root site's HTML for
// links, a common-prefix HEAD-probe sweep, and a DNS-enumeration pass,
// upserting every survivor into the registry.
package discovery

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/miekg/dns"
	"golang.org/x/sync/semaphore"

	"github.com/go-mizu/blueprints/sentinel/store"
)

// DefaultConcurrency caps in-flight HEAD probes and DNS lookups during a
// discovery pass.
const DefaultConcurrency = 10

// DefaultTimeout bounds both the root-page fetch and each HEAD probe.
const DefaultTimeout = 10 * time.Second

// Config controls a Discoverer's behavior.
type Config struct {
	Domain         string
	CommonPrefixes []string
	Concurrency    int
	Timeout        time.Duration
	Resolver       string // DNS server address, host:port; defaults to 8.8.8.8:53
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Resolver == "" {
		c.Resolver = "8.8.8.8:53"
	}
	return c
}

// Discoverer runs one discovery pass at a time against a fixed domain.
type Discoverer struct {
	cfg    Config
	client *http.Client
	dns    *dns.Client
	log    *slog.Logger
}

// New creates a Discoverer. log may be nil, in which case slog.Default()
// is used.
func New(cfg Config, log *slog.Logger) *Discoverer {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Discoverer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		dns:    &dns.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

// Run executes one discovery pass and upserts every surviving host into
// registry. A total HTML-fetch failure only skips the link-scrape step;
// it never aborts the pass. Individual probe failures are silently
// dropped. The registry is never shrunk.
func (d *Discoverer) Run(ctx context.Context, registry store.RegistryStore, seedHosts []string) error {
	candidates := make(map[string]string) // host -> discovery method

	for _, h := range seedHosts {
		candidates[strings.ToLower(h)] = store.DiscoverySeedList
	}

	for _, host := range d.scrapeLinks(ctx) {
		if _, exists := candidates[host]; !exists {
			candidates[host] = store.DiscoveryLinkScrape
		}
	}

	for _, prefix := range d.cfg.CommonPrefixes {
		host := prefix + "." + d.cfg.Domain
		if _, exists := candidates[host]; !exists {
			candidates[host] = store.DiscoveryCommonPrefix
		}
	}

	enumerated := d.enumerateDNS(ctx, candidates)

	confirmed := d.confirmReachable(ctx, candidates)

	now := time.Now()
	for host, method := range candidates {
		active := confirmed[host]
		// Only a common-prefix guess that never turned up anywhere else is
		// eligible for DNS-enumeration relabeling; a seed-list or
		// link-scrape host that merely failed its reachability probe keeps
		// its original provenance.
		if !active && enumerated[host] && method == store.DiscoveryCommonPrefix {
			method = store.DiscoveryDNSEnum
		}
		err := registry.Upsert(ctx, &store.Subdomain{
			Subdomain:       host,
			Domain:          d.cfg.Domain,
			DiscoveredAt:    now,
			LastSeen:        now,
			Active:          active,
			DiscoveryMethod: method,
		})
		if err != nil {
			d.log.Warn("discovery: upsert failed", "host", host, "error", err)
		}
	}

	return nil
}

// scrapeLinks fetches https://<domain>/ and collects every absolute or
// protocol-relative link whose host ends with .<domain>.
func (d *Discoverer) scrapeLinks(ctx context.Context) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+d.cfg.Domain+"/", nil)
	if err != nil {
		return nil
	}
	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Warn("discovery: root page fetch failed", "error", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil
	}

	suffix := "." + d.cfg.Domain
	seen := make(map[string]bool)
	var hosts []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		host := extractSubdomainHost(href, suffix)
		if host == "" || seen[host] {
			return
		}
		seen[host] = true
		hosts = append(hosts, host)
	})

	return hosts
}

func extractSubdomainHost(href, suffix string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if strings.HasSuffix(host, suffix) {
		return host
	}
	return ""
}

// enumerateDNS issues an A-record lookup for every candidate, capped at
// cfg.Concurrency in flight, and reports which hosts resolve.
func (d *Discoverer) enumerateDNS(ctx context.Context, candidates map[string]string) map[string]bool {
	sem := semaphore.NewWeighted(int64(d.cfg.Concurrency))
	var mu sync.Mutex
	var wg sync.WaitGroup
	resolved := make(map[string]bool, len(candidates))

	for host := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			defer sem.Release(1)
			if d.resolves(host) {
				mu.Lock()
				resolved[host] = true
				mu.Unlock()
			}
		}(host)
	}
	wg.Wait()
	return resolved
}

func (d *Discoverer) resolves(host string) bool {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	resp, _, err := d.dns.Exchange(m, d.cfg.Resolver)
	if err != nil || resp == nil {
		return false
	}
	return len(resp.Answer) > 0
}

// confirmReachable issues a bounded HTTPS-then-HTTP HEAD probe per
// candidate, capped at cfg.Concurrency in flight, and reports which hosts
// answered with status < 400.
func (d *Discoverer) confirmReachable(ctx context.Context, candidates map[string]string) map[string]bool {
	sem := semaphore.NewWeighted(int64(d.cfg.Concurrency))
	var mu sync.Mutex
	var wg sync.WaitGroup
	alive := make(map[string]bool, len(candidates))

	for host := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			defer sem.Release(1)
			if d.headOK(ctx, "https://"+host) || d.headOK(ctx, "http://"+host) {
				mu.Lock()
				alive[host] = true
				mu.Unlock()
			}
		}(host)
	}
	wg.Wait()
	return alive
}

func (d *Discoverer) headOK(ctx context.Context, url string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}
