// Package prober implements the concurrent HTTP health check (C3): for
// every active subdomain it tries HTTPS then HTTP, classifies the outcome,
// fingerprints the remote platform, and reports the result.
package prober

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"

	"github.com/go-mizu/blueprints/sentinel/feature/fingerprint"
	"github.com/go-mizu/blueprints/sentinel/store"
)

// DefaultConnectionCap is the maximum number of in-flight probes.
const DefaultConnectionCap = 10

// DefaultTimeout is the total per-attempt timeout (DNS, connect, TLS,
// send, receive-body).
const DefaultTimeout = 10 * time.Second

// DefaultBodyLimit is the maximum number of body bytes read for
// fingerprinting.
const DefaultBodyLimit int64 = 10 * 1024

// dnsCacheTTL mirrors the 5-minute DNS/connection cache the source's
// aiohttp TCPConnector(ttl_dns_cache=300) kept.
const dnsCacheTTL = 5 * time.Minute

// Config controls a Prober's behavior.
type Config struct {
	ConnectionCap int
	Timeout       time.Duration
	BodyLimit     int64
	Location      string
}

func (c Config) withDefaults() Config {
	if c.ConnectionCap <= 0 {
		c.ConnectionCap = DefaultConnectionCap
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BodyLimit <= 0 {
		c.BodyLimit = DefaultBodyLimit
	}
	if c.Location == "" {
		c.Location = "LOCAL"
	}
	return c
}

// Prober probes a batch of subdomains with a bounded in-flight cap and a
// short-TTL cache shared across the batch.
type Prober struct {
	cfg    Config
	client *http.Client
	cache  *cache.Cache
	log    *slog.Logger
}

// New creates a Prober. log may be nil, in which case slog.Default() is
// used.
func New(cfg Config, log *slog.Logger) *Prober {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	p := &Prober{
		cfg:   cfg,
		cache: cache.New(dnsCacheTTL, dnsCacheTTL),
		log:   log,
	}

	dialer := &net.Dialer{Timeout: cfg.Timeout}
	p.client = &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return dialer.DialContext(ctx, network, addr)
				}
				ips, err := p.cachedLookup(ctx, host)
				if err != nil || len(ips) == 0 {
					return dialer.DialContext(ctx, network, addr)
				}
				return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
			},
		},
	}

	return p
}

// ProbeAll probes every subdomain in hosts concurrently (capped at
// cfg.ConnectionCap in-flight) and returns one CheckRecord per host.
func (p *Prober) ProbeAll(ctx context.Context, hosts []*store.Subdomain) []*store.CheckRecord {
	sem := semaphore.NewWeighted(int64(p.cfg.ConnectionCap))
	results := make([]*store.CheckRecord, len(hosts))

	var wg sync.WaitGroup
	for i, h := range hosts {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, host string) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = p.Probe(ctx, host)
		}(i, h.Subdomain)
	}
	wg.Wait()

	out := results[:0]
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Probe performs a single host's check: HTTPS with HTTP fallback, status
// classification, body-prefix read, and platform fingerprinting.
func (p *Prober) Probe(ctx context.Context, host string) *store.CheckRecord {
	start := time.Now()

	resp, body, err := p.fetch(ctx, "https://"+host)
	if err != nil {
		resp, body, err = p.fetch(ctx, "http://"+host)
	}

	rec := &store.CheckRecord{
		Time:      start,
		Subdomain: host,
		Location:  p.cfg.Location,
	}

	if err != nil {
		rec.Up = false
		rec.ErrorMessage = classify(err)
		return rec
	}
	defer resp.Body.Close()

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	code := resp.StatusCode

	rec.StatusCode = &code
	rec.ResponseTimeMs = &elapsed
	rec.Up = code < 500
	rec.Headers = flattenHeaders(resp.Header)
	rec.Platform = fingerprint.Detect(rec.Headers, string(body))

	return rec
}

func (p *Prober) fetch(ctx context.Context, url string) (*http.Response, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.BodyLimit))
	if err != nil {
		resp.Body.Close()
		return nil, nil, err
	}

	return resp, body, nil
}

// cachedLookup resolves host through the shared 5-minute cache, mirroring
// the source's ttl_dns_cache=300 connector setting.
func (p *Prober) cachedLookup(ctx context.Context, host string) ([]net.IP, error) {
	if v, ok := p.cache.Get(host); ok {
		return v.([]net.IP), nil
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	p.cache.SetDefault(host, ips)
	return ips, nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func classify(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns resolution failed"
	}
	var tlsErr *tls.CertificateVerificationError
	if errors.As(err, &tlsErr) {
		return "tls verification failed"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return "connection refused"
		}
	}
	return fmt.Sprintf("request failed: %v", err)
}
