// Package geoingest implements C7: accepting batched probe reports pushed
// by remote geo-agents, validating their origin, and folding each result
// through the state machine.
package geoingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-mizu/blueprints/sentinel/feature/statemachine"
	"github.com/go-mizu/blueprints/sentinel/store"
)

// AllowedLocations is the default set of geo-agent location tags accepted
// at ingest. New's locations argument replaces it when non-empty.
var AllowedLocations = []string{"EU", "PH", "SG"}

// Result is one probe outcome within an inbound report.
type Result struct {
	Subdomain      string            `json:"subdomain"`
	Timestamp      time.Time         `json:"timestamp"`
	StatusCode     *int              `json:"status_code,omitempty"`
	ResponseTimeMs *float64          `json:"response_time_ms,omitempty"`
	Up             bool              `json:"up"`
	Error          string            `json:"error,omitempty"`
	Platform       string            `json:"platform,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
}

// Report is the body of POST /api/geo-report.
type Report struct {
	Location string   `json:"location"`
	Results  []Result `json:"results"`
}

// ErrUnknownLocation is returned when the report's location is not in the
// allowed set. Callers must treat it as "reject, do not persist anything".
type ErrUnknownLocation struct {
	Location string
}

func (e *ErrUnknownLocation) Error() string {
	return fmt.Sprintf("geoingest: unknown location %q", e.Location)
}

// ErrMalformedResult is returned when a result entry fails validation.
// Per spec, one malformed entry fails the whole batch.
type ErrMalformedResult struct {
	Index  int
	Reason string
}

func (e *ErrMalformedResult) Error() string {
	return fmt.Sprintf("geoingest: result[%d]: %s", e.Index, e.Reason)
}

// Service applies inbound reports to the store.
type Service struct {
	store     store.Store
	locations map[string]bool
	domain    string
}

// New creates a Service. An empty locations slice falls back to
// AllowedLocations.
func New(s store.Store, domain string, locations []string) *Service {
	if len(locations) == 0 {
		locations = AllowedLocations
	}
	set := make(map[string]bool, len(locations))
	for _, l := range locations {
		set[strings.ToUpper(l)] = true
	}
	return &Service{store: s, locations: set, domain: domain}
}

// Ingest validates and applies one report. On success it returns the
// number of results recorded. An unknown location or a malformed result
// leaves the store untouched.
func (s *Service) Ingest(ctx context.Context, report Report) (int, error) {
	location := strings.ToUpper(strings.TrimSpace(report.Location))
	if !s.locations[location] {
		return 0, &ErrUnknownLocation{Location: report.Location}
	}

	for i, r := range report.Results {
		if r.Subdomain == "" {
			return 0, &ErrMalformedResult{Index: i, Reason: "missing subdomain"}
		}
		if r.Up && r.StatusCode != nil && *r.StatusCode >= 500 {
			return 0, &ErrMalformedResult{Index: i, Reason: "up=true with a 5xx status_code"}
		}
	}

	now := time.Now()
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Heartbeats().Touch(ctx, location, now); err != nil {
			return fmt.Errorf("geoingest: touch heartbeat: %w", err)
		}

		for _, r := range report.Results {
			if err := s.recordResult(ctx, tx, location, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(report.Results), nil
}

// recordResult persists one result and drives the state machine for its
// subdomain, lazily registering hosts this deployment has never seen
// before under discovery method geo-report. It runs entirely against tx,
// the transaction-scoped Store Ingest opened for the whole batch.
func (s *Service) recordResult(ctx context.Context, tx store.Store, location string, r Result) error {
	existing, err := tx.Registry().GetByName(ctx, r.Subdomain)
	if err != nil {
		return fmt.Errorf("geoingest: lookup %s: %w", r.Subdomain, err)
	}
	if existing == nil {
		err := tx.Registry().Upsert(ctx, &store.Subdomain{
			Subdomain:       r.Subdomain,
			Domain:          s.domain,
			Active:          true,
			DiscoveryMethod: store.DiscoveryGeoReport,
		})
		if err != nil {
			return fmt.Errorf("geoingest: register %s: %w", r.Subdomain, err)
		}
	}

	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	rec := &store.CheckRecord{
		Time:           ts,
		Subdomain:      r.Subdomain,
		StatusCode:     r.StatusCode,
		ResponseTimeMs: r.ResponseTimeMs,
		Up:             r.Up,
		Platform:       r.Platform,
		ErrorMessage:   r.Error,
		Location:       location,
		Headers:        r.Headers,
	}
	if err := tx.Checks().Append(ctx, rec); err != nil {
		return fmt.Errorf("geoingest: append check for %s: %w", r.Subdomain, err)
	}

	recent, err := tx.Checks().Recent(ctx, r.Subdomain, 5)
	if err != nil {
		return fmt.Errorf("geoingest: read recent checks for %s: %w", r.Subdomain, err)
	}
	outcomes := make([]bool, len(recent))
	for i, c := range recent {
		outcomes[i] = c.Up
	}

	err = tx.Registry().CommitState(ctx, r.Subdomain, func(fields store.StateFields) store.StateFields {
		return statemachine.Evaluate(fields, outcomes, time.Now())
	})
	if err != nil {
		return fmt.Errorf("geoingest: commit state for %s: %w", r.Subdomain, err)
	}

	return nil
}
