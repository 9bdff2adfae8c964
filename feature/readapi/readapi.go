// Package readapi implements C8: the monitoring engine's read-only query
// surface over the registry, check history, and agent heartbeats.
package readapi

import (
	"context"
	"time"

	"github.com/go-mizu/blueprints/sentinel/store"
)

// DefaultHeartbeatWindow is how recent a heartbeat must be to count a
// location as online.
const DefaultHeartbeatWindow = 10 * time.Minute

// NonUpCounts partitions active, non-UP subdomains by status.
type NonUpCounts struct {
	Down     int `json:"down"`
	Flapping int `json:"flapping"`
	Unknown  int `json:"unknown"`
}

// NonUpResult bundles the partitioned subdomains with their counts.
type NonUpResult struct {
	Subdomains []*store.Subdomain `json:"subdomains"`
	Counts     NonUpCounts        `json:"counts"`
}

// AgentStatus is one location's heartbeat summary.
type AgentStatus struct {
	Location         string    `json:"location"`
	LastSeen         time.Time `json:"last_seen"`
	MinutesSinceSeen float64   `json:"minutes_since_seen"`
	Online           bool      `json:"online"`
}

// Service answers read-only queries over the store.
type Service struct {
	store           store.Store
	heartbeatWindow time.Duration
}

// New creates a Service. heartbeatWindow of zero uses
// DefaultHeartbeatWindow.
func New(s store.Store, heartbeatWindow time.Duration) *Service {
	if heartbeatWindow <= 0 {
		heartbeatWindow = DefaultHeartbeatWindow
	}
	return &Service{store: s, heartbeatWindow: heartbeatWindow}
}

// ActiveSubdomainsWithStats returns the active registry joined with
// 24-hour check stats.
func (s *Service) ActiveSubdomainsWithStats(ctx context.Context) ([]*store.SubdomainStats, error) {
	return s.store.Registry().ListActiveWithStats(ctx, time.Now())
}

// NonUpSubdomains returns active entries whose current status isn't UP,
// partitioned by status.
func (s *Service) NonUpSubdomains(ctx context.Context) (*NonUpResult, error) {
	subs, err := s.store.Registry().ListNonUp(ctx)
	if err != nil {
		return nil, err
	}

	result := &NonUpResult{Subdomains: subs}
	for _, sub := range subs {
		switch sub.CurrentStatus {
		case store.StatusDown:
			result.Counts.Down++
		case store.StatusFlapping:
			result.Counts.Flapping++
		default:
			result.Counts.Unknown++
		}
	}
	return result, nil
}

// InactiveSubdomains returns discovered hosts never confirmed reachable,
// including DNS-enumeration-only discoveries.
func (s *Service) InactiveSubdomains(ctx context.Context) ([]*store.Subdomain, error) {
	return s.store.Registry().ListInactive(ctx)
}

// CheckHistory returns check records for host over the trailing window,
// most recent first.
func (s *Service) CheckHistory(ctx context.Context, host string, hours int) ([]*store.CheckRecord, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	return s.store.Checks().Range(ctx, host, since)
}

// AgentStatuses returns a heartbeat summary for every known location.
func (s *Service) AgentStatuses(ctx context.Context) ([]AgentStatus, error) {
	heartbeats, err := s.store.Heartbeats().List(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := make([]AgentStatus, 0, len(heartbeats))
	for _, hb := range heartbeats {
		delta := now.Sub(hb.LastSeen)
		result = append(result, AgentStatus{
			Location:         hb.Location,
			LastSeen:         hb.LastSeen,
			MinutesSinceSeen: delta.Minutes(),
			Online:           delta < s.heartbeatWindow,
		})
	}
	return result, nil
}
