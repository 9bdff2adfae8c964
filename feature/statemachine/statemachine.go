// Package statemachine applies the three-strike hysteresis and
// flap-detection rules that turn a stream of per-subdomain probe outcomes
// into a health status.
package statemachine

import (
	"time"

	"github.com/go-mizu/blueprints/sentinel/store"
)

// flapWindow is how many of the most recent outcomes are inspected for
// flap detection.
const flapWindow = 5

// strikeThreshold is the number of consecutive agreeing outcomes required
// before a status transition is allowed.
const strikeThreshold = 3

// Evaluate computes the next StateFields given the currently persisted
// state and the most recent outcomes, reverse-chronological (most recent
// first) and inclusive of the outcome that triggered this evaluation.
// recentOutcomes may hold fewer than flapWindow entries early in a
// subdomain's history.
//
// The function is pure: callers are responsible for persisting the result
// and for supplying now.
func Evaluate(current store.StateFields, recentOutcomes []bool, now time.Time) store.StateFields {
	next := current

	if len(recentOutcomes) == 0 {
		return next
	}
	latestUp := recentOutcomes[0]

	next.IsFlapping = isFlapping(recentOutcomes)

	if latestUp {
		next.ConsecutiveUpCount = current.ConsecutiveUpCount + 1
		next.ConsecutiveDownCount = 0
	} else {
		next.ConsecutiveDownCount = current.ConsecutiveDownCount + 1
		next.ConsecutiveUpCount = 0
	}

	switch {
	case next.IsFlapping:
		next.CurrentStatus = store.StatusFlapping
	case next.ConsecutiveUpCount >= strikeThreshold:
		next.CurrentStatus = store.StatusUp
	case next.ConsecutiveDownCount >= strikeThreshold:
		next.CurrentStatus = store.StatusDown
	default:
		next.CurrentStatus = current.CurrentStatus
	}

	if next.CurrentStatus != current.CurrentStatus {
		next.LastStatusChange = now
	}

	return next
}

// isFlapping reports whether the number of up outcomes among the most
// recent flapWindow entries is 2 or 3. Fewer than flapWindow outcomes
// never flap.
func isFlapping(recentOutcomes []bool) bool {
	if len(recentOutcomes) < flapWindow {
		return false
	}
	ups := 0
	for _, up := range recentOutcomes[:flapWindow] {
		if up {
			ups++
		}
	}
	return ups == 2 || ups == 3
}
