// Package filter removes noise from listing sets before prices are derived.
// Every function is pure: the input slice is never modified.
package filter

import (
	"errors"
	"sort"
	"time"

	"listing-cache/internal/domain"
)

// ErrNoListings is returned when an operation needs at least one listing.
var ErrNoListings = errors.New("no listings")

// Default thresholds.
const (
	DefaultAgentWindow = 20 * time.Minute
	DefaultTolerance   = 1.2
)

// AgentMode selects which side of the bot/human split RejectInactiveAgents keeps.
type AgentMode int

const (
	// SelectBots keeps listings whose agent pulsed within the window.
	SelectBots AgentMode = iota
	// SelectHumans keeps listings without an agent.
	SelectHumans
)

// KeepOnlyIntent keeps listings with the given intent.
func KeepOnlyIntent(listings []domain.Listing, intent domain.Intent) []domain.Listing {
	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		if l.Intent == intent {
			out = append(out, l)
		}
	}
	return out
}

// RejectInactiveAgents splits listings by agent liveness.
// A listing with an agent is active iff now - lastPulse < window.
// SelectBots keeps active agents; SelectHumans keeps agent-less listings.
// Listings with a stale agent are dropped in both modes.
func RejectInactiveAgents(listings []domain.Listing, now time.Time, window time.Duration, mode AgentMode) []domain.Listing {
	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		if l.Agent == nil {
			if mode == SelectHumans {
				out = append(out, l)
			}
			continue
		}
		if mode == SelectBots && now.Sub(l.Agent.LastPulse) < window {
			out = append(out, l)
		}
	}
	return out
}

// RejectOutliers keeps listings priced within [median/tolerance, median*tolerance].
// Returns ErrNoListings for empty input.
func RejectOutliers(listings []domain.Listing, tolerance float64) ([]domain.Listing, error) {
	if len(listings) == 0 {
		return nil, ErrNoListings
	}

	m := median(listings)
	lo, hi := m/tolerance, m*tolerance

	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		if l.Price >= lo && l.Price <= hi {
			out = append(out, l)
		}
	}
	return out, nil
}

// RejectAttributes drops listings whose item carries any of the given attributes.
func RejectAttributes(listings []domain.Listing, attrs ...uint32) []domain.Listing {
	if len(attrs) == 0 {
		return append([]domain.Listing(nil), listings...)
	}

	out := make([]domain.Listing, 0, len(listings))
outer:
	for _, l := range listings {
		for _, a := range attrs {
			if l.HasAttribute(a) {
				continue outer
			}
		}
		out = append(out, l)
	}
	return out
}

// Average returns the arithmetic mean price.
func Average(listings []domain.Listing) (float64, error) {
	if len(listings) == 0 {
		return 0, ErrNoListings
	}
	var sum float64
	for _, l := range listings {
		sum += l.Price
	}
	return sum / float64(len(listings)), nil
}

// Lowest returns the cheapest listing. Ties keep the first seen.
func Lowest(listings []domain.Listing) (domain.Listing, error) {
	if len(listings) == 0 {
		return domain.Listing{}, ErrNoListings
	}
	best := listings[0]
	for _, l := range listings[1:] {
		if l.Price < best.Price {
			best = l
		}
	}
	return best, nil
}

// median of prices; mean of the two middle values for even counts.
func median(listings []domain.Listing) float64 {
	prices := make([]float64, len(listings))
	for i, l := range listings {
		prices[i] = l.Price
	}
	sort.Float64s(prices)

	n := len(prices)
	if n%2 == 1 {
		return prices[n/2]
	}
	return (prices[n/2-1] + prices[n/2]) / 2
}
