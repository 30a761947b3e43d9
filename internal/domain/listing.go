package domain

import (
	"fmt"
	"time"
)

// ListingKey is the stable identity of a listing in the store.
// Persisted as listing:<defindex>:<instance_id>.
type ListingKey struct {
	Defindex   uint32 `json:"defindex"`
	InstanceID string `json:"instance_id"`
}

// String returns the persisted address of the key.
func (k ListingKey) String() string {
	return fmt.Sprintf("listing:%d:%s", k.Defindex, k.InstanceID)
}

// IsZero reports whether the key has no instance id.
func (k ListingKey) IsZero() bool {
	return k.InstanceID == ""
}

// Agent is the liveness metadata a trading bot attaches to its listings.
type Agent struct {
	LastPulse time.Time `json:"last_pulse"` // last time the agent reported in
	Client    string    `json:"client,omitempty"`
}

// Listing is the canonical buy or sell offer, built from either feed.
type Listing struct {
	Key            ListingKey `json:"key"`
	SourceID       *string    `json:"source_id,omitempty"` // feed-native id, event-sourced only
	Feed           Feed       `json:"feed"`
	ItemName       string     `json:"item_name"` // queried item identifier or event item name
	AccountID      string     `json:"account_id"`
	Intent         Intent     `json:"intent"`
	Price          float64    `json:"price"` // >= 0, single fixed unit
	Details        *string    `json:"details,omitempty"`
	BumpedAt       time.Time  `json:"bumped_at"` // freshness marker
	HasActiveAgent bool       `json:"has_active_agent"`
	Agent          *Agent     `json:"agent,omitempty"` // nil: no liveness data, assume human
	Attributes     []uint32   `json:"attributes,omitempty"` // item attribute defindexes
}

// IsStale reports whether the listing was last bumped before cutoff.
func (l *Listing) IsStale(cutoff time.Time) bool {
	return l.BumpedAt.Before(cutoff)
}

// HasAttribute reports whether the listed item carries the attribute defindex.
func (l *Listing) HasAttribute(defindex uint32) bool {
	for _, a := range l.Attributes {
		if a == defindex {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stores never share memory with callers.
func (l Listing) Clone() Listing {
	if l.SourceID != nil {
		v := *l.SourceID
		l.SourceID = &v
	}
	if l.Details != nil {
		v := *l.Details
		l.Details = &v
	}
	if l.Agent != nil {
		v := *l.Agent
		l.Agent = &v
	}
	if l.Attributes != nil {
		l.Attributes = append([]uint32(nil), l.Attributes...)
	}
	return l
}
