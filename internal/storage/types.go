package storage

import (
	"fmt"
	"strings"
	"time"

	"listing-cache/internal/domain"
)

// UpsertResult describes the effect of an upsert.
type UpsertResult int

const (
	Created UpsertResult = iota // no entry existed at the key
	Updated                     // entry replaced
	Stale                       // write ignored, stored entry is fresher
)

// String returns the string representation of UpsertResult.
func (r UpsertResult) String() string {
	switch r {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Stale:
		return "stale"
	default:
		return fmt.Sprintf("UpsertResult(%d)", int(r))
	}
}

// WritePolicy decides conflicting writes to one key.
type WritePolicy int

const (
	// LastWriteWins applies every write in arrival order.
	LastWriteWins WritePolicy = iota
	// FreshestWins keeps the entry with the latest bumpedAt; ties apply.
	FreshestWins
)

// String returns the config name of the policy.
func (p WritePolicy) String() string {
	if p == FreshestWins {
		return "freshest_wins"
	}
	return "last_write_wins"
}

// ParseWritePolicy parses a config name. Empty means LastWriteWins.
func ParseWritePolicy(s string) (WritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last_write_wins":
		return LastWriteWins, nil
	case "freshest_wins":
		return FreshestWins, nil
	default:
		return 0, fmt.Errorf("%w: unknown write policy %q", ErrInvalidInput, s)
	}
}

// Accepts reports whether incoming may replace existing under the policy.
func (p WritePolicy) Accepts(existing, incoming domain.Listing) bool {
	if p == FreshestWins {
		return !incoming.BumpedAt.Before(existing.BumpedAt)
	}
	return true
}

// ChangeOp is the kind of an archived change.
type ChangeOp string

const (
	ChangeUpsert ChangeOp = "upsert"
	ChangeDelete ChangeOp = "delete"
)

// ListingChange is one applied store change.
type ListingChange struct {
	Op         ChangeOp
	Key        domain.ListingKey
	Feed       domain.Feed // empty for deletes
	Intent     domain.Intent
	Price      float64
	BumpedAt   time.Time
	ObservedAt time.Time
	Instance   string // ingesting process id
}

// ValidateListing checks the fields a store relies on.
func ValidateListing(l domain.Listing) error {
	if l.Key.IsZero() {
		return fmt.Errorf("%w: empty instance id", ErrInvalidInput)
	}
	if l.Price < 0 {
		return fmt.Errorf("%w: negative price %v", ErrInvalidInput, l.Price)
	}
	if !l.Intent.IsValid() {
		return fmt.Errorf("%w: intent %q", ErrInvalidInput, l.Intent)
	}
	return nil
}
