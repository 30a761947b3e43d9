package ingestion

import (
	"errors"

	"listing-cache/internal/dedup"
)

// Feed adapter errors.
var (
	// ErrAlreadyCached is returned when an item was fetched within the dedup cooldown.
	ErrAlreadyCached = dedup.ErrAlreadyCached

	// ErrServerError is returned when the snapshot endpoint answers 5xx.
	ErrServerError = errors.New("snapshot server error")

	// ErrInternal is returned for non-2xx, transport and parse failures.
	ErrInternal = errors.New("snapshot internal error")

	// ErrConnectionLost is returned when the event stream closes.
	ErrConnectionLost = errors.New("event stream connection lost")

	errArchiveBacklog = errors.New("archive backlog full")
)
