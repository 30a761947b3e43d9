package bptf

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDecode is returned when a wire payload cannot be decoded.
var ErrDecode = errors.New("decode failed")

// EventKind is the tag of a stream event.
type EventKind string

const (
	EventListingUpdate EventKind = "listing-update"
	EventListingDelete EventKind = "listing-delete"
	EventUnknown       EventKind = "unknown"
)

// Message is one text frame received from the event stream.
type Message struct {
	Data       []byte    // Raw message bytes
	ReceivedAt time.Time // Local timestamp when the frame was read
}

// Event is a decoded stream event. Exactly one of Update or Delete is set
// for known kinds; unknown kinds carry neither and are ignored by consumers.
type Event struct {
	Kind   EventKind
	Update *EventListing
	Delete *EventDeletion
}

// EventListing is the payload of a listing-update event.
type EventListing struct {
	ID         string        `json:"id"`
	SteamID    string        `json:"steamid"`
	AppID      uint32        `json:"appid"`
	Details    *string       `json:"details"`
	Intent     string        `json:"intent"`
	ListedAt   int64         `json:"listedAt"`
	BumpedAt   int64         `json:"bumpedAt"`
	Count      int           `json:"count"`
	Status     string        `json:"status"`
	Source     string        `json:"source"`
	Currencies *Currencies   `json:"currencies"`
	Value      *ListingValue `json:"value"`
	Item       EventItem     `json:"item"`
	UserAgent  *UserAgent    `json:"userAgent"`
}

// ListingValue is the listing price normalized by the marketplace.
type ListingValue struct {
	Raw   decimal.Decimal `json:"raw"`
	Short string          `json:"short"`
	Long  string          `json:"long"`
}

// Currencies is the price as listed, split by currency.
type Currencies struct {
	Metal *decimal.Decimal `json:"metal"`
	Keys  *decimal.Decimal `json:"keys"`
}

// EventItem is the item sub-object of a stream event.
type EventItem struct {
	ID         *StrInt         `json:"id"`
	OriginalID *StrInt         `json:"originalId"`
	Name       string          `json:"name"`
	Defindex   uint32          `json:"defindex"`
	Attributes []ItemAttribute `json:"attributes"`
}

// AttributeDefindexes returns the defindexes of the item's attributes.
func (i EventItem) AttributeDefindexes() []uint32 {
	return attributeDefindexes(i.Attributes)
}

// EventDeletion is the payload of a listing-delete event.
type EventDeletion struct {
	ID   string    `json:"id"`
	Item EventItem `json:"item"`
}

type rawEvent struct {
	Event   EventKind       `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeEvents decodes one stream message, a JSON array of tagged events.
// The whole message fails if it is not an array or any known payload is
// malformed.
func DecodeEvents(data []byte) ([]Event, error) {
	var raws []rawEvent
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: events: %v", ErrDecode, err)
	}

	events := make([]Event, 0, len(raws))
	for i, raw := range raws {
		ev := Event{Kind: raw.Event}

		switch raw.Event {
		case EventListingUpdate:
			var l EventListing
			if err := json.Unmarshal(raw.Payload, &l); err != nil {
				return nil, fmt.Errorf("%w: event %d (%s): %v", ErrDecode, i, raw.Event, err)
			}
			ev.Update = &l
		case EventListingDelete:
			var d EventDeletion
			if err := json.Unmarshal(raw.Payload, &d); err != nil {
				return nil, fmt.Errorf("%w: event %d (%s): %v", ErrDecode, i, raw.Event, err)
			}
			ev.Delete = &d
		default:
			ev.Kind = EventUnknown
		}

		events = append(events, ev)
	}

	return events, nil
}
