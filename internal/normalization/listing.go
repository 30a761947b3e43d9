package normalization

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"listing-cache/internal/bptf"
	"listing-cache/internal/domain"
	"listing-cache/internal/idhash"
)

var (
	// ErrInvalidIdentity is returned when a record lacks the id its key is derived from.
	ErrInvalidIdentity = errors.New("invalid listing identity")
	// ErrNegativePrice is returned for records priced below zero.
	ErrNegativePrice = errors.New("negative price")
	// ErrMissingPrice is returned for event records without a value.
	ErrMissingPrice = errors.New("missing price")
	// ErrUnknownIntent is returned for intents other than buy or sell.
	ErrUnknownIntent = errors.New("unknown intent")
)

// NormalizeSnapshot converts one snapshot record into a canonical listing.
// query is the item the snapshot was requested for; buy keys hash its name.
//
// Key derivation:
//   - sell: <appid>_<item.id>, item.id required
//   - buy: <appid>_<steamid>_<md5hex(query.Name)>
func NormalizeSnapshot(query domain.ItemIdentity, raw bptf.SnapshotListing) (domain.Listing, error) {
	intent, err := parseIntent(raw.Intent)
	if err != nil {
		return domain.Listing{}, err
	}

	price, err := parsePrice(raw.Price)
	if err != nil {
		return domain.Listing{}, err
	}

	var instanceID string
	switch intent {
	case domain.IntentSell:
		if raw.Item.ID == nil {
			return domain.Listing{}, fmt.Errorf("%w: sell listing by %s has no item id", ErrInvalidIdentity, raw.SteamID)
		}
		instanceID = idhash.SellInstanceID(domain.AppID, raw.Item.ID.Uint64())
	case domain.IntentBuy:
		if raw.SteamID == "" {
			return domain.Listing{}, fmt.Errorf("%w: buy listing has no account id", ErrInvalidIdentity)
		}
		instanceID = idhash.BuyInstanceID(domain.AppID, raw.SteamID, query.Name)
	}

	l := domain.Listing{
		Key: domain.ListingKey{
			Defindex:   raw.Item.Defindex,
			InstanceID: instanceID,
		},
		Feed:       domain.FeedSnapshot,
		ItemName:   query.Name,
		AccountID:  raw.SteamID,
		Intent:     intent,
		Price:      price,
		BumpedAt:   snapshotBumpedAt(raw),
		Attributes: raw.Item.AttributeDefindexes(),
	}
	if raw.Details != "" {
		details := raw.Details
		l.Details = &details
	}
	applyAgent(&l, raw.UserAgent)

	return l, nil
}

// NormalizeEvent converts a listing-update payload into a canonical listing.
// The feed-native id already follows the store key scheme and is used as
// the instance id unchanged.
func NormalizeEvent(raw bptf.EventListing) (domain.Listing, error) {
	if raw.ID == "" {
		return domain.Listing{}, fmt.Errorf("%w: event listing has no id", ErrInvalidIdentity)
	}

	intent, err := parseIntent(raw.Intent)
	if err != nil {
		return domain.Listing{}, err
	}

	if raw.Value == nil {
		return domain.Listing{}, fmt.Errorf("%w: listing %s", ErrMissingPrice, raw.ID)
	}
	price, err := parsePrice(raw.Value.Raw)
	if err != nil {
		return domain.Listing{}, err
	}

	sourceID := raw.ID
	l := domain.Listing{
		Key: domain.ListingKey{
			Defindex:   raw.Item.Defindex,
			InstanceID: raw.ID,
		},
		SourceID:   &sourceID,
		Feed:       domain.FeedEvent,
		ItemName:   raw.Item.Name,
		AccountID:  raw.SteamID,
		Intent:     intent,
		Price:      price,
		BumpedAt:   unixTime(raw.BumpedAt),
		Attributes: raw.Item.AttributeDefindexes(),
	}
	if raw.Details != nil {
		details := *raw.Details
		l.Details = &details
	}
	applyAgent(&l, raw.UserAgent)

	return l, nil
}

// DeletionKey returns the store key a listing-delete payload addresses.
func DeletionKey(raw bptf.EventDeletion) (domain.ListingKey, error) {
	if raw.ID == "" {
		return domain.ListingKey{}, fmt.Errorf("%w: delete event has no id", ErrInvalidIdentity)
	}
	return domain.ListingKey{Defindex: raw.Item.Defindex, InstanceID: raw.ID}, nil
}

func parseIntent(s string) (domain.Intent, error) {
	intent := domain.Intent(s)
	if !intent.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownIntent, s)
	}
	return intent, nil
}

func parsePrice(d decimal.Decimal) (float64, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrNegativePrice, d.String())
	}
	return d.InexactFloat64(), nil
}

func applyAgent(l *domain.Listing, ua *bptf.UserAgent) {
	if ua == nil {
		return
	}
	l.HasActiveAgent = true
	l.Agent = &domain.Agent{
		LastPulse: unixTime(ua.LastPulse),
		Client:    ua.Client,
	}
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// snapshotBumpedAt falls back to the listing timestamp for records that
// were never bumped.
func snapshotBumpedAt(raw bptf.SnapshotListing) time.Time {
	if raw.Bump != 0 {
		return unixTime(raw.Bump)
	}
	return unixTime(raw.Timestamp)
}
