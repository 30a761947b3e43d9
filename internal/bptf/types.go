package bptf

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// SnapshotResponse from GET /classifieds/listings/snapshot
type SnapshotResponse struct {
	Listings  []SnapshotListing `json:"listings"`
	CreatedAt int64             `json:"createdAt"` // Unix timestamp (seconds)
}

// SnapshotListing is one listing record of a snapshot response.
type SnapshotListing struct {
	SteamID   string          `json:"steamid"`
	Offers    int             `json:"offers"`
	Buyout    int             `json:"buyout"`
	Details   string          `json:"details"`
	Intent    string          `json:"intent"` // "sell" | "buy"
	Timestamp int64           `json:"timestamp"`
	Price     decimal.Decimal `json:"price"` // string or number on the wire
	Item      SnapshotItem    `json:"item"`
	Bump      int64           `json:"bump"`
	UserAgent *UserAgent      `json:"userAgent"`
}

// SnapshotItem is the item sub-object of a snapshot listing.
type SnapshotItem struct {
	ID         *StrInt         `json:"id"` // absent for buy orders
	OriginalID *StrInt         `json:"original_id"`
	Defindex   uint32          `json:"defindex"`
	Level      *int            `json:"level"`
	Quality    int             `json:"quality"`
	Attributes []ItemAttribute `json:"attributes"`
}

// ItemAttribute is a single item attribute.
type ItemAttribute struct {
	Defindex   *StrInt          `json:"defindex"`
	Value      json.RawMessage  `json:"value"`
	FloatValue *decimal.Decimal `json:"float_value"`
}

// UserAgent is the liveness metadata of an automated trading agent.
type UserAgent struct {
	LastPulse int64  `json:"lastPulse"` // Unix timestamp (seconds)
	Client    string `json:"client"`
}

// StrInt is an unsigned id that may arrive as a JSON string, integer or float.
type StrInt uint64

// 2^64, the first float past the uint64 range.
const strIntFloatLimit = 1 << 64

// UnmarshalJSON implements json.Unmarshaler.
func (v *StrInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)

	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		*v = StrInt(n)
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	// NaN fails the Trunc comparison
	if err != nil || f < 0 || f >= strIntFloatLimit || f != math.Trunc(f) {
		return fmt.Errorf("invalid id %q", s)
	}
	*v = StrInt(f)
	return nil
}

// Uint64 returns the id as uint64.
func (v StrInt) Uint64() uint64 {
	return uint64(v)
}

// attributeDefindexes flattens attribute defindexes, skipping unidentified
// ones and ids outside the uint32 range.
func attributeDefindexes(attrs []ItemAttribute) []uint32 {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]uint32, 0, len(attrs))
	for _, a := range attrs {
		if a.Defindex == nil || *a.Defindex > math.MaxUint32 {
			continue
		}
		out = append(out, uint32(*a.Defindex))
	}
	return out
}

// AttributeDefindexes returns the defindexes of the item's attributes.
func (i SnapshotItem) AttributeDefindexes() []uint32 {
	return attributeDefindexes(i.Attributes)
}
