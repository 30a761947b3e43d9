package domain

// Intent is whether a listing is an offer to buy or to sell.
type Intent string

const (
	IntentSell Intent = "sell"
	IntentBuy  Intent = "buy"
)

// String returns the string representation of Intent.
func (i Intent) String() string {
	return string(i)
}

// IsValid checks if the intent is a known value.
func (i Intent) IsValid() bool {
	return i == IntentSell || i == IntentBuy
}

// Feed identifies which ingestion feed produced a listing.
type Feed string

const (
	FeedSnapshot Feed = "snapshot"
	FeedEvent    Feed = "event"
)

// String returns the string representation of Feed.
func (f Feed) String() string {
	return string(f)
}
