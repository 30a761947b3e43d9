package ingestion

import (
	"context"
	"log"
	"sync"
	"time"

	"listing-cache/internal/bptf"
	"listing-cache/internal/domain"
	"listing-cache/internal/normalization"
	"listing-cache/internal/observability"
	"listing-cache/internal/storage"
)

// EventConsumerOptions contains configuration for creating an EventConsumer.
type EventConsumerOptions struct {
	Applier *Applier
	Items   []string                    // items of interest; empty keeps nothing
	Defs    storage.ItemDefinitionStore // optional
	Logger  *log.Logger
}

// MessageStats summarizes one handled stream message.
type MessageStats struct {
	Upserted int
	Deleted  int
	Skipped  int // not an item of interest, or unknown kind
	Failed   int
}

// EventConsumer applies stream events to the store.
type EventConsumer struct {
	applier *Applier
	items   map[string]struct{}
	defs    storage.ItemDefinitionStore
	logger  *log.Logger

	seenMu sync.Mutex
	seen   map[string]uint32 // recorded item definitions
}

// NewEventConsumer creates a new EventConsumer.
func NewEventConsumer(opts EventConsumerOptions) *EventConsumer {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	items := make(map[string]struct{}, len(opts.Items))
	for _, name := range opts.Items {
		items[name] = struct{}{}
	}
	return &EventConsumer{
		applier: opts.Applier,
		items:   items,
		defs:    opts.Defs,
		logger:  opts.Logger,
		seen:    make(map[string]uint32),
	}
}

// Run handles messages until the channel closes or ctx is cancelled.
// Returns ErrConnectionLost when the channel closes.
func (c *EventConsumer) Run(ctx context.Context, messages <-chan bptf.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ErrConnectionLost
			}
			c.HandleMessage(ctx, msg)
		}
	}
}

// HandleMessage decodes one message and applies its events: every delete
// first, then every upsert. Failures are per record.
func (c *EventConsumer) HandleMessage(ctx context.Context, msg bptf.Message) MessageStats {
	start := time.Now()
	var stats MessageStats

	events, err := bptf.DecodeEvents(msg.Data)
	if err != nil {
		c.logger.Printf("[events] dropping message: %v", err)
		observability.RecordRejected(domain.FeedEvent.String(), "decode")
		observability.RecordStreamMessage("decode_error", msg.ReceivedAt, time.Since(start))
		return stats
	}

	var deletes []*bptf.EventDeletion
	var updates []*bptf.EventListing
	for _, ev := range events {
		switch {
		case ev.Kind == bptf.EventListingDelete && c.interested(ev.Delete.Item.Name):
			deletes = append(deletes, ev.Delete)
		case ev.Kind == bptf.EventListingUpdate && c.interested(ev.Update.Item.Name):
			updates = append(updates, ev.Update)
		default:
			stats.Skipped++
		}
	}

	for _, d := range deletes {
		key, err := normalization.DeletionKey(*d)
		if err != nil {
			c.logger.Printf("[events] dropping delete: %v", err)
			observability.RecordRejected(domain.FeedEvent.String(), rejectReason(err))
			stats.Failed++
			continue
		}
		if err := c.applier.Delete(ctx, key, domain.FeedEvent); err != nil {
			c.logger.Printf("[events] delete %s: %v", key, err)
			stats.Failed++
			continue
		}
		stats.Deleted++
	}

	for _, u := range updates {
		l, err := normalization.NormalizeEvent(*u)
		if err != nil {
			c.logger.Printf("[events] dropping update %s: %v", u.ID, err)
			observability.RecordRejected(domain.FeedEvent.String(), rejectReason(err))
			stats.Failed++
			continue
		}
		if _, err := c.applier.Upsert(ctx, l); err != nil {
			c.logger.Printf("[events] upsert %s: %v", l.Key, err)
			stats.Failed++
			continue
		}
		stats.Upserted++
		c.recordDefinition(ctx, l.ItemName, l.Key.Defindex)
	}

	outcome := "ok"
	if stats.Failed > 0 {
		outcome = "partial"
	}
	observability.RecordStreamMessage(outcome, msg.ReceivedAt, time.Since(start))

	return stats
}

func (c *EventConsumer) interested(name string) bool {
	_, ok := c.items[name]
	return ok
}

// recordDefinition stores name -> defindex once per process.
func (c *EventConsumer) recordDefinition(ctx context.Context, name string, defindex uint32) {
	if c.defs == nil || name == "" {
		return
	}

	c.seenMu.Lock()
	known, ok := c.seen[name]
	if ok && known == defindex {
		c.seenMu.Unlock()
		return
	}
	c.seen[name] = defindex
	c.seenMu.Unlock()

	if err := c.defs.RecordItem(ctx, name, defindex); err != nil {
		c.logger.Printf("[events] failed to record defindex of %s: %v", name, err)
		observability.RecordStoreError("record_item")

		c.seenMu.Lock()
		delete(c.seen, name)
		c.seenMu.Unlock()
	}
}
