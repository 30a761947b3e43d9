package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-cache/internal/domain"
	"listing-cache/internal/filter"
	"listing-cache/internal/storage"
	"listing-cache/internal/storage/memory"
	"listing-cache/internal/storage/storagetest"
)

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	now := storagetest.Base
	listings := memory.NewListingStore(storage.LastWriteWins)
	defs := memory.NewItemDefinitionStore()
	require.NoError(t, defs.RecordItem(ctx, "Mann Co. Supply Crate Key", 5021))

	bot := &domain.Agent{LastPulse: now.Add(-time.Minute), Client: "bot"}
	fixtures := []struct {
		id    string
		price float64
		agent *domain.Agent
		age   time.Duration
	}{
		{"440_1", 50, bot, time.Hour},
		{"440_2", 52, bot, time.Hour},
		{"440_3", 51, bot, time.Hour},
		{"440_4", 500, bot, time.Hour},     // outlier
		{"440_5", 10, nil, time.Hour},      // human
		{"440_6", 49, bot, 30 * time.Hour}, // stale
	}
	for _, f := range fixtures {
		l := storagetest.Listing(5021, f.id, f.price, now.Add(-f.age))
		l.Agent = f.agent
		l.HasActiveAgent = f.agent != nil
		_, err := listings.Upsert(ctx, l)
		require.NoError(t, err)
	}

	opts := summaryOptions{
		Intent:      domain.IntentSell,
		Agents:      "bots",
		TTL:         24 * time.Hour,
		AgentWindow: filter.DefaultAgentWindow,
		Tolerance:   filter.DefaultTolerance,
	}
	require.NoError(t, opts.validate())

	s, err := summarize(ctx, listings, defs, "Mann Co. Supply Crate Key", opts, now)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 3, s.Kept)
	assert.InDelta(t, 51.0, s.Average, 1e-9)
	assert.Equal(t, "440_1", s.Lowest.Key.InstanceID)

	_, err = summarize(ctx, listings, defs, "Unknown Hat", opts, now)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSummaryOptionsValidate(t *testing.T) {
	base := summaryOptions{Intent: domain.IntentBuy, Agents: "all", Tolerance: 1.2}
	assert.NoError(t, base.validate())

	bad := base
	bad.Intent = "trade"
	assert.Error(t, bad.validate())

	bad = base
	bad.Agents = "robots"
	assert.Error(t, bad.validate())

	bad = base
	bad.Tolerance = 0.5
	assert.Error(t, bad.validate())
}

func TestParseAttrs(t *testing.T) {
	attrs, err := parseAttrs("142, 380,")
	require.NoError(t, err)
	assert.Equal(t, []uint32{142, 380}, attrs)

	_, err = parseAttrs("paint")
	assert.Error(t, err)
}
