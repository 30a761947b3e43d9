package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-cache/internal/domain"
)

func priced(prices ...float64) []domain.Listing {
	out := make([]domain.Listing, len(prices))
	for i, p := range prices {
		out[i] = domain.Listing{Intent: domain.IntentSell, Price: p}
	}
	return out
}

func prices(listings []domain.Listing) []float64 {
	out := make([]float64, len(listings))
	for i, l := range listings {
		out[i] = l.Price
	}
	return out
}

func TestKeepOnlyIntent(t *testing.T) {
	in := []domain.Listing{
		{Intent: domain.IntentSell, Price: 1},
		{Intent: domain.IntentBuy, Price: 2},
		{Intent: domain.IntentSell, Price: 3},
	}

	assert.Equal(t, []float64{1, 3}, prices(KeepOnlyIntent(in, domain.IntentSell)))
	assert.Equal(t, []float64{2}, prices(KeepOnlyIntent(in, domain.IntentBuy)))
	assert.Len(t, in, 3, "input must not be modified")
}

func TestRejectInactiveAgents(t *testing.T) {
	now := time.Unix(1700000000, 0)
	in := []domain.Listing{
		{Price: 1, HasActiveAgent: true, Agent: &domain.Agent{LastPulse: now.Add(-5 * time.Minute)}},
		{Price: 2, HasActiveAgent: true, Agent: &domain.Agent{LastPulse: now.Add(-DefaultAgentWindow)}},
		{Price: 3, HasActiveAgent: true, Agent: &domain.Agent{LastPulse: now.Add(-time.Hour)}},
		{Price: 4},
	}

	t.Run("bots", func(t *testing.T) {
		got := RejectInactiveAgents(in, now, DefaultAgentWindow, SelectBots)
		// Exactly at the window boundary is not active.
		assert.Equal(t, []float64{1}, prices(got))
	})

	t.Run("humans", func(t *testing.T) {
		got := RejectInactiveAgents(in, now, DefaultAgentWindow, SelectHumans)
		assert.Equal(t, []float64{4}, prices(got))
	})
}

func TestRejectInactiveAgents_DefaultWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	in := []domain.Listing{
		{Price: 19, HasActiveAgent: true, Agent: &domain.Agent{LastPulse: now.Add(-19 * time.Minute)}},
		{Price: 21, HasActiveAgent: true, Agent: &domain.Agent{LastPulse: now.Add(-21 * time.Minute)}},
	}

	assert.Equal(t, []float64{19}, prices(RejectInactiveAgents(in, now, DefaultAgentWindow, SelectBots)))
	assert.Empty(t, RejectInactiveAgents(in, now, DefaultAgentWindow, SelectHumans))
}

func TestRejectOutliers(t *testing.T) {
	got, err := RejectOutliers(priced(10, 11, 9, 1000), DefaultTolerance)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 9}, prices(got))

	got, err = RejectOutliers(priced(10, 10, 10, 10), DefaultTolerance)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = RejectOutliers(priced(5), DefaultTolerance)
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, prices(got))
}

func TestRejectOutliers_Empty(t *testing.T) {
	_, err := RejectOutliers(nil, DefaultTolerance)
	assert.True(t, errors.Is(err, ErrNoListings))
}

func TestRejectAttributes(t *testing.T) {
	in := []domain.Listing{
		{Price: 1, Attributes: []uint32{142}},
		{Price: 2, Attributes: []uint32{380, 1004}},
		{Price: 3},
	}

	assert.Equal(t, []float64{3}, prices(RejectAttributes(in, 142, 1004)))
	assert.Equal(t, []float64{1, 2, 3}, prices(RejectAttributes(in)))
}

func TestAverage(t *testing.T) {
	avg, err := Average(priced(10, 11, 9))
	require.NoError(t, err)
	assert.InDelta(t, 10.0, avg, 1e-9)

	_, err = Average(nil)
	assert.ErrorIs(t, err, ErrNoListings)
}

func TestLowest(t *testing.T) {
	l, err := Lowest(priced(10, 8, 9, 8))
	require.NoError(t, err)
	assert.Equal(t, 8.0, l.Price)

	_, err = Lowest(nil)
	assert.ErrorIs(t, err, ErrNoListings)
}

func TestPipeline(t *testing.T) {
	now := time.Unix(1700000000, 0)
	active := &domain.Agent{LastPulse: now.Add(-time.Minute)}

	in := []domain.Listing{
		{Intent: domain.IntentSell, Price: 10, Agent: active},
		{Intent: domain.IntentSell, Price: 11, Agent: active},
		{Intent: domain.IntentSell, Price: 12, Agent: active, Attributes: []uint32{142}},
		{Intent: domain.IntentSell, Price: 100, Agent: active},
		{Intent: domain.IntentSell, Price: 10.5},
		{Intent: domain.IntentBuy, Price: 9, Agent: active},
	}

	p := New(
		Intent(domain.IntentSell),
		Agents(now, DefaultAgentWindow, SelectBots),
		Attributes(142),
		Outliers(DefaultTolerance),
	)

	got, err := p.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11}, prices(got))

	avg, err := Average(got)
	require.NoError(t, err)
	assert.InDelta(t, 10.5, avg, 1e-9)
}

func TestPipeline_StopsOnError(t *testing.T) {
	p := New(Intent(domain.IntentBuy), Outliers(DefaultTolerance))

	_, err := p.Apply(priced(1, 2, 3))
	assert.ErrorIs(t, err, ErrNoListings)
}
