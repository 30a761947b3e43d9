package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-cache/internal/bptf"
)

type scriptedDialer struct {
	mu      sync.Mutex
	dials   int
	streams []*fakeStream
	errs    []error
}

func (d *scriptedDialer) Dial(context.Context) (MessageStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.dials
	d.dials++
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if i < len(d.streams) {
		return d.streams[i], nil
	}
	return newFakeStream(errors.New("eof")), nil
}

func (d *scriptedDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func TestStreamRunner_ReconnectsWithBackoff(t *testing.T) {
	c, store, _ := newTestConsumer(keyName)
	dialer := &scriptedDialer{
		streams: []*fakeStream{newFakeStream(errors.New("read: reset"), "["+updateKey+"]")},
		errs:    []error{nil, errors.New("dial refused")},
	}

	r := NewStreamRunner(dialer.Dial, c, ReconnectConfig{
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 4 * time.Second,
		StableAfter:       time.Hour,
	}, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	var delays []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) == 5 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	require.NoError(t, r.Run(ctx))

	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second,
	}, delays)
	assert.Equal(t, 5, dialer.Dials())
	assert.Equal(t, 1, store.Len())
	assert.True(t, isClosed(dialer.streams[0]), "lost stream is closed")
}

func TestStreamRunner_ReturnsOnCancel(t *testing.T) {
	c, _, _ := newTestConsumer(keyName)
	dial := func(ctx context.Context) (MessageStream, error) {
		return &idleStream{}, nil
	}

	r := NewStreamRunner(dial, c, DefaultReconnectConfig(), testLogger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

// idleStream never delivers nor closes.
type idleStream struct{}

func (idleStream) Messages() <-chan bptf.Message { return nil }
func (idleStream) Err() error                    { return nil }
func (idleStream) Close() error                  { return nil }

func isClosed(s *fakeStream) bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
