package ingestion

import (
	"context"
	"errors"
	"log"
	"time"

	"listing-cache/internal/observability"
)

// ReconnectConfig controls event stream reconnect backoff.
type ReconnectConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// StableAfter resets the delay once a connection lived this long.
	StableAfter time.Duration
}

// DefaultReconnectConfig returns default reconnect configuration.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		StableAfter:       time.Minute,
	}
}

// StreamRunner keeps an event stream connected and feeds its messages to
// the consumer. Each lost connection is followed by a reconnect with
// exponential backoff.
type StreamRunner struct {
	dial     DialFunc
	consumer *EventConsumer
	cfg      ReconnectConfig
	logger   *log.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewStreamRunner creates a new StreamRunner.
func NewStreamRunner(dial DialFunc, consumer *EventConsumer, cfg ReconnectConfig, logger *log.Logger) *StreamRunner {
	def := DefaultReconnectConfig()
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = def.StableAfter
	}
	if logger == nil {
		logger = log.Default()
	}
	return &StreamRunner{
		dial:     dial,
		consumer: consumer,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Run blocks until ctx is cancelled.
func (r *StreamRunner) Run(ctx context.Context) error {
	delay := r.cfg.ReconnectDelay

	for {
		started := time.Now()
		err := r.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}

		// Reset delay after a connection that stayed up
		if time.Since(started) >= r.cfg.StableAfter {
			delay = r.cfg.ReconnectDelay
		}

		r.logger.Printf("[ws] %v, reconnecting in %v", err, delay)
		observability.RecordStreamReconnect()

		if err := r.sleep(ctx, delay); err != nil {
			return nil
		}

		// Increase delay for next reconnect (exponential backoff)
		delay *= 2
		if delay > r.cfg.MaxReconnectDelay {
			delay = r.cfg.MaxReconnectDelay
		}
	}
}

// runOnce serves one connection until it is lost.
func (r *StreamRunner) runOnce(ctx context.Context) error {
	stream, err := r.dial(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	r.logger.Printf("[ws] connected")

	err = r.consumer.Run(ctx, stream.Messages())
	if errors.Is(err, ErrConnectionLost) {
		if cause := stream.Err(); cause != nil {
			return errors.Join(err, cause)
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
