package ingestion

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// PollerConfig holds poller configuration.
type PollerConfig struct {
	Interval    time.Duration // Poll interval (default: 5m)
	Concurrency int           // Max concurrent fetches (default: 4)
	Timeout     time.Duration // Per-item timeout (default: 30s)
}

// DefaultPollerConfig returns sensible defaults.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:    5 * time.Minute,
		Concurrency: 4,
		Timeout:     30 * time.Second,
	}
}

// Syncer fetches and stores one item's snapshot.
// Implemented by *SnapshotFetcher.
type Syncer interface {
	Sync(ctx context.Context, item string, now time.Time) (SyncResult, error)
}

// PollStats summarizes one poll cycle.
type PollStats struct {
	Items  int
	Synced int64
	Cached int64
	Failed int64
}

// Poller periodically syncs snapshots of the configured items.
type Poller struct {
	cfg    PollerConfig
	items  []string
	syncer Syncer
	logger *log.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a new Poller.
func NewPoller(cfg PollerConfig, items []string, syncer Syncer, logger *log.Logger) *Poller {
	def := DefaultPollerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		cfg:    cfg,
		items:  append([]string(nil), items...),
		syncer: syncer,
		logger: logger,
		now:    time.Now,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Printf("[poller] started: %d items, interval %v, concurrency %d",
		len(p.items), p.cfg.Interval, p.cfg.Concurrency)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Printf("[poller] stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the poller and blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()
	return p.Stop(stopCtx)
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.PollOnce(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(p.ctx)
		}
	}
}

// PollOnce syncs every item once with bounded concurrency.
func (p *Poller) PollOnce(ctx context.Context) PollStats {
	start := time.Now()
	stats := PollStats{Items: len(p.items)}
	if len(p.items) == 0 {
		return stats
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var synced, cached, failed atomic.Int64

	for _, item := range p.items {
		wg.Add(1)
		go func(item string) {
			defer wg.Done()

			// Acquire semaphore slot.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			itemCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
			defer cancel()

			_, err := p.syncer.Sync(itemCtx, item, p.now())
			switch {
			case err == nil:
				synced.Add(1)
			case errors.Is(err, ErrAlreadyCached):
				cached.Add(1)
			case ctx.Err() != nil:
				return
			default:
				p.logger.Printf("[poller] %s: %v", item, err)
				failed.Add(1)
			}
		}(item)
	}

	wg.Wait()

	stats.Synced = synced.Load()
	stats.Cached = cached.Load()
	stats.Failed = failed.Load()

	p.logger.Printf("[poller] cycle complete: items=%d synced=%d cached=%d failed=%d duration=%v",
		stats.Items, stats.Synced, stats.Cached, stats.Failed, time.Since(start))

	return stats
}
