package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"listing-cache/internal/bptf"
	"listing-cache/internal/config"
	"listing-cache/internal/dedup"
	"listing-cache/internal/ingestion"
	"listing-cache/internal/observability"
	"listing-cache/internal/storage"
	"listing-cache/internal/storage/backend"
	"listing-cache/internal/storage/clickhouse"
	"listing-cache/internal/storage/migrations"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (empty: environment only)")
	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Fatalf("Config: %v", err)
	}
	if cfg.Instance.ID == "" {
		cfg.Instance.ID = uuid.NewString()
	}
	logger.Printf("Instance %s: %d items, store %s (%s)", cfg.Instance.ID, len(cfg.Items), cfg.Store.Backend, cfg.Store.WritePolicy)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	stores, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer stores.Close()

	archive, closeArchive, err := openArchive(ctx, cfg.Archive)
	if err != nil {
		return err
	}
	defer closeArchive()

	cache := dedup.New(cfg.Dedup.Cooldown, cfg.Dedup.Capacity)

	applier := ingestion.NewApplier(ingestion.ApplierOptions{
		Store:         stores.Listings,
		Archive:       archive,
		Instance:      cfg.Instance.ID,
		BatchSize:     cfg.Archive.BatchSize,
		FlushInterval: cfg.Archive.FlushInterval,
		Logger:        logger,
	})

	client := bptf.NewSnapshotClient(cfg.BPTF.BaseURL, cfg.BPTF.Token(),
		bptf.WithTimeout(cfg.BPTF.Timeout),
		bptf.WithRateLimit(cfg.BPTF.RateLimit, cfg.BPTF.RateBurst),
	)

	fetcher := ingestion.NewSnapshotFetcher(ingestion.SnapshotFetcherOptions{
		Source:  client,
		Dedup:   cache,
		Items:   stores.Items,
		Applier: applier,
		Logger:  logger,
	})

	poller := ingestion.NewPoller(ingestion.PollerConfig{
		Interval:    cfg.Poller.Interval,
		Concurrency: cfg.Poller.Concurrency,
		Timeout:     cfg.Poller.Timeout,
	}, cfg.Items, fetcher, logger)

	sweeper := ingestion.NewSweeper(stores.Listings, stores.Items, cache, sweepPolicies(cfg), logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return applier.Run(ctx) })
	g.Go(func() error { return sweeper.Run(ctx) })

	if len(cfg.Items) == 0 {
		logger.Println("No items configured, snapshot polling and event stream disabled")
	} else {
		g.Go(func() error { return poller.Run(ctx) })
	}

	if !cfg.Stream.Disabled && len(cfg.Items) > 0 {
		consumer := ingestion.NewEventConsumer(ingestion.EventConsumerOptions{
			Applier: applier,
			Items:   cfg.Items,
			Defs:    stores.Items,
			Logger:  logger,
		})
		streamCfg := bptf.DefaultStreamConfig()
		streamCfg.HandshakeTimeout = cfg.Stream.HandshakeTimeout
		streamCfg.PingInterval = cfg.Stream.PingInterval
		streamCfg.ReadTimeout = cfg.Stream.ReadTimeout
		streamCfg.BufferSize = cfg.Stream.BufferSize

		dial := func(ctx context.Context) (ingestion.MessageStream, error) {
			stream, err := bptf.DialStream(ctx, cfg.BPTF.StreamURL, &streamCfg)
			if err != nil {
				return nil, err
			}
			return stream, nil
		}
		runner := ingestion.NewStreamRunner(dial, consumer, ingestion.ReconnectConfig{
			ReconnectDelay:    cfg.Stream.ReconnectDelay,
			MaxReconnectDelay: cfg.Stream.MaxReconnectDelay,
		}, logger)
		g.Go(func() error { return runner.Run(ctx) })
	}

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           observability.NewServeMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Printf("Starting metrics server on %s", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Println("Starting ingestion...")
	return g.Wait()
}

// openArchive connects the ClickHouse change journal if configured.
func openArchive(ctx context.Context, cfg config.ArchiveConfig) (storage.ListingArchive, func(), error) {
	if !cfg.Enabled() {
		return nil, func() {}, nil
	}

	if err := clickhouse.EnsureDatabase(ctx, cfg.ClickhouseDSN); err != nil {
		return nil, nil, fmt.Errorf("ensure clickhouse database: %w", err)
	}
	conn, err := clickhouse.NewConn(ctx, cfg.ClickhouseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	return clickhouse.NewListingArchive(conn), func() { _ = conn.Close() }, nil
}

// sweepPolicies resolves configured policy scopes against the item list.
func sweepPolicies(cfg *config.Config) []ingestion.SweepPolicy {
	policies := make([]ingestion.SweepPolicy, 0, len(cfg.Sweeper.Policies))
	for _, p := range cfg.Sweeper.Policies {
		sp := ingestion.SweepPolicy{Name: p.Name, TTL: p.TTL, Interval: p.Interval}
		if p.Scope == config.ScopeItems {
			if len(cfg.Items) == 0 {
				continue
			}
			sp.Items = cfg.Items
		}
		policies = append(policies, sp)
	}
	return policies
}
