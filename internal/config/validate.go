package config

import (
	"errors"
	"fmt"
	"strings"

	"listing-cache/internal/storage"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.BPTF.Token() == "" {
		return errors.New("bptf.user_token or bptf.api_key is required")
	}
	if c.BPTF.RateLimit < 0 {
		return errors.New("bptf.rate_limit must be >= 0")
	}
	if c.BPTF.RateBurst < 1 {
		return errors.New("bptf.rate_burst must be >= 1")
	}

	for i, item := range c.Items {
		if strings.TrimSpace(item) == "" {
			return fmt.Errorf("items[%d] is empty", i)
		}
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required for the postgres backend")
		}
		if c.Store.PostgresMaxConns < 0 {
			return errors.New("store.postgres_max_conns must be >= 0")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("store.backend %q is not one of memory, postgres, sqlite", c.Store.Backend)
	}
	if _, err := storage.ParseWritePolicy(c.Store.WritePolicy); err != nil {
		return fmt.Errorf("store.write_policy: %w", err)
	}

	if c.Archive.BatchSize < 1 {
		return errors.New("archive.batch_size must be >= 1")
	}

	if c.Poller.Concurrency < 1 {
		return errors.New("poller.concurrency must be >= 1")
	}
	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}

	if c.Dedup.Cooldown < 0 {
		return errors.New("dedup.cooldown must be >= 0")
	}
	if c.Dedup.Capacity < 1 {
		return errors.New("dedup.capacity must be >= 1")
	}

	if c.Stream.MaxReconnectDelay < c.Stream.ReconnectDelay {
		return errors.New("stream.max_reconnect_delay must be >= stream.reconnect_delay")
	}

	names := make(map[string]bool, len(c.Sweeper.Policies))
	for i, p := range c.Sweeper.Policies {
		field := fmt.Sprintf("sweeper.policies[%d]", i)
		if p.Name == "" {
			return fmt.Errorf("%s.name is required", field)
		}
		if names[p.Name] {
			return fmt.Errorf("%s.name %q is duplicated", field, p.Name)
		}
		names[p.Name] = true
		if p.TTL <= 0 {
			return fmt.Errorf("%s.ttl must be > 0", field)
		}
		if p.Interval <= 0 {
			return fmt.Errorf("%s.interval must be > 0", field)
		}
		if p.Scope != ScopeItems && p.Scope != ScopeAll {
			return fmt.Errorf("%s.scope %q is not one of items, all", field, p.Scope)
		}
	}

	return nil
}
