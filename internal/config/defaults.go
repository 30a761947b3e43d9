package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL           = "https://backpack.tf/api"
	DefaultStreamURL         = "wss://ws.backpack.tf/events"
	DefaultAPITimeout        = 30 * time.Second
	DefaultRateLimit         = 1.0
	DefaultRateBurst         = 1
	DefaultBackend           = BackendMemory
	DefaultWritePolicy       = "last_write_wins"
	DefaultSQLitePath        = "listings.db"
	DefaultArchiveBatchSize  = 500
	DefaultArchiveFlush      = 5 * time.Second
	DefaultPollInterval      = 5 * time.Minute
	DefaultPollConcurrency   = 4
	DefaultPollTimeout       = 30 * time.Second
	DefaultDedupCooldown     = 60 * time.Second
	DefaultDedupCapacity     = 10000
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultReadTimeout       = 90 * time.Second
	DefaultStreamBufferSize  = 1000
	DefaultReconnectDelay    = 1 * time.Second
	DefaultMaxReconnectDelay = 30 * time.Second
	DefaultMetricsAddr       = ":9090"
)

// DefaultSweepPolicies evicts configured items after a day and anything
// older than three days store-wide.
func DefaultSweepPolicies() []SweepPolicyConfig {
	return []SweepPolicyConfig{
		{Name: "short", TTL: 24 * time.Hour, Interval: 10 * time.Minute, Scope: ScopeItems},
		{Name: "long", TTL: 72 * time.Hour, Interval: time.Hour, Scope: ScopeAll},
	}
}

func (c *Config) applyDefaults() {
	// Marketplace defaults
	if c.BPTF.BaseURL == "" {
		c.BPTF.BaseURL = DefaultBaseURL
	}
	if c.BPTF.StreamURL == "" {
		c.BPTF.StreamURL = DefaultStreamURL
	}
	if c.BPTF.Timeout == 0 {
		c.BPTF.Timeout = DefaultAPITimeout
	}
	if c.BPTF.RateLimit == 0 {
		c.BPTF.RateLimit = DefaultRateLimit
	}
	if c.BPTF.RateBurst == 0 {
		c.BPTF.RateBurst = DefaultRateBurst
	}

	// Store defaults
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultBackend
	}
	if c.Store.WritePolicy == "" {
		c.Store.WritePolicy = DefaultWritePolicy
	}
	if c.Store.Backend == BackendSQLite && c.Store.SQLitePath == "" {
		c.Store.SQLitePath = DefaultSQLitePath
	}

	// Archive defaults
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultArchiveBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultArchiveFlush
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Dedup defaults
	if c.Dedup.Cooldown == 0 {
		c.Dedup.Cooldown = DefaultDedupCooldown
	}
	if c.Dedup.Capacity == 0 {
		c.Dedup.Capacity = DefaultDedupCapacity
	}

	// Stream defaults
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.ReadTimeout == 0 {
		c.Stream.ReadTimeout = DefaultReadTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}
	if c.Stream.ReconnectDelay == 0 {
		c.Stream.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Stream.MaxReconnectDelay == 0 {
		c.Stream.MaxReconnectDelay = DefaultMaxReconnectDelay
	}

	// Sweeper defaults
	if len(c.Sweeper.Policies) == 0 {
		c.Sweeper.Policies = DefaultSweepPolicies()
	}
	for i := range c.Sweeper.Policies {
		if c.Sweeper.Policies[i].Scope == "" {
			c.Sweeper.Policies[i].Scope = ScopeAll
		}
	}

	// Metrics defaults
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
}
