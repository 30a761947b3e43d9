// Package config loads the listing cache configuration from a YAML file
// with environment overrides.
package config

import "time"

// Config is the top-level configuration of the ingest process.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	BPTF     BPTFConfig     `yaml:"bptf"`
	Items    []string       `yaml:"items" env:"LISTING_ITEMS" envSeparator:","`
	Store    StoreConfig    `yaml:"store"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Poller   PollerConfig   `yaml:"poller"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Stream   StreamConfig   `yaml:"stream"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// InstanceConfig identifies this process. An empty ID is replaced by a
// generated one at startup.
type InstanceConfig struct {
	ID string `yaml:"id" env:"INSTANCE_ID"`
}

// BPTFConfig holds marketplace credentials and endpoints.
type BPTFConfig struct {
	APIKey    string        `yaml:"api_key" env:"BPTF_API_KEY"`
	UserToken string        `yaml:"user_token" env:"BPTF_USER_TOKEN"`
	BaseURL   string        `yaml:"base_url" env:"BPTF_BASE_URL"`
	StreamURL string        `yaml:"stream_url" env:"BPTF_STREAM_URL"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // snapshot requests per second
	RateBurst int           `yaml:"rate_burst"`
}

// Token returns the credential sent with snapshot requests.
func (c BPTFConfig) Token() string {
	if c.UserToken != "" {
		return c.UserToken
	}
	return c.APIKey
}

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// StoreConfig selects and configures the listing store.
type StoreConfig struct {
	Backend          string `yaml:"backend" env:"STORE_BACKEND"`
	WritePolicy      string `yaml:"write_policy" env:"STORE_WRITE_POLICY"`
	PostgresDSN      string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	PostgresMaxConns int32  `yaml:"postgres_max_conns"` // 0: pgxpool default
	SQLitePath       string `yaml:"sqlite_path" env:"SQLITE_PATH"`
}

// ArchiveConfig configures the optional ClickHouse change journal.
// The archive is disabled when ClickhouseDSN is empty. The DSN names the
// database, which is created on startup.
type ArchiveConfig struct {
	ClickhouseDSN string        `yaml:"clickhouse_dsn" env:"CLICKHOUSE_DSN"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Enabled reports whether archiving is configured.
func (c ArchiveConfig) Enabled() bool {
	return c.ClickhouseDSN != ""
}

// PollerConfig configures the snapshot poller.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DedupConfig configures the snapshot dedup cache.
type DedupConfig struct {
	Cooldown time.Duration `yaml:"cooldown"`
	Capacity int           `yaml:"capacity"`
}

// StreamConfig configures the event stream consumer.
type StreamConfig struct {
	Disabled          bool          `yaml:"disabled" env:"STREAM_DISABLED"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	BufferSize        int           `yaml:"buffer_size"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay"`
}

// Sweep scopes.
const (
	ScopeItems = "items" // configured items only
	ScopeAll   = "all"   // whole store
)

// SweeperConfig lists the eviction policies.
type SweeperConfig struct {
	Policies []SweepPolicyConfig `yaml:"policies"`
}

// SweepPolicyConfig is one eviction policy.
type SweepPolicyConfig struct {
	Name     string        `yaml:"name"`
	TTL      time.Duration `yaml:"ttl"`
	Interval time.Duration `yaml:"interval"`
	Scope    string        `yaml:"scope"`
}

// MetricsConfig configures the metrics server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"METRICS_ADDR"`
}
