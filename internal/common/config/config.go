// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Chain         ChainConfig             `mapstructure:"chain"`
	Access        AccessConfig            `mapstructure:"access"`
	Catalog       CatalogConfig           `mapstructure:"catalog"`
	Tickets       TicketsConfig           `mapstructure:"tickets"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Audit         AuditConfig             `mapstructure:"audit"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string   `mapstructure:"address"`
	ReadTimeout     int      `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int      `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

// ChainConfig points at the Solana RPC node that resolves token holdings.
type ChainConfig struct {
	RPCURL       string `mapstructure:"rpc_url"`
	TokenMint    string `mapstructure:"token_mint"`
	TokenProgram string `mapstructure:"token_program"`
	Commitment   string `mapstructure:"commitment"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
}

// AccessConfig holds the balance gate. Amounts are decimal strings in whole
// token units so that YAML never rounds them through float64.
type AccessConfig struct {
	MinimumBalance string                    `mapstructure:"minimum_balance"`
	Thresholds     ThresholdConfig           `mapstructure:"thresholds"`
	Resources      map[string]ResourceConfig `mapstructure:"resources"`
}

type ThresholdConfig struct {
	Silver   string `mapstructure:"silver"`
	Gold     string `mapstructure:"gold"`
	Platinum string `mapstructure:"platinum"`
}

type ResourceConfig struct {
	DisplayName  string `mapstructure:"display_name"`
	RequiredTier string `mapstructure:"required_tier"`
}

type CatalogConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}

// TicketsConfig selects the issuance strategy. Store "none" runs the
// degraded, store-less pass issuer.
type TicketsConfig struct {
	Store             string `mapstructure:"store"` // postgres | redis | memory | none
	ClaimMaxAttempts  int    `mapstructure:"claim_max_attempts"`
	ClaimRetryBackoff int    `mapstructure:"claim_retry_backoff"` // milliseconds
	PassTTL           int    `mapstructure:"pass_ttl"`            // seconds
	PassResourceTag   string `mapstructure:"pass_resource_tag"`
}

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
	StoreNone     = "none"
)

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// Enabled reports whether any Elasticsearch endpoint is configured.
func (e ElasticsearchConfig) Enabled() bool {
	return e.GetURL() != ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CamundaConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BrokerAddress string `mapstructure:"broker_address"`
	MaxJobsActive int    `mapstructure:"max_jobs_active"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// NotificationConfig holds the sold-out alert settings.
type NotificationConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	DedupTTL int    `mapstructure:"dedup_ttl"` // seconds
	AWS      struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
		SES struct {
			Enabled   bool     `mapstructure:"enabled"`
			FromEmail string   `mapstructure:"from_email"`
			To        []string `mapstructure:"to"`
		} `mapstructure:"ses"`
	} `mapstructure:"aws"`
}

type ObservabilityConfig struct {
	ServiceName    string  `mapstructure:"service_name"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ChainTimeout returns the per-lookup oracle deadline.
func (c *Config) ChainTimeout() time.Duration {
	return GetDuration(c.Chain.Timeout)
}

// PassTTL returns the lifetime of a degraded-mode access pass.
func (c *Config) PassTTL() time.Duration {
	return time.Duration(c.Tickets.PassTTL) * time.Second
}

// Degraded reports whether no durable ticket store is configured.
func (c *Config) Degraded() bool {
	return c.Tickets.Store == StoreNone
}
