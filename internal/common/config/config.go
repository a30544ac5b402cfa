// internal/common/config/config.go
package config

import (
	"fmt"
	"strings"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Completion    CompletionConfig    `mapstructure:"completion"`
	Strategies    []StrategyConfig    `mapstructure:"strategies"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Jobs          JobsConfig          `mapstructure:"jobs"`
	Index         IndexConfig         `mapstructure:"index"`
	Citations     CitationsConfig     `mapstructure:"citations"`
	Notes         NotesConfig         `mapstructure:"notes"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Debug         bool                `mapstructure:"debug"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string   `mapstructure:"address"`
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

// CompletionConfig describes the remote completion service. Model and index
// identifiers are read once at startup and never mutated.
type CompletionConfig struct {
	BaseURL            string   `mapstructure:"base_url"`
	APIKey             string   `mapstructure:"api_key"`
	PrimaryModel       string   `mapstructure:"primary_model"`
	SecondaryModel     string   `mapstructure:"secondary_model"`
	IndexID            string   `mapstructure:"index_id"`
	AssistantID        string   `mapstructure:"assistant_id"`
	SystemInstructions string   `mapstructure:"system_instructions"`
	Temperature        *float64 `mapstructure:"temperature"` // nil means 0.2; 0 is sent as is
	Timeout            int      `mapstructure:"timeout"`     // milliseconds
	RequestsPerSecond  float64  `mapstructure:"requests_per_second"`
	Burst              int      `mapstructure:"burst"`
}

// GroundingConfigured reports whether a document index is available.
func (c CompletionConfig) GroundingConfigured() bool {
	return strings.TrimSpace(c.IndexID) != ""
}

const (
	StrategyKindSynchronous = "synchronous"
	StrategyKindJobBased    = "job_based"

	ModelPrimary   = "primary"
	ModelSecondary = "secondary"
)

// StrategyConfig is one entry of the ordered strategy list. Order encodes preference.
type StrategyConfig struct {
	Name        string `mapstructure:"name"`
	Kind        string `mapstructure:"kind"`
	Grounded    bool   `mapstructure:"grounded"`
	Model       string `mapstructure:"model"` // "primary", "secondary" or a literal model id
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// ResolveModel maps the symbolic model names to the configured identifiers.
func (s StrategyConfig) ResolveModel(c CompletionConfig) string {
	switch s.Model {
	case "", ModelPrimary:
		return c.PrimaryModel
	case ModelSecondary:
		return c.SecondaryModel
	default:
		return s.Model
	}
}

// DisplayName returns the configured name or one derived from the strategy shape.
func (s StrategyConfig) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	grounding := "ungrounded"
	if s.Grounded {
		grounding = "grounded"
	}
	model := s.Model
	if model == "" {
		model = ModelPrimary
	}
	return fmt.Sprintf("%s-%s-%s", grounding, strings.ReplaceAll(s.Kind, "_", "-"), model)
}

type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BaseDelay   int `mapstructure:"base_delay"` // milliseconds
}

type JobsConfig struct {
	PollInterval int `mapstructure:"poll_interval"` // milliseconds
	Deadline     int `mapstructure:"deadline"`      // milliseconds
}

// IndexConfig tunes the document sync tool. File batches take far longer
// than answer runs, so they get their own deadline.
type IndexConfig struct {
	BatchDeadline int `mapstructure:"batch_deadline"` // milliseconds
}

type CitationsConfig struct {
	CacheEnabled bool `mapstructure:"cache_enabled"`
	CacheTTL     int  `mapstructure:"cache_ttl"` // seconds
	Timeout      int  `mapstructure:"timeout"`   // milliseconds
}

const (
	NotesBackendRedis    = "redis"
	NotesBackendPostgres = "postgres"
)

type NotesConfig struct {
	Backend   string `mapstructure:"backend"`
	Key       string `mapstructure:"key"`
	MaxItems  int    `mapstructure:"max_items"`
	MaxLength int    `mapstructure:"max_length"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
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

// RedisConfig accepts either a host:port address or a redis:// / rediss:// URL.
// The URL wins when both are set.
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}
