// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads .env, configs/config.yaml and the environment specific overlay.
func Load() (*Config, error) {
	return load("", validateConfig)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	return load(path, validateConfig)
}

// LoadForIndexSync reads the same sources as Load (or path, when set) but only
// checks what the document sync tool needs. Storage settings may be absent.
func LoadForIndexSync(path string) (*Config, error) {
	return load(path, validateIndexSync)
}

func load(path string, validate func(*Config) error) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return finalize(v, validate)
	}

	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // overlay is optional

	return finalize(v, validate)
}

func finalize(v *viper.Viper, validate func(*Config) error) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // tests in test/e2e/
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				fmt.Fprintf(os.Stderr, "loaded .env from: %s\n", path)
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			// Unset variables expand to "" so the env fallbacks below apply.
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Completion.APIKey == "" {
		cfg.Completion.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Completion.IndexID == "" {
		cfg.Completion.IndexID = os.Getenv("VECTOR_STORE_ID")
	}
	if cfg.Completion.AssistantID == "" {
		cfg.Completion.AssistantID = os.Getenv("ASSISTANT_ID")
	}
	if !cfg.Debug {
		if val, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil {
			cfg.Debug = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = os.Getenv("REDIS_ADDRESS")
	}
	if cfg.Database.Redis.URL == "" {
		cfg.Database.Redis.URL = os.Getenv("REDIS_URL")
	}
}

// DefaultStrategies is the capability-descending list used when none is configured.
func DefaultStrategies() []StrategyConfig {
	return []StrategyConfig{
		{Name: "grounded-sync-primary", Kind: StrategyKindSynchronous, Grounded: true, Model: ModelPrimary},
		{Name: "grounded-job-primary", Kind: StrategyKindJobBased, Grounded: true, Model: ModelPrimary},
		{Name: "ungrounded-sync-primary", Kind: StrategyKindSynchronous, Grounded: false, Model: ModelPrimary},
		{Name: "ungrounded-sync-secondary", Kind: StrategyKindSynchronous, Grounded: false, Model: ModelSecondary},
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "answer-gateway"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}

	if cfg.Completion.BaseURL == "" {
		cfg.Completion.BaseURL = "https://api.openai.com/v1"
	}
	cfg.Completion.BaseURL = strings.TrimRight(cfg.Completion.BaseURL, "/")
	if cfg.Completion.PrimaryModel == "" {
		cfg.Completion.PrimaryModel = "gpt-4.1-mini"
	}
	if cfg.Completion.SecondaryModel == "" {
		cfg.Completion.SecondaryModel = "gpt-4o-mini"
	}
	if cfg.Completion.Temperature == nil {
		t := 0.2
		cfg.Completion.Temperature = &t
	}
	if cfg.Completion.Timeout == 0 {
		cfg.Completion.Timeout = 60000
	}
	if cfg.Completion.RequestsPerSecond == 0 {
		cfg.Completion.RequestsPerSecond = 10
	}
	if cfg.Completion.Burst == 0 {
		cfg.Completion.Burst = 20
	}

	if len(cfg.Strategies) == 0 {
		cfg.Strategies = DefaultStrategies()
	}
	for i := range cfg.Strategies {
		if cfg.Strategies[i].Kind == "" {
			cfg.Strategies[i].Kind = StrategyKindSynchronous
		}
		if cfg.Strategies[i].Model == "" {
			cfg.Strategies[i].Model = ModelPrimary
		}
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 600
	}

	if cfg.Jobs.PollInterval == 0 {
		cfg.Jobs.PollInterval = 700
	}
	if cfg.Jobs.Deadline == 0 {
		cfg.Jobs.Deadline = 60000
	}

	if cfg.Index.BatchDeadline == 0 {
		cfg.Index.BatchDeadline = 600000
	}

	if cfg.Citations.CacheTTL == 0 {
		cfg.Citations.CacheTTL = 86400
	}
	if cfg.Citations.Timeout == 0 {
		cfg.Citations.Timeout = 5000
	}

	if cfg.Notes.Backend == "" {
		cfg.Notes.Backend = NotesBackendRedis
	}
	if cfg.Notes.Key == "" {
		cfg.Notes.Key = "memory:global"
	}
	if cfg.Notes.MaxItems == 0 {
		cfg.Notes.MaxItems = 200
	}
	if cfg.Notes.MaxLength == 0 {
		cfg.Notes.MaxLength = 500
	}

	if cfg.Database.Redis.PoolSize == 0 {
		cfg.Database.Redis.PoolSize = 10
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Completion.APIKey == "" {
		return fmt.Errorf("completion.api_key is required")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if cfg.Jobs.PollInterval <= 0 || cfg.Jobs.Deadline <= 0 {
		return fmt.Errorf("jobs.poll_interval and jobs.deadline must be positive")
	}

	if err := validateStrategies(cfg.Strategies); err != nil {
		return err
	}

	switch cfg.Notes.Backend {
	case NotesBackendRedis:
		if cfg.Database.Redis.Address == "" && cfg.Database.Redis.URL == "" {
			return fmt.Errorf("database.redis.address or database.redis.url is required for the redis notes backend")
		}
	case NotesBackendPostgres:
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required for the postgres notes backend")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	default:
		return fmt.Errorf("notes.backend must be %q or %q, got %q", NotesBackendRedis, NotesBackendPostgres, cfg.Notes.Backend)
	}

	if cfg.Citations.CacheEnabled && cfg.Database.Redis.Address == "" && cfg.Database.Redis.URL == "" {
		return fmt.Errorf("citations.cache_enabled needs database.redis")
	}

	return nil
}

// validateIndexSync covers the completion settings and polling only.
func validateIndexSync(cfg *Config) error {
	if cfg.Completion.APIKey == "" {
		return fmt.Errorf("completion.api_key is required")
	}
	if cfg.Jobs.PollInterval <= 0 {
		return fmt.Errorf("jobs.poll_interval must be positive")
	}
	if cfg.Index.BatchDeadline <= 0 {
		return fmt.Errorf("index.batch_deadline must be positive")
	}
	return nil
}

// validateStrategies rejects lists that are not capability-descending.
func validateStrategies(strategies []StrategyConfig) error {
	seenUngrounded := false
	for i, s := range strategies {
		switch s.Kind {
		case StrategyKindSynchronous, StrategyKindJobBased:
		default:
			return fmt.Errorf("strategies[%d].kind %q is not one of %q, %q", i, s.Kind, StrategyKindSynchronous, StrategyKindJobBased)
		}
		if s.MaxAttempts < 0 {
			return fmt.Errorf("strategies[%d].max_attempts must not be negative", i)
		}
		if s.Grounded && seenUngrounded {
			return fmt.Errorf("strategies[%d] (%s) is grounded but follows an ungrounded strategy", i, s.DisplayName())
		}
		if !s.Grounded {
			seenUngrounded = true
		}
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
