// internal/completion/config.go
package completion

import (
	"time"

	"answer-gateway/internal/common/config"
)

type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// LoadConfig derives the client settings from the application config.
func LoadConfig(cfg config.CompletionConfig) *Config {
	return &Config{
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		Timeout:           config.GetDuration(cfg.Timeout),
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}
}
