// internal/handlers/ask-question/config.go
package askquestion

import "answer-gateway/internal/common/config"

type Config struct {
	// Debug exposes upstream detail and the attempt trail in error responses.
	Debug        bool
	MaxBodyBytes int64
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Debug:        cfg.Debug,
		MaxBodyBytes: 1 << 20,
	}
}
