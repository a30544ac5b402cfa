// internal/chat/strategy/factory.go
package strategy

import (
	"answer-gateway/internal/chat/poller"
	"answer-gateway/internal/common/config"
)

// Client is everything the strategy variants need from the completion service.
type Client interface {
	ResponseCreator
	RunClient
}

// FromConfig builds the ordered strategy list. Grounded strategies are
// skipped when no document index is configured; their names are returned so
// the caller can log them.
func FromConfig(cfg *config.Config, client Client, p *poller.Poller) ([]Strategy, []string) {
	var (
		strategies []Strategy
		skipped    []string
	)

	for _, sc := range cfg.Strategies {
		if sc.Grounded && !cfg.Completion.GroundingConfigured() {
			skipped = append(skipped, sc.DisplayName())
			continue
		}

		spec := Spec{
			Name:         sc.DisplayName(),
			Model:        sc.ResolveModel(cfg.Completion),
			Instructions: cfg.Completion.SystemInstructions,
			Temperature:  cfg.Completion.Temperature,
			AssistantID:  cfg.Completion.AssistantID,
			Attempts:     sc.MaxAttempts,
		}
		if sc.Grounded {
			spec.IndexID = cfg.Completion.IndexID
		}

		switch sc.Kind {
		case config.StrategyKindJobBased:
			strategies = append(strategies, NewJobBased(spec, client, p))
		default:
			strategies = append(strategies, NewSynchronous(spec, client))
		}
	}

	return strategies, skipped
}
