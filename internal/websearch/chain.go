package websearch

import (
	"go.uber.org/zap"

	"research/internal/config"
)

// BuildDefaultChain assembles the standard provider order:
// Brave (only with an API key) → SearXNG → DuckDuckGo.
func BuildDefaultChain(cfg *config.Settings, log *zap.Logger) *Chain {
	providers := []Provider{}
	if cfg.BraveAPIKey != "" {
		providers = append(providers, NewBraveProvider(cfg.BraveAPIKey, cfg.SearchProviderTimeout, log))
	}
	providers = append(providers,
		NewSearXNGProvider(cfg.SearXNGBaseURL, cfg.SearXNGInstanceTimeout, log),
		NewDuckDuckGoProvider(cfg.SearchProviderTimeout, cfg.SearchRetryBaseDelay, cfg.SearchRetryMax, log),
	)
	return NewChain(log, providers...)
}
