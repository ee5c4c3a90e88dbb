// Package websearch implements the multi-provider web search chain:
// Brave (API) → SearXNG (metasearch, instance rotation) → DuckDuckGo
// (results scraping with back-off). Providers never error; they return an
// empty list on any failure and the chain takes the first non-empty result.
package websearch

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Provider is a single search backend. Search must return an empty slice
// (never an error) on any failure.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) []string
}

// Chain tries providers in order and returns the first non-empty result list.
type Chain struct {
	providers []Provider
	log       *zap.Logger
}

// NewChain builds a chain over the given providers.
func NewChain(log *zap.Logger, providers ...Provider) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{providers: providers, log: log}
}

// Search runs the chain. Returns an empty slice when every provider fails.
func (c *Chain) Search(ctx context.Context, query string, maxResults int) []string {
	for _, p := range c.providers {
		urls := p.Search(ctx, query, maxResults)
		if len(urls) > 0 {
			c.log.Debug("provider produced results",
				zap.String("provider", p.Name()), zap.Int("count", len(urls)))
			return urls
		}
		c.log.Debug("provider returned nothing, falling through", zap.String("provider", p.Name()))
	}
	c.log.Warn("all search providers returned no results", zap.String("query", query))
	return []string{}
}

// normalizeQuery strips the surrounding double-quotes the planning LLM tends
// to wrap queries in; some engines refuse quoted phrases outright.
func normalizeQuery(query string) string {
	q := strings.TrimSpace(query)
	if len(q) > 2 && strings.HasPrefix(q, `"`) && strings.HasSuffix(q, `"`) {
		q = strings.TrimSpace(q[1 : len(q)-1])
	}
	return q
}
