package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Public SearXNG instances rotated through when the configured one fails.
var searxngFallbackInstances = []string{
	"https://search.bus-hit.me",
	"https://searx.be",
	"https://paulgo.io",
	"https://searx.tiekoetter.com",
}

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/122.0.0.0 Safari/537.36"

// SearXNGProvider queries SearXNG JSON endpoints, trying the configured base
// URL first and rotating through public fallback instances. Each instance
// request is bounded by the per-instance timeout, which is shorter than the
// provider timeout the other providers use, so dead instances fail fast. The
// rotation as a whole has no time bound of its own beyond ctx.
type SearXNGProvider struct {
	baseURL   string
	instances []string
	client    *http.Client
	log       *zap.Logger
}

// NewSearXNGProvider builds the provider with a per-instance timeout.
func NewSearXNGProvider(baseURL string, instanceTimeout time.Duration, log *zap.Logger) *SearXNGProvider {
	if log == nil {
		log = zap.NewNop()
	}
	if instanceTimeout <= 0 {
		instanceTimeout = 5 * time.Second
	}

	primary := strings.TrimSuffix(baseURL, "/")
	instances := []string{}
	if primary != "" {
		instances = append(instances, primary)
	}
	for _, inst := range searxngFallbackInstances {
		if strings.TrimSuffix(inst, "/") != primary {
			instances = append(instances, inst)
		}
	}

	return &SearXNGProvider{
		baseURL:   primary,
		instances: instances,
		client:    &http.Client{Timeout: instanceTimeout},
		log:       log,
	}
}

// Name identifies the provider in logs.
func (p *SearXNGProvider) Name() string { return "SearXNG" }

type searxngResponse struct {
	Results []struct {
		URL  string `json:"url"`
		Href string `json:"href"`
	} `json:"results"`
}

// Search walks the instance list and stops at the first one that yields a
// non-empty, deduplicated URL list.
func (p *SearXNGProvider) Search(ctx context.Context, query string, maxResults int) []string {
	query = normalizeQuery(query)

	for _, base := range p.instances {
		urls := p.queryInstance(ctx, base, query, maxResults)
		if len(urls) > 0 {
			p.log.Debug("searxng instance succeeded", zap.String("instance", base), zap.Int("count", len(urls)))
			return urls
		}
		if ctx.Err() != nil {
			return []string{}
		}
		p.log.Debug("searxng instance empty, rotating", zap.String("instance", base))
	}

	p.log.Debug("searxng instances exhausted")
	return []string{}
}

func (p *SearXNGProvider) queryInstance(ctx context.Context, base, query string, maxResults int) []string {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("engines", "google,bing,brave,duckduckgo")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "application/json, text/javascript, */*")
	req.Header.Set("User-Agent", browserUA)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var data searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil
	}

	seen := make(map[string]bool)
	results := []string{}
	for _, item := range data.Results {
		u := item.URL
		if u == "" {
			u = item.Href
		}
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		results = append(results, u)
		if len(results) >= maxResults {
			break
		}
	}
	return results
}
