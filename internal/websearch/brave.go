package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// BraveProvider queries the Brave Search REST API. Skipped (empty result)
// when no API key is configured.
type BraveProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

// NewBraveProvider builds the provider. timeout bounds the single API call.
func NewBraveProvider(apiKey string, timeout time.Duration, log *zap.Logger) *BraveProvider {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &BraveProvider{
		apiKey:   apiKey,
		endpoint: braveEndpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

// Name identifies the provider in logs.
func (p *BraveProvider) Name() string { return "Brave" }

type braveResponse struct {
	Web struct {
		Results []struct {
			URL string `json:"url"`
		} `json:"results"`
	} `json:"web"`
}

// Search performs one API call and parses the JSON result list.
func (p *BraveProvider) Search(ctx context.Context, query string, maxResults int) []string {
	if p.apiKey == "" {
		return []string{}
	}
	query = normalizeQuery(query)

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return []string{}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("X-Subscription-Token", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug("brave request failed", zap.Error(err))
		return []string{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.log.Debug("brave returned non-200", zap.Int("status", resp.StatusCode))
		return []string{}
	}

	var data braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		// Malformed JSON behaves like an empty result.
		p.log.Debug("brave response parse failed", zap.Error(err))
		return []string{}
	}

	results := []string{}
	for _, item := range data.Web.Results {
		if item.URL != "" {
			results = append(results, item.URL)
		}
		if len(results) >= maxResults {
			break
		}
	}
	return results
}
