package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const ddgEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGoProvider scrapes the DuckDuckGo HTML results page. Rate-limit
// responses trigger exponential back-off retries; any other failure returns
// an empty list immediately.
type DuckDuckGoProvider struct {
	endpoint   string
	client     *http.Client
	baseDelay  time.Duration
	maxRetries int
	log        *zap.Logger
}

// NewDuckDuckGoProvider builds the provider with retry knobs.
func NewDuckDuckGoProvider(timeout, baseDelay time.Duration, maxRetries int, log *zap.Logger) *DuckDuckGoProvider {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &DuckDuckGoProvider{
		endpoint:   ddgEndpoint,
		client:     &http.Client{Timeout: timeout},
		baseDelay:  baseDelay,
		maxRetries: maxRetries,
		log:        log,
	}
}

// Name identifies the provider in logs.
func (p *DuckDuckGoProvider) Name() string { return "DuckDuckGo" }

// errRateLimited distinguishes back-off-worthy failures from terminal ones.
type errRateLimited struct{ status int }

func (e errRateLimited) Error() string { return fmt.Sprintf("rate limited (HTTP %d)", e.status) }

// Search fetches and parses one results page, retrying on rate-limit signals
// with delay = baseDelay * 2^attempt.
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, maxResults int) []string {
	query = normalizeQuery(query)

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		urls, err := p.fetchResults(ctx, query, maxResults)
		if err == nil {
			if len(urls) > 0 {
				p.log.Debug("duckduckgo results", zap.Int("count", len(urls)))
			}
			return urls
		}

		if !isRateLimit(err) || attempt >= p.maxRetries {
			p.log.Debug("duckduckgo search failed", zap.Error(err))
			return []string{}
		}

		delay := p.baseDelay * (1 << attempt)
		p.log.Debug("duckduckgo rate-limited, backing off",
			zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return []string{}
		}
	}

	return []string{}
}

// isRateLimit matches the explicit sentinel or a rate-limit substring in a
// generic error.
func isRateLimit(err error) bool {
	if _, ok := err.(errRateLimited); ok {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "ratelimit") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "202")
}

func (p *DuckDuckGoProvider) fetchResults(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := url.Values{}
	params.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusAccepted, http.StatusTooManyRequests:
		return nil, errRateLimited{status: resp.StatusCode}
	default:
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	results := parseResultLinks(doc, maxResults)
	return results, nil
}

// parseResultLinks walks the DOM collecting hrefs from result anchors
// (class result__a), resolving DuckDuckGo's uddg redirect wrapper.
func parseResultLinks(doc *html.Node, maxResults int) []string {
	seen := make(map[string]bool)
	results := []string{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			if href := attr(n, "href"); href != "" {
				if u := resolveDDGRedirect(href); u != "" && !seen[u] {
					seen[u] = true
					results = append(results, u)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

// resolveDDGRedirect unwraps //duckduckgo.com/l/?uddg=<encoded> links to the
// destination URL; direct links pass through untouched.
func resolveDDGRedirect(href string) string {
	if strings.Contains(href, "uddg=") {
		parsed, err := url.Parse(href)
		if err != nil {
			return ""
		}
		if target := parsed.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
