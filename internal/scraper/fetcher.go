package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// SPA fingerprints: framework mount points and hydration markers that signal
// the initial HTML is an empty shell.
var spaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<div[^>]+id=["'](?:root|app)["']`),
	regexp.MustCompile(`(?i)window\.__NEXT_DATA__`),
	regexp.MustCompile(`(?i)ng-version=`),
	regexp.MustCompile(`(?i)data-reactroot`),
}

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe         = regexp.MustCompile(`<[^>]+>`)
)

const maxBodyBytes = 4 << 20 // 4MB cap on fetched HTML

// Fetcher retrieves pages over HTTP with a headless-browser fallback.
type Fetcher struct {
	client         *http.Client
	userAgent      string
	timeout        time.Duration
	rateLimitDelay time.Duration
	log            *zap.Logger
}

// NewFetcher builds a fetcher with the given timeout and user agent.
func NewFetcher(timeout, rateLimitDelay time.Duration, userAgent string, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent:      userAgent,
		timeout:        timeout,
		rateLimitDelay: rateLimitDelay,
		log:            log,
	}
}

// Fetch retrieves url and returns a RawPage. When the plain response
// fingerprints as a SPA, the page is re-fetched through headless Chromium
// waiting for network idle.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*RawPage, error) {
	if f.rateLimitDelay > 0 {
		select {
		case <-time.After(f.rateLimitDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	raw := &RawPage{URL: url, HTML: string(body), StatusCode: resp.StatusCode}

	if IsSPA(raw.HTML) {
		f.log.Debug("SPA fingerprint detected, rendering", zap.String("url", url))
		rendered, err := f.render(ctx, url)
		if err != nil {
			// The plain fetch succeeded; degrade to its HTML rather than
			// failing the whole ingest on a missing browser.
			f.log.Warn("headless render failed, using raw HTML", zap.String("url", url), zap.Error(err))
			return raw, nil
		}
		return rendered, nil
	}

	return raw, nil
}

// render fetches url through headless Chromium, waiting for network idle.
func (f *Fetcher) render(ctx context.Context, url string) (*RawPage, error) {
	l := launcher.New().Headless(true)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	page = page.Timeout(f.timeout)
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load failed: %w", err)
	}
	wait := page.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)
	wait()

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered HTML: %w", err)
	}

	return &RawPage{URL: url, HTML: html, StatusCode: http.StatusOK, Rendered: true}, nil
}

// IsSPA reports whether html looks like a JavaScript single-page app that
// needs a real browser to produce visible content. Beyond the framework
// fingerprints, a large page with almost no visible text also qualifies.
func IsSPA(html string) bool {
	for _, pattern := range spaPatterns {
		if pattern.MatchString(html) {
			return true
		}
	}
	if len(html) > 2000 {
		stripped := strings.TrimSpace(tagRe.ReplaceAllString(scriptStyleRe.ReplaceAllString(html, ""), ""))
		if len(stripped) < 200 {
			return true
		}
	}
	return false
}
