package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBraveProviderSkippedWithoutKey(t *testing.T) {
	p := NewBraveProvider("", time.Second, nil)
	assert.Empty(t, p.Search(context.Background(), "q", 5))
}

func TestBraveProviderParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "battery tech", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"web":{"results":[{"url":"https://a.example"},{"url":"https://b.example"},{"url":""}]}}`))
	}))
	defer srv.Close()

	p := NewBraveProvider("test-key", time.Second, nil)
	p.endpoint = srv.URL

	urls := p.Search(context.Background(), `"battery tech"`, 5)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, urls)
}

func TestBraveProviderMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	p := NewBraveProvider("test-key", time.Second, nil)
	p.endpoint = srv.URL
	assert.Empty(t, p.Search(context.Background(), "q", 5))
}

func TestSearXNGProviderInstanceRotation(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer dead.Close()

	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Write([]byte(`{"results":[{"url":"https://x.example"},{"href":"https://y.example"},{"url":"https://x.example"}]}`))
	}))
	defer alive.Close()

	p := NewSearXNGProvider(dead.URL, time.Second, nil)
	p.instances = []string{dead.URL, alive.URL}

	urls := p.Search(context.Background(), "q", 5)
	require.Equal(t, []string{"https://x.example", "https://y.example"}, urls, "rotation must reach the live instance and dedupe")
}

func TestSearXNGProviderAllInstancesDead(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer dead.Close()

	p := NewSearXNGProvider(dead.URL, time.Second, nil)
	p.instances = []string{dead.URL}
	assert.Empty(t, p.Search(context.Background(), "q", 5))
}

const ddgResultsHTML = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Ffirst.example%2Fpage&rut=abc">First</a>
</div>
<div class="result">
  <a class="result__a" href="https://second.example/direct">Second</a>
</div>
<div class="result">
  <a class="other" href="https://ignored.example">not a result link</a>
</div>
</body></html>`

func TestDuckDuckGoProviderParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ddgResultsHTML))
	}))
	defer srv.Close()

	p := NewDuckDuckGoProvider(time.Second, time.Millisecond, 2, nil)
	p.endpoint = srv.URL

	urls := p.Search(context.Background(), "q", 5)
	require.Equal(t, []string{"https://first.example/page", "https://second.example/direct"}, urls)
}

func TestDuckDuckGoProviderBackoffOnRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Write([]byte(ddgResultsHTML))
	}))
	defer srv.Close()

	p := NewDuckDuckGoProvider(time.Second, time.Millisecond, 2, nil)
	p.endpoint = srv.URL

	urls := p.Search(context.Background(), "q", 5)
	require.Len(t, urls, 2, "retry after rate limit should succeed")
	assert.EqualValues(t, 2, hits.Load())
}

func TestDuckDuckGoProviderGivesUpAfterRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewDuckDuckGoProvider(time.Second, time.Millisecond, 2, nil)
	p.endpoint = srv.URL

	assert.Empty(t, p.Search(context.Background(), "q", 5))
	assert.EqualValues(t, 3, hits.Load(), "initial attempt plus two retries")
}

func TestDuckDuckGoProviderOtherErrorsNoRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewDuckDuckGoProvider(time.Second, time.Millisecond, 3, nil)
	p.endpoint = srv.URL

	assert.Empty(t, p.Search(context.Background(), "q", 5))
	assert.EqualValues(t, 1, hits.Load(), "non-rate-limit errors must not retry")
}
