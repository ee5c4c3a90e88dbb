package websearch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider records invocations and returns a fixed result.
type stubProvider struct {
	name   string
	result []string
	calls  int
}

func (p *stubProvider) Name() string { return p.name }
func (p *stubProvider) Search(_ context.Context, _ string, _ int) []string {
	p.calls++
	return p.result
}

func TestChainFirstNonEmptyWins(t *testing.T) {
	p1 := &stubProvider{name: "P1", result: []string{}}
	p2 := &stubProvider{name: "P2", result: []string{"u1", "u2"}}
	p3 := &stubProvider{name: "P3", result: []string{"u3"}}

	chain := NewChain(nil, p1, p2, p3)
	urls := chain.Search(context.Background(), "query", 5)

	require.Equal(t, []string{"u1", "u2"}, urls)
	assert.Equal(t, 1, p1.calls)
	assert.Equal(t, 1, p2.calls)
	assert.Equal(t, 0, p3.calls, "later providers must not run once one succeeds")
}

func TestChainAllEmpty(t *testing.T) {
	p1 := &stubProvider{name: "P1"}
	p2 := &stubProvider{name: "P2"}

	chain := NewChain(nil, p1, p2)
	urls := chain.Search(context.Background(), "query", 5)

	assert.Empty(t, urls)
	assert.Equal(t, 1, p1.calls)
	assert.Equal(t, 1, p2.calls)
}

func TestNormalizeQuery(t *testing.T) {
	cases := map[string]string{
		`"quoted query"`:   "quoted query",
		`plain query`:      "plain query",
		`  "padded"  `:     "padded",
		`"`:                `"`,
		`""`:               `""`,
		`"inner "quotes""`: `inner "quotes"`,
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeQuery(in), "input %q", in)
	}
}
