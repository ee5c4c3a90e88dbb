package agent

import (
	"context"

	"go.uber.org/zap"

	"research/internal/embedding"
	"research/internal/llm"
	"research/internal/store"
)

// Searcher is the web-search dependency, satisfied by websearch.Chain.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) []string
}

// Ingestor is the scrape-and-persist dependency, satisfied by
// ingest.Ingestor.
type Ingestor interface {
	IngestURL(ctx context.Context, url string) (*store.Node, error)
}

// Config tunes the research loop.
type Config struct {
	MaxIterations     int // loop cap (default 5)
	ScrapeConcurrency int // scraper stage worker count (default 3)
	SearchMaxResults  int // per-query URL budget (default 5)
	ContentDir        string
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 5
	}
	if c.ScrapeConcurrency <= 0 {
		c.ScrapeConcurrency = 3
	}
	if c.SearchMaxResults <= 0 {
		c.SearchMaxResults = 5
	}
	return c
}

// ProgressFunc observes stage transitions; called with the state after each
// stage's patch is applied.
type ProgressFunc func(stage string, state ResearchState)

// Agent drives the research loop over the store, the search chain, the
// ingest pipeline, and the chat model.
type Agent struct {
	store    *store.Store
	chat     llm.Client
	embedder embedding.Engine
	search   Searcher
	ingest   Ingestor
	cfg      Config
	log      *zap.Logger
	progress ProgressFunc
}

// New builds an agent.
func New(st *store.Store, chat llm.Client, embedder embedding.Engine, search Searcher, ingest Ingestor, cfg Config, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{
		store:    st,
		chat:     chat,
		embedder: embedder,
		search:   search,
		ingest:   ingest,
		cfg:      cfg.withDefaults(),
		log:      log,
	}
}

// OnProgress registers a stage-transition observer.
func (a *Agent) OnProgress(fn ProgressFunc) {
	a.progress = fn
}

func (a *Agent) notify(stage string, state *ResearchState) {
	if a.progress != nil {
		a.progress(stage, *state)
	}
}
