package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"research/internal/llm"
	"research/internal/store"
)

// maxQueries caps how many search queries one planning round produces.
const maxQueries = 3

// planner decomposes the goal into up to three search queries via the chat
// model. A failed call or an empty parse falls back to the goal itself, so
// the stage transition always fires.
func (a *Agent) planner(ctx context.Context, state *ResearchState) Patch {
	a.log.Info("planning", zap.String("goal", state.Goal), zap.Int("iteration", state.Iteration+1))

	prompt := fmt.Sprintf(
		"You are a research assistant helping gather information on a topic.\n"+
			"Given the research goal below, generate exactly 3 specific, concise "+
			"search queries (one per line, no numbering, no bullets, no extra text) "+
			"that will help collect diverse and relevant sources.\n\n"+
			"Goal: %s\n\nSearch queries:", state.Goal)

	var queries []string
	response, err := a.chat.Complete(ctx, []llm.Message{llm.User(prompt)})
	if err != nil {
		a.log.Warn("planner completion failed, falling back to goal", zap.Error(err))
	} else {
		for _, line := range strings.Split(response, "\n") {
			if q := strings.TrimSpace(line); q != "" {
				queries = append(queries, q)
			}
			if len(queries) >= maxQueries {
				break
			}
		}
	}
	if len(queries) == 0 {
		queries = []string{state.Goal}
	}

	a.log.Info("plan ready", zap.Strings("queries", queries))
	iteration := state.Iteration + 1
	return Patch{Plan: queries, Iteration: &iteration, Status: StatusSearching}
}

// searcher runs the provider chain for every planned query concurrently, one
// worker per query. URLs aggregate in first-seen order across workers and
// are deduplicated; a query that yields nothing is simply skipped.
func (a *Agent) searcher(ctx context.Context, state *ResearchState) Patch {
	var mu sync.Mutex
	collected := []string{}
	seen := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	for _, query := range state.Plan {
		g.Go(func() error {
			a.log.Debug("searching", zap.String("query", query))
			urls := a.search.Search(gctx, query, a.cfg.SearchMaxResults)
			mu.Lock()
			defer mu.Unlock()
			for _, u := range urls {
				if !seen[u] {
					seen[u] = true
					collected = append(collected, u)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	a.log.Info("search complete", zap.Int("queries", len(state.Plan)), zap.Int("unique_urls", len(collected)))
	return Patch{URLsFound: collected, Status: StatusScraping}
}

// scraper ingests up to ScrapeConcurrency not-yet-scraped URLs concurrently.
// Successes append the URL and a one-line summary in completion order;
// failures are logged and skipped.
func (a *Agent) scraper(ctx context.Context, state *ResearchState) Patch {
	scraped := append([]string{}, state.URLsScraped...)
	findings := append([]string{}, state.Findings...)

	already := make(map[string]bool, len(scraped))
	for _, u := range scraped {
		already[u] = true
	}

	var pending []string
	for _, u := range state.URLsFound {
		if already[u] {
			continue
		}
		pending = append(pending, u)
		if len(pending) >= a.cfg.ScrapeConcurrency {
			break
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.ScrapeConcurrency)
	for _, url := range pending {
		g.Go(func() error {
			a.log.Info("scraping", zap.String("url", url))
			node, err := a.ingest.IngestURL(gctx, url)
			if err != nil {
				a.log.Warn("scrape failed", zap.String("url", url), zap.Error(err))
				return nil
			}
			summary := fmt.Sprintf("Ingested: %q (%d words)", node.Title, metaInt(node, "word_count"))

			mu.Lock()
			scraped = append(scraped, url)
			findings = append(findings, summary)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Patch{URLsScraped: scraped, Findings: findings, Status: StatusSynthesising}
}

// synthesiser retrieves context for the goal from the whole store and asks
// the chat model for a markdown report. A failed completion leaves the
// report empty; the evaluator decides what that means.
func (a *Agent) synthesiser(ctx context.Context, state *ResearchState) Patch {
	a.log.Info("synthesising", zap.String("goal", state.Goal))

	contextBlock := a.retrieveContext(ctx, state.Goal)

	findingsText := strings.Join(state.Findings, "\n")
	if findingsText == "" {
		findingsText = "(no sources ingested)"
	}

	prompt := fmt.Sprintf(
		"You are a research analyst tasked with writing a comprehensive report.\n\n"+
			"Research Goal: %s\n\n"+
			"Sources ingested:\n%s\n\n"+
			"Relevant excerpts from the knowledge base:\n%s\n\n"+
			"Write a well-structured, informative report in markdown format. "+
			"Include an introduction, key findings, and a conclusion.",
		state.Goal, findingsText, contextBlock)

	report, err := a.chat.Complete(ctx, []llm.Message{llm.User(prompt)})
	if err != nil {
		a.log.Warn("synthesis failed", zap.Error(err))
		report = ""
	}

	return Patch{Report: &report, Status: StatusEvaluating}
}

// retrieveContext formats the top hybrid-search chunks for the synthesis
// prompt; embedder failures degrade to keyword-only retrieval.
func (a *Agent) retrieveContext(ctx context.Context, goal string) string {
	var nodes []*store.Node
	var err error

	vec, embedErr := a.embedder.Embed(ctx, goal)
	if embedErr != nil {
		a.log.Warn("embedder unavailable, keyword-only context", zap.Error(embedErr))
		nodes, err = a.store.FTSSearch(goal, 5, nil)
	} else {
		nodes, err = a.store.HybridSearch(goal, vec, 5, nil)
	}
	if err != nil || len(nodes) == 0 {
		return "No relevant content found in the knowledge base."
	}

	var parts []string
	for _, n := range nodes {
		if text := n.MetaString("text"); text != "" {
			parts = append(parts, fmt.Sprintf("[%s] %s\n%s", n.Type, n.Title, text))
		} else {
			parts = append(parts, fmt.Sprintf("[%s] %s", n.Type, n.Title))
		}
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// evaluator terminates the loop when any findings exist or the iteration cap
// is reached; otherwise it routes back to the planner.
func (a *Agent) evaluator(_ context.Context, state *ResearchState) Patch {
	hasFindings := len(state.Findings) > 0
	atLimit := state.Iteration >= a.cfg.MaxIterations

	if hasFindings || atLimit {
		if atLimit && !hasFindings {
			a.log.Warn("iteration limit reached with no findings",
				zap.Int("max_iterations", a.cfg.MaxIterations))
		} else {
			a.log.Info("research complete", zap.Int("iterations", state.Iteration))
		}
		return Patch{Status: StatusDone}
	}

	a.log.Info("no findings yet, re-planning", zap.Int("iteration", state.Iteration))
	return Patch{Status: StatusRePlanning}
}

func metaInt(n *store.Node, key string) int {
	switch v := n.Metadata[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
