package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"research/internal/store"
)

// Run executes the research loop for goal and returns the final state.
// Concurrency lives inside the searcher and scraper stages; the stages
// themselves run strictly in sequence. On a finished run with a non-empty
// report, the report is persisted as an Artifact node (and a markdown file
// under the content directory when one is configured).
func (a *Agent) Run(ctx context.Context, goal string) (*ResearchState, error) {
	state := &ResearchState{
		Goal:        goal,
		Plan:        []string{},
		URLsFound:   []string{},
		URLsScraped: []string{},
		Findings:    []string{},
		Status:      StatusPlanning,
	}

	for state.Status != StatusDone {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		var stage string
		var patch Patch
		switch state.Status {
		case StatusPlanning, StatusRePlanning:
			stage = "planner"
			patch = a.planner(ctx, state)
		case StatusSearching:
			stage = "searcher"
			patch = a.searcher(ctx, state)
		case StatusScraping:
			stage = "scraper"
			patch = a.scraper(ctx, state)
		case StatusSynthesising:
			stage = "synthesiser"
			patch = a.synthesiser(ctx, state)
		case StatusEvaluating:
			stage = "evaluator"
			patch = a.evaluator(ctx, state)
		default:
			return state, fmt.Errorf("unknown agent status: %s", state.Status)
		}

		state.Apply(patch)
		a.notify(stage, state)
	}

	if state.Report != "" {
		artifactID, err := a.persistArtifact(state)
		if err != nil {
			return state, err
		}
		state.ArtifactID = artifactID
		a.log.Info("report saved", zap.String("artifact_id", artifactID))
	} else {
		a.log.Info("agent finished without a report")
	}

	return state, nil
}

// persistArtifact creates the Artifact node for a finished run and, when a
// content directory is configured, writes the report to
// content/<node_id>.md with a workspace-relative content_path on the node.
func (a *Agent) persistArtifact(state *ResearchState) (string, error) {
	title := state.Goal
	if len(title) > 80 {
		title = title[:80]
	}

	artifact, err := a.store.CreateNode(store.NodeParams{
		Type:  store.TypeArtifact,
		Title: "Report: " + title,
		Metadata: map[string]any{
			"goal":          state.Goal,
			"iterations":    state.Iteration,
			"sources_count": len(state.URLsScraped),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to persist artifact: %w", err)
	}

	if err := a.store.SetContentBody(artifact.ID, state.Report); err != nil {
		return "", err
	}

	if a.cfg.ContentDir != "" {
		if err := os.MkdirAll(a.cfg.ContentDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create content dir: %w", err)
		}
		filename := artifact.ID + ".md"
		if err := os.WriteFile(filepath.Join(a.cfg.ContentDir, filename), []byte(state.Report), 0644); err != nil {
			return "", fmt.Errorf("failed to write report file: %w", err)
		}
		relPath := filepath.Join("content", filename)
		if _, err := a.store.UpdateNode(artifact.ID, map[string]any{"content_path": relPath}); err != nil {
			return "", err
		}
	}

	return artifact.ID, nil
}
