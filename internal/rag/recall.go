// Package rag answers questions from the knowledge base: one-shot recall
// with citations, and multi-turn streaming chat.
package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"research/internal/embedding"
	"research/internal/llm"
	"research/internal/store"
)

// DefaultTopK is the retrieval depth for recall and chat.
const DefaultTopK = 5

// Engine wires retrieval to the chat model.
type Engine struct {
	store    *store.Store
	embedder embedding.Engine
	chat     llm.Client
	log      *zap.Logger
}

// NewEngine builds a RAG engine.
func NewEngine(st *store.Store, embedder embedding.Engine, chat llm.Client, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: st, embedder: embedder, chat: chat, log: log}
}

// resolveScope maps an optional project id to the candidate node-id set.
// nil means unscoped (whole store).
func (e *Engine) resolveScope(projectID string) ([]string, error) {
	if projectID == "" {
		return nil, nil
	}
	scope, err := e.store.ProjectScope(projectID, store.DefaultScopeDepth)
	if err != nil {
		return nil, err
	}
	return scope, nil
}

// retrieve embeds the question and runs the scoped hybrid search, falling
// back to keyword-only when the embedder is unreachable.
func (e *Engine) retrieve(ctx context.Context, question string, scope []string, topK int) ([]*store.Node, error) {
	vec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		e.log.Warn("embedder unavailable, degrading to keyword search", zap.Error(err))
		return e.store.FTSSearch(question, topK, scope)
	}
	return e.store.HybridSearch(question, vec, topK, scope)
}

// Recall answers question from the knowledge base, optionally scoped to a
// project, returning the answer followed by a Sources section.
func (e *Engine) Recall(ctx context.Context, question, projectID string) (string, error) {
	scope, err := e.resolveScope(projectID)
	if err != nil {
		return "", err
	}

	results, err := e.retrieve(ctx, question, scope, DefaultTopK)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No relevant sources found in the knowledge base.", nil
	}

	var contextParts, sources []string
	for i, node := range results {
		display := node.MetaString("text")
		if display == "" {
			display = node.Title
		}
		contextParts = append(contextParts, fmt.Sprintf("[%d] %s", i+1, display))
		sources = append(sources, fmt.Sprintf("[%d] %s", i+1, node.Title))
	}

	prompt := fmt.Sprintf(
		"You are a research assistant. Answer the question below using ONLY the "+
			"provided sources. Cite sources by their number (e.g. [1], [2]). "+
			"If the sources do not contain enough information to answer, say so.\n\n"+
			"Sources:\n%s\n\nQuestion: %s\n\nAnswer:",
		strings.Join(contextParts, "\n\n"), question)

	answer, err := e.chat.Complete(ctx, []llm.Message{llm.User(prompt)})
	if err != nil {
		return "", fmt.Errorf("recall completion failed: %w", err)
	}

	return strings.TrimSpace(answer) + "\n\nSources:\n" + strings.Join(sources, "\n"), nil
}
