// Package embedding provides vector embedding generation for semantic search.
// Three backends: Ollama (local), OpenAI, and Google GenAI (hosted). The core
// only ever holds the Engine interface.
package embedding

import (
	"context"
	"fmt"
)

// Engine generates vector embeddings for text. Implementations must produce
// vectors of exactly Dimensions() length and be deterministic for a given
// text within a process run.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name for logging.
	Name() string
}

// Config holds embedding engine configuration.
type Config struct {
	Provider string // "ollama", "openai", or "genai"

	OllamaBaseURL string
	OllamaModel   string

	OpenAIAPIKey string
	OpenAIModel  string

	GenAIAPIKey string
	GenAIModel  string

	Dimensions int
}

// NewEngine creates an embedding engine for the configured provider.
func NewEngine(cfg Config) (Engine, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaEngine(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.Dimensions)
	case "openai":
		return NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.Dimensions)
	case "genai":
		return NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama', 'openai', or 'genai')", cfg.Provider)
	}
}
