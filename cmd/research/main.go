// Command research is the CLI front-end over the retrieval & research core:
// project management, ingestion, search, recall, chat, and the autonomous
// research agent.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"research/internal/agent"
	"research/internal/config"
	"research/internal/embedding"
	"research/internal/ingest"
	"research/internal/llm"
	"research/internal/logging"
	"research/internal/rag"
	"research/internal/scraper"
	"research/internal/store"
	"research/internal/websearch"
)

// app bundles the wired core components for command handlers.
type app struct {
	cfg      *config.Settings
	log      *zap.Logger
	store    *store.Store
	embedder embedding.Engine
	chat     llm.Client
	ingestor *ingest.Ingestor
	chain    *websearch.Chain
	rag      *rag.Engine
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// newApp wires the full stack. The embedder and chat clients are built for
// every command. The Ollama backends need no API key and only fail when
// called, so with the default providers e.g. `research project list` works
// without any API key; a hosted provider configured without its key makes
// newApp fail.
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureWorkspace(); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath(), cfg.EmbeddingDim, log.Named("store"))
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewEngine(embedding.Config{
		Provider:      cfg.EmbeddingProvider,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaEmbedModel,
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   cfg.OpenAIEmbedModel,
		GenAIAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GenAIModel:    cfg.GenAIEmbedModel,
		Dimensions:    cfg.EmbeddingDim,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	chat, err := llm.NewClient(llm.Config{
		Provider:      cfg.LLMProvider,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaChatModel,
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   cfg.OpenAIChatModel,
		GenAIAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GenAIModel:    cfg.GenAIChatModel,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	fetcher := scraper.NewFetcher(cfg.RequestTimeout, cfg.RateLimitDelay, cfg.UserAgent, log.Named("scraper"))
	ingestor := ingest.New(st, embedder, fetcher, cfg.ChunkSize, cfg.ChunkOverlap, log.Named("ingest"))
	chain := websearch.BuildDefaultChain(cfg, log.Named("websearch"))
	ragEngine := rag.NewEngine(st, embedder, chat, log.Named("rag"))

	return &app{
		cfg:      cfg,
		log:      log,
		store:    st,
		embedder: embedder,
		chat:     chat,
		ingestor: ingestor,
		chain:    chain,
		rag:      ragEngine,
	}, nil
}

func (a *app) newAgent() *agent.Agent {
	return agent.New(a.store, a.chat, a.embedder, a.chain, a.ingestor, agent.Config{
		MaxIterations:     a.cfg.AgentMaxIterations,
		ScrapeConcurrency: a.cfg.ScrapeConcurrency,
		ContentDir:        a.cfg.ContentDir(),
	}, a.log.Named("agent"))
}

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "research",
		Short:         "Personal research assistant over a local knowledge graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	root.AddCommand(
		newProjectCmd(&configPath),
		newIngestCmd(&configPath),
		newSearchCmd(&configPath),
		newRecallCmd(&configPath),
		newChatCmd(&configPath),
		newAgentCmd(&configPath),
		newLibraryCmd(&configPath),
		newStatsCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
