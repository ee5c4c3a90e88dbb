// Package config resolves all runtime configuration for the research core.
// Values come from three layers, lowest priority first: compiled defaults,
// an optional YAML file, and environment variables (a .env file in the
// working directory is loaded into the environment on Load).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings holds every tunable of the retrieval and research core.
type Settings struct {
	// Workspace / storage
	WorkspaceDir string `yaml:"workspace_dir"`

	// Embedding model
	EmbeddingProvider string `yaml:"embedding_provider"` // ollama, openai, genai
	OllamaBaseURL     string `yaml:"ollama_base_url"`
	OllamaEmbedModel  string `yaml:"ollama_embed_model"`
	OpenAIEmbedModel  string `yaml:"openai_embed_model"`
	GenAIEmbedModel   string `yaml:"genai_embed_model"`
	EmbeddingDim      int    `yaml:"embedding_dim"`

	// Chat / reasoning model
	LLMProvider     string `yaml:"llm_provider"` // ollama, openai, genai
	OllamaChatModel string `yaml:"ollama_chat_model"`
	OpenAIChatModel string `yaml:"openai_chat_model"`
	GenAIChatModel  string `yaml:"genai_chat_model"`

	// Scraper
	RateLimitDelay time.Duration `yaml:"rate_limit_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UserAgent      string        `yaml:"user_agent"`

	// RAG chunking
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// Web search providers
	BraveAPIKey            string        `yaml:"brave_api_key"`
	SearXNGBaseURL         string        `yaml:"searxng_base_url"`
	SearchProviderTimeout  time.Duration `yaml:"search_provider_timeout"`
	SearXNGInstanceTimeout time.Duration `yaml:"searxng_instance_timeout"`
	SearchRetryBaseDelay   time.Duration `yaml:"search_retry_base_delay"`
	SearchRetryMax         int           `yaml:"search_retry_max"`

	// Agent
	AgentMaxIterations int `yaml:"agent_max_iterations"`
	ScrapeConcurrency  int `yaml:"agent_max_concurrent_scrapes"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the compiled-in defaults.
func Default() *Settings {
	home, _ := os.UserHomeDir()
	return &Settings{
		WorkspaceDir: filepath.Join(home, ".research_data"),

		EmbeddingProvider: "ollama",
		OllamaBaseURL:     "http://localhost:11434",
		OllamaEmbedModel:  "embeddinggemma:latest",
		OpenAIEmbedModel:  "text-embedding-3-small",
		GenAIEmbedModel:   "gemini-embedding-001",
		EmbeddingDim:      768,

		LLMProvider:     "ollama",
		OllamaChatModel: "ministral-3:8b",
		OpenAIChatModel: "gpt-4o-mini",
		GenAIChatModel:  "gemini-2.5-flash",

		RateLimitDelay: 1 * time.Second,
		RequestTimeout: 30 * time.Second,
		UserAgent:      "Mozilla/5.0 (compatible; ReSearch-Bot/1.0; +https://github.com/research-bot)",

		ChunkSize:    512,
		ChunkOverlap: 64,

		SearXNGBaseURL:         "https://search.bus-hit.me",
		SearchProviderTimeout:  20 * time.Second,
		SearXNGInstanceTimeout: 5 * time.Second,
		SearchRetryBaseDelay:   2 * time.Second,
		SearchRetryMax:         3,

		AgentMaxIterations: 5,
		ScrapeConcurrency:  3,

		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load resolves settings: defaults, then the YAML file at path (missing file
// is fine), then environment overrides. A .env in the working directory is
// loaded first so it can feed the override pass.
func Load(path string) (*Settings, error) {
	_ = godotenv.Load()

	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	s.applyEnvOverrides()
	return s, nil
}

// DBPath is the SQLite database file inside the workspace.
func (s *Settings) DBPath() string {
	return filepath.Join(s.WorkspaceDir, "library.db")
}

// ContentDir holds generated artifact files; node content_path values are
// relative to the workspace root.
func (s *Settings) ContentDir() string {
	return filepath.Join(s.WorkspaceDir, "content")
}

// EnsureWorkspace creates the workspace directory tree.
func (s *Settings) EnsureWorkspace() error {
	return os.MkdirAll(s.ContentDir(), 0755)
}

func (s *Settings) applyEnvOverrides() {
	setString(&s.WorkspaceDir, "RESEARCH_WORKSPACE")

	setString(&s.EmbeddingProvider, "EMBEDDING_PROVIDER")
	setString(&s.OllamaBaseURL, "OLLAMA_BASE_URL")
	setString(&s.OllamaEmbedModel, "OLLAMA_EMBED_MODEL")
	setString(&s.OpenAIEmbedModel, "OPENAI_EMBED_MODEL")
	setString(&s.GenAIEmbedModel, "GENAI_EMBED_MODEL")
	setInt(&s.EmbeddingDim, "EMBEDDING_DIM")

	setString(&s.LLMProvider, "LLM_PROVIDER")
	setString(&s.OllamaChatModel, "OLLAMA_CHAT_MODEL")
	setString(&s.OpenAIChatModel, "OPENAI_CHAT_MODEL")
	setString(&s.GenAIChatModel, "GENAI_CHAT_MODEL")

	setDuration(&s.RateLimitDelay, "RATE_LIMIT_DELAY")
	setDuration(&s.RequestTimeout, "REQUEST_TIMEOUT")

	setInt(&s.ChunkSize, "CHUNK_SIZE")
	setInt(&s.ChunkOverlap, "CHUNK_OVERLAP")

	setString(&s.BraveAPIKey, "BRAVE_API_KEY")
	setString(&s.SearXNGBaseURL, "SEARXNG_BASE_URL")
	setDuration(&s.SearchProviderTimeout, "SEARCH_PROVIDER_TIMEOUT")
	setDuration(&s.SearXNGInstanceTimeout, "SEARXNG_INSTANCE_TIMEOUT")
	setDuration(&s.SearchRetryBaseDelay, "SEARCH_RETRY_BASE_DELAY")
	setInt(&s.SearchRetryMax, "SEARCH_RETRY_MAX")

	setInt(&s.AgentMaxIterations, "AGENT_MAX_ITERATIONS")
	setInt(&s.ScrapeConcurrency, "AGENT_MAX_CONCURRENT_SCRAPES")

	setString(&s.LogLevel, "LOG_LEVEL")
	setString(&s.LogFormat, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// setDuration accepts either a Go duration string ("5s") or a bare number of
// seconds ("5", "1.5") for compatibility with older .env files.
func setDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(f * float64(time.Second))
	}
}
