package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := Default()
	assert.Equal(t, 768, s.EmbeddingDim)
	assert.Equal(t, 512, s.ChunkSize)
	assert.Equal(t, 64, s.ChunkOverlap)
	assert.Equal(t, 5, s.AgentMaxIterations)
	assert.Equal(t, 3, s.ScrapeConcurrency)
	assert.Equal(t, "ollama", s.EmbeddingProvider)
	assert.True(t, s.SearXNGInstanceTimeout < s.SearchProviderTimeout,
		"per-instance timeout must undercut the provider budget")
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: 256\nembedding_dim: 384\n"), 0644))

	t.Setenv("CHUNK_SIZE", "128")
	t.Setenv("AGENT_MAX_ITERATIONS", "7")
	t.Setenv("RATE_LIMIT_DELAY", "2.5")
	t.Setenv("REQUEST_TIMEOUT", "45s")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 384, s.EmbeddingDim, "yaml overrides default")
	assert.Equal(t, 128, s.ChunkSize, "env overrides yaml")
	assert.Equal(t, 7, s.AgentMaxIterations)
	assert.Equal(t, 2500*time.Millisecond, s.RateLimitDelay, "bare seconds accepted")
	assert.Equal(t, 45*time.Second, s.RequestTimeout, "duration strings accepted")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 512, s.ChunkSize)
}

func TestWorkspacePaths(t *testing.T) {
	s := Default()
	s.WorkspaceDir = "/tmp/ws"
	assert.Equal(t, filepath.Join("/tmp/ws", "library.db"), s.DBPath())
	assert.Equal(t, filepath.Join("/tmp/ws", "content"), s.ContentDir())
}
