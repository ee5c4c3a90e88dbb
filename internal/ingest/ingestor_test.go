package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"research/internal/scraper"
	"research/internal/store"
)

const testDim = 4

// fakeFetcher serves canned HTML per URL.
type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*scraper.RawPage, error) {
	html, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("HTTP 404 fetching %s", url)
	}
	return &scraper.RawPage{URL: url, HTML: html, StatusCode: 200}, nil
}

// fakeEmbedder returns a deterministic vector derived from the text length.
type fakeEmbedder struct {
	failAfter int // fail on the Nth call when > 0
	calls     int
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.failAfter > 0 && e.calls >= e.failAfter {
		return nil, fmt.Errorf("embedding service unavailable")
	}
	vec := make([]float32, testDim)
	for i := range vec {
		vec[i] = float32((len(text) + i) % 7)
	}
	return vec, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int { return testDim }
func (e *fakeEmbedder) Name() string    { return "fake" }

func newTestIngestor(t *testing.T, fetcher *fakeFetcher, embedder *fakeEmbedder) (*Ingestor, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "library.db"), testDim, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, embedder, fetcher, 200, 40, nil), st
}

const botanyHTML = `<html><head><title>Flower Morphology</title></head><body>
<main><p>The zygomorphic flower exhibits bilateral symmetry, unlike
actinomorphic flowers which are radially symmetric. Orchids and snapdragons
are classic examples studied in botany courses worldwide.</p></main>
<a href="https://example.com/orchids">orchids</a>
<a href="https://example.com/orchids">orchids again</a>
<a href="#section">fragment</a>
</body></html>`

func TestIngestURL(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/botany": botanyHTML}}
	ing, st := newTestIngestor(t, fetcher, &fakeEmbedder{})

	source, err := ing.IngestURL(context.Background(), "https://example.com/botany")
	require.NoError(t, err)
	require.Equal(t, store.TypeSource, source.Type)
	require.Equal(t, "Flower Morphology", source.Title)
	require.Equal(t, "https://example.com/botany", source.MetaString("url"))
	require.EqualValues(t, 1, source.Metadata["links_count"])

	// The unique token is findable through the lexical index.
	results, err := st.FTSSearch("zygomorphic", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	found := false
	for _, n := range results {
		if n.ID == source.ID || n.MetaString("source_id") == source.ID {
			found = true
		}
	}
	require.True(t, found, "fts hit must be the source or one of its chunks")

	// Chunks carry text/source_id/chunk_index metadata and has_chunk edges.
	chunks, err := st.ListNodes(store.TypeChunk)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		require.Equal(t, source.ID, c.MetaString("source_id"))
		require.NotEmpty(t, c.MetaString("text"))
		require.Contains(t, c.Metadata, "chunk_index")
	}

	edges, err := st.GetEdges(source.ID)
	require.NoError(t, err)
	require.Len(t, edges, len(chunks))
	for _, e := range edges {
		require.Equal(t, store.RelHasChunk, e.RelationType)
		require.Equal(t, source.ID, e.SourceID)
	}

	// Every chunk has exactly one vector row.
	stats, err := st.Stats()
	require.NoError(t, err)
	require.EqualValues(t, len(chunks), stats["nodes_vec"])

	// Hybrid search also surfaces the ingested content.
	vec, _ := (&fakeEmbedder{}).Embed(context.Background(), "zygomorphic")
	hybrid, err := st.HybridSearch("zygomorphic", vec, 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hybrid)
}

func TestIngestURLFetchFailure(t *testing.T) {
	ing, st := newTestIngestor(t, &fakeFetcher{pages: map[string]string{}}, &fakeEmbedder{})

	_, err := ing.IngestURL(context.Background(), "https://example.com/missing")
	require.Error(t, err)

	nodes, _ := st.ListNodes("")
	require.Empty(t, nodes, "failed fetch must not create nodes")
}

func TestIngestURLEmbedFailureAborts(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/botany": botanyHTML}}
	ing, _ := newTestIngestor(t, fetcher, &fakeEmbedder{failAfter: 1})

	_, err := ing.IngestURL(context.Background(), "https://example.com/botany")
	require.Error(t, err)
	require.Contains(t, err.Error(), "embedding")
}

func TestIngestURLNoContent(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/empty": "<html><head></head><body></body></html>",
	}}
	ing, _ := newTestIngestor(t, fetcher, &fakeEmbedder{})

	_, err := ing.IngestURL(context.Background(), "https://example.com/empty")
	require.Error(t, err)
}

func TestIngestURLTitleFallback(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/untitled": "<html><body><main>some reasonable body text for the extractor to find here</main></body></html>",
	}}
	ing, _ := newTestIngestor(t, fetcher, &fakeEmbedder{})

	source, err := ing.IngestURL(context.Background(), "https://example.com/untitled")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/untitled", source.Title)
}
