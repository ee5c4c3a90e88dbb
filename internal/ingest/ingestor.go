// Package ingest feeds documents into the knowledge graph:
// fetch → extract → Source node → chunk → embed → Chunk nodes + edges.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"research/internal/embedding"
	"research/internal/scraper"
	"research/internal/store"
)

// Fetcher is the page-retrieval dependency, satisfied by scraper.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*scraper.RawPage, error)
}

// Ingestor runs the ingestion pipeline against one store.
type Ingestor struct {
	store        *store.Store
	embedder     embedding.Engine
	fetcher      Fetcher
	chunkSize    int
	chunkOverlap int
	log          *zap.Logger
}

// New builds an ingestor.
func New(st *store.Store, embedder embedding.Engine, fetcher Fetcher, chunkSize, chunkOverlap int, log *zap.Logger) *Ingestor {
	if log == nil {
		log = zap.NewNop()
	}
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Ingestor{
		store:        st,
		embedder:     embedder,
		fetcher:      fetcher,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		log:          log,
	}
}

// IngestURL scrapes url, chunks its text, embeds each chunk, and persists a
// Source node with its Chunk offspring. Fetch, extract, or any chunk embed
// failure aborts the ingest and surfaces the error.
func (ing *Ingestor) IngestURL(ctx context.Context, url string) (*store.Node, error) {
	raw, err := ing.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", url, err)
	}

	clean := scraper.Extract(raw)
	if clean.Text == "" {
		return nil, fmt.Errorf("ingest %s: no extractable content", url)
	}

	title := clean.Title
	if title == "" {
		title = url
	}

	source, err := ing.store.CreateNode(store.NodeParams{
		Type:  store.TypeSource,
		Title: title,
		Metadata: map[string]any{
			"url":         url,
			"word_count":  clean.WordCount(),
			"links_count": len(clean.Links),
		},
	})
	if err != nil {
		return nil, err
	}

	if err := ing.store.SetContentBody(source.ID, clean.Text); err != nil {
		return nil, err
	}

	if err := ing.persistChunks(ctx, source, title, clean.Text, nil); err != nil {
		return nil, err
	}

	ing.log.Info("ingested url",
		zap.String("url", url),
		zap.String("source_id", source.ID),
		zap.Int("word_count", clean.WordCount()))
	return source, nil
}

// persistChunks splits text, embeds every chunk, and persists Chunk nodes in
// ascending chunk_index order, each with its lexical row, vector row, and a
// has_chunk edge from the source. extraMeta is merged into every chunk's
// metadata (the PDF path uses it for source_type).
func (ing *Ingestor) persistChunks(ctx context.Context, source *store.Node, title, text string, extraMeta map[string]any) error {
	chunks := ChunkText(text, ing.chunkSize, ing.chunkOverlap)
	total := len(chunks)

	for i, chunk := range chunks {
		vec, err := ing.embedder.Embed(ctx, chunk)
		if err != nil {
			// A Source with a partial chunk set is not a valid outcome;
			// surface the failure so the caller can drop the ingest.
			return fmt.Errorf("embedding chunk %d/%d of %s: %w", i+1, total, source.ID, err)
		}

		meta := map[string]any{
			"source_id":   source.ID,
			"chunk_index": i,
			"text":        chunk,
		}
		for k, v := range extraMeta {
			meta[k] = v
		}

		chunkNode, err := ing.store.CreateNode(store.NodeParams{
			Type:     store.TypeChunk,
			Title:    fmt.Sprintf("%s [chunk %d/%d]", title, i+1, total),
			Metadata: meta,
		})
		if err != nil {
			return err
		}
		if err := ing.store.SetContentBody(chunkNode.ID, chunk); err != nil {
			return err
		}
		if err := ing.store.UpsertEmbedding(chunkNode.ID, vec); err != nil {
			return err
		}
		if err := ing.store.ConnectNodes(source.ID, chunkNode.ID, store.RelHasChunk); err != nil {
			return err
		}
	}

	ing.log.Debug("chunks persisted", zap.String("source_id", source.ID), zap.Int("chunks", total))
	return nil
}
