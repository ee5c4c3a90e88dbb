package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"research/internal/store"
)

// IngestPDF extracts text from a local PDF page by page, then follows the
// same chunk → embed → persist pipeline as IngestURL.
func (ing *Ingestor) IngestPDF(ctx context.Context, path string) (*store.Node, error) {
	fullText, err := extractPDFText(path)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", path, err)
	}
	if strings.TrimSpace(fullText) == "" {
		return nil, fmt.Errorf("ingest %s: no extractable text", path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	source, err := ing.store.CreateNode(store.NodeParams{
		Type:  store.TypeSource,
		Title: title,
		Metadata: map[string]any{
			"path":        absPath,
			"word_count":  len(strings.Fields(fullText)),
			"source_type": "pdf",
		},
	})
	if err != nil {
		return nil, err
	}

	if err := ing.store.SetContentBody(source.ID, fullText); err != nil {
		return nil, err
	}

	if err := ing.persistChunks(ctx, source, title, fullText, map[string]any{"source_type": "pdf"}); err != nil {
		return nil, err
	}

	ing.log.Info("ingested pdf", zap.String("path", path), zap.String("source_id", source.ID))
	return source, nil
}

// extractPDFText pulls text from every page and joins non-blank pages with
// paragraph breaks.
func extractPDFText(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("pdf not found: %w", err)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	return strings.Join(pages, "\n\n"), nil
}
