package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// settleDelay gives the OS a moment to finish writing a dropped file before
// the ingest opens it.
const settleDelay = 500 * time.Millisecond

// Watch ingests every PDF dropped into dir until ctx is cancelled. Per-file
// failures are logged and skipped; only watcher setup errors are returned.
func (ing *Ingestor) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	ing.log.Info("watching for pdfs", zap.String("dir", dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
				continue
			}
			select {
			case <-time.After(settleDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			if _, err := ing.IngestPDF(ctx, event.Name); err != nil {
				ing.log.Warn("watched pdf ingest failed", zap.String("path", event.Name), zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ing.log.Warn("watcher error", zap.Error(err))
		}
	}
}
