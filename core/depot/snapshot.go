package depot

import (
	"context"

	"github.com/filedepot/filedepot/core/infra/logging"
)

// Metrics assembles a point-in-time aggregate view. Totals and per-layer
// numbers come from one scan of the file table, so they always add up within
// a snapshot even while operations run concurrently. The record store's own
// stats are attached best-effort.
func (e *Engine) Metrics(ctx context.Context) (MetricsSnapshot, error) {
	if err := e.checkOpen(); err != nil {
		return MetricsSnapshot{}, err
	}

	snap := MetricsSnapshot{
		ByLayer:       make(map[string]LayerUsage),
		ByContentType: make(map[string]int),
		CapturedAt:    e.now(),
	}

	e.mu.RLock()
	var oldest, newest FileMeta
	for _, meta := range e.files {
		snap.TotalFiles++
		snap.TotalBytes += meta.Size
		usage := snap.ByLayer[meta.Layer]
		usage.Files++
		usage.Bytes += meta.Size
		snap.ByLayer[meta.Layer] = usage
		snap.ByContentType[meta.ContentType]++
		if oldest.ID == "" || meta.CreatedAt.Before(oldest.CreatedAt) {
			oldest = meta
		}
		if newest.ID == "" || meta.CreatedAt.After(newest.CreatedAt) {
			newest = meta
		}
	}
	e.mu.RUnlock()

	if oldest.ID != "" {
		snap.OldestFile = &FileSummary{ID: oldest.ID, Name: oldest.Name, CreatedAt: oldest.CreatedAt}
		snap.NewestFile = &FileSummary{ID: newest.ID, Name: newest.Name, CreatedAt: newest.CreatedAt}
	}
	snap.TotalVersions = e.versions.totalCount()

	if stats, err := e.records.Stats(ctx); err == nil {
		snap.Downstream = &stats
	} else {
		logging.Error("depot", "record store stats", "error", err)
	}
	return snap, nil
}
