package depot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/filedepot/filedepot/core/infra/logging"
)

// metaSnapshot is the engine's persisted metadata: the file table as of the
// last mutation. Version chains are process-lifetime and not part of it.
type metaSnapshot struct {
	SavedAt time.Time  `json:"saved_at"`
	Files   []FileMeta `json:"files"`
}

// hydrate rebuilds the file table, checksum index, and layer accounting from
// the metadata snapshot reconciled against the record store's listing. The
// record store is the authority for which files exist; the snapshot supplies
// the metadata the records cannot carry. Runs before the engine is shared,
// so no locks are taken.
func (e *Engine) hydrate(ctx context.Context) (int, error) {
	records, err := e.records.List(ctx)
	if err != nil {
		return 0, downstream("list", err)
	}

	known := make(map[string]FileMeta)
	if e.meta != nil {
		data, err := e.meta.LoadMeta(ctx)
		if err != nil {
			return 0, downstream("load metadata", err)
		}
		if len(data) > 0 {
			var snap metaSnapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return 0, fmt.Errorf("decode metadata snapshot: %w", err)
			}
			for _, meta := range snap.Files {
				known[meta.ID] = meta
			}
		}
	}

	type tally struct {
		files int
		bytes int64
	}
	perLayer := make(map[string]tally)

	for _, record := range records {
		meta, ok := known[record.ID]
		if !ok {
			synthesized, err := e.synthesizeMeta(ctx, record)
			if err != nil {
				logging.Error("depot", "skip unreadable record during hydration",
					"record_id", record.ID,
					"error", err,
				)
				continue
			}
			meta = synthesized
		}
		e.files[meta.ID] = meta
		e.checksums.register(meta.Layer, meta.Session, meta.Checksum, meta.ID)
		t := perLayer[meta.Layer]
		t.files++
		t.bytes += meta.Size
		perLayer[meta.Layer] = t
	}

	for name, t := range perLayer {
		e.layers.ensure(name).seed(t.files, t.bytes)
	}
	return len(e.files), nil
}

// synthesizeMeta builds metadata for a record the snapshot does not know,
// typically one added to the shared store out of band. The content is read
// once to compute the digest and content type.
func (e *Engine) synthesizeMeta(ctx context.Context, record Record) (FileMeta, error) {
	content, err := e.records.Get(ctx, record.ID)
	if err != nil {
		return FileMeta{}, err
	}
	layer := LayerTemporary
	if record.IsPersistent {
		layer = LayerPersistent
	}
	created := record.CreatedAt
	if created.IsZero() {
		created = e.now()
	}
	return FileMeta{
		ID:          record.ID,
		Name:        record.ID,
		Layer:       layer,
		Session:     record.Session,
		Size:        int64(len(content)),
		ContentType: detectContentType("", content),
		Checksum:    computeChecksum(content),
		CreatedAt:   created,
		UpdatedAt:   created,
	}, nil
}

// persistMeta saves the current file table through the meta store. Failures
// are logged and tolerated; the next mutation tries again.
func (e *Engine) persistMeta(ctx context.Context) {
	if e.meta == nil {
		return
	}
	e.mu.RLock()
	snap := metaSnapshot{SavedAt: e.now(), Files: make([]FileMeta, 0, len(e.files))}
	for _, meta := range e.files {
		snap.Files = append(snap.Files, meta)
	}
	e.mu.RUnlock()
	sort.Slice(snap.Files, func(i, j int) bool { return snap.Files[i].ID < snap.Files[j].ID })

	data, err := json.Marshal(snap)
	if err != nil {
		logging.Error("depot", "encode metadata snapshot", "error", err)
		return
	}
	if err := e.meta.SaveMeta(ctx, data); err != nil {
		logging.Error("depot", "persist metadata snapshot", "error", err)
	}
}
