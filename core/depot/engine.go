package depot

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/filedepot/filedepot/core/infra/compress"
	"github.com/filedepot/filedepot/core/infra/logging"
)

const (
	defaultSweepInterval = time.Minute
	closeSaveTimeout     = 2 * time.Second
	compressionLevel     = 2
)

// Options carries the optional collaborators and settings for New. Zero
// values select defaults; nil collaborators disable their feature.
type Options struct {
	Strategy      *Strategy
	Meta          MetaStore
	Events        EventSink
	Metrics       Metrics
	Sweeps        SweepMetrics
	SweepInterval time.Duration
	Clock         func() time.Time
}

// Engine is the sole entry point of the persistence engine. It owns layer
// accounting, version chains, the checksum index, and the operation log, and
// delegates byte storage to the record store collaborator.
type Engine struct {
	records RecordStore
	meta    MetaStore
	sink    EventSink
	metrics Metrics
	sweeps  SweepMetrics

	codec *compress.Codec

	layers    *layerSet
	versions  *versionStore
	checksums *checksumIndex
	ops       *operationLog

	mu       sync.RWMutex
	files    map[string]FileMeta
	strategy Strategy
	closed   bool

	now           func() time.Time
	sweepInterval time.Duration

	sweepMu  sync.Mutex
	sweepers map[string]*sweeperHandle
}

// New builds an engine over the record store, hydrates state from the
// metadata snapshot and the store's record listing, and starts one retention
// sweeper per auto-cleanup layer.
func New(ctx context.Context, records RecordStore, opts Options) (*Engine, error) {
	if records == nil {
		return nil, errors.New("record store is required")
	}

	strategy := DefaultStrategy()
	if opts.Strategy != nil {
		strategy = cloneStrategy(*opts.Strategy)
	}
	if err := validateStrategy(strategy); err != nil {
		return nil, fmt.Errorf("invalid strategy: %w", err)
	}

	codec, err := compress.NewCodec(compressionLevel)
	if err != nil {
		return nil, fmt.Errorf("compression codec: %w", err)
	}

	e := &Engine{
		records:       records,
		meta:          opts.Meta,
		sink:          opts.Events,
		metrics:       opts.Metrics,
		sweeps:        opts.Sweeps,
		codec:         codec,
		layers:        newLayerSet(strategy.Layers),
		versions:      newVersionStore(),
		checksums:     newChecksumIndex(),
		ops:           newOperationLog(maxOperations),
		files:         make(map[string]FileMeta),
		strategy:      strategy,
		now:           time.Now,
		sweepInterval: defaultSweepInterval,
		sweepers:      make(map[string]*sweeperHandle),
	}
	if opts.Clock != nil {
		e.now = opts.Clock
	}
	if opts.SweepInterval > 0 {
		e.sweepInterval = opts.SweepInterval
	}

	hydrated, err := e.hydrate(ctx)
	if err != nil {
		codec.Close()
		return nil, err
	}

	e.reconcileSweepers(strategy)
	logging.Info("depot", "engine ready",
		"layers", len(strategy.Layers),
		"files", hydrated,
		"versioning", strategy.VersioningEnabled,
		"compression", strategy.CompressionEnabled,
	)
	return e, nil
}

// StoreFile admits content into a layer and persists it via the record store.
// Byte-identical content already present in the same layer and session
// short-circuits to the existing file unless a new version is requested.
func (e *Engine) StoreFile(ctx context.Context, content []byte, layerName, session string, opts StoreOptions) (StoreResult, error) {
	if err := e.checkOpen(); err != nil {
		return StoreResult{}, err
	}
	op := Operation{Type: OpStore, Layer: layerName, Session: session, Bytes: int64(len(content))}
	if len(content) == 0 {
		return StoreResult{}, e.fail(op, ErrEmptyContent)
	}
	layer, err := e.layers.get(layerName)
	if err != nil {
		return StoreResult{}, e.fail(op, err)
	}
	strategy := e.currentStrategy()
	if layerName == LayerCloud && !strategy.CloudSyncEnabled {
		return StoreResult{}, e.fail(op, ErrLayerDisabled)
	}

	digest := computeChecksum(content)
	size := int64(len(content))

	if existingID, ok := e.checksums.lookup(layerName, session, digest); ok {
		return e.storeDuplicate(ctx, existingID, content, digest, layerName, session, strategy, opts)
	}

	payload := content
	compressed := false
	if strategy.CompressionEnabled {
		payload, compressed = e.codec.Compress(content)
	}

	if err := layer.admit(size); err != nil {
		return StoreResult{}, e.fail(op, err)
	}

	persistent := layerName == LayerPersistent || layerName == LayerCloud
	id, err := e.records.Add(ctx, payload, persistent, session)
	if err != nil {
		layer.release(size)
		derr := downstream("add", err)
		return StoreResult{}, e.fail(op, derr)
	}

	now := e.now()
	meta := FileMeta{
		ID:          id,
		Name:        opts.Name,
		Description: opts.Description,
		Tags:        append([]string(nil), opts.Tags...),
		Layer:       layerName,
		Session:     session,
		Size:        size,
		ContentType: detectContentType(opts.Name, content),
		Checksum:    digest,
		Compressed:  compressed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if meta.Name == "" {
		meta.Name = id
	}

	e.mu.Lock()
	e.files[id] = meta
	e.mu.Unlock()
	e.checksums.register(layerName, session, digest, id)

	versionNumber := 0
	if strategy.VersioningEnabled && (strategy.AutoBackup || opts.RequestNewVersion) {
		v := e.versions.create(id, content, digest, session, opts.Description, strategy.MaxVersionsPerFile, now)
		versionNumber = v.Number
	}

	op.FileID = id
	op.Success = true
	e.logOperation(op)
	if e.metrics != nil {
		e.metrics.IncStores(layerName)
		e.metrics.ObserveStoreBytes(layerName, float64(size))
	}
	e.updateLayerGauge(layerName, layer)
	logging.Info("depot", "file stored",
		"file_id", id,
		"layer", layerName,
		"session", session,
		"bytes", size,
		"version", versionNumber,
		"compressed", compressed,
	)
	e.persistMeta(ctx)
	return StoreResult{FileID: id, Version: versionNumber, Size: size, Checksum: digest}, nil
}

// storeDuplicate handles a store whose digest is already indexed in scope.
func (e *Engine) storeDuplicate(ctx context.Context, fileID string, content []byte, digest, layerName, session string, strategy Strategy, opts StoreOptions) (StoreResult, error) {
	size := int64(len(content))
	if e.metrics != nil {
		e.metrics.IncDuplicates(layerName)
	}

	if !opts.RequestNewVersion {
		e.logOperation(Operation{
			Type:    OpStore,
			FileID:  fileID,
			Layer:   layerName,
			Session: session,
			Bytes:   size,
			Detail:  "duplicate content",
			Success: true,
		})
		logging.Info("depot", "duplicate content short-circuited",
			"file_id", fileID,
			"layer", layerName,
			"session", session,
		)
		return StoreResult{FileID: fileID, Version: e.versions.newest(fileID), Size: size, Checksum: digest, Duplicate: true}, nil
	}

	op := Operation{Type: OpStore, FileID: fileID, Layer: layerName, Session: session, Bytes: size}
	if !strategy.VersioningEnabled {
		return StoreResult{}, e.fail(op, ErrVersioningDisabled)
	}
	now := e.now()
	v := e.versions.create(fileID, content, digest, session, opts.Description, strategy.MaxVersionsPerFile, now)
	e.touch(fileID, now)

	op.Detail = "new version of existing content"
	op.Success = true
	e.logOperation(op)
	e.persistMeta(ctx)
	return StoreResult{FileID: fileID, Version: v.Number, Size: size, Checksum: digest, Duplicate: true}, nil
}

// UpdateFile replaces a file's base content, adjusting layer byte accounting
// by the size delta. Unchanged content without a version request is a no-op.
func (e *Engine) UpdateFile(ctx context.Context, fileID string, content []byte, opts UpdateOptions) (StoreResult, error) {
	if err := e.checkOpen(); err != nil {
		return StoreResult{}, err
	}
	op := Operation{Type: OpUpdate, FileID: fileID, Bytes: int64(len(content))}
	if len(content) == 0 {
		return StoreResult{}, e.fail(op, ErrEmptyContent)
	}
	meta, ok := e.fileMeta(fileID)
	if !ok {
		return StoreResult{}, e.fail(op, ErrNotFound)
	}
	op.Layer = meta.Layer
	op.Session = meta.Session
	layer, err := e.layers.get(meta.Layer)
	if err != nil {
		return StoreResult{}, e.fail(op, err)
	}
	strategy := e.currentStrategy()

	digest := computeChecksum(content)
	size := int64(len(content))

	if digest == meta.Checksum && !opts.RequestNewVersion {
		op.Detail = "content unchanged"
		op.Success = true
		e.logOperation(op)
		return StoreResult{FileID: fileID, Version: e.versions.newest(fileID), Size: meta.Size, Checksum: meta.Checksum}, nil
	}

	delta := size - meta.Size
	if err := layer.adjust(delta); err != nil {
		return StoreResult{}, e.fail(op, err)
	}

	payload := content
	compressed := false
	if strategy.CompressionEnabled {
		payload, compressed = e.codec.Compress(content)
	}

	if err := e.records.Update(ctx, fileID, payload); err != nil {
		layer.adjust(-delta)
		derr := downstream("update", err)
		return StoreResult{}, e.fail(op, derr)
	}

	now := e.now()
	e.mu.Lock()
	current, present := e.files[fileID]
	if !present {
		e.mu.Unlock()
		layer.adjust(-delta)
		return StoreResult{}, e.fail(op, ErrNotFound)
	}
	// Accounting follows the committed size; a concurrent update to the same
	// file reconciles its delta against what is actually stored now.
	if trueDelta := size - current.Size; trueDelta != delta {
		layer.adjust(trueDelta - delta)
	}
	oldDigest := current.Checksum
	current.Size = size
	current.Checksum = digest
	current.Compressed = compressed
	current.UpdatedAt = now
	if opts.Description != "" {
		current.Description = opts.Description
	}
	e.files[fileID] = current
	e.mu.Unlock()

	if oldDigest != digest {
		e.checksums.forget(meta.Layer, meta.Session, oldDigest, fileID)
		e.checksums.register(meta.Layer, meta.Session, digest, fileID)
	}

	versionNumber := e.versions.newest(fileID)
	if strategy.VersioningEnabled && (strategy.AutoBackup || opts.RequestNewVersion) {
		v := e.versions.create(fileID, content, digest, meta.Session, opts.Description, strategy.MaxVersionsPerFile, now)
		versionNumber = v.Number
	}

	op.Success = true
	e.logOperation(op)
	e.updateLayerGauge(meta.Layer, layer)
	logging.Info("depot", "file updated",
		"file_id", fileID,
		"layer", meta.Layer,
		"bytes", size,
		"delta", delta,
		"version", versionNumber,
	)
	e.persistMeta(ctx)
	return StoreResult{FileID: fileID, Version: versionNumber, Size: size, Checksum: digest}, nil
}

// RetrieveFile returns a file's current base content and metadata.
func (e *Engine) RetrieveFile(ctx context.Context, fileID string) ([]byte, FileInfo, error) {
	if err := e.checkOpen(); err != nil {
		return nil, FileInfo{}, err
	}
	op := Operation{Type: OpRetrieve, FileID: fileID}
	meta, ok := e.fileMeta(fileID)
	if !ok {
		return nil, FileInfo{}, e.fail(op, ErrNotFound)
	}
	op.Layer = meta.Layer
	op.Session = meta.Session

	payload, err := e.records.Get(ctx, fileID)
	if err != nil {
		derr := downstream("get", err)
		return nil, FileInfo{}, e.fail(op, derr)
	}
	content := payload
	if meta.Compressed {
		content, err = e.codec.Decompress(payload)
		if err != nil {
			return nil, FileInfo{}, e.fail(op, fmt.Errorf("decompress %s: %w", fileID, err))
		}
	}
	if computeChecksum(content) != meta.Checksum {
		return nil, FileInfo{}, e.fail(op, ErrChecksumMismatch)
	}

	op.Bytes = meta.Size
	op.Success = true
	e.logOperation(op)
	return content, e.infoFor(meta), nil
}

// RetrieveFileVersion returns one retained version's content and metadata.
func (e *Engine) RetrieveFileVersion(ctx context.Context, fileID string, number int) ([]byte, Version, error) {
	if err := e.checkOpen(); err != nil {
		return nil, Version{}, err
	}
	op := Operation{Type: OpRetrieve, FileID: fileID, Detail: fmt.Sprintf("version %d", number)}
	meta, ok := e.fileMeta(fileID)
	if !ok {
		return nil, Version{}, e.fail(op, ErrNotFound)
	}
	op.Layer = meta.Layer
	op.Session = meta.Session
	if !e.currentStrategy().VersioningEnabled {
		return nil, Version{}, e.fail(op, ErrVersioningDisabled)
	}
	version, content, ok := e.versions.get(fileID, number)
	if !ok {
		return nil, Version{}, e.fail(op, ErrVersionNotFound)
	}

	op.Bytes = version.Size
	op.Success = true
	e.logOperation(op)
	return content, version, nil
}

// DeleteFile removes a file from the record store and releases its layer
// accounting, version chain, and checksum index entry.
func (e *Engine) DeleteFile(ctx context.Context, fileID string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	op := Operation{Type: OpDelete, FileID: fileID}
	meta, ok := e.fileMeta(fileID)
	if !ok {
		return e.fail(op, ErrNotFound)
	}
	op.Layer = meta.Layer
	op.Session = meta.Session
	layer, err := e.layers.get(meta.Layer)
	if err != nil {
		return e.fail(op, err)
	}

	layer.mu.Lock()
	current, ok := e.fileMeta(fileID)
	if !ok {
		layer.mu.Unlock()
		return e.fail(op, ErrNotFound)
	}
	if err := e.records.Remove(ctx, fileID); err != nil {
		layer.mu.Unlock()
		derr := downstream("remove", err)
		return e.fail(op, derr)
	}
	e.mu.Lock()
	delete(e.files, fileID)
	e.mu.Unlock()
	layer.dropLocked(current.Size)
	layer.mu.Unlock()

	e.checksums.forget(current.Layer, current.Session, current.Checksum, fileID)
	e.versions.drop(fileID)

	op.Bytes = current.Size
	op.Success = true
	e.logOperation(op)
	e.updateLayerGauge(current.Layer, layer)
	logging.Info("depot", "file deleted",
		"file_id", fileID,
		"layer", current.Layer,
		"bytes", current.Size,
	)
	e.persistMeta(ctx)
	return nil
}

// FileInfo returns a file's metadata without touching the record store.
func (e *Engine) FileInfo(fileID string) (FileInfo, error) {
	meta, ok := e.fileMeta(fileID)
	if !ok {
		return FileInfo{}, ErrNotFound
	}
	return e.infoFor(meta), nil
}

// ListFiles returns metadata for all files, or for one session when given.
// Results are ordered by creation time, then id.
func (e *Engine) ListFiles(session string) []FileInfo {
	e.mu.RLock()
	metas := make([]FileMeta, 0, len(e.files))
	for _, meta := range e.files {
		if session != "" && meta.Session != session {
			continue
		}
		metas = append(metas, meta)
	}
	e.mu.RUnlock()

	sort.Slice(metas, func(i, j int) bool {
		if metas[i].CreatedAt.Equal(metas[j].CreatedAt) {
			return metas[i].ID < metas[j].ID
		}
		return metas[i].CreatedAt.Before(metas[j].CreatedAt)
	})
	out := make([]FileInfo, len(metas))
	for i, meta := range metas {
		out[i] = e.infoFor(meta)
	}
	return out
}

// History returns a file's retained version chain, ascending by number.
func (e *Engine) History(fileID string) ([]Version, error) {
	if _, ok := e.fileMeta(fileID); !ok {
		return nil, ErrNotFound
	}
	return e.versions.history(fileID), nil
}

// OperationHistory returns up to limit operation log entries, newest first.
func (e *Engine) OperationHistory(limit int) []Operation {
	return e.ops.history(limit)
}

// UpdateStrategy applies a partial strategy change. New settings affect
// subsequent operations only; files admitted earlier are never re-evaluated.
func (e *Engine) UpdateStrategy(update StrategyUpdate) (Strategy, error) {
	if err := e.checkOpen(); err != nil {
		return Strategy{}, err
	}

	e.mu.Lock()
	next := mergeStrategy(e.strategy, update)
	if err := validateStrategy(next); err != nil {
		e.mu.Unlock()
		return Strategy{}, e.fail(Operation{Type: OpStrategy}, err)
	}
	e.strategy = next
	e.mu.Unlock()

	e.layers.apply(next.Layers)
	e.reconcileSweepers(next)

	e.logOperation(Operation{Type: OpStrategy, Detail: "strategy updated", Success: true})
	logging.Info("depot", "strategy updated",
		"versioning", next.VersioningEnabled,
		"max_versions", next.MaxVersionsPerFile,
		"compression", next.CompressionEnabled,
		"cloud_sync", next.CloudSyncEnabled,
		"layers", len(next.Layers),
	)
	return cloneStrategy(next), nil
}

// Strategy returns a copy of the active strategy.
func (e *Engine) Strategy() Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneStrategy(e.strategy)
}

// Close stops every retention sweeper, saves a final metadata snapshot, and
// refuses subsequent operations. The record store stays open; its lifetime
// belongs to the composition root.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.stopAllSweepers()

	ctx, cancel := context.WithTimeout(context.Background(), closeSaveTimeout)
	defer cancel()
	e.persistMeta(ctx)

	e.codec.Close()
	logging.Info("depot", "engine closed")
	return nil
}

func (e *Engine) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	return nil
}

func (e *Engine) currentStrategy() Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.strategy
}

func (e *Engine) fileMeta(fileID string) (FileMeta, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	meta, ok := e.files[fileID]
	return meta, ok
}

func (e *Engine) infoFor(meta FileMeta) FileInfo {
	meta.Tags = append([]string(nil), meta.Tags...)
	return FileInfo{FileMeta: meta, VersionCount: e.versions.count(meta.ID)}
}

func (e *Engine) touch(fileID string, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	meta, ok := e.files[fileID]
	if !ok {
		return
	}
	meta.UpdatedAt = now
	e.files[fileID] = meta
}

// fail records a failed operation in the log before returning the error.
func (e *Engine) fail(op Operation, err error) error {
	op.Success = false
	op.Error = err.Error()
	e.logOperation(op)
	return err
}

// logOperation stamps and appends an operation, feeds the failure counter,
// and hands the entry to the event sink.
func (e *Engine) logOperation(op Operation) {
	if op.Timestamp.IsZero() {
		op.Timestamp = e.now()
	}
	e.ops.append(op)
	if !op.Success {
		if e.metrics != nil {
			e.metrics.IncFailures(op.Type)
		}
		logging.Error("depot", "operation failed",
			"type", op.Type,
			"file_id", op.FileID,
			"layer", op.Layer,
			"error", op.Error,
		)
	}
	if e.sink != nil {
		if err := e.sink.PublishOperation(op); err != nil {
			logging.Error("depot", "publish operation event", "type", op.Type, "error", err)
		}
	}
}

func (e *Engine) updateLayerGauge(name string, layer *layerState) {
	if e.metrics == nil {
		return
	}
	usage := layer.usage()
	e.metrics.SetLayerUsage(name, usage.Files, usage.Bytes)
}

func detectContentType(name string, content []byte) string {
	if ext := filepath.Ext(name); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return http.DetectContentType(content)
}
