package depot

import (
	"context"
	"time"
)

// Default layer names installed by DefaultStrategy.
const (
	LayerTemporary  = "temporary"
	LayerSession    = "session"
	LayerPersistent = "persistent"
	LayerCloud      = "cloud"
)

// Operation types recorded in the operation log.
const (
	OpStore    = "store"
	OpRetrieve = "retrieve"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpCleanup  = "cleanup"
	OpStrategy = "strategy"
)

// LayerPolicy describes one storage layer. MaxFiles and MaxBytes of zero or
// below mean unlimited. Retention applies only when AutoCleanup is set.
type LayerPolicy struct {
	Name        string        `json:"name"`
	MaxFiles    int           `json:"max_files"`
	MaxBytes    int64         `json:"max_bytes"`
	Retention   time.Duration `json:"retention"`
	AutoCleanup bool          `json:"auto_cleanup"`
}

// Strategy is the runtime configuration surface of the engine.
type Strategy struct {
	AutoBackup         bool          `json:"auto_backup"`
	VersioningEnabled  bool          `json:"versioning_enabled"`
	MaxVersionsPerFile int           `json:"max_versions_per_file"`
	CompressionEnabled bool          `json:"compression_enabled"`
	CloudSyncEnabled   bool          `json:"cloud_sync_enabled"`
	Layers             []LayerPolicy `json:"layers"`
}

// StrategyUpdate carries a partial strategy change. Nil fields keep the
// current value; Layers entries upsert by name.
type StrategyUpdate struct {
	AutoBackup         *bool         `json:"auto_backup,omitempty"`
	VersioningEnabled  *bool         `json:"versioning_enabled,omitempty"`
	MaxVersionsPerFile *int          `json:"max_versions_per_file,omitempty"`
	CompressionEnabled *bool         `json:"compression_enabled,omitempty"`
	CloudSyncEnabled   *bool         `json:"cloud_sync_enabled,omitempty"`
	Layers             []LayerPolicy `json:"layers,omitempty"`
}

// DefaultStrategy returns the layer set and flags the engine starts with.
func DefaultStrategy() Strategy {
	return Strategy{
		AutoBackup:         true,
		VersioningEnabled:  true,
		MaxVersionsPerFile: 5,
		CompressionEnabled: false,
		CloudSyncEnabled:   false,
		Layers: []LayerPolicy{
			{Name: LayerTemporary, MaxFiles: 100, MaxBytes: 100 << 20, Retention: time.Hour, AutoCleanup: true},
			{Name: LayerSession, MaxFiles: 200, MaxBytes: 500 << 20, Retention: 24 * time.Hour, AutoCleanup: true},
			{Name: LayerPersistent, MaxFiles: 1000, MaxBytes: 2 << 30},
			{Name: LayerCloud, MaxFiles: 500, MaxBytes: 1 << 30},
		},
	}
}

// FileMeta is the engine's metadata row for one stored file.
type FileMeta struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Layer       string    `json:"layer"`
	Session     string    `json:"session"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Checksum    string    `json:"checksum"`
	Compressed  bool      `json:"compressed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FileInfo is FileMeta plus derived state for callers.
type FileInfo struct {
	FileMeta
	VersionCount int `json:"version_count"`
}

// Version is the metadata of one content snapshot in a file's chain.
type Version struct {
	ID          string    `json:"id"`
	FileID      string    `json:"file_id"`
	Number      int       `json:"number"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	CreatedBy   string    `json:"created_by,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Operation is one entry in the bounded operation log.
type Operation struct {
	Type      string    `json:"type"`
	FileID    string    `json:"file_id,omitempty"`
	Layer     string    `json:"layer,omitempty"`
	Session   string    `json:"session,omitempty"`
	Bytes     int64     `json:"bytes,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StoreOptions carries optional attributes for StoreFile.
type StoreOptions struct {
	Name              string
	Description       string
	Tags              []string
	RequestNewVersion bool
}

// UpdateOptions carries optional attributes for UpdateFile.
type UpdateOptions struct {
	Description       string
	RequestNewVersion bool
}

// StoreResult reports the outcome of a successful store or update.
type StoreResult struct {
	FileID    string `json:"file_id"`
	Version   int    `json:"version,omitempty"`
	Size      int64  `json:"size"`
	Checksum  string `json:"checksum"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// LayerUsage is the live accounting for one layer.
type LayerUsage struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// FileSummary identifies a file in metrics output.
type FileSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MetricsSnapshot is a best-effort aggregate view of engine state.
type MetricsSnapshot struct {
	TotalFiles    int                   `json:"total_files"`
	TotalBytes    int64                 `json:"total_bytes"`
	ByLayer       map[string]LayerUsage `json:"by_layer"`
	ByContentType map[string]int        `json:"by_content_type"`
	TotalVersions int                   `json:"total_versions"`
	OldestFile    *FileSummary          `json:"oldest_file,omitempty"`
	NewestFile    *FileSummary          `json:"newest_file,omitempty"`
	Downstream    *RecordStats          `json:"downstream,omitempty"`
	CapturedAt    time.Time             `json:"captured_at"`
}

// Record is the collaborator's view of one stored payload.
type Record struct {
	ID           string    `json:"id"`
	Size         int64     `json:"size"`
	IsPersistent bool      `json:"is_persistent"`
	Session      string    `json:"session"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecordStats summarizes the records held by a record store.
type RecordStats struct {
	TemporaryCount  int   `json:"temporary_count"`
	PersistentCount int   `json:"persistent_count"`
	TotalBytes      int64 `json:"total_bytes"`
}

// RecordStore is the external collaborator that owns file bytes. The engine
// never assumes anything about its storage format.
type RecordStore interface {
	Add(ctx context.Context, content []byte, isPersistent bool, session string) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
	Update(ctx context.Context, id string, content []byte) error
	Remove(ctx context.Context, id string) error
	ListBySession(ctx context.Context, session string) ([]Record, error)
	List(ctx context.Context) ([]Record, error)
	Stats(ctx context.Context) (RecordStats, error)
}

// MetaStore persists the engine's metadata snapshot so a restart against a
// shared record store resumes with correct accounting.
type MetaStore interface {
	SaveMeta(ctx context.Context, snapshot []byte) error
	LoadMeta(ctx context.Context) ([]byte, error)
}

// EventSink receives completed operations for external observers.
type EventSink interface {
	PublishOperation(op Operation) error
}

// Metrics captures counters and gauges for engine events.
type Metrics interface {
	IncStores(layer string)
	IncDuplicates(layer string)
	IncEvictions(layer, reason string)
	IncFailures(op string)
	ObserveStoreBytes(layer string, size float64)
	SetLayerUsage(layer string, files int, bytes int64)
}

// SweepMetrics captures retention sweep activity.
type SweepMetrics interface {
	IncSweepRuns(layer, outcome string)
	ObserveSweepDuration(layer string, durationSeconds float64)
}
