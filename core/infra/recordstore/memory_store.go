package recordstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/filedepot/filedepot/core/depot"
)

// MemoryStore keeps records in process memory. It backs engine tests and the
// CLI's ephemeral mode.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]depot.Record
	content map[string][]byte
	meta    []byte
}

// NewMemoryStore constructs an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]depot.Record),
		content: make(map[string][]byte),
	}
}

func (s *MemoryStore) Add(ctx context.Context, content []byte, isPersistent bool, session string) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = depot.Record{
		ID:           id,
		Size:         int64(len(content)),
		IsPersistent: isPersistent,
		Session:      session,
		CreatedAt:    time.Now().UTC(),
	}
	s.content[id] = append([]byte(nil), content...)
	return id, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.content[id]
	if !ok {
		return nil, depot.ErrRecordMissing
	}
	return append([]byte(nil), content...), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return depot.ErrRecordMissing
	}
	rec.Size = int64(len(content))
	s.records[id] = rec
	s.content[id] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return depot.ErrRecordMissing
	}
	delete(s.records, id)
	delete(s.content, id)
	return nil
}

func (s *MemoryStore) ListBySession(ctx context.Context, session string) ([]depot.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]depot.Record, 0)
	for _, rec := range s.records {
		if rec.Session == session {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]depot.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]depot.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (depot.RecordStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats depot.RecordStats
	for _, rec := range s.records {
		if rec.IsPersistent {
			stats.PersistentCount++
		} else {
			stats.TemporaryCount++
		}
		stats.TotalBytes += rec.Size
	}
	return stats, nil
}

// SaveMeta stores the engine metadata snapshot alongside the records.
func (s *MemoryStore) SaveMeta(ctx context.Context, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = append([]byte(nil), snapshot...)
	return nil
}

// LoadMeta returns the last saved metadata snapshot, or nil when absent.
func (s *MemoryStore) LoadMeta(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.meta) == 0 {
		return nil, nil
	}
	return append([]byte(nil), s.meta...), nil
}

// Close implements the lifecycle expected by composition roots.
func (s *MemoryStore) Close() error {
	return nil
}

func sortRecords(recs []depot.Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}
