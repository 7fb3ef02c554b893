package depot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeRecordStore is an in-memory record store with error injection.
type fakeRecordStore struct {
	mu      sync.Mutex
	seq     int
	content map[string][]byte
	recs    map[string]Record

	failAdd      error
	failGet      error
	failUpdate   error
	failRemove   error
	failRemoveID string
	failStats    error
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{
		content: make(map[string][]byte),
		recs:    make(map[string]Record),
	}
}

func (s *fakeRecordStore) Add(_ context.Context, content []byte, isPersistent bool, session string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAdd != nil {
		return "", s.failAdd
	}
	s.seq++
	id := fmt.Sprintf("rec-%d", s.seq)
	s.content[id] = append([]byte(nil), content...)
	s.recs[id] = Record{
		ID:           id,
		Size:         int64(len(content)),
		IsPersistent: isPersistent,
		Session:      session,
		CreatedAt:    time.Now(),
	}
	return id, nil
}

func (s *fakeRecordStore) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return nil, s.failGet
	}
	content, ok := s.content[id]
	if !ok {
		return nil, ErrRecordMissing
	}
	return append([]byte(nil), content...), nil
}

func (s *fakeRecordStore) Update(_ context.Context, id string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate != nil {
		return s.failUpdate
	}
	if _, ok := s.content[id]; !ok {
		return ErrRecordMissing
	}
	s.content[id] = append([]byte(nil), content...)
	rec := s.recs[id]
	rec.Size = int64(len(content))
	s.recs[id] = rec
	return nil
}

func (s *fakeRecordStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRemove != nil && (s.failRemoveID == "" || s.failRemoveID == id) {
		return s.failRemove
	}
	if _, ok := s.content[id]; !ok {
		return ErrRecordMissing
	}
	delete(s.content, id)
	delete(s.recs, id)
	return nil
}

func (s *fakeRecordStore) ListBySession(_ context.Context, session string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, rec := range s.recs {
		if rec.Session == session {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeRecordStore) List(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec)
	}
	return out, nil
}

func (s *fakeRecordStore) Stats(_ context.Context) (RecordStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failStats != nil {
		return RecordStats{}, s.failStats
	}
	var stats RecordStats
	for _, rec := range s.recs {
		if rec.IsPersistent {
			stats.PersistentCount++
		} else {
			stats.TemporaryCount++
		}
		stats.TotalBytes += rec.Size
	}
	return stats, nil
}

func (s *fakeRecordStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.content[id]
	return ok
}

func (s *fakeRecordStore) storedLen(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.content[id])
}

// fakeMetaStore keeps the latest snapshot in memory.
type fakeMetaStore struct {
	mu    sync.Mutex
	saved []byte
}

func (s *fakeMetaStore) SaveMeta(_ context.Context, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append([]byte(nil), snapshot...)
	return nil
}

func (s *fakeMetaStore) LoadMeta(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		return nil, nil
	}
	return append([]byte(nil), s.saved...), nil
}

// fakeSink records every published operation.
type fakeSink struct {
	mu  sync.Mutex
	ops []Operation
}

func (s *fakeSink) PublishOperation(op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, op)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ops)
}

// testClock is an adjustable clock for deterministic retention tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEngine struct {
	engine *Engine
	store  *fakeRecordStore
	meta   *fakeMetaStore
	sink   *fakeSink
	clock  *testClock
}

func newTestEngine(t *testing.T, strategy *Strategy) *testEngine {
	t.Helper()
	store := newFakeRecordStore()
	meta := &fakeMetaStore{}
	sink := &fakeSink{}
	clock := newTestClock()

	engine, err := New(context.Background(), store, Options{
		Strategy:      strategy,
		Meta:          meta,
		Events:        sink,
		SweepInterval: time.Hour,
		Clock:         clock.Now,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return &testEngine{engine: engine, store: store, meta: meta, sink: sink, clock: clock}
}

func mustStore(t *testing.T, te *testEngine, content, layer, session string, opts StoreOptions) StoreResult {
	t.Helper()
	res, err := te.engine.StoreFile(context.Background(), []byte(content), layer, session, opts)
	if err != nil {
		t.Fatalf("StoreFile(%q) returned error: %v", content, err)
	}
	return res
}
