package depot

import "sync"

// layerState couples one layer's policy with its live accounting. The mutex
// makes admission check+reserve a single critical section and keeps sweeps
// and deletes mutually exclusive with admissions on the same layer. Different
// layers never contend.
type layerState struct {
	mu     sync.Mutex
	policy LayerPolicy
	files  int
	bytes  int64
}

// admit reserves one file slot and size bytes, or reports that a limit would
// be breached. Limits of zero or below are unlimited.
func (l *layerState) admit(size int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.policy.MaxFiles > 0 && l.files+1 > l.policy.MaxFiles {
		return ErrCapacityExceeded
	}
	if l.policy.MaxBytes > 0 && l.bytes+size > l.policy.MaxBytes {
		return ErrCapacityExceeded
	}
	l.files++
	l.bytes += size
	return nil
}

// release returns a reservation taken by admit, used when a later pipeline
// step fails.
func (l *layerState) release(size int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files--
	l.bytes -= size
}

// adjust applies a byte delta for an in-place content update. Growth is
// checked against the byte limit; the file count is unchanged.
func (l *layerState) adjust(delta int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if delta > 0 && l.policy.MaxBytes > 0 && l.bytes+delta > l.policy.MaxBytes {
		return ErrCapacityExceeded
	}
	l.bytes += delta
	return nil
}

// dropLocked releases one file's accounting. Callers hold l.mu.
func (l *layerState) dropLocked(size int64) {
	l.files--
	l.bytes -= size
}

// seed restores accounting from hydrated metadata without admission checks.
// Files admitted under an earlier policy are never re-evaluated.
func (l *layerState) seed(files int, bytes int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files += files
	l.bytes += bytes
}

func (l *layerState) usage() LayerUsage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LayerUsage{Files: l.files, Bytes: l.bytes}
}

func (l *layerState) currentPolicy() LayerPolicy {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.policy
}

func (l *layerState) setPolicy(p LayerPolicy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.policy = p
}

// layerSet is the registry of storage layers, keyed by name. Layers are added
// or replaced by strategy updates and never removed at runtime.
type layerSet struct {
	mu     sync.RWMutex
	layers map[string]*layerState
}

func newLayerSet(policies []LayerPolicy) *layerSet {
	s := &layerSet{layers: make(map[string]*layerState, len(policies))}
	for _, p := range policies {
		s.layers[p.Name] = &layerState{policy: p}
	}
	return s
}

func (s *layerSet) get(name string) (*layerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	layer, ok := s.layers[name]
	if !ok {
		return nil, ErrInvalidLayer
	}
	return layer, nil
}

// ensure returns the named layer, creating an unlimited, no-cleanup policy
// for it when absent. Used when hydrating records whose layer is no longer
// configured.
func (s *layerSet) ensure(name string) *layerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	layer, ok := s.layers[name]
	if !ok {
		layer = &layerState{policy: LayerPolicy{Name: name}}
		s.layers[name] = layer
	}
	return layer
}

// apply upserts layer policies by name, keeping existing accounting. The set
// lock is not held while updating an individual layer, so a sweep on one
// layer never stalls lookups for the others.
func (s *layerSet) apply(policies []LayerPolicy) {
	type pending struct {
		layer  *layerState
		policy LayerPolicy
	}
	var updates []pending

	s.mu.Lock()
	for _, p := range policies {
		if layer, ok := s.layers[p.Name]; ok {
			updates = append(updates, pending{layer: layer, policy: p})
			continue
		}
		s.layers[p.Name] = &layerState{policy: p}
	}
	s.mu.Unlock()

	for _, u := range updates {
		u.layer.setPolicy(u.policy)
	}
}

func (s *layerSet) names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.layers))
	for name := range s.layers {
		names = append(names, name)
	}
	return names
}

func (s *layerSet) usage() map[string]LayerUsage {
	s.mu.RLock()
	snapshot := make(map[string]*layerState, len(s.layers))
	for name, layer := range s.layers {
		snapshot[name] = layer
	}
	s.mu.RUnlock()

	out := make(map[string]LayerUsage, len(snapshot))
	for name, layer := range snapshot {
		out[name] = layer.usage()
	}
	return out
}
