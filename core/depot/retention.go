package depot

import (
	"context"
	"time"

	"github.com/filedepot/filedepot/core/infra/logging"
)

// sweeper runs the periodic retention sweep for one layer until its context
// is cancelled.
type sweeper struct {
	engine   *Engine
	layer    string
	interval time.Duration
}

func (s *sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *sweeper) tick(ctx context.Context) {
	start := time.Now()
	evicted, err := s.engine.SweepLayer(ctx, s.layer)
	outcome := "ok"
	if err != nil {
		outcome = "failed"
		logging.Error("sweeper", "sweep failed", "layer", s.layer, "error", err)
	}
	if sm := s.engine.sweeps; sm != nil {
		sm.IncSweepRuns(s.layer, outcome)
		sm.ObserveSweepDuration(s.layer, time.Since(start).Seconds())
	}
	if evicted > 0 {
		logging.Info("sweeper", "sweep evicted files", "layer", s.layer, "evicted", evicted)
	}
}

type sweeperHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// SweepLayer evicts every file in the layer whose last activity predates the
// retention cutoff. Eviction holds the same lock admission uses, so a sweep
// cannot race a concurrent store. Individual failures are logged and skipped.
func (e *Engine) SweepLayer(ctx context.Context, name string) (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	layer, err := e.layers.get(name)
	if err != nil {
		return 0, err
	}
	policy := layer.currentPolicy()
	if policy.Retention <= 0 {
		return 0, nil
	}
	cutoff := e.now().Add(-policy.Retention)

	e.mu.RLock()
	candidates := make([]string, 0)
	for id, meta := range e.files {
		if meta.Layer == name && meta.UpdatedAt.Before(cutoff) {
			candidates = append(candidates, id)
		}
	}
	e.mu.RUnlock()
	if len(candidates) == 0 {
		return 0, nil
	}

	evicted := 0
	layer.mu.Lock()
	for _, id := range candidates {
		if ctx.Err() != nil {
			break
		}
		meta, ok := e.fileMeta(id)
		if !ok || !meta.UpdatedAt.Before(cutoff) {
			continue
		}
		op := Operation{
			Type:    OpCleanup,
			FileID:  id,
			Layer:   name,
			Session: meta.Session,
			Bytes:   meta.Size,
			Detail:  "retention expired",
		}
		if err := e.records.Remove(ctx, id); err != nil {
			e.fail(op, downstream("remove", err))
			continue
		}
		e.mu.Lock()
		delete(e.files, id)
		e.mu.Unlock()
		layer.dropLocked(meta.Size)
		e.checksums.forget(name, meta.Session, meta.Checksum, id)
		e.versions.drop(id)

		op.Success = true
		e.logOperation(op)
		if e.metrics != nil {
			e.metrics.IncEvictions(name, "expired")
		}
		evicted++
	}
	layer.mu.Unlock()

	if evicted > 0 {
		e.updateLayerGauge(name, layer)
		e.persistMeta(ctx)
		logging.Info("sweeper", "retention sweep complete", "layer", name, "evicted", evicted)
	}
	return evicted, nil
}

// reconcileSweepers starts sweepers for auto-cleanup layers and stops those
// whose layer no longer wants cleanup.
func (e *Engine) reconcileSweepers(strategy Strategy) {
	for _, policy := range strategy.Layers {
		if policy.AutoCleanup && policy.Retention > 0 {
			e.startSweeper(policy.Name)
			continue
		}
		e.stopSweeper(policy.Name)
	}
}

func (e *Engine) startSweeper(name string) {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()
	if _, ok := e.sweepers[name]; ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	handle := &sweeperHandle{cancel: cancel, done: make(chan struct{})}
	e.sweepers[name] = handle

	s := &sweeper{engine: e, layer: name, interval: e.sweepInterval}
	go func() {
		defer close(handle.done)
		s.run(ctx)
	}()
	logging.Info("sweeper", "sweeper started", "layer", name, "interval", e.sweepInterval.String())
}

func (e *Engine) stopSweeper(name string) {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()
	handle, ok := e.sweepers[name]
	if !ok {
		return
	}
	handle.cancel()
	<-handle.done
	delete(e.sweepers, name)
	logging.Info("sweeper", "sweeper stopped", "layer", name)
}

func (e *Engine) stopAllSweepers() {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()
	for name, handle := range e.sweepers {
		handle.cancel()
		<-handle.done
		delete(e.sweepers, name)
		logging.Info("sweeper", "sweeper stopped", "layer", name)
	}
}
