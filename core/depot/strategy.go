package depot

import (
	"errors"
	"fmt"
)

// validateStrategy rejects settings the engine cannot run with.
func validateStrategy(s Strategy) error {
	if s.MaxVersionsPerFile < 1 {
		return fmt.Errorf("max versions per file must be positive, got %d", s.MaxVersionsPerFile)
	}
	if len(s.Layers) == 0 {
		return errors.New("strategy has no layers")
	}
	seen := make(map[string]bool, len(s.Layers))
	for _, layer := range s.Layers {
		if layer.Name == "" {
			return errors.New("layer with empty name")
		}
		if seen[layer.Name] {
			return fmt.Errorf("duplicate layer %q", layer.Name)
		}
		seen[layer.Name] = true
		if layer.AutoCleanup && layer.Retention <= 0 {
			return fmt.Errorf("layer %q auto cleanup requires a positive retention", layer.Name)
		}
	}
	return nil
}

// mergeStrategy applies a partial update to the current strategy. Nil fields
// keep their value; layer entries upsert by name and never remove layers.
func mergeStrategy(current Strategy, update StrategyUpdate) Strategy {
	next := current
	next.Layers = append([]LayerPolicy(nil), current.Layers...)

	if update.AutoBackup != nil {
		next.AutoBackup = *update.AutoBackup
	}
	if update.VersioningEnabled != nil {
		next.VersioningEnabled = *update.VersioningEnabled
	}
	if update.MaxVersionsPerFile != nil {
		next.MaxVersionsPerFile = *update.MaxVersionsPerFile
	}
	if update.CompressionEnabled != nil {
		next.CompressionEnabled = *update.CompressionEnabled
	}
	if update.CloudSyncEnabled != nil {
		next.CloudSyncEnabled = *update.CloudSyncEnabled
	}
	for _, layer := range update.Layers {
		replaced := false
		for i := range next.Layers {
			if next.Layers[i].Name == layer.Name {
				next.Layers[i] = layer
				replaced = true
				break
			}
		}
		if !replaced {
			next.Layers = append(next.Layers, layer)
		}
	}
	return next
}

// cloneStrategy returns a copy whose layer slice the caller may hand out.
func cloneStrategy(s Strategy) Strategy {
	out := s
	out.Layers = append([]LayerPolicy(nil), s.Layers...)
	return out
}
