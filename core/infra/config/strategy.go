package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/filedepot/filedepot/core/depot"
)

type rawLayerPolicy struct {
	Name        string `yaml:"name"`
	MaxFiles    int    `yaml:"max_files"`
	MaxBytes    int64  `yaml:"max_bytes"`
	Retention   string `yaml:"retention"`
	AutoCleanup bool   `yaml:"auto_cleanup"`
}

type rawStrategyConfig struct {
	AutoBackup         *bool            `yaml:"auto_backup"`
	VersioningEnabled  *bool            `yaml:"versioning_enabled"`
	MaxVersionsPerFile *int             `yaml:"max_versions_per_file"`
	CompressionEnabled *bool            `yaml:"compression_enabled"`
	CloudSyncEnabled   *bool            `yaml:"cloud_sync_enabled"`
	Layers             []rawLayerPolicy `yaml:"layers"`
}

// ParseStrategyConfig parses a strategy document from YAML bytes. Missing
// fields keep their defaults; a layers list replaces the default layer set
// wholesale.
func ParseStrategyConfig(data []byte) (depot.Strategy, error) {
	strategy := depot.DefaultStrategy()
	if len(data) == 0 {
		return strategy, nil
	}
	if err := validateStrategySchema(data); err != nil {
		return depot.Strategy{}, err
	}
	var raw rawStrategyConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return depot.Strategy{}, fmt.Errorf("parse strategy config: %w", err)
	}
	if raw.AutoBackup != nil {
		strategy.AutoBackup = *raw.AutoBackup
	}
	if raw.VersioningEnabled != nil {
		strategy.VersioningEnabled = *raw.VersioningEnabled
	}
	if raw.MaxVersionsPerFile != nil {
		if *raw.MaxVersionsPerFile < 1 {
			return depot.Strategy{}, fmt.Errorf("max_versions_per_file must be positive, got %d", *raw.MaxVersionsPerFile)
		}
		strategy.MaxVersionsPerFile = *raw.MaxVersionsPerFile
	}
	if raw.CompressionEnabled != nil {
		strategy.CompressionEnabled = *raw.CompressionEnabled
	}
	if raw.CloudSyncEnabled != nil {
		strategy.CloudSyncEnabled = *raw.CloudSyncEnabled
	}
	if raw.Layers != nil {
		layers, err := parseLayerPolicies(raw.Layers)
		if err != nil {
			return depot.Strategy{}, err
		}
		strategy.Layers = layers
	}
	return strategy, nil
}

// LoadStrategyConfig reads and parses a strategy YAML file.
func LoadStrategyConfig(path string) (depot.Strategy, error) {
	if path == "" {
		return depot.Strategy{}, errors.New("strategy config path is empty")
	}

	// #nosec G304 -- strategy config path is operator-provided.
	data, err := os.ReadFile(path)
	if err != nil {
		return depot.Strategy{}, fmt.Errorf("read strategy config %s: %w", path, err)
	}

	strategy, err := ParseStrategyConfig(data)
	if err != nil {
		return depot.Strategy{}, fmt.Errorf("load strategy config %s: %w", path, err)
	}
	return strategy, nil
}

func parseLayerPolicies(raws []rawLayerPolicy) ([]depot.LayerPolicy, error) {
	if len(raws) == 0 {
		return nil, errors.New("strategy config has no layers")
	}
	seen := make(map[string]bool, len(raws))
	out := make([]depot.LayerPolicy, 0, len(raws))
	for _, raw := range raws {
		if raw.Name == "" {
			return nil, errors.New("layer with empty name")
		}
		if seen[raw.Name] {
			return nil, fmt.Errorf("duplicate layer %q", raw.Name)
		}
		seen[raw.Name] = true

		var retention time.Duration
		if raw.Retention != "" {
			d, err := time.ParseDuration(raw.Retention)
			if err != nil {
				return nil, fmt.Errorf("layer %q retention: %w", raw.Name, err)
			}
			if d <= 0 {
				return nil, fmt.Errorf("layer %q retention must be positive", raw.Name)
			}
			retention = d
		}
		if raw.AutoCleanup && retention == 0 {
			return nil, fmt.Errorf("layer %q auto_cleanup requires retention", raw.Name)
		}
		out = append(out, depot.LayerPolicy{
			Name:        raw.Name,
			MaxFiles:    raw.MaxFiles,
			MaxBytes:    raw.MaxBytes,
			Retention:   retention,
			AutoCleanup: raw.AutoCleanup,
		})
	}
	return out, nil
}
