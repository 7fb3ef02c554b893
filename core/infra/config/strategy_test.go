package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/filedepot/filedepot/core/depot"
)

func TestParseStrategyConfigDefaults(t *testing.T) {
	strategy, err := ParseStrategyConfig(nil)
	if err != nil {
		t.Fatalf("ParseStrategyConfig returned error: %v", err)
	}
	want := depot.DefaultStrategy()
	if strategy.MaxVersionsPerFile != want.MaxVersionsPerFile {
		t.Fatalf("unexpected max versions: %d", strategy.MaxVersionsPerFile)
	}
	if len(strategy.Layers) != len(want.Layers) {
		t.Fatalf("unexpected layer count: %d", len(strategy.Layers))
	}
}

func TestParseStrategyConfigOverrides(t *testing.T) {
	body := []byte(`auto_backup: false
versioning_enabled: true
max_versions_per_file: 3
compression_enabled: true
layers:
  - name: temporary
    max_files: 10
    max_bytes: 1048576
    retention: 30m
    auto_cleanup: true
  - name: persistent
    max_files: 50
`)
	strategy, err := ParseStrategyConfig(body)
	if err != nil {
		t.Fatalf("ParseStrategyConfig returned error: %v", err)
	}
	if strategy.AutoBackup {
		t.Fatalf("expected auto backup disabled")
	}
	if !strategy.CompressionEnabled {
		t.Fatalf("expected compression enabled")
	}
	if strategy.MaxVersionsPerFile != 3 {
		t.Fatalf("unexpected max versions: %d", strategy.MaxVersionsPerFile)
	}
	if strategy.CloudSyncEnabled {
		t.Fatalf("expected cloud sync to keep its default")
	}
	if len(strategy.Layers) != 2 {
		t.Fatalf("expected layer list to replace defaults, got %d layers", len(strategy.Layers))
	}
	if strategy.Layers[0].Retention != 30*time.Minute {
		t.Fatalf("unexpected retention: %v", strategy.Layers[0].Retention)
	}
	if !strategy.Layers[0].AutoCleanup {
		t.Fatalf("expected auto cleanup on temporary layer")
	}
	if strategy.Layers[1].MaxFiles != 50 || strategy.Layers[1].Retention != 0 {
		t.Fatalf("unexpected persistent layer: %+v", strategy.Layers[1])
	}
}

func TestParseStrategyConfigErrors(t *testing.T) {
	cases := map[string]string{
		"unknown field":          "max_version: 3\n",
		"bad retention":          "layers:\n  - name: temporary\n    retention: soon\n",
		"negative retention":     "layers:\n  - name: temporary\n    retention: -1h\n",
		"cleanup sans retention": "layers:\n  - name: temporary\n    auto_cleanup: true\n",
		"duplicate layer":        "layers:\n  - name: temporary\n  - name: temporary\n",
		"empty layer name":       "layers:\n  - name: \"\"\n",
		"zero max versions":      "max_versions_per_file: 0\n",
	}
	for name, body := range cases {
		if _, err := ParseStrategyConfig([]byte(body)); err == nil {
			t.Fatalf("expected error for %s", name)
		}
	}
}

func TestLoadStrategyConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategy.yaml")
	body := []byte("max_versions_per_file: 7\ncloud_sync_enabled: true\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	strategy, err := LoadStrategyConfig(path)
	if err != nil {
		t.Fatalf("LoadStrategyConfig returned error: %v", err)
	}
	if strategy.MaxVersionsPerFile != 7 {
		t.Fatalf("unexpected max versions: %d", strategy.MaxVersionsPerFile)
	}
	if !strategy.CloudSyncEnabled {
		t.Fatalf("expected cloud sync enabled")
	}

	if _, err := LoadStrategyConfig(filepath.Join(dir, "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := LoadStrategyConfig(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
