package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestLoad_PartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webtrail.yaml")
	data := "pending_ttl: 30s\nhistory_cap: 7\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PendingTTL != 30*time.Second {
		t.Errorf("PendingTTL = %v, want 30s", cfg.PendingTTL)
	}
	if cfg.HistoryCap != 7 {
		t.Errorf("HistoryCap = %d, want 7", cfg.HistoryCap)
	}
	if cfg.ScriptRingSize != Default().ScriptRingSize {
		t.Errorf("unset field not defaulted: %d", cfg.ScriptRingSize)
	}
	if cfg.CoalesceWindow != Default().CoalesceWindow {
		t.Errorf("unset field not defaulted: %v", cfg.CoalesceWindow)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webtrail.yaml")
	if err := os.WriteFile(path, []byte("history_cap: [not an int"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed config should be an error")
	}
}
