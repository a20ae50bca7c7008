package depot

import (
	"path/filepath"
	"testing"
)

func withEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	// ensure a clean slate: unset via empty string, which LoadConfig
	// treats the same as absent for every field it reads.
	withEnv(t, map[string]string{"DEPOT_PATH": "", "LOAD_PATH": "", "OFFLINE": "", "CONCURRENCY": ""})
	cfg := LoadConfig()
	if cfg.Concurrency != 8 {
		t.Errorf("default Concurrency = %d, want 8", cfg.Concurrency)
	}
	if cfg.Offline {
		t.Error("default Offline should be false")
	}
	if len(cfg.DepotPath) != 0 || len(cfg.LoadPath) != 0 {
		t.Errorf("default paths should be empty, got %+v", cfg)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	sep := string(filepath.ListSeparator)
	withEnv(t, map[string]string{
		"DEPOT_PATH":  "/a" + sep + "/b",
		"LOAD_PATH":   "/c",
		"OFFLINE":     "true",
		"CONCURRENCY": "4",
	})
	cfg := LoadConfig()
	if len(cfg.DepotPath) != 2 || cfg.DepotPath[0] != "/a" || cfg.DepotPath[1] != "/b" {
		t.Errorf("DepotPath = %v", cfg.DepotPath)
	}
	if len(cfg.LoadPath) != 1 || cfg.LoadPath[0] != "/c" {
		t.Errorf("LoadPath = %v", cfg.LoadPath)
	}
	if !cfg.Offline {
		t.Error("Offline should be true")
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Concurrency)
	}
}

func TestLoadConfigInvalidConcurrencyFallsBackToDefault(t *testing.T) {
	withEnv(t, map[string]string{"CONCURRENCY": "not-a-number", "DEPOT_PATH": "", "LOAD_PATH": "", "OFFLINE": ""})
	cfg := LoadConfig()
	if cfg.Concurrency != 8 {
		t.Errorf("invalid CONCURRENCY should fall back to 8, got %d", cfg.Concurrency)
	}
}
