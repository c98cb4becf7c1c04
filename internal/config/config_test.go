package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.MeteredBudgetBytes != def.MeteredBudgetBytes {
		t.Errorf("MeteredBudgetBytes = %d, want %d", cfg.MeteredBudgetBytes, def.MeteredBudgetBytes)
	}
	if time.Duration(cfg.StaleAfter) != 6*time.Hour {
		t.Errorf("StaleAfter = %v, want 6h", time.Duration(cfg.StaleAfter))
	}
	if cfg.KVBackend != "sqlite" {
		t.Errorf("KVBackend = %q, want sqlite", cfg.KVBackend)
	}
	if cfg.Network != "auto" {
		t.Errorf("Network = %q, want auto", cfg.Network)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{
		"photoset_id": "72157",
		"metered_budget_bytes": 262144,
		"stale_after": "5m",
		"display_width": 320,
		"display_height": 480,
		"network": "metered"
	}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PhotosetID != "72157" {
		t.Errorf("PhotosetID = %q, want %q", cfg.PhotosetID, "72157")
	}
	if cfg.MeteredBudgetBytes != 262144 {
		t.Errorf("MeteredBudgetBytes = %d, want 262144", cfg.MeteredBudgetBytes)
	}
	if time.Duration(cfg.StaleAfter) != 5*time.Minute {
		t.Errorf("StaleAfter = %v, want 5m", time.Duration(cfg.StaleAfter))
	}
	if cfg.DisplayWidth != 320 || cfg.DisplayHeight != 480 {
		t.Errorf("Display = %dx%d, want 320x480", cfg.DisplayWidth, cfg.DisplayHeight)
	}
	if cfg.Network != "metered" {
		t.Errorf("Network = %q, want metered", cfg.Network)
	}
	// Untouched defaults survive the merge
	if cfg.APIBaseURL != DefaultConfig().APIBaseURL {
		t.Errorf("APIBaseURL = %q, want default", cfg.APIBaseURL)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{not json}`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"stale_after": "soon"}`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error for bad duration, got nil")
	}
}

func TestLoad_InvalidEnums(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"kv backend", `{"kv_backend": "redis"}`},
		{"network", `{"network": "satellite"}`},
		{"negative budget", `{"metered_budget_bytes": -1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			writeConfig(t, tmpDir, tt.body)
			if _, err := Load(tmpDir); err == nil {
				t.Fatalf("Load() expected error, got nil")
			}
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"photoset_id": "from-file", "api_key": "file-key"}`)

	t.Setenv("FUNNIER_PHOTOSET_ID", "from-env")
	t.Setenv("FUNNIER_STALE_AFTER", "90s")
	t.Setenv("FUNNIER_DISABLED_TOOLS", "photoset_sync,photoset_warm")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PhotosetID != "from-env" {
		t.Errorf("PhotosetID = %q, want from-env", cfg.PhotosetID)
	}
	if cfg.APIKey != "file-key" {
		t.Errorf("APIKey = %q, want file-key (not overridden)", cfg.APIKey)
	}
	if time.Duration(cfg.StaleAfter) != 90*time.Second {
		t.Errorf("StaleAfter = %v, want 90s", time.Duration(cfg.StaleAfter))
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools = %v, want 2 entries", cfg.DisabledTools)
	}
}

func TestLoad_DisabledToolsEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 0 {
		t.Fatalf("DisabledTools = %v, want nil or empty", cfg.DisabledTools)
	}
}

func TestMerge_ArraysDeduplicated(t *testing.T) {
	base := &Config{DisabledTools: []string{"photoset_sync", " photoset_warm "}}
	overlay := &Config{DisabledTools: []string{"photoset_warm", "photoset_history", ""}}

	result := Merge(base, overlay)

	want := []string{"photoset_sync", "photoset_warm", "photoset_history"}
	if len(result.DisabledTools) != len(want) {
		t.Fatalf("DisabledTools = %v, want %v", result.DisabledTools, want)
	}
	for i, w := range want {
		if result.DisabledTools[i] != w {
			t.Errorf("DisabledTools[%d] = %q, want %q", i, result.DisabledTools[i], w)
		}
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	if !Merge(&Config{Metered: true}, &Config{}).Metered {
		t.Error("Metered = false, want true from base")
	}
	if !Merge(&Config{}, &Config{Metered: true}).Metered {
		t.Error("Metered = false, want true from overlay")
	}
}

func TestDuration_JSONRoundTrip(t *testing.T) {
	d := Duration(90 * time.Minute)
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"1h30m0s"` {
		t.Errorf("Marshal() = %s, want \"1h30m0s\"", data)
	}

	var back Duration
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back != d {
		t.Errorf("round trip = %v, want %v", back, d)
	}
}
