package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"lathe/internal/config"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Encode.Encoder != "aom" {
		t.Fatalf("default encoder = %q", cfg.Encode.Encoder)
	}
	if cfg.Scenes.MinSceneLen != 24 || cfg.Scenes.ExtraSplit != 240 {
		t.Fatalf("scene defaults = %+v", cfg.Scenes)
	}
	if cfg.TargetQuality.Probes != 4 || cfg.TargetQuality.ProbingRate != 1 {
		t.Fatalf("target quality defaults = %+v", cfg.TargetQuality)
	}
	if cfg.TargetQualityEnabled() {
		t.Fatal("target quality should be disabled by default")
	}
	if cfg.Encode.ChunkOrder != "long-to-short" {
		t.Fatalf("chunk order default = %q", cfg.Encode.ChunkOrder)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("logging defaults = %+v", cfg.Logging)
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lathe.toml")
	content := `
[encode]
encoder = "SVT-AV1"
workers = 8
chunk_method = "lsmash"

[target_quality]
target = 95.0
metric = "VMAF"
min_q = 20
max_q = 45

[logging]
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected file to be found")
	}
	if cfg.Encode.Encoder != "svt-av1" {
		t.Fatalf("encoder = %q", cfg.Encode.Encoder)
	}
	if cfg.Encode.Workers != 8 {
		t.Fatalf("workers = %d", cfg.Encode.Workers)
	}
	if !cfg.TargetQualityEnabled() {
		t.Fatal("target quality should be enabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []string{
		"[encode]\nencoder = \"av2\"\n",
		"[encode]\npasses = 3\n",
		"[encode]\nchunk_order = \"fifo\"\n",
		"[scenes]\nmin_scene_len = 0\n",
		"[scenes]\nextra_split = 10\nmin_scene_len = 24\n",
		"[target_quality]\nprobing_rate = 5\n",
		"[target_quality]\nmin_q = 50\nmax_q = 20\n",
		"[target_quality]\nprobing_statistic = \"percentile\"\n",
		"[logging]\nformat = \"xml\"\n",
	}
	for _, content := range cases {
		dir := t.TempDir()
		path := filepath.Join(dir, "lathe.toml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, _, _, err := config.Load(path); err == nil {
			t.Fatalf("expected error for config:\n%s", content)
		}
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config does not load: exists=%v err=%v", exists, err)
	}
}
