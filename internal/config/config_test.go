package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loopforge/internal/config"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, path, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if path == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Render.MaxConcurrent != 2 {
		t.Fatalf("expected default max_concurrent 2, got %d", cfg.Render.MaxConcurrent)
	}
	if cfg.Workflow.UploadPollInterval != 20 {
		t.Fatalf("expected default upload poll interval 20, got %d", cfg.Workflow.UploadPollInterval)
	}
	if cfg.Upload.PrivacyStatus != "private" {
		t.Fatalf("expected default privacy private, got %q", cfg.Upload.PrivacyStatus)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
upload_dir = "` + filepath.Join(dir, "up") + `"
output_dir = "` + filepath.Join(dir, "out") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[render]
max_concurrent = 4

[workflow]
upload_poll_interval = 7
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Render.MaxConcurrent != 4 {
		t.Fatalf("expected max_concurrent 4, got %d", cfg.Render.MaxConcurrent)
	}
	if cfg.Workflow.UploadPollInterval != 7 {
		t.Fatalf("expected upload poll interval 7, got %d", cfg.Workflow.UploadPollInterval)
	}
	// Unset values keep defaults.
	if cfg.Render.FFmpegBinary != "ffmpeg" {
		t.Fatalf("expected default ffmpeg binary, got %q", cfg.Render.FFmpegBinary)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[upload]
privacy_status = "broadcast"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "privacy_status") {
		t.Fatalf("expected privacy_status in error, got: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.UploadDir = filepath.Join(dir, "up")
	cfg.Paths.OutputDir = filepath.Join(dir, "out")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, d := range []string{cfg.Paths.UploadDir, cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(d)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist: %v", d, err)
		}
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error on existing file")
	}

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load of sample failed: %v", err)
	}
	if cfg.Upload.CategoryID != "22" {
		t.Fatalf("sample should carry default category, got %q", cfg.Upload.CategoryID)
	}
}
