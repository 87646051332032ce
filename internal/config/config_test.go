package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Sources.Demo.Enabled {
		t.Error("demo source should be enabled by default")
	}
	if !cfg.Sources.Docs.Enabled {
		t.Error("docs source should be enabled by default")
	}
	if cfg.Sources.Jira.Enabled {
		t.Error("jira should be disabled by default")
	}
	if cfg.Cache.TTL() != 15*time.Minute {
		t.Errorf("cache TTL = %v, want 15m", cfg.Cache.TTL())
	}
	if cfg.Preprocessor.TriggerStatus != "Ready for Development" {
		t.Errorf("trigger status = %q", cfg.Preprocessor.TriggerStatus)
	}
}

func TestLoad_ReadsFileAndKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
sources:
  jira:
    enabled: true
    base_url: https://example.atlassian.net
    project: PROJ
cache:
  ttl_minutes: 30
preprocessor:
  enabled: true
  projects: [PROJ, TEAM]
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Sources.Jira.Enabled {
		t.Error("jira should be enabled from file")
	}
	if cfg.Cache.TTLMinutes != 30 {
		t.Errorf("ttl_minutes = %d, want 30", cfg.Cache.TTLMinutes)
	}
	// Unset keys fall back to defaults.
	if cfg.Cache.MaxSize != 100 {
		t.Errorf("max_size = %d, want default 100", cfg.Cache.MaxSize)
	}
	if cfg.Fetch.PerSourceTimeout() != 30*time.Second {
		t.Errorf("per-source timeout = %v, want default 30s", cfg.Fetch.PerSourceTimeout())
	}
	if len(cfg.Preprocessor.Projects) != 2 {
		t.Errorf("projects = %v, want 2 entries", cfg.Preprocessor.Projects)
	}
}

func TestLoad_ExpandsEnvSecrets(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_JIRA_TOKEN", "tok-123")
	content := `
sources:
  jira:
    enabled: true
    api_token: ${TEST_JIRA_TOKEN}
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sources.Jira.APIToken != "tok-123" {
		t.Errorf("api_token = %q, want expanded env value", cfg.Sources.Jira.APIToken)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(": not yaml ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestWriteExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName+".example")
	if err := WriteExample(path); err != nil {
		t.Fatalf("WriteExample: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"${JIRA_API_TOKEN}", "${ANTHROPIC_API_KEY}", "trigger_status"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("example config missing %q", want)
		}
	}

	if err := WriteExample(path); err == nil {
		t.Error("expected error overwriting existing example")
	}
}
