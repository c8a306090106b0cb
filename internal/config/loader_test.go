package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Model.Name != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.Model.Name)
	}
	if cfg.Orchestrator.MaxIterations != 8 || cfg.Orchestrator.MaxToolCalls != 16 {
		t.Errorf("orchestrator bounds = %+v", cfg.Orchestrator)
	}
	if cfg.Orchestrator.TotalTimeout != 2*time.Minute {
		t.Errorf("total timeout = %v", cfg.Orchestrator.TotalTimeout)
	}
	if cfg.Audit.Topic != "conversa.audit" {
		t.Errorf("audit topic = %q", cfg.Audit.Topic)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	file := `{"model":{"name":"custom-model","temperature":0.2},"provider":{"apiKey":"file-key"}}`
	if err := os.WriteFile(path, []byte(file), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONVERSA_CONFIG", path)
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Name != "custom-model" {
		t.Errorf("model = %q, want file value", cfg.Model.Name)
	}
	if cfg.Provider.APIKey != "file-key" {
		t.Errorf("api key = %q, want file value", cfg.Provider.APIKey)
	}
	// Fields the file omits keep their defaults.
	if cfg.Orchestrator.MaxIterations != 8 {
		t.Errorf("max iterations = %d, want default", cfg.Orchestrator.MaxIterations)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"model":{"name":"from-file"}}`), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONVERSA_CONFIG", path)
	t.Setenv("CONVERSA_MODEL_MODEL", "from-env")
	t.Setenv("CONVERSA_ORCHESTRATOR_MAX_ITERATIONS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Name != "from-env" {
		t.Errorf("model = %q, want env value", cfg.Model.Name)
	}
	if cfg.Orchestrator.MaxIterations != 3 {
		t.Errorf("max iterations = %d, want env value", cfg.Orchestrator.MaxIterations)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CONVERSA_CONFIG", filepath.Join(t.TempDir(), "nope", "config.json"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Name != "gpt-4o-mini" {
		t.Errorf("model = %q, want default", cfg.Model.Name)
	}
}

func TestLoadOpenAIKeyFallback(t *testing.T) {
	t.Setenv("CONVERSA_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	t.Setenv("CONVERSA_PROVIDER_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider.APIKey != "sk-fallback" {
		t.Errorf("api key = %q, want fallback", cfg.Provider.APIKey)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	t.Setenv("CONVERSA_CONFIG", path)

	cfg := DefaultConfig()
	cfg.Model.Name = "saved-model"
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	var got Config
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Model.Name != "saved-model" {
		t.Errorf("model = %q", got.Model.Name)
	}
}
