package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Qdrant.Host != "localhost" || cfg.Qdrant.Port != 6333 {
		t.Errorf("qdrant defaults = %s:%d", cfg.Qdrant.Host, cfg.Qdrant.Port)
	}
	if cfg.Run.MaxRank != 3 || cfg.Run.MinScore != 0.3 {
		t.Errorf("run defaults = %d/%f", cfg.Run.MaxRank, cfg.Run.MinScore)
	}
	if cfg.Run.SearchMode != "dense" {
		t.Errorf("search mode default = %s, want dense", cfg.Run.SearchMode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qst.yaml")
	content := `
qdrant:
  collection: my_collection
  host: qdrant.internal
run:
  max_rank: 5
  concurrency: 8
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	// Env overrides the file.
	t.Setenv("QDRANT_HOST", "override.example")
	t.Setenv("QDRANT_PORT", "7000")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Qdrant.Collection != "my_collection" {
		t.Errorf("collection = %s", cfg.Qdrant.Collection)
	}
	if cfg.Run.MaxRank != 5 || cfg.Run.Concurrency != 8 {
		t.Errorf("run = %d/%d", cfg.Run.MaxRank, cfg.Run.Concurrency)
	}
	if cfg.Qdrant.Host != "override.example" || cfg.Qdrant.Port != 7000 {
		t.Errorf("env override lost: %s:%d", cfg.Qdrant.Host, cfg.Qdrant.Port)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing collection", func(c *Config) { c.Qdrant.Collection = "" }},
		{"openai without key", func(c *Config) { c.Embedding.Provider = "openai" }},
		{"zero max rank", func(c *Config) { c.Run.MaxRank = 0 }},
		{"zero concurrency", func(c *Config) { c.Run.Concurrency = 0 }},
		{"bad search mode", func(c *Config) { c.Run.SearchMode = "fuzzy" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
