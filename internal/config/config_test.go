package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RETRIEVAL_TOP_K", "")
	t.Setenv("RETRIEVAL_VECTOR_WEIGHT", "")
	t.Setenv("RETRIEVAL_LEXICAL_WEIGHT", "")
	t.Setenv("RETRIEVAL_OVER_FETCH", "")
	t.Setenv("MEMORY_WINDOW", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RetrievalTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.RetrievalTopK)
	}
	if cfg.RetrievalVectorWeight != 0.7 {
		t.Fatalf("expected default vector weight 0.7, got %v", cfg.RetrievalVectorWeight)
	}
	if cfg.RetrievalLexicalWeight != 0.3 {
		t.Fatalf("expected default lexical weight 0.3, got %v", cfg.RetrievalLexicalWeight)
	}
	if cfg.RetrievalOverFetch != 3 {
		t.Fatalf("expected default over-fetch 3, got %d", cfg.RetrievalOverFetch)
	}
	if cfg.MemoryWindow != 8 {
		t.Fatalf("expected default memory window 8, got %d", cfg.MemoryWindow)
	}
}

func TestLoadParsesEnvironmentOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RETRIEVAL_TOP_K", "8")
	t.Setenv("RETRIEVAL_VECTOR_WEIGHT", "0.6")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("VECTOR_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RetrievalTopK != 8 {
		t.Fatalf("expected top k 8, got %d", cfg.RetrievalTopK)
	}
	if cfg.RetrievalVectorWeight != 0.6 {
		t.Fatalf("expected vector weight 0.6, got %v", cfg.RetrievalVectorWeight)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.VectorBackend != "memory" {
		t.Fatalf("expected vector backend memory, got %q", cfg.VectorBackend)
	}
}

func TestLoadOverlaysConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docuchat.yaml")
	content := []byte("retrieval_top_k: 7\nollama_gen_model: mistral:7b\napi_rate_limit_rps: 4\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RETRIEVAL_TOP_K", "3")
	t.Setenv("OLLAMA_EMBED_MODEL", "bge-m3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RetrievalTopK != 7 {
		t.Fatalf("file override should win over env, got top k %d", cfg.RetrievalTopK)
	}
	if cfg.OllamaGenModel != "mistral:7b" {
		t.Fatalf("expected gen model from file, got %q", cfg.OllamaGenModel)
	}
	if cfg.OllamaEmbedModel != "bge-m3" {
		t.Fatalf("env value without file override should survive, got %q", cfg.OllamaEmbedModel)
	}
	if cfg.APIRateLimitRPS != 4 {
		t.Fatalf("expected rate limit from file, got %v", cfg.APIRateLimitRPS)
	}
}

func TestLoadRejectsMalformedConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("retrieval_top_k: [not an int"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed config file")
	}
}
