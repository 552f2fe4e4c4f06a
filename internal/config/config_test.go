package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"GEMINI_API_KEY", "GEMINI_ACCESS_TOKEN", "GEMINI_MODEL", "LLM_TIMEOUT", "LOG_LEVEL", "PORT"} {
		t.Setenv(k, "")
	}

	env := Load()
	if env.HasGemini() {
		t.Error("HasGemini: got true with no credentials")
	}
	if env.GeminiModel != DefaultGeminiModel {
		t.Errorf("GeminiModel: got %q, want %q", env.GeminiModel, DefaultGeminiModel)
	}
	if env.LLMTimeout != DefaultLLMTimeout {
		t.Errorf("LLMTimeout: got %v, want %v", env.LLMTimeout, DefaultLLMTimeout)
	}
	if env.Port != DefaultPort {
		t.Errorf("Port: got %q, want %q", env.Port, DefaultPort)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("GEMINI_MODEL", "gemini-pro")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("PORT", "9000")

	env := Load()
	if !env.HasGemini() {
		t.Error("HasGemini: got false with API key set")
	}
	if env.GeminiModel != "gemini-pro" {
		t.Errorf("GeminiModel: got %q", env.GeminiModel)
	}
	if env.LLMTimeout != 5*time.Second {
		t.Errorf("LLMTimeout: got %v", env.LLMTimeout)
	}
	if env.Port != "9000" {
		t.Errorf("Port: got %q", env.Port)
	}
}

func TestDurationAndIntFallbacks(t *testing.T) {
	t.Setenv("X_DUR", "nonsense")
	t.Setenv("X_INT", "12a")

	if got := Duration("X_DUR", time.Second); got != time.Second {
		t.Errorf("Duration: got %v, want 1s", got)
	}
	if got := Int("X_INT", 7); got != 7 {
		t.Errorf("Int: got %d, want 7", got)
	}
	t.Setenv("X_INT", "42")
	if got := Int("X_INT", 7); got != 42 {
		t.Errorf("Int: got %d, want 42", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("AVATAR_DOTENV_PROBE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	os.Unsetenv("AVATAR_DOTENV_PROBE")
	t.Cleanup(func() { os.Unsetenv("AVATAR_DOTENV_PROBE") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("AVATAR_DOTENV_PROBE"); got != "from-file" {
		t.Errorf("probe: got %q, want from-file", got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing file: got %v, want nil", err)
	}
}
