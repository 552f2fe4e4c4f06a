// Package config provides environment configuration for go-avatar commands.
//
// Credentials are never compiled in. They come from the process environment
// or from an optional .env file in the working directory.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults used when the environment does not override them.
const (
	DefaultPort        = "8090"
	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultLLMTimeout  = 30 * time.Second
	DefaultLogLevel    = "info"
)

// Env is the environment-derived configuration shared by the binaries.
type Env struct {
	GeminiAPIKey      string
	GeminiAccessToken string
	GeminiModel       string
	LLMTimeout        time.Duration
	LogLevel          string
	Port              string
}

// HasGemini reports whether any Gemini credential was supplied.
func (e Env) HasGemini() bool {
	return e.GeminiAPIKey != "" || e.GeminiAccessToken != ""
}

// LoadDotEnv loads the given .env files (".env" when none are named) into
// the process environment. Variables already set win. A missing file is
// not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// Load reads the avatar environment.
func Load() Env {
	return Env{
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiAccessToken: os.Getenv("GEMINI_ACCESS_TOKEN"),
		GeminiModel:       String("GEMINI_MODEL", DefaultGeminiModel),
		LLMTimeout:        Duration("LLM_TIMEOUT", DefaultLLMTimeout),
		LogLevel:          String("LOG_LEVEL", DefaultLogLevel),
		Port:              String("PORT", DefaultPort),
	}
}

// String returns the env var or def when unset or blank.
func String(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Int returns the env var parsed as an int, or def.
func Int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Duration returns the env var parsed with time.ParseDuration, or def.
func Duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
