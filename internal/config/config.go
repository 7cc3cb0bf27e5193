// Package config is a demo-only env-var loader, in the teacher's own minimal
// os.Getenv style (internal/config/config.go). No package in this repository
// imports it. It is not part of the core engine: engine
// configuration is a plain Go struct (EngineConfig) built with functional
// defaults, per spec.md §6.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the settings read from the
// environment: which OpenAI model/key to use and the engine's
// concurrency/retry knobs.
type Config struct {
	OpenAIAPIKey string
	OpenAIModel  string
	LogLevel     string
	Concurrency  int
	MaxRetries   int
	RetryDelay   time.Duration
	Timeout      time.Duration
}

// Load reads Config from the environment, falling back to the documented
// engine defaults (spec.md §6) for anything unset.
func Load() *Config {
	return &Config{
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Concurrency:  getEnvInt("DIMFLOW_CONCURRENCY", 5),
		MaxRetries:   getEnvInt("DIMFLOW_MAX_RETRIES", 3),
		RetryDelay:   getEnvDuration("DIMFLOW_RETRY_DELAY", 1*time.Second),
		Timeout:      getEnvDuration("DIMFLOW_TIMEOUT", 60*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
