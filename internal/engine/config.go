package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ModelPricing is the per-million-token price for one model.
type ModelPricing struct {
	InputPer1M  float64 `json:"inputPer1M"`
	OutputPer1M float64 `json:"outputPer1M"`
}

// PricingConfig enables the Cost Accountant (C9) when set on EngineConfig.
type PricingConfig struct {
	Models      map[string]ModelPricing
	LastUpdated *time.Time
}

// EngineConfig is the engine's construction-time configuration (recognized
// keys per spec.md §6), built with functional defaults matching
// internal/application/executor/engine.go's DefaultEngineConfig shape.
type EngineConfig struct {
	Plugin    Plugin
	Providers Registry
	Registry  Registry

	Concurrency       int
	MaxRetries        int
	RetryDelay        time.Duration
	ContinueOnError   bool
	Timeout           time.Duration
	DimensionTimeouts map[string]time.Duration

	Pricing *PricingConfig

	EnableCircuitBreaker bool
	CircuitBreaker       CircuitBreakerConfig

	Logger *zerolog.Logger
}

// DefaultEngineConfig returns the documented defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Concurrency:          5,
		MaxRetries:           3,
		RetryDelay:           1 * time.Second,
		ContinueOnError:      true,
		Timeout:              60 * time.Second,
		DimensionTimeouts:    map[string]time.Duration{},
		EnableCircuitBreaker: false,
		CircuitBreaker:       DefaultCircuitBreakerConfig(),
	}
}

// registry resolves the effective provider registry, accepting either
// Providers or Registry (both recognized per spec.md §6).
func (c EngineConfig) registry() Registry {
	if c.Providers != nil {
		return c.Providers
	}
	return c.Registry
}

// validate checks the engine configuration, mirroring §6/§7's error
// taxonomy.
func (c EngineConfig) validate() error {
	if c.Plugin == nil {
		return &ConfigurationError{Component: "engine", Message: "plugin is required"}
	}
	if c.registry() == nil {
		return &NoProvidersError{}
	}
	if c.Concurrency <= 0 {
		return &InvalidConcurrencyError{Value: c.Concurrency}
	}
	return nil
}

// effectiveTimeout returns the per-dimension timeout override, if any,
// otherwise the engine-wide default.
func (c EngineConfig) effectiveTimeout(dimension string) time.Duration {
	if d, ok := c.DimensionTimeouts[dimension]; ok {
		return d
	}
	return c.Timeout
}

func (c EngineConfig) logger() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}
	return zerolog.Nop()
}

// ParseConfig converts a map[string]any configuration (e.g. a
// ProviderRequest.Options or ProviderSelection.Options map) to a typed
// struct via a JSON marshal/unmarshal round trip. Exported for provider and
// plugin authors. Grounded on
// internal/application/executor/config_parser.go.
func ParseConfig[T any](config map[string]any) (*T, error) {
	if config == nil {
		return nil, fmt.Errorf("config is nil")
	}
	data, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &result, nil
}
