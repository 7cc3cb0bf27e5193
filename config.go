package dimflow

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/smilemakc/dimflow/internal/engine"
)

// EngineConfig is the engine's construction-time configuration: the plugin,
// a provider registry, concurrency/retry/timeout knobs, and optional
// pricing/circuit-breaker/logger overrides. Built with functional defaults
// via DefaultEngineConfig, matching the teacher's DefaultEngineConfig shape.
type EngineConfig = engine.EngineConfig

// PricingConfig enables cost accounting when set on EngineConfig.Pricing.
type PricingConfig = engine.PricingConfig

// ModelPricing is the per-million-token price for one model.
type ModelPricing = engine.ModelPricing

// CircuitBreakerConfig configures the optional per-provider circuit breaker.
type CircuitBreakerConfig = engine.CircuitBreakerConfig

// CircuitState is the state of a per-provider circuit breaker.
type CircuitState = engine.CircuitState

// Circuit breaker states.
const (
	CircuitClosed   = engine.CircuitClosed
	CircuitOpen     = engine.CircuitOpen
	CircuitHalfOpen = engine.CircuitHalfOpen
)

// DefaultEngineConfig returns the documented defaults: concurrency 5,
// maxRetries 3, retryDelay 1s, continueOnError true, timeout 60s.
func DefaultEngineConfig() EngineConfig {
	return engine.DefaultEngineConfig()
}

// DefaultCircuitBreakerConfig returns sensible circuit-breaker defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return engine.DefaultCircuitBreakerConfig()
}

// ParseConfig converts a map[string]any configuration (e.g. a
// ProviderRequest.Options or ProviderSelection.Options map) to a typed
// struct via a JSON marshal/unmarshal round trip.
func ParseConfig[T any](config map[string]any) (*T, error) {
	return engine.ParseConfig[T](config)
}

// WithLogger returns a copy of cfg using the given logger for all ambient
// logging (dispatcher, scheduler, backend caller, cost accountant
// warnings), instead of the default no-op logger.
func WithLogger(cfg EngineConfig, logger zerolog.Logger) EngineConfig {
	cfg.Logger = &logger
	return cfg
}

// WithDimensionTimeout returns a copy of cfg overriding the effective
// timeout for one dimension.
func WithDimensionTimeout(cfg EngineConfig, dimension string, d time.Duration) EngineConfig {
	out := make(map[string]time.Duration, len(cfg.DimensionTimeouts)+1)
	for k, v := range cfg.DimensionTimeouts {
		out[k] = v
	}
	out[dimension] = d
	cfg.DimensionTimeouts = out
	return cfg
}
