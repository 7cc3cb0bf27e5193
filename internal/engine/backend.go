package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// BackendCaller invokes a chosen backend with timeout, retries, exponential
// backoff, and fallback providers (C5).
//
// The exponential-backoff schedule (retryDelay * 2^attemptIndex, no jitter so
// retry timing stays deterministic for tests) is grounded on
// internal/application/executor/retry.go's calculateDelay; the optional
// per-provider circuit breaker is grounded on that package's
// circuit_breaker.go.
type BackendCaller struct {
	registry   Registry
	dispatcher *Dispatcher
	cfg        EngineConfig
	breakers   *CircuitBreakerRegistry
	log        zerolog.Logger
}

// NewBackendCaller builds a BackendCaller.
func NewBackendCaller(registry Registry, dispatcher *Dispatcher, cfg EngineConfig) *BackendCaller {
	var breakers *CircuitBreakerRegistry
	if cfg.EnableCircuitBreaker {
		breakers = NewCircuitBreakerRegistry(cfg.CircuitBreaker)
	}
	return &BackendCaller{registry: registry, dispatcher: dispatcher, cfg: cfg, breakers: breakers, log: cfg.logger()}
}

// Outcome is the result of a full Call: the final response (if any
// provider eventually succeeded) plus bookkeeping for metadata
// augmentation.
type Outcome struct {
	Response *ProviderResponse
	Provider string
	Attempts int
	Err      error
}

// Call runs the attempt/retry/fallback pipeline for one dimension against
// selection.Provider, falling back through selection.Fallbacks on
// exhaustion.
func (b *BackendCaller) Call(ctx context.Context, dimension string, req *ProviderRequest, selection ProviderSelection) Outcome {
	providers := append([]string{selection.Provider}, selection.Fallbacks...)
	tried := make([]string, 0, len(providers))

	currentReq := req
	for idx, providerName := range providers {
		if idx > 0 {
			decision := b.dispatcher.HandleProviderFallback(ctx, FallbackQuery{
				Dimension:    dimension,
				FromProvider: providers[idx-1],
				ToProvider:   providerName,
				Request:      currentReq,
			})
			if decision.Request != nil {
				currentReq = decision.Request
			}
			if decision.RetryAfter > 0 {
				if !sleepOrCancel(ctx, decision.RetryAfter) {
					return Outcome{Err: ctx.Err(), Attempts: 0}
				}
			}
		}

		tried = append(tried, providerName)
		resp, attempts, err := b.callWithRetries(ctx, dimension, providerName, currentReq)
		if err == nil {
			return Outcome{Response: resp, Provider: providerName, Attempts: attempts}
		}
		b.log.Warn().Str("dimension", dimension).Str("provider", providerName).Err(err).Msg("provider exhausted, trying fallback")
	}

	return Outcome{Err: &ProviderExhaustedError{Dimension: dimension, Tried: tried}}
}

// callWithRetries runs the attempt loop against a single provider, retrying
// up to cfg.MaxRetries times with exponential backoff.
func (b *BackendCaller) callWithRetries(ctx context.Context, dimension, providerName string, req *ProviderRequest) (*ProviderResponse, int, error) {
	provider, ok := b.registry.Get(providerName)
	if !ok {
		return nil, 0, fmt.Errorf("unknown provider %q", providerName)
	}

	currentReq := req
	var lastErr error
	attempts := 0

	for attempt := 0; ; attempt++ {
		attempts++
		resp, err := b.attempt(ctx, provider, currentReq)
		if err == nil {
			return resp, attempts, nil
		}
		lastErr = err

		if attempt >= b.cfg.MaxRetries {
			break
		}

		delay := backoffDelay(b.cfg.RetryDelay, attempt)
		decision := b.dispatcher.HandleRetry(ctx, RetryQuery{
			Dimension: dimension,
			Provider:  providerName,
			Attempt:   attempt + 1,
			Delay:     delay,
			Cause:     err,
			Request:   currentReq,
		})
		if decision.Request != nil {
			currentReq = decision.Request
		}
		if !sleepOrCancel(ctx, decision.Delay) {
			return nil, attempts, ctx.Err()
		}
	}

	return nil, attempts, lastErr
}

// attempt runs one provider invocation: beforeProviderExecute,
// Provider.Execute (through the circuit breaker if enabled), then
// afterProviderExecute.
func (b *BackendCaller) attempt(ctx context.Context, provider Provider, req *ProviderRequest) (*ProviderResponse, error) {
	req = b.dispatcher.BeforeProviderExecute(ctx, req)

	var cb *CircuitBreaker
	if b.breakers != nil {
		cb = b.breakers.Get(provider.Name())
		if err := cb.Allow(provider.Name()); err != nil {
			return nil, err
		}
	}

	resp, err := provider.Execute(ctx, req)
	if err != nil {
		if cb != nil {
			cb.RecordFailure()
		}
		return nil, err
	}
	if resp == nil {
		resp = &ProviderResponse{}
	}
	if resp.Error != "" {
		if cb != nil {
			cb.RecordFailure()
		}
		return nil, fmt.Errorf("%s", resp.Error)
	}
	if cb != nil {
		cb.RecordSuccess()
	}

	resp = b.dispatcher.AfterProviderExecute(ctx, resp)
	return resp, nil
}

// backoffDelay computes retryDelay * 2^attemptIndex with no jitter, per
// spec.md §8 scenario 4's literal retry-timing expectations.
func backoffDelay(base time.Duration, attemptIndex int) time.Duration {
	delay := float64(base) * math.Pow(2, float64(attemptIndex))
	return time.Duration(delay)
}

func sleepOrCancel(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
