package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher is the single funnel for all plugin callbacks (C3). Every hook
// invocation either runs the plugin's implementation or falls back to the
// documented default; on failure, fatal hooks propagate and recoverable
// hooks log, report through onError, and fall back to the default.
//
// Grounded on internal/application/executor/callback.go's uniform
// processor-call shape and internal/infrastructure/monitoring/observer.go's
// ObserverManager error-containment pattern, generalized from a single
// callback processor / fixed observer interface to a resolve-by-key hook
// table.
type Dispatcher struct {
	hooks   *Hooks
	onError func(tag string, err error)
	log     zerolog.Logger
}

// NewDispatcher builds a Dispatcher. hooks may be nil (plugin with no
// optional hooks); onError may be nil (errors are only logged).
func NewDispatcher(hooks *Hooks, onError func(tag string, err error), log zerolog.Logger) *Dispatcher {
	return &Dispatcher{hooks: hooks, onError: onError, log: log}
}

func (d *Dispatcher) reportRecoverable(tag string, err error) {
	d.log.Warn().Str("hook", tag).Err(err).Msg("recoverable hook failure")
	if d.onError != nil {
		d.onError(tag, err)
	}
}

// BeforeProcessStart is fatal: a hook error propagates to the caller.
func (d *Dispatcher) BeforeProcessStart(ctx context.Context, sections []Section, metadata map[string]any) (*BeforeProcessStartResult, error) {
	if d.hooks == nil || d.hooks.BeforeProcessStart == nil {
		return nil, nil
	}
	res, err := d.hooks.BeforeProcessStart(ctx, sections, metadata)
	if err != nil {
		return nil, &HookError{Hook: "beforeProcessStart", Cause: err}
	}
	return res, nil
}

// AfterProcessComplete is recoverable; default is the unchanged result.
func (d *Dispatcher) AfterProcessComplete(ctx context.Context, result *ProcessResult) *ProcessResult {
	if d.hooks == nil || d.hooks.AfterProcessComplete == nil {
		return result
	}
	replacement, err := d.hooks.AfterProcessComplete(ctx, result)
	if err != nil {
		d.reportRecoverable("afterProcessComplete", err)
		return result
	}
	if replacement == nil {
		return result
	}
	return replacement
}

// HandleProcessFailure is recoverable; default is to propagate the original
// cause (ok=false).
func (d *Dispatcher) HandleProcessFailure(ctx context.Context, partial *ProcessResult, cause error) (replacement *ProcessResult, ok bool) {
	if d.hooks == nil || d.hooks.HandleProcessFailure == nil {
		return nil, false
	}
	res, err := d.hooks.HandleProcessFailure(ctx, partial, cause)
	if err != nil {
		d.reportRecoverable("handleProcessFailure", err)
		return nil, false
	}
	if res == nil {
		return nil, false
	}
	return res, true
}

// DefineDependencies is fatal. Default is an empty dependency map.
func (d *Dispatcher) DefineDependencies(ctx context.Context) (map[string][]string, error) {
	if d.hooks == nil || d.hooks.DefineDependencies == nil {
		return map[string][]string{}, nil
	}
	deps, err := d.hooks.DefineDependencies(ctx)
	if err != nil {
		return nil, &HookError{Hook: "defineDependencies", Cause: err}
	}
	if deps == nil {
		deps = map[string][]string{}
	}
	return deps, nil
}

// TransformDependencies is recoverable; default is the incoming view
// unchanged.
func (d *Dispatcher) TransformDependencies(ctx context.Context, dimension string, view DependenciesView) DependenciesView {
	if d.hooks == nil || d.hooks.TransformDependencies == nil {
		return view
	}
	out, err := d.hooks.TransformDependencies(ctx, dimension, view)
	if err != nil {
		d.reportRecoverable("transformDependencies", err)
		return view
	}
	if out == nil {
		return view
	}
	return out
}

// ShouldSkipSectionDimension is recoverable; default is false (do not skip).
func (d *Dispatcher) ShouldSkipSectionDimension(ctx context.Context, q SkipSectionQuery) (bool, string) {
	if d.hooks == nil || d.hooks.ShouldSkipSectionDimension == nil {
		return false, ""
	}
	skip, reason, err := d.hooks.ShouldSkipSectionDimension(ctx, q)
	if err != nil {
		d.reportRecoverable("shouldSkipSectionDimension", err)
		return false, ""
	}
	return skip, reason
}

// ShouldSkipGlobalDimension is recoverable; default is false (do not skip).
func (d *Dispatcher) ShouldSkipGlobalDimension(ctx context.Context, q SkipGlobalQuery) (bool, string) {
	if d.hooks == nil || d.hooks.ShouldSkipGlobalDimension == nil {
		return false, ""
	}
	skip, reason, err := d.hooks.ShouldSkipGlobalDimension(ctx, q)
	if err != nil {
		d.reportRecoverable("shouldSkipGlobalDimension", err)
		return false, ""
	}
	return skip, reason
}

// BeforeDimensionExecute is recoverable; it has no return value to default.
func (d *Dispatcher) BeforeDimensionExecute(ctx context.Context, dimension string, scope Scope, sectionIndex int) {
	if d.hooks == nil || d.hooks.BeforeDimensionExecute == nil {
		return
	}
	if err := d.hooks.BeforeDimensionExecute(ctx, dimension, scope, sectionIndex); err != nil {
		d.reportRecoverable("beforeDimensionExecute", err)
	}
}

// AfterDimensionExecute is recoverable; it has no return value to default.
func (d *Dispatcher) AfterDimensionExecute(ctx context.Context, dimension string, scope Scope, sectionIndex int, duration time.Duration, provider string) {
	if d.hooks == nil || d.hooks.AfterDimensionExecute == nil {
		return
	}
	if err := d.hooks.AfterDimensionExecute(ctx, dimension, scope, sectionIndex, duration, provider); err != nil {
		d.reportRecoverable("afterDimensionExecute", err)
	}
}

// BeforeProviderExecute is recoverable; default is the incoming request.
func (d *Dispatcher) BeforeProviderExecute(ctx context.Context, req *ProviderRequest) *ProviderRequest {
	if d.hooks == nil || d.hooks.BeforeProviderExecute == nil {
		return req
	}
	out, err := d.hooks.BeforeProviderExecute(ctx, req)
	if err != nil {
		d.reportRecoverable("beforeProviderExecute", err)
		return req
	}
	if out == nil {
		return req
	}
	return out
}

// AfterProviderExecute is recoverable; default is the incoming response.
func (d *Dispatcher) AfterProviderExecute(ctx context.Context, resp *ProviderResponse) *ProviderResponse {
	if d.hooks == nil || d.hooks.AfterProviderExecute == nil {
		return resp
	}
	out, err := d.hooks.AfterProviderExecute(ctx, resp)
	if err != nil {
		d.reportRecoverable("afterProviderExecute", err)
		return resp
	}
	if out == nil {
		return resp
	}
	return out
}

// HandleRetry is recoverable; default is the incoming delay/request
// unchanged.
func (d *Dispatcher) HandleRetry(ctx context.Context, q RetryQuery) RetryDecision {
	def := RetryDecision{Delay: q.Delay, Request: q.Request}
	if d.hooks == nil || d.hooks.HandleRetry == nil {
		return def
	}
	dec, err := d.hooks.HandleRetry(ctx, q)
	if err != nil {
		d.reportRecoverable("handleRetry", err)
		return def
	}
	if dec.Request == nil {
		dec.Request = q.Request
	}
	if dec.Delay == 0 {
		dec.Delay = q.Delay
	}
	return dec
}

// HandleProviderFallback is recoverable; default is the incoming
// retry-after/request unchanged.
func (d *Dispatcher) HandleProviderFallback(ctx context.Context, q FallbackQuery) FallbackDecision {
	def := FallbackDecision{RetryAfter: q.RetryAfter, Request: q.Request}
	if d.hooks == nil || d.hooks.HandleProviderFallback == nil {
		return def
	}
	dec, err := d.hooks.HandleProviderFallback(ctx, q)
	if err != nil {
		d.reportRecoverable("handleProviderFallback", err)
		return def
	}
	if dec.Request == nil {
		dec.Request = q.Request
	}
	return dec
}

// HandleDimensionFailure is recoverable; it only observes.
func (d *Dispatcher) HandleDimensionFailure(ctx context.Context, dimension string, cause error) {
	if d.hooks == nil || d.hooks.HandleDimensionFailure == nil {
		return
	}
	if err := d.hooks.HandleDimensionFailure(ctx, dimension, cause); err != nil {
		d.reportRecoverable("handleDimensionFailure", err)
	}
}

// TransformSections is recoverable; default is "no change" (nil).
func (d *Dispatcher) TransformSections(ctx context.Context, sections []Section) []Section {
	if d.hooks == nil || d.hooks.TransformSections == nil {
		return nil
	}
	out, err := d.hooks.TransformSections(ctx, sections)
	if err != nil {
		d.reportRecoverable("transformSections", err)
		return nil
	}
	return out
}

// FinalizeResults is recoverable; default is "no merge" (nil).
func (d *Dispatcher) FinalizeResults(ctx context.Context, result *ProcessResult) map[string]Result {
	if d.hooks == nil || d.hooks.FinalizeResults == nil {
		return nil
	}
	out, err := d.hooks.FinalizeResults(ctx, result)
	if err != nil {
		d.reportRecoverable("finalizeResults", err)
		return nil
	}
	return out
}
