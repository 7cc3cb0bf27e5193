package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/smilemakc/dimflow/internal/observability"
)

// DimensionExecutor runs the per-unit pipeline for one dimension against one
// section (section scope) or the whole batch (global scope): assemble
// dependencies, consult the skip evaluator, call the plugin for a prompt and
// provider selection, invoke the Backend Caller, and record the result (C6).
type DimensionExecutor struct {
	catalog    *Catalog
	graph      *Graph
	plugin     Plugin
	dispatcher *Dispatcher
	skipEval   *SkipEvaluator
	backend    *BackendCaller
	state      *ProcessState
	cfg        EngineConfig
	opts       *ProcessOptions
	metrics    *MetricsCollector
	log        zerolog.Logger
}

// NewDimensionExecutor builds a DimensionExecutor for one Process call.
func NewDimensionExecutor(catalog *Catalog, graph *Graph, plugin Plugin, dispatcher *Dispatcher, skipEval *SkipEvaluator, backend *BackendCaller, state *ProcessState, cfg EngineConfig, opts *ProcessOptions, metrics *MetricsCollector) *DimensionExecutor {
	return &DimensionExecutor{
		catalog:    catalog,
		graph:      graph,
		plugin:     plugin,
		dispatcher: dispatcher,
		skipEval:   skipEval,
		backend:    backend,
		state:      state,
		cfg:        cfg,
		opts:       opts,
		metrics:    metrics,
		log:        cfg.logger(),
	}
}

// buildSectionDependencies resolves dim's prerequisites for the section
// dimension running against section i: a global prerequisite contributes its
// single result, a section prerequisite contributes section i's own result.
func (e *DimensionExecutor) buildSectionDependencies(dim string, sectionIndex int) DependenciesView {
	view := make(DependenciesView)
	for _, p := range e.graph.prereqsOf(dim) {
		if !e.catalog.Has(p) {
			continue
		}
		if e.catalog.IsGlobal(p) {
			if r, ok := e.state.GetGlobalResult(p); ok {
				view[p] = r
			}
			continue
		}
		if r, ok := e.state.GetSectionResult(sectionIndex, p); ok {
			view[p] = r
		}
	}
	return view
}

// buildGlobalDependencies resolves dim's prerequisites for the global
// dimension dim: a global prerequisite contributes its single result, a
// section prerequisite contributes the aggregated per-section results
// ({data: {sections: [...]}}), per the data model's §3 three-way rule.
func (e *DimensionExecutor) buildGlobalDependencies(dim string) DependenciesView {
	view := make(DependenciesView)
	for _, p := range e.graph.prereqsOf(dim) {
		if !e.catalog.Has(p) {
			continue
		}
		if e.catalog.IsGlobal(p) {
			if r, ok := e.state.GetGlobalResult(p); ok {
				view[p] = r
			}
			continue
		}
		n := e.state.sectionCount()
		sections := make([]Result, n)
		for i := 0; i < n; i++ {
			r, _ := e.state.GetSectionResult(i, p)
			sections[i] = r
		}
		view[p] = Result{Data: AggregatedSections{Sections: sections}}
	}
	return view
}

// ExecuteSection runs dim (a section-scope dimension) against section i.
func (e *DimensionExecutor) ExecuteSection(ctx context.Context, dim string, sectionIndex int) {
	if e.state.markSectionStarted(sectionIndex) {
		e.opts.onSectionStart(sectionIndex)
	}

	dimCfg, err := e.catalog.Config(dim)
	if err != nil {
		e.finishSection(ctx, dim, sectionIndex, errorResult(err, 0, ""))
		return
	}

	deps := e.dispatcher.TransformDependencies(ctx, dim, e.buildSectionDependencies(dim, sectionIndex))
	sections := e.state.Sections()
	if sectionIndex >= len(sections) {
		return // a prior transform shrank the batch out from under this stale unit
	}
	section := sections[sectionIndex]

	skip, reason, err := e.skipEval.EvaluateSection(ctx, dimCfg, SkipSectionQuery{
		Dimension:     dim,
		SectionIndex:  sectionIndex,
		Section:       section,
		Dependencies:  deps,
		GlobalResults: e.state.GlobalResultsSnapshot(),
	})
	if err != nil {
		e.dispatcher.reportRecoverable("shouldSkipSectionDimension", err)
	}
	if skip {
		e.opts.onDimensionStart(dim, ScopeSection, sectionIndex)
		e.finishSection(ctx, dim, sectionIndex, SkipResult(reason))
		return
	}

	e.opts.onDimensionStart(dim, ScopeSection, sectionIndex)
	e.dispatcher.BeforeDimensionExecute(ctx, dim, ScopeSection, sectionIndex)

	ctx, span := observability.StartSpan(ctx, observability.SpanDimensionExecute)
	observability.SetSpanAttribute(ctx, observability.AttrDimension, dim)
	observability.SetSpanAttribute(ctx, observability.AttrScope, string(ScopeSection))
	observability.SetSpanAttribute(ctx, observability.AttrSectionIndex, sectionIndex)

	start := time.Now()
	result, provider := e.runUnit(ctx, dim, PromptRequest{
		Dimension:    dim,
		IsGlobal:     false,
		Section:      &section,
		SectionIndex: sectionIndex,
		Dependencies: deps,
		ProcessID:    e.state.ProcessID,
	}, sectionIndex)
	duration := since(start, result.IsError())
	span.End()

	e.dispatcher.AfterDimensionExecute(ctx, dim, ScopeSection, sectionIndex, duration, provider)
	e.recordMetrics(result, duration)
	e.finishSection(ctx, dim, sectionIndex, result)
}

func (e *DimensionExecutor) finishSection(ctx context.Context, dim string, sectionIndex int, result Result) {
	e.state.SetSectionResult(sectionIndex, dim, result)
	e.opts.onDimensionComplete(dim, ScopeSection, sectionIndex, result)
	if e.state.markSectionUnitDone(sectionIndex) {
		e.opts.onSectionComplete(sectionIndex)
	}
}

// ExecuteGlobal runs dim (a global-scope dimension) once for the batch.
func (e *DimensionExecutor) ExecuteGlobal(ctx context.Context, dim string) Result {
	dimCfg, err := e.catalog.Config(dim)
	if err != nil {
		r := errorResult(err, 0, "")
		e.state.SetGlobalResult(dim, r)
		e.opts.onDimensionComplete(dim, ScopeGlobal, -1, r)
		return r
	}

	deps := e.dispatcher.TransformDependencies(ctx, dim, e.buildGlobalDependencies(dim))
	sections := e.state.Sections()

	skip, reason, err := e.skipEval.EvaluateGlobal(ctx, dimCfg, SkipGlobalQuery{
		Dimension:     dim,
		Sections:      sections,
		Dependencies:  deps,
		GlobalResults: e.state.GlobalResultsSnapshot(),
	})
	if err != nil {
		e.dispatcher.reportRecoverable("shouldSkipGlobalDimension", err)
	}
	e.opts.onDimensionStart(dim, ScopeGlobal, -1)
	if skip {
		r := SkipResult(reason)
		e.state.SetGlobalResult(dim, r)
		e.opts.onDimensionComplete(dim, ScopeGlobal, -1, r)
		return r
	}

	e.dispatcher.BeforeDimensionExecute(ctx, dim, ScopeGlobal, -1)

	ctx, span := observability.StartSpan(ctx, observability.SpanDimensionExecute)
	observability.SetSpanAttribute(ctx, observability.AttrDimension, dim)
	observability.SetSpanAttribute(ctx, observability.AttrScope, string(ScopeGlobal))

	start := time.Now()
	result, provider := e.runUnit(ctx, dim, PromptRequest{
		Dimension:    dim,
		IsGlobal:     true,
		SectionIndex: -1,
		Sections:     sections,
		Dependencies: deps,
		ProcessID:    e.state.ProcessID,
	}, -1)
	duration := since(start, result.IsError())
	span.End()

	e.dispatcher.AfterDimensionExecute(ctx, dim, ScopeGlobal, -1, duration, provider)
	e.recordMetrics(result, duration)
	e.state.SetGlobalResult(dim, result)
	e.opts.onDimensionComplete(dim, ScopeGlobal, -1, result)
	return result
}

// runUnit is the shared plugin+backend core for both scopes: prompt
// creation, provider selection, per-dimension timeout, and delegation to the
// Backend Caller.
func (e *DimensionExecutor) runUnit(ctx context.Context, dim string, req PromptRequest, sectionIndex int) (Result, string) {
	prompt, err := e.plugin.CreatePrompt(ctx, req)
	if err != nil {
		return errorResult(err, 0, ""), ""
	}

	selection, err := e.plugin.SelectProvider(ctx, dim, sectionIndex)
	if err != nil {
		return errorResult(err, 0, ""), ""
	}

	timeout := e.cfg.effectiveTimeout(dim)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	providerReq := &ProviderRequest{
		Input:     prompt,
		Options:   selection.Options,
		Metadata:  req.Dependencies.asMetadata(),
		Dimension: dim,
	}

	outcome := e.backend.Call(callCtx, dim, providerReq, selection)
	if outcome.Err != nil {
		observability.SetSpanError(ctx, outcome.Err)
		if callCtx.Err() == context.DeadlineExceeded {
			e.dispatcher.HandleDimensionFailure(ctx, dim, outcome.Err)
			return errorResult(&DimensionTimeoutError{Dimension: dim, Millis: timeout.Milliseconds()}, outcome.Attempts, outcome.Provider), outcome.Provider
		}
		e.dispatcher.HandleDimensionFailure(ctx, dim, outcome.Err)
		return errorResult(outcome.Err, outcome.Attempts, outcome.Provider), outcome.Provider
	}

	meta := outcome.Response.Metadata
	if meta == nil {
		meta = &ResultMetadata{}
	}
	meta.Provider = outcome.Provider
	if meta.Extra == nil {
		meta.Extra = map[string]any{}
	}
	meta.Extra["attempts"] = outcome.Attempts
	return Result{Data: outcome.Response.Data, Metadata: meta}, outcome.Provider
}

func (e *DimensionExecutor) recordMetrics(result Result, duration time.Duration) {
	if e.metrics == nil {
		return
	}
	attempts := 1
	if result.Metadata != nil {
		if a, ok := result.Metadata.Extra["attempts"].(int); ok && a > 0 {
			attempts = a
		}
	}
	e.metrics.RecordUnit(result, duration, attempts)
}

// errorResult builds the {error, metadata} Result shape. metadata.Duration is
// set to 1ms, the minimum reported duration for failures (§7); the unit's
// measured duration is not stored in the Result.
func errorResult(err error, attempts int, provider string) Result {
	return Result{
		Error: err.Error(),
		Metadata: &ResultMetadata{
			Provider: provider,
			Duration: 1 * time.Millisecond,
			Extra:    map[string]any{"attempts": attempts},
		},
	}
}

// since returns the elapsed duration, floored to 1ms when the unit failed
// (§7's minimum reported duration for errors).
func since(start time.Time, isError bool) time.Duration {
	d := time.Since(start)
	if isError && d < time.Millisecond {
		return time.Millisecond
	}
	return d
}

// asMetadata flattens a DependenciesView into a plain map for inclusion in
// the outgoing ProviderRequest, so providers that inspect request metadata
// can see what this dimension depended on without importing the engine
// package's Result type.
func (v DependenciesView) asMetadata() map[string]any {
	out := make(map[string]any, len(v))
	for k, r := range v {
		out[k] = resultToEnv(r)
	}
	return out
}
