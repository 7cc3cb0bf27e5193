package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/smilemakc/dimflow/internal/observability"
)

// Engine is the compiled, ready-to-run process driver (C10): a plugin's
// catalog plus validated configuration. One Engine may run many Process
// calls; each call gets its own ProcessState, Dispatcher, Scheduler pool, and
// dependency graph, and the graph of the most recent call is kept for
// Analytics/ExportDOT/ExportJSON.
type Engine struct {
	cfg     EngineConfig
	catalog *Catalog

	mu        sync.Mutex
	lastGraph *Graph
}

// NewEngine validates cfg and compiles the plugin's dimension catalog.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	catalog, err := NewCatalog(cfg.Plugin.Dimensions())
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, catalog: catalog}, nil
}

func (e *Engine) setLastGraph(g *Graph) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastGraph = g
}

func (e *Engine) graph() (*Graph, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastGraph == nil {
		return nil, &ConfigurationError{Component: "engine", Message: "no process has run yet; graph analytics require a prior Process call"}
	}
	return e.lastGraph, nil
}

// Analytics returns graph-shape analytics for the dependency graph compiled
// during the most recent Process call.
func (e *Engine) Analytics() (*Analytics, error) {
	g, err := e.graph()
	if err != nil {
		return nil, err
	}
	return g.Analytics()
}

// ExportDOT renders the most recently compiled graph as Graphviz DOT.
func (e *Engine) ExportDOT() (string, error) {
	g, err := e.graph()
	if err != nil {
		return "", err
	}
	return g.ExportDOT(), nil
}

// ExportJSON renders the most recently compiled graph as a node/link structure.
func (e *Engine) ExportJSON() (GraphJSON, error) {
	g, err := e.graph()
	if err != nil {
		return GraphJSON{}, err
	}
	return g.ExportJSON(), nil
}

// Process runs one batch of sections through the compiled plan, following
// the ten-step sequence: validate, init state, beforeProcessStart,
// defineDependencies + plan, run the scheduler, assemble the result,
// finalizeResults, compute costs, afterProcessComplete, and on any failure
// anywhere, handleProcessFailure over whatever partial state exists.
func (e *Engine) Process(ctx context.Context, sections []Section, opts *ProcessOptions) (result *ProcessResult, err error) {
	if len(sections) == 0 {
		return nil, &EmptySectionsError{}
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanProcess)
	defer span.End()

	dispatcher := NewDispatcher(e.cfg.Plugin.Hooks(), opts.onError, e.cfg.logger())

	processID := uuid.NewString()
	sectionDimCount := 0
	for _, name := range e.catalog.Names() {
		if !e.catalog.IsGlobal(name) {
			sectionDimCount++
		}
	}

	state := NewProcessState(processID, sections, map[string]any{}, sectionDimCount)

	defer func() {
		if err != nil {
			partial := e.assembleResult(state, nil)
			if replacement, ok := dispatcher.HandleProcessFailure(ctx, partial, err); ok {
				result, err = replacement, nil
			}
		}
	}()

	beforeResult, err := dispatcher.BeforeProcessStart(ctx, state.Sections(), state.Metadata)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}
	if beforeResult != nil {
		if len(beforeResult.Sections) > 0 {
			state.ReplaceSections(beforeResult.Sections)
		}
		if beforeResult.Metadata != nil {
			state.Metadata = beforeResult.Metadata
		}
	}

	deps, err := dispatcher.DefineDependencies(ctx)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}

	graph := NewGraph(e.catalog, deps)
	_, groups, err := graph.Plan()
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}
	e.setLastGraph(graph)

	skipEval := NewSkipEvaluator(dispatcher)
	backend := NewBackendCaller(e.cfg.registry(), dispatcher, e.cfg)
	metrics := NewMetricsCollector()
	executor := NewDimensionExecutor(e.catalog, graph, e.cfg.Plugin, dispatcher, skipEval, backend, state, e.cfg, opts, metrics)
	transforms := NewTransformManager(e.catalog, dispatcher, state, opts.onError)
	scheduler := NewScheduler(e.catalog, executor, e.cfg.Concurrency, e.cfg.ContinueOnError)

	if err = scheduler.Run(ctx, groups, transforms); err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}

	if state.Metadata == nil {
		state.Metadata = map[string]any{}
	}
	state.Metadata["metrics"] = metrics.Summary()

	processResult := e.assembleResult(state, NewCostAccountant(e.cfg.Pricing, e.cfg.logger()))

	if merged := dispatcher.FinalizeResults(ctx, processResult); merged != nil {
		applyFinalized(state, merged)
		processResult = e.assembleResult(state, NewCostAccountant(e.cfg.Pricing, e.cfg.logger()))
	}

	processResult.Metadata = state.Metadata
	processResult = dispatcher.AfterProcessComplete(ctx, processResult)
	return processResult, nil
}

// assembleResult builds the flattened ProcessResult from a ProcessState.
func (e *Engine) assembleResult(state *ProcessState, costs *CostAccountant) *ProcessResult {
	sections := state.Sections()
	entries := make([]SectionResultEntry, len(sections))
	for i, sec := range sections {
		entries[i] = SectionResultEntry{Section: sec, Results: state.SectionResultsForIndex(i)}
	}

	pr := &ProcessResult{
		ProcessID:           state.ProcessID,
		Sections:            entries,
		GlobalResults:       state.GlobalResultsSnapshot(),
		TransformedSections: sections,
	}
	if costs != nil {
		pr.Costs = costs.Compute(state)
	}
	return pr
}

// applyFinalized merges finalizeResults' overrides back into state. Keys of
// the form "<dim>_section_<i>" route to section slots; bare "<dim>" routes
// to globalResults.
func applyFinalized(state *ProcessState, merged map[string]Result) {
	for key, r := range merged {
		dim, index, isSection := parseFinalizeKey(key)
		if isSection {
			state.SetSectionResult(index, dim, r)
		} else {
			state.SetGlobalResult(dim, r)
		}
	}
}

func parseFinalizeKey(key string) (dim string, sectionIndex int, isSection bool) {
	const marker = "_section_"
	i := lastIndex(key, marker)
	if i < 0 {
		return key, -1, false
	}
	dim = key[:i]
	idxStr := key[i+len(marker):]
	n, err := parsePositiveInt(idxStr)
	if err != nil {
		return key, -1, false
	}
	return dim, n, true
}

func lastIndex(s, substr string) int {
	last := -1
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			last = i
		}
	}
	return last
}

func parsePositiveInt(s string) (int, error) {
	if s == "" {
		return 0, &ConfigurationError{Component: "driver", Message: "empty section index"}
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, &ConfigurationError{Component: "driver", Message: "invalid section index: " + s}
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
