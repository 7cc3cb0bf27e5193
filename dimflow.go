// Package dimflow is a DAG execution engine that orchestrates calls to
// external text-completion services across a batch of inputs. A plugin
// declares a set of named dimensions, a dependency graph between them, and
// how to build a request and pick a backend per dimension; the engine plans
// execution into parallel groups, runs independent work under a bounded
// concurrency budget, and returns a structured result keyed by dimension and
// input.
//
// This is a thin public facade over internal/engine, the way
// smilemakc/mbflow's root package is a thin facade over its
// internal/application/executor: the real machinery lives in internal/, and
// this file re-exports the types and constructors a host application needs.
package dimflow

import (
	"context"

	"github.com/smilemakc/dimflow/internal/engine"
)

// Scope distinguishes a dimension executed once per section from one
// executed once for the whole batch.
type Scope = engine.Scope

// Scope values.
const (
	ScopeSection = engine.ScopeSection
	ScopeGlobal  = engine.ScopeGlobal
)

// Core data model, re-exported from internal/engine.
type (
	Section            = engine.Section
	TokenUsage         = engine.TokenUsage
	ResultMetadata     = engine.ResultMetadata
	Result             = engine.Result
	DependenciesView   = engine.DependenciesView
	AggregatedSections = engine.AggregatedSections
	Dimension          = engine.Dimension
	SectionTransform   = engine.SectionTransform
	Catalog            = engine.Catalog
	Graph              = engine.Graph
	Analytics          = engine.Analytics
	Bottleneck         = engine.Bottleneck
	GraphNode          = engine.GraphNode
	GraphLink          = engine.GraphLink
	GraphJSON          = engine.GraphJSON
)

// Plugin contract and supporting request/hook types.
type (
	Plugin                   = engine.Plugin
	PromptRequest            = engine.PromptRequest
	ProviderSelection        = engine.ProviderSelection
	Hooks                    = engine.Hooks
	BeforeProcessStartResult = engine.BeforeProcessStartResult
	SkipSectionQuery         = engine.SkipSectionQuery
	SkipGlobalQuery          = engine.SkipGlobalQuery
	RetryQuery               = engine.RetryQuery
	RetryDecision            = engine.RetryDecision
	FallbackQuery            = engine.FallbackQuery
	FallbackDecision         = engine.FallbackDecision
)

// Backend provider contract.
type (
	Provider         = engine.Provider
	Registry         = engine.Registry
	ProviderRequest  = engine.ProviderRequest
	ProviderResponse = engine.ProviderResponse
)

// Process I/O.
type (
	ProcessOptions     = engine.ProcessOptions
	ProcessResult      = engine.ProcessResult
	SectionResultEntry = engine.SectionResultEntry
	Costs              = engine.Costs
	DimensionCost      = engine.DimensionCost
)

// NewRegistry builds a Registry from a list of providers, keyed by Name().
func NewRegistry(providers ...Provider) Registry {
	return engine.NewRegistry(providers...)
}

// NewCatalog validates and builds a Catalog from an ordered dimension list.
func NewCatalog(dims []Dimension) (*Catalog, error) {
	return engine.NewCatalog(dims)
}

// SkipResult builds the skip-marker Result shape: {data: {skipped: true,
// reason}, metadata: {skipped: true, reason}}.
func SkipResult(reason string) Result {
	return engine.SkipResult(reason)
}

// Engine is the compiled, ready-to-run process driver: a plugin's catalog
// plus validated configuration. One Engine may run many Process calls.
type Engine struct {
	inner *engine.Engine
}

// New validates cfg and compiles the plugin's dimension catalog into a
// ready-to-run Engine.
func New(cfg EngineConfig) (*Engine, error) {
	inner, err := engine.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{inner: inner}, nil
}

// Process runs one batch of sections through the compiled plan: validate,
// init state, beforeProcessStart, defineDependencies + plan, run the
// scheduler, assemble the result, finalizeResults, compute costs,
// afterProcessComplete, and on any failure anywhere, handleProcessFailure
// over whatever partial state exists.
func (e *Engine) Process(ctx context.Context, sections []Section, opts *ProcessOptions) (*ProcessResult, error) {
	return e.inner.Process(ctx, sections, opts)
}

// Analytics returns graph-shape analytics for the dependency graph compiled
// during the most recent Process call.
func (e *Engine) Analytics() (*Analytics, error) {
	return e.inner.Analytics()
}

// ExportDOT renders the most recently compiled graph as Graphviz DOT.
func (e *Engine) ExportDOT() (string, error) {
	return e.inner.ExportDOT()
}

// ExportJSON renders the most recently compiled graph as a node/link structure.
func (e *Engine) ExportJSON() (GraphJSON, error) {
	return e.inner.ExportJSON()
}
