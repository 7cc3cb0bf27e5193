package engine

import (
	"context"
	"time"
)

// PromptRequest is passed to Plugin.CreatePrompt. For a section dimension,
// Section/SectionIndex are set and Sections is nil; for a global dimension,
// Sections carries the whole (current) batch and SectionIndex is -1.
type PromptRequest struct {
	Dimension    string
	IsGlobal     bool
	Section      *Section
	SectionIndex int
	Sections     []Section
	Dependencies DependenciesView
	ProcessID    string
}

// ProviderSelection is what Plugin.SelectProvider returns: the provider to
// invoke, request options, and an ordered fallback list.
type ProviderSelection struct {
	Provider  string
	Options   map[string]any
	Fallbacks []string
}

// Plugin is the user-supplied declaration of a workflow: identity, an
// ordered dimension catalog, mandatory prompt/provider-selection callbacks,
// and an optional capability set of lifecycle hooks.
//
// Represented as an explicit capability set (Hooks) rather than duck-typed
// optional methods, per spec.md's design note: the Hook Dispatcher resolves
// each hook by key and falls back to a documented default when absent.
type Plugin interface {
	ID() string
	Name() string
	Description() string
	Dimensions() []Dimension
	CreatePrompt(ctx context.Context, req PromptRequest) (string, error)
	SelectProvider(ctx context.Context, dimension string, sectionIndex int) (ProviderSelection, error)
	Hooks() *Hooks
}

// BeforeProcessStartResult lets beforeProcessStart override the incoming
// sections and/or process metadata.
type BeforeProcessStartResult struct {
	Sections []Section
	Metadata map[string]any
}

// SkipSectionQuery is passed to ShouldSkipSectionDimension.
type SkipSectionQuery struct {
	Dimension     string
	SectionIndex  int
	Section       Section
	Dependencies  DependenciesView
	GlobalResults map[string]Result
}

// SkipGlobalQuery is passed to ShouldSkipGlobalDimension.
type SkipGlobalQuery struct {
	Dimension     string
	Sections      []Section
	Dependencies  DependenciesView
	GlobalResults map[string]Result
}

// RetryQuery describes an about-to-happen retry, for HandleRetry to adjust.
type RetryQuery struct {
	Dimension string
	Provider  string
	Attempt   int
	Delay     time.Duration
	Cause     error
	Request   *ProviderRequest
}

// RetryDecision is HandleRetry's return: the (possibly adjusted) delay and
// request to use for the next attempt.
type RetryDecision struct {
	Delay   time.Duration
	Request *ProviderRequest
}

// FallbackQuery describes an about-to-happen provider fallback.
type FallbackQuery struct {
	Dimension    string
	FromProvider string
	ToProvider   string
	RetryAfter   time.Duration
	Request      *ProviderRequest
}

// FallbackDecision is HandleProviderFallback's return.
type FallbackDecision struct {
	RetryAfter time.Duration
	Request    *ProviderRequest
}

// Hooks bundles the plugin's optional lifecycle callbacks. A nil field means
// the plugin does not implement that hook; the Hook Dispatcher then applies
// the documented default for it.
type Hooks struct {
	BeforeProcessStart    func(ctx context.Context, sections []Section, metadata map[string]any) (*BeforeProcessStartResult, error)
	AfterProcessComplete  func(ctx context.Context, result *ProcessResult) (*ProcessResult, error)
	HandleProcessFailure  func(ctx context.Context, partial *ProcessResult, cause error) (*ProcessResult, error)
	DefineDependencies    func(ctx context.Context) (map[string][]string, error)
	TransformDependencies func(ctx context.Context, dimension string, view DependenciesView) (DependenciesView, error)

	ShouldSkipSectionDimension func(ctx context.Context, q SkipSectionQuery) (skip bool, reason string, err error)
	ShouldSkipGlobalDimension  func(ctx context.Context, q SkipGlobalQuery) (skip bool, reason string, err error)

	BeforeDimensionExecute func(ctx context.Context, dimension string, scope Scope, sectionIndex int) error
	AfterDimensionExecute  func(ctx context.Context, dimension string, scope Scope, sectionIndex int, duration time.Duration, provider string) error

	BeforeProviderExecute func(ctx context.Context, req *ProviderRequest) (*ProviderRequest, error)
	AfterProviderExecute  func(ctx context.Context, resp *ProviderResponse) (*ProviderResponse, error)

	HandleRetry            func(ctx context.Context, q RetryQuery) (RetryDecision, error)
	HandleProviderFallback func(ctx context.Context, q FallbackQuery) (FallbackDecision, error)
	HandleDimensionFailure func(ctx context.Context, dimension string, cause error) error

	TransformSections func(ctx context.Context, sections []Section) ([]Section, error)
	FinalizeResults   func(ctx context.Context, result *ProcessResult) (map[string]Result, error)
}
