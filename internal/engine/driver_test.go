package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEchoRegistryEngine(t *testing.T, dims []Dimension, hooks *Hooks) *Engine {
	t.Helper()
	plugin := &fakePlugin{name: "p", hooks: hooks, dims: dims}
	cfg := DefaultEngineConfig()
	cfg.Plugin = plugin
	cfg.Registry = NewRegistry(echoProvider{})
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	return e
}

func TestEngine_Process_LinearChainEndToEnd(t *testing.T) {
	dims := []Dimension{
		{Name: "extract", Scope: ScopeSection},
		{Name: "analyze", Scope: ScopeSection},
		{Name: "summarize", Scope: ScopeGlobal},
	}
	hooks := &Hooks{
		DefineDependencies: func(ctx context.Context) (map[string][]string, error) {
			return map[string][]string{"analyze": {"extract"}, "summarize": {"analyze"}}, nil
		},
	}
	e := newEchoRegistryEngine(t, dims, hooks)

	result, err := e.Process(context.Background(), []Section{{Content: "hello"}}, &ProcessOptions{})
	require.NoError(t, err)
	require.Len(t, result.Sections, 1)
	assert.False(t, result.Sections[0].Results["extract"].IsError())
	assert.False(t, result.Sections[0].Results["analyze"].IsError())
	assert.False(t, result.GlobalResults["summarize"].IsError())

	// transformedSections always reflects the current sections at
	// completion, even when no transform ran.
	require.Len(t, result.TransformedSections, 1)
	assert.Equal(t, "hello", result.TransformedSections[0].Content)
}

func TestEngine_Process_PerDimensionTimeout(t *testing.T) {
	dims := []Dimension{
		{Name: "fast", Scope: ScopeGlobal},
		{Name: "slow", Scope: ScopeGlobal},
	}
	plugin := &fakePlugin{name: "p", dims: dims}

	slow := &fakeProvider{name: "slow", call: func(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error) {
		select {
		case <-time.After(2 * time.Second):
			return &ProviderResponse{Data: "too late"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	fast := &fakeProvider{name: "fast", call: func(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error) {
		return &ProviderResponse{Data: "ok"}, nil
	}}
	plugin.provider = func(ctx context.Context, dimension string, sectionIndex int) (ProviderSelection, error) {
		return ProviderSelection{Provider: dimension}, nil
	}

	cfg := DefaultEngineConfig()
	cfg.Plugin = plugin
	cfg.Registry = NewRegistry(slow, fast)
	cfg.Timeout = 200 * time.Millisecond
	cfg.MaxRetries = 0
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	result, err := e.Process(context.Background(), []Section{{Content: "x"}}, &ProcessOptions{})
	require.NoError(t, err)

	assert.False(t, result.GlobalResults["fast"].IsError())
	assert.Equal(t, "ok", result.GlobalResults["fast"].Data)
	assert.True(t, result.GlobalResults["slow"].IsError())
	assert.Contains(t, result.GlobalResults["slow"].Error, `Dimension "slow" timed out after 200ms`)
}

func TestEngine_Process_SectionRewritingTransform(t *testing.T) {
	dims := []Dimension{
		{Name: "splitter", Scope: ScopeGlobal, Transform: func(ctx context.Context, result Result, sections []Section) ([]Section, error) {
			var out []Section
			for _, s := range sections {
				out = append(out, Section{Content: s.Content + "-1"}, Section{Content: s.Content + "-2"})
			}
			return out, nil
		}},
		{Name: "followup", Scope: ScopeSection},
	}
	e := newEchoRegistryEngine(t, dims, nil)

	result, err := e.Process(context.Background(), []Section{{Content: "a"}, {Content: "b"}}, &ProcessOptions{})
	require.NoError(t, err)

	require.Len(t, result.TransformedSections, 4)
	require.Len(t, result.Sections, 4)
	for _, entry := range result.Sections {
		assert.False(t, entry.Results["followup"].IsError())
	}
}

func TestEngine_Process_EmptySections(t *testing.T) {
	e := newEchoRegistryEngine(t, []Dimension{{Name: "d", Scope: ScopeGlobal}}, nil)
	_, err := e.Process(context.Background(), nil, &ProcessOptions{})
	require.Error(t, err)
	var emptyErr *EmptySectionsError
	assert.ErrorAs(t, err, &emptyErr)
}

func TestNewEngine_RejectsBadConfig(t *testing.T) {
	plugin := &fakePlugin{name: "p"}

	_, err := NewEngine(EngineConfig{Registry: NewRegistry(echoProvider{}), Concurrency: 5})
	require.Error(t, err)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	_, err = NewEngine(EngineConfig{Plugin: plugin, Concurrency: 5})
	require.Error(t, err)
	var noProvidersErr *NoProvidersError
	assert.ErrorAs(t, err, &noProvidersErr)

	_, err = NewEngine(EngineConfig{Plugin: plugin, Registry: NewRegistry(echoProvider{}), Concurrency: 0})
	require.Error(t, err)
	var concurrencyErr *InvalidConcurrencyError
	assert.ErrorAs(t, err, &concurrencyErr)
}

func TestEngine_Process_BeforeProcessStartOverridesSectionsAndMetadata(t *testing.T) {
	hooks := &Hooks{
		BeforeProcessStart: func(ctx context.Context, sections []Section, metadata map[string]any) (*BeforeProcessStartResult, error) {
			return &BeforeProcessStartResult{
				Sections: []Section{{Content: "overridden"}},
				Metadata: map[string]any{"tag": "custom"},
			}, nil
		},
	}
	e := newEchoRegistryEngine(t, []Dimension{{Name: "d", Scope: ScopeSection}}, hooks)

	result, err := e.Process(context.Background(), []Section{{Content: "original"}}, &ProcessOptions{})
	require.NoError(t, err)
	require.Len(t, result.Sections, 1)
	assert.Equal(t, "overridden", result.Sections[0].Section.Content)
	assert.Equal(t, "custom", result.Metadata["tag"])
}

func TestEngine_Process_FinalizeResultsMergesBackByKey(t *testing.T) {
	hooks := &Hooks{
		FinalizeResults: func(ctx context.Context, result *ProcessResult) (map[string]Result, error) {
			return map[string]Result{
				"d_section_0": {Data: "merged-section"},
				"g":           {Data: "merged-global"},
			}, nil
		},
	}
	dims := []Dimension{{Name: "d", Scope: ScopeSection}, {Name: "g", Scope: ScopeGlobal}}
	e := newEchoRegistryEngine(t, dims, hooks)

	result, err := e.Process(context.Background(), []Section{{Content: "x"}}, &ProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, "merged-section", result.Sections[0].Results["d"].Data)
	assert.Equal(t, "merged-global", result.GlobalResults["g"].Data)
}

func TestEngine_Process_AfterProcessCompleteSubstitutesResult(t *testing.T) {
	hooks := &Hooks{
		AfterProcessComplete: func(ctx context.Context, result *ProcessResult) (*ProcessResult, error) {
			result.Metadata["stamped"] = true
			return result, nil
		},
	}
	e := newEchoRegistryEngine(t, []Dimension{{Name: "d", Scope: ScopeGlobal}}, hooks)

	result, err := e.Process(context.Background(), []Section{{Content: "x"}}, &ProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, true, result.Metadata["stamped"])
}

func TestEngine_Process_HandleProcessFailureSubstitutesPartialResult(t *testing.T) {
	hooks := &Hooks{
		DefineDependencies: func(ctx context.Context) (map[string][]string, error) {
			return nil, fmt.Errorf("define blew up")
		},
		HandleProcessFailure: func(ctx context.Context, partial *ProcessResult, cause error) (*ProcessResult, error) {
			partial.Metadata = map[string]any{"recovered": true, "cause": cause.Error()}
			return partial, nil
		},
	}
	e := newEchoRegistryEngine(t, []Dimension{{Name: "d", Scope: ScopeGlobal}}, hooks)

	result, err := e.Process(context.Background(), []Section{{Content: "x"}}, &ProcessOptions{})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, true, result.Metadata["recovered"])
}

func TestEngine_Process_CircularDependencyPropagates(t *testing.T) {
	hooks := &Hooks{
		DefineDependencies: func(ctx context.Context) (map[string][]string, error) {
			return map[string][]string{"a": {"b"}, "b": {"a"}}, nil
		},
	}
	dims := []Dimension{{Name: "a", Scope: ScopeGlobal}, {Name: "b", Scope: ScopeGlobal}}
	e := newEchoRegistryEngine(t, dims, hooks)

	_, err := e.Process(context.Background(), []Section{{Content: "x"}}, &ProcessOptions{})
	require.Error(t, err)
	var cycleErr *CircularDependencyError
	assert.ErrorAs(t, err, &cycleErr)
}

func TestEngine_AnalyticsAndExports_AfterProcess(t *testing.T) {
	dims := []Dimension{{Name: "a", Scope: ScopeGlobal}, {Name: "b", Scope: ScopeGlobal}}
	hooks := &Hooks{
		DefineDependencies: func(ctx context.Context) (map[string][]string, error) {
			return map[string][]string{"b": {"a"}}, nil
		},
	}
	e := newEchoRegistryEngine(t, dims, hooks)

	_, err := e.Analytics()
	require.Error(t, err)

	_, err = e.Process(context.Background(), []Section{{Content: "x"}}, &ProcessOptions{})
	require.NoError(t, err)

	analytics, err := e.Analytics()
	require.NoError(t, err)
	assert.NotNil(t, analytics)

	dot, err := e.ExportDOT()
	require.NoError(t, err)
	assert.Contains(t, dot, "digraph")

	graphJSON, err := e.ExportJSON()
	require.NoError(t, err)
	assert.Len(t, graphJSON.Nodes, 2)
}
