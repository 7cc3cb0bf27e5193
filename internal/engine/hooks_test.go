package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_NilHooks_ReturnDocumentedDefaults(t *testing.T) {
	d := NewDispatcher(nil, nil, zerolog.Nop())
	ctx := context.Background()

	before, err := d.BeforeProcessStart(ctx, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, before)

	deps, err := d.DefineDependencies(ctx)
	require.NoError(t, err)
	assert.Empty(t, deps)

	view := DependenciesView{"x": {Data: "y"}}
	assert.Equal(t, view, d.TransformDependencies(ctx, "dim", view))

	skip, reason := d.ShouldSkipSectionDimension(ctx, SkipSectionQuery{})
	assert.False(t, skip)
	assert.Empty(t, reason)

	skip, reason = d.ShouldSkipGlobalDimension(ctx, SkipGlobalQuery{})
	assert.False(t, skip)
	assert.Empty(t, reason)

	req := &ProviderRequest{Input: "prompt"}
	assert.Same(t, req, d.BeforeProviderExecute(ctx, req))

	resp := &ProviderResponse{Data: "ok"}
	assert.Same(t, resp, d.AfterProviderExecute(ctx, resp))

	decision := d.HandleRetry(ctx, RetryQuery{Delay: 100, Request: req})
	assert.Equal(t, req, decision.Request)
	assert.Equal(t, 100, int(decision.Delay))

	fb := d.HandleProviderFallback(ctx, FallbackQuery{Request: req})
	assert.Equal(t, req, fb.Request)

	result := &ProcessResult{ProcessID: "p1"}
	assert.Same(t, result, d.AfterProcessComplete(ctx, result))

	replacement, ok := d.HandleProcessFailure(ctx, result, errors.New("boom"))
	assert.False(t, ok)
	assert.Nil(t, replacement)

	assert.Nil(t, d.TransformSections(ctx, []Section{{Content: "a"}}))
	assert.Nil(t, d.FinalizeResults(ctx, result))

	// no-op hooks must not panic.
	d.BeforeDimensionExecute(ctx, "dim", ScopeSection, 0)
	d.AfterDimensionExecute(ctx, "dim", ScopeSection, 0, 0, "provider")
	d.HandleDimensionFailure(ctx, "dim", errors.New("x"))
}

func TestDispatcher_FatalHooksPropagate(t *testing.T) {
	boom := errors.New("boom")
	hooks := &Hooks{
		BeforeProcessStart: func(ctx context.Context, sections []Section, metadata map[string]any) (*BeforeProcessStartResult, error) {
			return nil, boom
		},
		DefineDependencies: func(ctx context.Context) (map[string][]string, error) {
			return nil, boom
		},
	}
	d := NewDispatcher(hooks, nil, zerolog.Nop())

	_, err := d.BeforeProcessStart(context.Background(), nil, nil)
	require.Error(t, err)
	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, "beforeProcessStart", hookErr.Hook)
	assert.ErrorIs(t, err, boom)

	_, err = d.DefineDependencies(context.Background())
	require.Error(t, err)
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, "defineDependencies", hookErr.Hook)
}

func TestDispatcher_RecoverableHooksFallBackAndReportOnError(t *testing.T) {
	boom := errors.New("boom")
	var reported []string

	hooks := &Hooks{
		TransformDependencies: func(ctx context.Context, dimension string, view DependenciesView) (DependenciesView, error) {
			return nil, boom
		},
		ShouldSkipSectionDimension: func(ctx context.Context, q SkipSectionQuery) (bool, string, error) {
			return true, "should be ignored", boom
		},
	}
	d := NewDispatcher(hooks, func(tag string, err error) { reported = append(reported, tag) }, zerolog.Nop())

	view := DependenciesView{"x": {Data: 1}}
	out := d.TransformDependencies(context.Background(), "dim", view)
	assert.Equal(t, view, out)

	skip, reason := d.ShouldSkipSectionDimension(context.Background(), SkipSectionQuery{})
	assert.False(t, skip)
	assert.Empty(t, reason)

	assert.ElementsMatch(t, []string{"transformDependencies", "shouldSkipSectionDimension"}, reported)
}

func TestDispatcher_HandleProcessFailure_SubstitutesResult(t *testing.T) {
	substitute := &ProcessResult{ProcessID: "replacement"}
	hooks := &Hooks{
		HandleProcessFailure: func(ctx context.Context, partial *ProcessResult, cause error) (*ProcessResult, error) {
			return substitute, nil
		},
	}
	d := NewDispatcher(hooks, nil, zerolog.Nop())

	replacement, ok := d.HandleProcessFailure(context.Background(), &ProcessResult{}, errors.New("boom"))
	assert.True(t, ok)
	assert.Same(t, substitute, replacement)
}
