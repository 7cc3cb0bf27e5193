package engine

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
)

// SkipEvaluator runs shouldSkipSectionDimension / shouldSkipGlobalDimension
// and produces a skip-marker Result when asked to skip (C4).
//
// Beyond the hook, a dimension may declare a SkipExpr: a boolean expr-lang
// predicate evaluated against the same information the hook would see, for
// plugins that prefer a declarative, serializable skip rule over a Go
// closure. Grounded on internal/application/executor/graph.go's
// evaluateCondition, generalized from conditional-edge routing to
// skip-predicate routing; the hook takes precedence when the plugin
// implements it.
type SkipEvaluator struct {
	dispatcher *Dispatcher
}

// NewSkipEvaluator builds a SkipEvaluator bound to a Dispatcher.
func NewSkipEvaluator(dispatcher *Dispatcher) *SkipEvaluator {
	return &SkipEvaluator{dispatcher: dispatcher}
}

// EvaluateSection returns (skip, reason, error) for a section dimension.
func (s *SkipEvaluator) EvaluateSection(ctx context.Context, dim Dimension, q SkipSectionQuery) (bool, string, error) {
	if s.dispatcher.hooks != nil && s.dispatcher.hooks.ShouldSkipSectionDimension != nil {
		skip, reason := s.dispatcher.ShouldSkipSectionDimension(ctx, q)
		return skip, reason, nil
	}
	if dim.SkipExpr == "" {
		return false, "", nil
	}
	env := map[string]any{
		"dimension":     q.Dimension,
		"sectionIndex":  q.SectionIndex,
		"section":       sectionToEnv(q.Section),
		"dependencies":  depsViewToEnv(q.Dependencies),
		"globalResults": resultsMapToEnv(q.GlobalResults),
	}
	return evaluateSkipExpr(dim.SkipExpr, env)
}

// EvaluateGlobal returns (skip, reason, error) for a global dimension.
func (s *SkipEvaluator) EvaluateGlobal(ctx context.Context, dim Dimension, q SkipGlobalQuery) (bool, string, error) {
	if s.dispatcher.hooks != nil && s.dispatcher.hooks.ShouldSkipGlobalDimension != nil {
		skip, reason := s.dispatcher.ShouldSkipGlobalDimension(ctx, q)
		return skip, reason, nil
	}
	if dim.SkipExpr == "" {
		return false, "", nil
	}
	sections := make([]any, len(q.Sections))
	for i, sec := range q.Sections {
		sections[i] = sectionToEnv(sec)
	}
	env := map[string]any{
		"dimension":     q.Dimension,
		"sections":      sections,
		"dependencies":  depsViewToEnv(q.Dependencies),
		"globalResults": resultsMapToEnv(q.GlobalResults),
	}
	return evaluateSkipExpr(dim.SkipExpr, env)
}

func evaluateSkipExpr(condition string, env map[string]any) (bool, string, error) {
	program, err := expr.Compile(condition, expr.AsBool())
	if err != nil {
		return false, "", fmt.Errorf("failed to compile skip predicate %q: %w", condition, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, "", fmt.Errorf("failed to evaluate skip predicate %q: %w", condition, err)
	}
	skip, ok := result.(bool)
	if !ok {
		return false, "", fmt.Errorf("skip predicate %q did not return a boolean", condition)
	}
	if skip {
		return true, fmt.Sprintf("skip predicate evaluated true: %s", condition), nil
	}
	return false, "", nil
}

func sectionToEnv(s Section) map[string]any {
	return map[string]any{"content": s.Content, "metadata": s.Metadata}
}

func resultToEnv(r Result) map[string]any {
	out := map[string]any{"data": r.Data, "error": r.Error}
	if r.Metadata != nil {
		out["metadata"] = map[string]any{
			"model":    r.Metadata.Model,
			"provider": r.Metadata.Provider,
			"cached":   r.Metadata.Cached,
			"skipped":  r.Metadata.Skipped,
		}
	}
	return out
}

func depsViewToEnv(view DependenciesView) map[string]any {
	out := make(map[string]any, len(view))
	for k, v := range view {
		out[k] = resultToEnv(v)
	}
	return out
}

func resultsMapToEnv(m map[string]Result) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = resultToEnv(v)
	}
	return out
}
