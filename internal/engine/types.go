// Package engine implements the DAG execution engine: a dependency graph of
// named dimensions, planned into parallel groups and run against pluggable
// text-completion backends under a bounded concurrency budget.
package engine

import "time"

// Scope distinguishes a dimension executed once per section from one
// executed once for the whole batch.
type Scope string

const (
	// ScopeSection marks a dimension that runs once per input section.
	ScopeSection Scope = "section"
	// ScopeGlobal marks a dimension that runs once for the whole batch.
	ScopeGlobal Scope = "global"
)

// TokenUsage records token counts reported by a provider for one call.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// ResultMetadata carries the side information attached to a Result: which
// model/provider produced it, its token cost, and timing/skip bookkeeping.
type ResultMetadata struct {
	Model    string         `json:"model,omitempty"`
	Provider string         `json:"provider,omitempty"`
	Tokens   *TokenUsage    `json:"tokens,omitempty"`
	Cached   bool           `json:"cached,omitempty"`
	Skipped  bool           `json:"skipped,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
	Extra    map[string]any `json:"-"`
}

// Result is the tagged-variant outcome of one dimension execution,
// flattened to {data?, error?, metadata?} at the process boundary.
type Result struct {
	Data     any             `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
	Metadata *ResultMetadata `json:"metadata,omitempty"`
}

// IsError reports whether this result carries a terminal failure.
func (r Result) IsError() bool { return r.Error != "" }

// IsSkipped reports whether this result is a skip marker.
func (r Result) IsSkipped() bool { return r.Metadata != nil && r.Metadata.Skipped }

// SkipResult builds the skip-marker Result shape fixed by the data model:
// {data: {skipped: true, reason}, metadata: {skipped: true, reason}}.
func SkipResult(reason string) Result {
	return Result{
		Data:     map[string]any{"skipped": true, "reason": reason},
		Metadata: &ResultMetadata{Skipped: true, Reason: reason},
	}
}

// Section is one input record: opaque textual content plus free-form
// metadata. Sections are identified by their index in the current section
// vector, which a global transform may rewrite mid-run.
type Section struct {
	Content  string
	Metadata map[string]any
}

// DependenciesView is the bundle of resolved prerequisite results passed to
// a dimension implementation, keyed by prerequisite dimension name.
type DependenciesView map[string]Result

// AggregatedSections is the shape carried by DependenciesView when a global
// dimension depends on a section dimension: one Result per section, copied
// by value so hook code never back-references the live result map.
type AggregatedSections struct {
	Sections []Result `json:"sections"`
}
