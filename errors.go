package dimflow

import "github.com/smilemakc/dimflow/internal/engine"

// Error types, re-exported from internal/engine. Names are semantic, not
// sentinel values: use errors.As to discriminate.
type (
	ConfigurationError      = engine.ConfigurationError
	InvalidConcurrencyError = engine.InvalidConcurrencyError
	NoProvidersError        = engine.NoProvidersError
	EmptySectionsError      = engine.EmptySectionsError
	CircularDependencyError = engine.CircularDependencyError
	MissingDependencyError  = engine.MissingDependencyError
	ExecutionGroupingError  = engine.ExecutionGroupingError
	DimensionTimeoutError   = engine.DimensionTimeoutError
	ProviderExhaustedError  = engine.ProviderExhaustedError
	HookError               = engine.HookError
	CircuitOpenError        = engine.CircuitOpenError
)
