package engine

import "context"

// SectionTransform rewrites the current section vector given the completed
// result of the global dimension it is attached to. A non-empty returned
// slice replaces state.sections; an empty/nil slice leaves it unchanged.
type SectionTransform func(ctx context.Context, result Result, sections []Section) ([]Section, error)

// Dimension is a named unit of work: a scope (once per section, or once for
// the batch), an optional section-rewrite transform (meaningful only on
// global dimensions), and an optional declarative skip predicate evaluated
// by the Skip Evaluator when the plugin does not implement the corresponding
// hook for this dimension.
type Dimension struct {
	Name      string
	Scope     Scope
	Transform SectionTransform
	SkipExpr  string
}

// Catalog holds the ordered set of dimensions declared by a plugin. Catalog
// order is the tie-break order used throughout planning (topological sort,
// grouping, critical path).
type Catalog struct {
	dims  []Dimension
	index map[string]int
}

// NewCatalog validates and builds a Catalog from an ordered dimension list.
// Every name must be non-empty and unique.
func NewCatalog(dims []Dimension) (*Catalog, error) {
	index := make(map[string]int, len(dims))
	for i, d := range dims {
		if d.Name == "" {
			return nil, &ConfigurationError{Component: "catalog", Message: "dimension name must not be empty"}
		}
		if _, exists := index[d.Name]; exists {
			return nil, &ConfigurationError{Component: "catalog", Message: "duplicate dimension name: " + d.Name}
		}
		if d.Scope != ScopeSection && d.Scope != ScopeGlobal {
			return nil, &ConfigurationError{Component: "catalog", Message: "dimension " + d.Name + " has invalid scope"}
		}
		index[d.Name] = i
	}
	return &Catalog{dims: dims, index: index}, nil
}

// Names returns the declared dimension names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.dims))
	for i, d := range c.dims {
		names[i] = d.Name
	}
	return names
}

// Config returns a dimension's configuration, or a MissingDependencyError
// (with an empty Dimension field) if name is unknown.
func (c *Catalog) Config(name string) (Dimension, error) {
	i, ok := c.index[name]
	if !ok {
		return Dimension{}, &MissingDependencyError{Missing: name}
	}
	return c.dims[i], nil
}

// IsGlobal reports whether name is a global-scope dimension. Unknown names
// report false.
func (c *Catalog) IsGlobal(name string) bool {
	i, ok := c.index[name]
	if !ok {
		return false
	}
	return c.dims[i].Scope == ScopeGlobal
}

// Has reports whether name is a declared dimension.
func (c *Catalog) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// declarationIndex returns the position of name in declaration order, or -1.
func (c *Catalog) declarationIndex(name string) int {
	if i, ok := c.index[name]; ok {
		return i
	}
	return -1
}
