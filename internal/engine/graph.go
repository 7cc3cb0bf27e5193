package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is the compiled dependency structure over a Catalog: a mapping from
// dimension name to its list of prerequisite dimension names. It validates
// references, detects cycles, topologically sorts, partitions into parallel
// execution groups, and emits analytics/export views.
//
// Grounded on internal/application/executor/graph.go's DFS cycle detection
// and topological sort (DFS-based here, with Kahn-style layering for the
// parallel groups), generalized from node/edge adjacency to
// named-dimension prerequisite lists, and planner.go's critical-path and
// join/fork-degree analytics.
type Graph struct {
	catalog *Catalog
	deps    map[string][]string
}

// NewGraph builds a Graph over catalog using the given prerequisite map.
// Unknown names in deps are tolerated at construction time; Plan is where
// they surface as MissingDependencyError.
func NewGraph(catalog *Catalog, deps map[string][]string) *Graph {
	normalized := make(map[string][]string, len(deps))
	for name, prereqs := range deps {
		cp := make([]string, len(prereqs))
		copy(cp, prereqs)
		normalized[name] = cp
	}
	return &Graph{catalog: catalog, deps: normalized}
}

func (g *Graph) prereqsOf(name string) []string {
	return g.deps[name]
}

// validateReferences checks that every prerequisite named in deps is a
// declared dimension.
func (g *Graph) validateReferences() error {
	for name := range g.deps {
		if !g.catalog.Has(name) {
			continue // a dependency entry for an undeclared dimension is simply inert
		}
		for _, p := range g.deps[name] {
			if !g.catalog.Has(p) {
				return &MissingDependencyError{Dimension: name, Missing: p}
			}
		}
	}
	return nil
}

// findCycle performs DFS with a recursion stack and returns the path of the
// first cycle found, shortest-first relative to the discovered back edge:
// the slice from the back edge's target up through the current node.
func (g *Graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.catalog.dims))
	for _, n := range g.catalog.Names() {
		color[n] = white
	}

	var path []string
	var cycle []string

	var visit func(node string) bool
	visit = func(node string) bool {
		color[node] = gray
		path = append(path, node)

		for _, next := range g.prereqsOf(node) {
			if !g.catalog.Has(next) {
				continue
			}
			switch color[next] {
			case white:
				if visit(next) {
					return true
				}
			case gray:
				// Back edge node -> next: next is an ancestor still on the
				// stack. The cycle is the suffix of path from next to node,
				// closed back to next.
				for i, p := range path {
					if p == next {
						cycle = append(append([]string{}, path[i:]...), next)
						return true
					}
				}
			}
		}

		path = path[:len(path)-1]
		color[node] = black
		return false
	}

	for _, n := range g.catalog.Names() {
		if color[n] == white {
			if visit(n) {
				return cycle
			}
		}
	}
	return nil
}

// topologicalSort returns a DFS-based topological order over prerequisites
// (prerequisite before dependent), tie-broken deterministically by
// declaration order at each branch point.
func (g *Graph) topologicalSort() []string {
	visited := make(map[string]bool, len(g.catalog.dims))
	order := make([]string, 0, len(g.catalog.dims))

	var visit func(node string)
	visit = func(node string) {
		if visited[node] {
			return
		}
		visited[node] = true
		for _, next := range g.prereqsOf(node) {
			if g.catalog.Has(next) {
				visit(next)
			}
		}
		order = append(order, node)
	}

	for _, n := range g.catalog.Names() {
		visit(n)
	}
	return order
}

// group peels nodes whose prerequisites all lie in already-emitted groups.
func (g *Graph) group() ([][]string, error) {
	names := g.catalog.Names()
	placed := make(map[string]bool, len(names))
	remaining := make(map[string]bool, len(names))
	for _, n := range names {
		remaining[n] = true
	}

	var groups [][]string
	for len(remaining) > 0 {
		var frontier []string
		for _, n := range names { // declaration order within a group
			if !remaining[n] {
				continue
			}
			ready := true
			for _, p := range g.prereqsOf(n) {
				if !g.catalog.Has(p) {
					continue
				}
				if !placed[p] {
					ready = false
					break
				}
			}
			if ready {
				frontier = append(frontier, n)
			}
		}
		if len(frontier) == 0 {
			rem := make([]string, 0, len(remaining))
			for _, n := range names {
				if remaining[n] {
					rem = append(rem, n)
				}
			}
			return nil, &ExecutionGroupingError{Remaining: rem}
		}
		for _, n := range frontier {
			placed[n] = true
			delete(remaining, n)
		}
		groups = append(groups, frontier)
	}
	return groups, nil
}

// Plan validates the graph and returns a topological order plus the
// parallel-group partition.
func (g *Graph) Plan() (sorted []string, groups [][]string, err error) {
	if err := g.validateReferences(); err != nil {
		return nil, nil, err
	}
	if cycle := g.findCycle(); cycle != nil {
		return nil, nil, &CircularDependencyError{Cycle: cycle}
	}
	sorted = g.topologicalSort()
	groups, err = g.group()
	if err != nil {
		return nil, nil, err
	}
	return sorted, groups, nil
}

// Analytics summarizes the graph's shape.
type Analytics struct {
	TotalDimensions       int
	TotalDependencies     int
	MaxDepth              int
	CriticalPath          []string
	ParallelGroups        [][]string
	IndependentDimensions []string
	Bottlenecks           []Bottleneck
}

// Bottleneck is a dimension with many direct dependents.
type Bottleneck struct {
	Dimension      string
	DependentCount int
}

func (g *Graph) dependents() map[string][]string {
	dependents := make(map[string][]string, len(g.catalog.dims))
	for _, n := range g.catalog.Names() {
		for _, p := range g.prereqsOf(n) {
			if g.catalog.Has(p) {
				dependents[p] = append(dependents[p], n)
			}
		}
	}
	return dependents
}

// Analytics computes graph-shape analytics. It runs Plan first and returns
// Plan's error if the graph has a cycle or a missing reference.
func (g *Graph) Analytics() (*Analytics, error) {
	sorted, groups, err := g.Plan()
	if err != nil {
		return nil, err
	}

	totalDeps := 0
	for _, n := range g.catalog.Names() {
		totalDeps += len(g.prereqsOf(n))
	}

	dependents := g.dependents()

	// Longest path by hop count, tie-broken by first name in declaration
	// order (topologicalSort already respects declaration order).
	depth := make(map[string]int, len(sorted))
	parent := make(map[string]string, len(sorted))
	for _, n := range sorted {
		best := -1
		for _, p := range g.prereqsOf(n) {
			if !g.catalog.Has(p) {
				continue
			}
			if d := depth[p]; d > best {
				best = d
				parent[n] = p
			}
		}
		depth[n] = best + 1
	}

	deepest := ""
	maxDepth := -1
	for _, n := range sorted {
		if depth[n] > maxDepth {
			maxDepth = depth[n]
			deepest = n
		}
	}
	var criticalPath []string
	for cur := deepest; cur != ""; {
		criticalPath = append([]string{cur}, criticalPath...)
		cur = parent[cur]
	}

	var independent []string
	for _, n := range g.catalog.Names() {
		if len(g.prereqsOf(n)) == 0 && len(dependents[n]) == 0 {
			independent = append(independent, n)
		}
	}

	var bottlenecks []Bottleneck
	for _, n := range g.catalog.Names() {
		if len(dependents[n]) >= 3 {
			bottlenecks = append(bottlenecks, Bottleneck{Dimension: n, DependentCount: len(dependents[n])})
		}
	}
	sort.SliceStable(bottlenecks, func(i, j int) bool {
		return bottlenecks[i].DependentCount > bottlenecks[j].DependentCount
	})

	return &Analytics{
		TotalDimensions:       len(g.catalog.dims),
		TotalDependencies:     totalDeps,
		MaxDepth:              len(groups),
		CriticalPath:          criticalPath,
		ParallelGroups:        groups,
		IndependentDimensions: independent,
		Bottlenecks:           bottlenecks,
	}, nil
}

// ExportDOT renders the graph as a Graphviz DOT digraph, styling global
// dimensions differently from section dimensions.
func (g *Graph) ExportDOT() string {
	var b strings.Builder
	b.WriteString("digraph DagWorkflow {\n  rankdir=LR;\n")
	for _, n := range g.catalog.Names() {
		fill := "lightgreen"
		if g.catalog.IsGlobal(n) {
			fill = "lightblue"
		}
		fmt.Fprintf(&b, "  %q [style=filled, fillcolor=%s];\n", n, fill)
	}
	for _, n := range g.catalog.Names() {
		for _, p := range g.prereqsOf(n) {
			if g.catalog.Has(p) {
				fmt.Fprintf(&b, "  %q -> %q;\n", p, n)
			}
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// GraphNode is one node in the exportJSON node set.
type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// GraphLink is one edge in the exportJSON link set.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphJSON is the exportJSON shape: { nodes, links }.
type GraphJSON struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

// ExportJSON renders the graph as a node/link structure tagged by scope.
func (g *Graph) ExportJSON() GraphJSON {
	out := GraphJSON{}
	for _, n := range g.catalog.Names() {
		typ := "section"
		if g.catalog.IsGlobal(n) {
			typ = "global"
		}
		out.Nodes = append(out.Nodes, GraphNode{ID: n, Label: n, Type: typ})
	}
	for _, n := range g.catalog.Names() {
		for _, p := range g.prereqsOf(n) {
			if g.catalog.Has(p) {
				out.Links = append(out.Links, GraphLink{Source: p, Target: n})
			}
		}
	}
	return out
}
