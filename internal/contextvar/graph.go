// Package contextvar resolves the declared context variables of a
// configuration into concrete per-sample values. Entries form a dependency
// graph (an expression entry depends on every variable it references); the
// graph is validated once up front and then resolved in a deterministic
// topological order for every sample.
package contextvar

import (
	"fmt"
	"strings"

	"github.com/vk/phylogen/internal/config"
	"github.com/vk/phylogen/internal/expr"
)

// graph is the dependency graph over context entries, keyed by name.
type graph struct {
	entries []*config.ContextEntry
	deps    map[string][]string // entry name -> names it depends on
}

// buildGraph constructs and validates the dependency graph: every referenced
// name must be declared, and the graph must be acyclic.
func buildGraph(entries []*config.ContextEntry) (*graph, error) {
	declared := make(map[string]bool, len(entries))
	for _, e := range entries {
		declared[e.Name] = true
	}

	g := &graph{entries: entries, deps: make(map[string][]string, len(entries))}
	for _, e := range entries {
		if e.Expr == nil {
			g.deps[e.Name] = nil
			continue
		}
		refs := expr.FreeVariables(e.Expr)
		for _, ref := range refs {
			if !declared[ref] {
				return nil, config.NewError(config.ErrUnknownVariable, e.Name,
					"expression %q references undeclared variable %q", e.Text, ref)
			}
			if ref == e.Name {
				return nil, config.NewError(config.ErrCyclicDependency, e.Name,
					"expression %q references the variable itself", e.Text)
			}
		}
		g.deps[e.Name] = refs
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, config.NewError(config.ErrCyclicDependency, cycle[0],
			"context variables form a cycle: %s", strings.Join(cycle, " -> "))
	}
	return g, nil
}

// findCycle runs a depth-first search with the classic three node states:
// unvisited, in the current path, and fully explored. It returns the names
// along one detected cycle, or nil.
func (g *graph) findCycle() []string {
	const (
		unvisited = 0
		inPath    = 1
		done      = 2
	)
	state := make(map[string]int, len(g.entries))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		state[name] = inPath
		stack = append(stack, name)
		for _, dep := range g.deps[name] {
			switch state[dep] {
			case inPath:
				// Slice the stack from the first occurrence of dep to close the loop.
				for i, n := range stack {
					if n == dep {
						cycle = append(append([]string(nil), stack[i:]...), dep)
						return true
					}
				}
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return false
	}

	for _, e := range g.entries {
		if state[e.Name] == unvisited && visit(e.Name) {
			return cycle
		}
	}
	return nil
}

// order returns the entries in resolution order: a topological order with
// ties broken by declaration order, so that the sequence of random draws is
// identical on every run with the same spec.
func (g *graph) order() []*config.ContextEntry {
	resolved := make(map[string]bool, len(g.entries))
	ordered := make([]*config.ContextEntry, 0, len(g.entries))

	for len(ordered) < len(g.entries) {
		progressed := false
		for _, e := range g.entries {
			if resolved[e.Name] {
				continue
			}
			ready := true
			for _, dep := range g.deps[e.Name] {
				if !resolved[dep] {
					ready = false
					break
				}
			}
			if ready {
				resolved[e.Name] = true
				ordered = append(ordered, e)
				progressed = true
			}
		}
		if !progressed {
			// Unreachable after buildGraph's cycle check.
			panic(fmt.Sprintf("contextvar: no progress ordering entries, resolved %d of %d", len(ordered), len(g.entries)))
		}
	}
	return ordered
}
