package expr

import (
	"sort"

	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// FreeVariables returns the sorted, de-duplicated root identifiers an
// expression references. These are the dependency edges of the context
// graph.
func FreeVariables(e hclsyntax.Expression) []string {
	seen := make(map[string]bool)
	for _, traversal := range e.Variables() {
		seen[traversal.RootName()] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
