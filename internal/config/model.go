// Package config loads and validates the declarative HCL configuration into
// an immutable model: the dataset settings, the context-variable entries,
// the skyline parameter specs and the simulator command. The model is parsed
// once per run and shared read-only by all workers.
package config

import (
	"time"

	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/vk/phylogen/internal/distribution"
)

// Model is the fully decoded configuration for one generation run.
type Model struct {
	Dataset   *DatasetSpec
	Variables []*ContextEntry  // declaration order, drives metadata columns
	Params    []*ParameterSpec // declaration order
	Simulator *SimulatorSpec   // nil when no simulator block is present
}

// Variable returns the context entry with the given name, or nil.
func (m *Model) Variable(name string) *ContextEntry {
	for _, v := range m.Variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Split is one named slice of the dataset (e.g. train/val/test) with its
// sample count.
type Split struct {
	Name  string
	Count int
}

// DatasetSpec holds run-level settings from the dataset block.
type DatasetSpec struct {
	OutputDir   string
	Seed        *uint64 // nil means derive from wall clock
	Workers     int     // 0 means all available cores
	Retries     int     // bounded per-sample retry budget
	Splits      []Split // declaration order; a single unnamed split for `total`
	Populations []string
}

// ContextEntry is one declared context variable: exactly one of Dist, Expr
// or the shaped form (Size plus Dist) is populated.
type ContextEntry struct {
	Name string

	// Dist draws a single scalar, or fills a shaped entry element-wise.
	Dist *distribution.Spec

	// Size gives the shape of a shaped entry: one element for a vector,
	// two for a matrix. Empty for plain entries.
	Size []int

	// ZeroDiagonal forces the diagonal of a square matrix entry to zero
	// after drawing.
	ZeroDiagonal bool

	// Expr is a dependent entry evaluated against previously resolved
	// variables. Text keeps the source for error messages.
	Expr hclsyntax.Expression
	Text string
}

// IsShaped reports whether the entry draws an array of independent scalars.
func (e *ContextEntry) IsShaped() bool { return len(e.Size) > 0 }

// Dims names the dimensionality a skyline parameter must resolve to.
type Dims string

const (
	DimsScalar Dims = "scalar"
	DimsVector Dims = "vector"
	DimsMatrix Dims = "matrix"
)

// ParameterSpec is one declared skyline parameter. A constant-form spec has
// ChangeTimes == nil and a single Value element; a piecewise spec carries a
// list of value elements plus change times.
type ParameterSpec struct {
	Name        string
	Dims        Dims
	Value       *Element
	ChangeTimes *Element
}

// IsConstant reports whether the spec is in constant form.
func (p *ParameterSpec) IsConstant() bool { return p.ChangeTimes == nil }

// Element is one node of a skyline value tree: a numeric literal, an
// expression over context variables (parsed from a config string), or a
// list of nested elements.
type Element struct {
	Literal *float64
	Expr    hclsyntax.Expression
	Text    string
	List    []*Element
}

// SimulatorSpec configures the external simulator command. Argv entries may
// contain the placeholders {seed}, {params} and {output}.
type SimulatorSpec struct {
	Command []string
	Timeout time.Duration
}
