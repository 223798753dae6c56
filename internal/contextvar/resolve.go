package contextvar

import (
	"golang.org/x/exp/rand"

	"github.com/vk/phylogen/internal/config"
	"github.com/vk/phylogen/internal/expr"
	"github.com/vk/phylogen/internal/value"
)

// Resolver resolves the context entries of a configuration, one sample at a
// time. The dependency graph is built and validated once; Resolve may then
// be called concurrently from multiple workers, each with its own random
// source.
type Resolver struct {
	g       *graph
	ordered []*config.ContextEntry
}

// NewResolver validates the entries (declared references, acyclicity, shape
// constraints) and prepares the resolution order.
func NewResolver(entries []*config.ContextEntry) (*Resolver, error) {
	g, err := buildGraph(entries)
	if err != nil {
		return nil, err
	}
	return &Resolver{g: g, ordered: g.order()}, nil
}

// Validate builds the graph for its side effect of checking the entries.
func Validate(entries []*config.ContextEntry) error {
	_, err := NewResolver(entries)
	return err
}

// Resolve produces one concrete value per variable, drawing all randomness
// from rng. The returned context is owned by the caller and never shared.
func (r *Resolver) Resolve(rng *rand.Rand) (value.Context, error) {
	ctx := make(value.Context, len(r.ordered))
	for _, entry := range r.ordered {
		v, err := resolveEntry(entry, ctx, rng)
		if err != nil {
			return nil, err
		}
		ctx[entry.Name] = v
	}
	return ctx, nil
}

func resolveEntry(entry *config.ContextEntry, ctx value.Context, rng *rand.Rand) (value.Value, error) {
	switch {
	case entry.Expr != nil:
		v, err := expr.Eval(entry.Expr, ctx)
		if err != nil {
			return value.Value{}, subjectify(err, entry.Name)
		}
		return v, nil

	case entry.IsShaped():
		return drawShaped(entry, rng), nil

	default:
		return entry.Dist.Sample(rng), nil
	}
}

// drawShaped draws size-many independent scalars row-major, then zeroes the
// diagonal when requested. Shape validity was checked at load time.
func drawShaped(entry *config.ContextEntry, rng *rand.Rand) value.Value {
	draw := func() float64 {
		s, _ := entry.Dist.Sample(rng).AsScalar()
		return s
	}

	if len(entry.Size) == 1 {
		vec := make([]float64, entry.Size[0])
		for i := range vec {
			vec[i] = draw()
		}
		return value.Vector(vec)
	}

	rows, cols := entry.Size[0], entry.Size[1]
	mat := make([][]float64, rows)
	for i := range mat {
		mat[i] = make([]float64, cols)
		for j := range mat[i] {
			mat[i][j] = draw()
		}
	}
	if entry.ZeroDiagonal {
		for i := range mat {
			mat[i][i] = 0
		}
	}
	return value.Matrix(mat)
}

// subjectify fills in the variable name on config errors that bubbled up
// from expression evaluation without one.
func subjectify(err error, name string) error {
	if ce, ok := err.(*config.Error); ok && ce.Subject == "" {
		return config.NewError(ce.Kind, name, "%s", ce.Msg)
	}
	return err
}
