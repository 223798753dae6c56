package skyline

import (
	"github.com/vk/phylogen/internal/config"
	"github.com/vk/phylogen/internal/expr"
	"github.com/vk/phylogen/internal/value"
)

// Resolve turns a parameter spec into a normalized skyline against one
// sample's resolved context. populations gives P, the expected length for
// vector roles and the side for matrix roles; scalars supplied for a
// vector or matrix role broadcast to a uniform vector/matrix.
func Resolve(p *config.ParameterSpec, ctx value.Context, populations int) (*Skyline, error) {
	if p.IsConstant() {
		v, err := resolveElement(p.Value, ctx, p.Name)
		if err != nil {
			return nil, err
		}
		conformed, err := conform(v, p.Dims, populations, p.Name)
		if err != nil {
			return nil, err
		}
		return Constant(conformed), nil
	}

	values, err := resolveIntervalValues(p, ctx)
	if err != nil {
		return nil, err
	}
	times, err := resolveChangeTimes(p, ctx)
	if err != nil {
		return nil, err
	}

	if len(values) != len(times)+1 {
		return nil, config.NewError(config.ErrSkylineShapeMismatch, p.Name,
			"value must have exactly one more element than change_times (got %d values and %d change times)",
			len(values), len(times))
	}
	for i, t := range times {
		if t < 0 {
			return nil, config.NewError(config.ErrSkylineShapeMismatch, p.Name,
				"change times must be non-negative (got %g)", t)
		}
		if i > 0 && times[i-1] >= t {
			return nil, config.NewError(config.ErrSkylineShapeMismatch, p.Name,
				"change times must be strictly increasing (got %g then %g)", times[i-1], t)
		}
	}

	for i, v := range values {
		conformed, err := conform(v, p.Dims, populations, p.Name)
		if err != nil {
			return nil, err
		}
		values[i] = conformed
	}
	return &Skyline{ChangeTimes: times, Values: values}, nil
}

// resolveIntervalValues produces one value per interval. A list spec
// resolves each element independently; an expression spec must evaluate to
// a sequence whose first axis enumerates the intervals.
func resolveIntervalValues(p *config.ParameterSpec, ctx value.Context) ([]value.Value, error) {
	elem := p.Value
	switch {
	case elem.List != nil:
		values := make([]value.Value, len(elem.List))
		for i, child := range elem.List {
			v, err := resolveElement(child, ctx, p.Name)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return values, nil

	case elem.Expr != nil:
		whole, err := resolveElement(elem, ctx, p.Name)
		if err != nil {
			return nil, err
		}
		switch whole.Kind() {
		case value.KindVector:
			vec, _ := whole.AsVector()
			values := make([]value.Value, len(vec))
			for i, f := range vec {
				values[i] = value.Scalar(f)
			}
			return values, nil
		case value.KindMatrix:
			mat, _ := whole.AsMatrix()
			values := make([]value.Value, len(mat))
			for i, row := range mat {
				values[i] = value.Vector(row)
			}
			return values, nil
		}
		return nil, config.NewError(config.ErrSkylineShapeMismatch, p.Name,
			"expression %q must yield one value per interval (got a %s)", elem.Text, whole.Kind())
	}

	return nil, config.NewError(config.ErrSkylineShapeMismatch, p.Name,
		"a piecewise parameter needs a list of interval values")
}

func resolveChangeTimes(p *config.ParameterSpec, ctx value.Context) ([]float64, error) {
	v, err := resolveElement(p.ChangeTimes, ctx, p.Name)
	if err != nil {
		return nil, err
	}
	switch v.Kind() {
	case value.KindScalar:
		t, _ := v.AsScalar()
		return []float64{t}, nil
	case value.KindVector:
		vec, _ := v.AsVector()
		return vec, nil
	}
	return nil, config.NewError(config.ErrSkylineShapeMismatch, p.Name,
		"change_times must resolve to scalars (got a %s)", v.Kind())
}

// resolveElement evaluates one element tree: literal, expression, or nested
// list (vector or matrix of literals/expressions).
func resolveElement(e *config.Element, ctx value.Context, subject string) (value.Value, error) {
	switch {
	case e.Literal != nil:
		return value.Scalar(*e.Literal), nil

	case e.Expr != nil:
		v, err := expr.Eval(e.Expr, ctx)
		if err != nil {
			return value.Value{}, subjectify(err, subject)
		}
		return v, nil

	case e.List != nil:
		children := make([]value.Value, len(e.List))
		for i, child := range e.List {
			v, err := resolveElement(child, ctx, subject)
			if err != nil {
				return value.Value{}, err
			}
			children[i] = v
		}
		return assemble(children, subject)
	}
	return value.Value{}, config.NewError(config.ErrSkylineShapeMismatch, subject, "empty skyline element")
}

// assemble builds a vector from scalar children or a matrix from vector
// children, rejecting mixed or ragged shapes.
func assemble(children []value.Value, subject string) (value.Value, error) {
	if len(children) == 0 {
		return value.Vector(nil), nil
	}
	switch children[0].Kind() {
	case value.KindScalar:
		vec := make([]float64, len(children))
		for i, c := range children {
			f, err := c.AsScalar()
			if err != nil {
				return value.Value{}, config.NewError(config.ErrSkylineShapeMismatch, subject,
					"list mixes scalars with other shapes: %s", err)
			}
			vec[i] = f
		}
		return value.Vector(vec), nil
	case value.KindVector:
		mat := make([][]float64, len(children))
		width := -1
		for i, c := range children {
			row, err := c.AsVector()
			if err != nil {
				return value.Value{}, config.NewError(config.ErrSkylineShapeMismatch, subject,
					"list mixes vectors with other shapes: %s", err)
			}
			if width == -1 {
				width = len(row)
			} else if len(row) != width {
				return value.Value{}, config.NewError(config.ErrSkylineShapeMismatch, subject,
					"ragged matrix rows: %d vs %d", width, len(row))
			}
			mat[i] = row
		}
		return value.Matrix(mat), nil
	}
	return value.Value{}, config.NewError(config.ErrSkylineShapeMismatch, subject,
		"lists may contain only scalars or vectors (got a %s)", children[0].Kind())
}

// conform validates a resolved interval value against the parameter's role,
// broadcasting scalars up to vectors and matrices.
func conform(v value.Value, dims config.Dims, populations int, subject string) (value.Value, error) {
	switch dims {
	case config.DimsScalar:
		if v.Kind() != value.KindScalar {
			return value.Value{}, config.NewError(config.ErrSkylineShapeMismatch, subject,
				"expected a scalar value (got a %s)", v.Kind())
		}
		return v, nil

	case config.DimsVector:
		switch v.Kind() {
		case value.KindScalar:
			f, _ := v.AsScalar()
			return value.FillVector(f, populations), nil
		case value.KindVector:
			vec, _ := v.AsVector()
			if len(vec) != populations {
				return value.Value{}, config.NewError(config.ErrSkylineShapeMismatch, subject,
					"expected a vector of length %d (got length %d)", populations, len(vec))
			}
			return v, nil
		}
		return value.Value{}, config.NewError(config.ErrSkylineShapeMismatch, subject,
			"expected a scalar or length-%d vector (got a %s)", populations, v.Kind())

	case config.DimsMatrix:
		switch v.Kind() {
		case value.KindScalar:
			f, _ := v.AsScalar()
			return value.FillMatrix(f, populations), nil
		case value.KindMatrix:
			mat, _ := v.AsMatrix()
			if len(mat) != populations {
				return value.Value{}, config.NewError(config.ErrSkylineShapeMismatch, subject,
					"expected a %dx%d matrix (got %d rows)", populations, populations, len(mat))
			}
			for i, row := range mat {
				if len(row) != populations {
					return value.Value{}, config.NewError(config.ErrSkylineShapeMismatch, subject,
						"expected a %dx%d matrix (row %d has %d columns)", populations, populations, i, len(row))
				}
			}
			return v, nil
		}
		return value.Value{}, config.NewError(config.ErrSkylineShapeMismatch, subject,
			"expected a scalar or %dx%d matrix (got a %s)", populations, populations, v.Kind())
	}
	return value.Value{}, config.NewError(config.ErrSkylineShapeMismatch, subject, "unknown dims %q", dims)
}

func subjectify(err error, name string) error {
	if ce, ok := err.(*config.Error); ok && ce.Subject == "" {
		return config.NewError(ce.Kind, name, "%s", ce.Msg)
	}
	return err
}
