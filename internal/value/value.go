// Package value defines the concrete values produced by context and skyline
// resolution: scalars, 1-D vectors, 2-D matrices, categorical labels and
// booleans. Values are immutable once constructed; arithmetic between values
// follows elementwise broadcast semantics (a scalar combines with every
// element of an array, two arrays combine elementwise with matching shapes).
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the variants of Value.
type Kind int

const (
	KindScalar Kind = iota
	KindVector
	KindMatrix
	KindLabel
	KindBool
)

// String returns a human-readable name for the kind, used in error messages.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindVector:
		return "vector"
	case KindMatrix:
		return "matrix"
	case KindLabel:
		return "label"
	case KindBool:
		return "bool"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a tagged union over the value kinds. The zero value is the
// scalar 0.
type Value struct {
	kind   Kind
	scalar float64
	vec    []float64
	mat    [][]float64
	label  string
	b      bool
}

// Context maps context-variable names to their resolved values for one
// simulation sample. It is built fresh per sample and never shared across
// samples.
type Context map[string]Value

// Scalar wraps a float64.
func Scalar(f float64) Value { return Value{kind: KindScalar, scalar: f} }

// Vector wraps a 1-D array. The slice is owned by the returned value and
// must not be mutated afterwards.
func Vector(v []float64) Value { return Value{kind: KindVector, vec: v} }

// Matrix wraps a 2-D array with rectangular rows.
func Matrix(m [][]float64) Value { return Value{kind: KindMatrix, mat: m} }

// Label wraps a categorical draw.
func Label(s string) Value { return Value{kind: KindLabel, label: s} }

// Bool wraps a comparison result.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNumeric reports whether v is a scalar, vector or matrix.
func (v Value) IsNumeric() bool {
	return v.kind == KindScalar || v.kind == KindVector || v.kind == KindMatrix
}

// AsScalar returns the underlying float64, or an error for non-scalars.
func (v Value) AsScalar() (float64, error) {
	if v.kind != KindScalar {
		return 0, fmt.Errorf("expected a scalar, got a %s", v.kind)
	}
	return v.scalar, nil
}

// AsVector returns the underlying 1-D array, or an error for other kinds.
func (v Value) AsVector() ([]float64, error) {
	if v.kind != KindVector {
		return nil, fmt.Errorf("expected a vector, got a %s", v.kind)
	}
	return v.vec, nil
}

// AsMatrix returns the underlying 2-D array, or an error for other kinds.
func (v Value) AsMatrix() ([][]float64, error) {
	if v.kind != KindMatrix {
		return nil, fmt.Errorf("expected a matrix, got a %s", v.kind)
	}
	return v.mat, nil
}

// AsLabel returns the underlying category label, or an error for other kinds.
func (v Value) AsLabel() (string, error) {
	if v.kind != KindLabel {
		return "", fmt.Errorf("expected a label, got a %s", v.kind)
	}
	return v.label, nil
}

// AsBool returns the underlying boolean, or an error for other kinds.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, fmt.Errorf("expected a bool, got a %s", v.kind)
	}
	return v.b, nil
}

// Len returns the number of elements along the first axis: 1 for scalars,
// the length for vectors and the row count for matrices.
func (v Value) Len() int {
	switch v.kind {
	case KindVector:
		return len(v.vec)
	case KindMatrix:
		return len(v.mat)
	default:
		return 1
	}
}

// Index returns the i-th element: a scalar for vectors, a row vector for
// matrices.
func (v Value) Index(i int) (Value, error) {
	switch v.kind {
	case KindVector:
		if i < 0 || i >= len(v.vec) {
			return Value{}, fmt.Errorf("index %d out of range for vector of length %d", i, len(v.vec))
		}
		return Scalar(v.vec[i]), nil
	case KindMatrix:
		if i < 0 || i >= len(v.mat) {
			return Value{}, fmt.Errorf("index %d out of range for matrix with %d rows", i, len(v.mat))
		}
		return Vector(append([]float64(nil), v.mat[i]...)), nil
	default:
		return Value{}, fmt.Errorf("cannot index a %s", v.kind)
	}
}

// Equal reports deep equality of two values, including their kinds.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindScalar:
		return v.scalar == o.scalar
	case KindLabel:
		return v.label == o.label
	case KindBool:
		return v.b == o.b
	case KindVector:
		if len(v.vec) != len(o.vec) {
			return false
		}
		for i := range v.vec {
			if v.vec[i] != o.vec[i] {
				return false
			}
		}
		return true
	case KindMatrix:
		if len(v.mat) != len(o.mat) {
			return false
		}
		for i := range v.mat {
			if len(v.mat[i]) != len(o.mat[i]) {
				return false
			}
			for j := range v.mat[i] {
				if v.mat[i][j] != o.mat[i][j] {
					return false
				}
			}
		}
		return true
	}
	return false
}

// String renders the value for metadata rows and error messages. Scalars use
// the shortest round-trip float representation, arrays render as bracketed
// lists.
func (v Value) String() string {
	switch v.kind {
	case KindScalar:
		return formatFloat(v.scalar)
	case KindLabel:
		return v.label
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindVector:
		return formatVector(v.vec)
	case KindMatrix:
		parts := make([]string, len(v.mat))
		for i, row := range v.mat {
			parts[i] = formatVector(row)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "<invalid>"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = formatFloat(f)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
