package value

import (
	"fmt"
	"math"
)

// Broadcast combines two numeric values elementwise. Scalars broadcast
// against vectors and matrices; two arrays must have identical shapes.
// Vector-against-matrix combinations are rejected rather than guessed at.
func Broadcast(a, b Value, f func(x, y float64) float64) (Value, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return Value{}, fmt.Errorf("cannot combine a %s with a %s", a.kind, b.kind)
	}

	switch {
	case a.kind == KindScalar && b.kind == KindScalar:
		return Scalar(f(a.scalar, b.scalar)), nil

	case a.kind == KindScalar && b.kind == KindVector:
		return Vector(mapVec(b.vec, func(y float64) float64 { return f(a.scalar, y) })), nil
	case a.kind == KindVector && b.kind == KindScalar:
		return Vector(mapVec(a.vec, func(x float64) float64 { return f(x, b.scalar) })), nil

	case a.kind == KindScalar && b.kind == KindMatrix:
		return Matrix(mapMat(b.mat, func(y float64) float64 { return f(a.scalar, y) })), nil
	case a.kind == KindMatrix && b.kind == KindScalar:
		return Matrix(mapMat(a.mat, func(x float64) float64 { return f(x, b.scalar) })), nil

	case a.kind == KindVector && b.kind == KindVector:
		if len(a.vec) != len(b.vec) {
			return Value{}, fmt.Errorf("vector lengths differ: %d vs %d", len(a.vec), len(b.vec))
		}
		out := make([]float64, len(a.vec))
		for i := range out {
			out[i] = f(a.vec[i], b.vec[i])
		}
		return Vector(out), nil

	case a.kind == KindMatrix && b.kind == KindMatrix:
		if len(a.mat) != len(b.mat) {
			return Value{}, fmt.Errorf("matrix row counts differ: %d vs %d", len(a.mat), len(b.mat))
		}
		out := make([][]float64, len(a.mat))
		for i := range out {
			if len(a.mat[i]) != len(b.mat[i]) {
				return Value{}, fmt.Errorf("matrix row %d lengths differ: %d vs %d", i, len(a.mat[i]), len(b.mat[i]))
			}
			out[i] = make([]float64, len(a.mat[i]))
			for j := range out[i] {
				out[i][j] = f(a.mat[i][j], b.mat[i][j])
			}
		}
		return Matrix(out), nil
	}

	return Value{}, fmt.Errorf("cannot combine a %s with a %s", a.kind, b.kind)
}

// Map applies f to every element of a numeric value.
func Map(v Value, f func(float64) float64) (Value, error) {
	switch v.kind {
	case KindScalar:
		return Scalar(f(v.scalar)), nil
	case KindVector:
		return Vector(mapVec(v.vec, f)), nil
	case KindMatrix:
		return Matrix(mapMat(v.mat, f)), nil
	}
	return Value{}, fmt.Errorf("cannot apply a numeric function to a %s", v.kind)
}

// Sum adds all elements of a numeric value.
func Sum(v Value) (float64, error) {
	switch v.kind {
	case KindScalar:
		return v.scalar, nil
	case KindVector:
		var s float64
		for _, f := range v.vec {
			s += f
		}
		return s, nil
	case KindMatrix:
		var s float64
		for _, row := range v.mat {
			for _, f := range row {
				s += f
			}
		}
		return s, nil
	}
	return 0, fmt.Errorf("cannot sum a %s", v.kind)
}

// FillVector builds a length-n vector with every element equal to f.
func FillVector(f float64, n int) Value {
	v := make([]float64, n)
	for i := range v {
		v[i] = f
	}
	return Vector(v)
}

// FillMatrix builds an n-by-n matrix with every element equal to f.
func FillMatrix(f float64, n int) Value {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			m[i][j] = f
		}
	}
	return Matrix(m)
}

func mapVec(v []float64, f func(float64) float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = f(x)
	}
	return out
}

func mapMat(m [][]float64, f func(float64) float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = mapVec(row, f)
	}
	return out
}

// Pow is math.Pow, exported here so the expression evaluator and tests share
// one definition.
func Pow(x, y float64) float64 { return math.Pow(x, y) }
