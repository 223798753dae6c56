package expr

import (
	"math"

	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/vk/phylogen/internal/config"
	"github.com/vk/phylogen/internal/value"
)

// The function allow-list. Anything not named here is rejected as an unsafe
// expression; expressions never reach arbitrary Go code.
var functions = map[string]func([]value.Value) (value.Value, error){
	"abs":   elementwise(math.Abs),
	"ceil":  elementwise(math.Ceil),
	"floor": elementwise(math.Floor),
	"exp":   elementwise(math.Exp),
	"log":   elementwise(math.Log),
	"sqrt":  elementwise(math.Sqrt),
	"pow":   powFunc,
	"min":   extremumFunc("min", math.Min),
	"max":   extremumFunc("max", math.Max),
	"sum":   sumFunc,
	"len":   lenFunc,
	"slice": sliceFunc,
}

func (ev *evaluator) evalCall(node *hclsyntax.FunctionCallExpr) (value.Value, error) {
	fn, ok := functions[node.Name]
	if !ok {
		return value.Value{}, config.NewError(config.ErrUnsafeExpression, "",
			"function %q is not allowed", node.Name)
	}
	args := make([]value.Value, len(node.Args))
	for i, argExpr := range node.Args {
		v, err := ev.eval(argExpr)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = v
	}
	return fn(args)
}

func elementwise(f func(float64) float64) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Value{}, config.NewError(config.ErrUnsafeExpression, "", "expected exactly one argument")
		}
		out, err := value.Map(args[0], f)
		if err != nil {
			return value.Value{}, config.WrapError(config.ErrShapeMismatch, "", err)
		}
		return out, nil
	}
}

// powFunc is the exponentiation entry point: the HCL grammar has no power
// operator, so pow(base, exponent) stands in for it, with the usual
// broadcast semantics.
func powFunc(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Value{}, config.NewError(config.ErrUnsafeExpression, "", "pow expects two arguments")
	}
	return broadcast(args[0], args[1], value.Pow)
}

func extremumFunc(name string, f func(x, y float64) float64) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Value{}, config.NewError(config.ErrUnsafeExpression, "", "%s expects at least one argument", name)
		}
		// A single vector argument reduces over its elements.
		if len(args) == 1 && args[0].Kind() == value.KindVector {
			vec, _ := args[0].AsVector()
			if len(vec) == 0 {
				return value.Value{}, config.NewError(config.ErrShapeMismatch, "", "%s of an empty vector", name)
			}
			acc := vec[0]
			for _, x := range vec[1:] {
				acc = f(acc, x)
			}
			return value.Scalar(acc), nil
		}
		acc, err := args[0].AsScalar()
		if err != nil {
			return value.Value{}, config.NewError(config.ErrShapeMismatch, "", "%s expects scalar arguments: %s", name, err)
		}
		for _, arg := range args[1:] {
			x, err := arg.AsScalar()
			if err != nil {
				return value.Value{}, config.NewError(config.ErrShapeMismatch, "", "%s expects scalar arguments: %s", name, err)
			}
			acc = f(acc, x)
		}
		return value.Scalar(acc), nil
	}
}

func sumFunc(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, config.NewError(config.ErrUnsafeExpression, "", "sum expects exactly one argument")
	}
	s, err := value.Sum(args[0])
	if err != nil {
		return value.Value{}, config.WrapError(config.ErrShapeMismatch, "", err)
	}
	return value.Scalar(s), nil
}

func lenFunc(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, config.NewError(config.ErrUnsafeExpression, "", "len expects exactly one argument")
	}
	switch args[0].Kind() {
	case value.KindVector, value.KindMatrix:
		return value.Scalar(float64(args[0].Len())), nil
	}
	return value.Value{}, config.NewError(config.ErrShapeMismatch, "", "len expects a vector or matrix")
}

// sliceFunc returns v[from:to] over a vector's elements or a matrix's rows.
func sliceFunc(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return value.Value{}, config.NewError(config.ErrUnsafeExpression, "", "slice expects (value, from, to)")
	}
	from, err1 := args[1].AsScalar()
	to, err2 := args[2].AsScalar()
	if err1 != nil || err2 != nil || from != math.Trunc(from) || to != math.Trunc(to) {
		return value.Value{}, config.NewError(config.ErrUnsafeExpression, "", "slice bounds must be integers")
	}
	lo, hi := int(from), int(to)
	n := args[0].Len()
	if lo < 0 || hi > n || lo > hi {
		return value.Value{}, config.NewError(config.ErrShapeMismatch, "", "slice bounds [%d:%d] out of range for length %d", lo, hi, n)
	}
	switch args[0].Kind() {
	case value.KindVector:
		vec, _ := args[0].AsVector()
		return value.Vector(append([]float64(nil), vec[lo:hi]...)), nil
	case value.KindMatrix:
		mat, _ := args[0].AsMatrix()
		out := make([][]float64, hi-lo)
		for i, row := range mat[lo:hi] {
			out[i] = append([]float64(nil), row...)
		}
		return value.Matrix(out), nil
	}
	return value.Value{}, config.NewError(config.ErrShapeMismatch, "", "slice expects a vector or matrix")
}
