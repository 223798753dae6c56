package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/phylogen/internal/config"
	"github.com/vk/phylogen/internal/value"
)

func eval(t *testing.T, text string, binds value.Context) value.Value {
	t.Helper()
	v, err := EvalString(text, "test", binds)
	require.NoError(t, err)
	return v
}

func TestArithmetic(t *testing.T) {
	binds := value.Context{
		"x": value.Scalar(0.25),
		"y": value.Scalar(0.5),
	}

	t.Run("scalar expression", func(t *testing.T) {
		v := eval(t, "x * 2 + y", binds)
		assert.True(t, v.Equal(value.Scalar(1)))
	})

	t.Run("unary negation", func(t *testing.T) {
		v := eval(t, "-x", binds)
		assert.True(t, v.Equal(value.Scalar(-0.25)))
	})

	t.Run("parentheses", func(t *testing.T) {
		v := eval(t, "(x + y) / 2", binds)
		assert.True(t, v.Equal(value.Scalar(0.375)))
	})

	t.Run("modulo", func(t *testing.T) {
		v := eval(t, "7 % 3", nil)
		assert.True(t, v.Equal(value.Scalar(1)))
	})

	t.Run("pow function", func(t *testing.T) {
		v := eval(t, "pow(2, 10)", nil)
		assert.True(t, v.Equal(value.Scalar(1024)))
	})
}

func TestBroadcasting(t *testing.T) {
	binds := value.Context{
		"rates": value.Vector([]float64{1, 2, 3}),
		"m":     value.Matrix([][]float64{{0, 1}, {1, 0}}),
		"k":     value.Scalar(10),
	}

	t.Run("scalar times vector", func(t *testing.T) {
		v := eval(t, "rates * k", binds)
		assert.True(t, v.Equal(value.Vector([]float64{10, 20, 30})))
	})

	t.Run("scalar plus matrix", func(t *testing.T) {
		v := eval(t, "m + 1", binds)
		assert.True(t, v.Equal(value.Matrix([][]float64{{1, 2}, {2, 1}})))
	})

	t.Run("elementwise vectors", func(t *testing.T) {
		v := eval(t, "rates + rates", binds)
		assert.True(t, v.Equal(value.Vector([]float64{2, 4, 6})))
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := EvalString("rates + [1, 2]", "test", binds)
		assert.True(t, config.IsKind(err, config.ErrShapeMismatch))
	})

	t.Run("vector with matrix rejected", func(t *testing.T) {
		_, err := EvalString("rates * m", "test", binds)
		assert.True(t, config.IsKind(err, config.ErrShapeMismatch))
	})
}

func TestLiteralsAndIndexing(t *testing.T) {
	binds := value.Context{
		"rates": value.Vector([]float64{5, 6, 7}),
		"m":     value.Matrix([][]float64{{0, 1}, {2, 0}}),
	}

	t.Run("list literal builds a vector", func(t *testing.T) {
		v := eval(t, "[1, 2, 3]", nil)
		assert.True(t, v.Equal(value.Vector([]float64{1, 2, 3})))
	})

	t.Run("nested list builds a matrix", func(t *testing.T) {
		v := eval(t, "[[0, 1], [1, 0]]", nil)
		assert.True(t, v.Equal(value.Matrix([][]float64{{0, 1}, {1, 0}})))
	})

	t.Run("ragged matrix rejected", func(t *testing.T) {
		_, err := EvalString("[[1, 2], [3]]", "test", nil)
		assert.True(t, config.IsKind(err, config.ErrShapeMismatch))
	})

	t.Run("vector index", func(t *testing.T) {
		v := eval(t, "rates[1]", binds)
		assert.True(t, v.Equal(value.Scalar(6)))
	})

	t.Run("matrix index yields row", func(t *testing.T) {
		v := eval(t, "m[1]", binds)
		assert.True(t, v.Equal(value.Vector([]float64{2, 0})))
	})

	t.Run("chained index", func(t *testing.T) {
		v := eval(t, "m[0][1]", binds)
		assert.True(t, v.Equal(value.Scalar(1)))
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := EvalString("rates[9]", "test", binds)
		assert.True(t, config.IsKind(err, config.ErrShapeMismatch))
	})

	t.Run("string literal is a label", func(t *testing.T) {
		v := eval(t, `"E"`, nil)
		assert.True(t, v.Equal(value.Label("E")))
	})
}

func TestFunctions(t *testing.T) {
	binds := value.Context{
		"rates": value.Vector([]float64{3, 1, 2}),
	}

	t.Run("elementwise sqrt", func(t *testing.T) {
		v := eval(t, "sqrt([4, 9])", nil)
		assert.True(t, v.Equal(value.Vector([]float64{2, 3})))
	})

	t.Run("min over vector", func(t *testing.T) {
		v := eval(t, "min(rates)", binds)
		assert.True(t, v.Equal(value.Scalar(1)))
	})

	t.Run("max variadic", func(t *testing.T) {
		v := eval(t, "max(1, 5, 3)", nil)
		assert.True(t, v.Equal(value.Scalar(5)))
	})

	t.Run("sum", func(t *testing.T) {
		v := eval(t, "sum(rates)", binds)
		assert.True(t, v.Equal(value.Scalar(6)))
	})

	t.Run("len", func(t *testing.T) {
		v := eval(t, "len(rates)", binds)
		assert.True(t, v.Equal(value.Scalar(3)))
	})

	t.Run("slice", func(t *testing.T) {
		v := eval(t, "slice(rates, 1, 3)", binds)
		assert.True(t, v.Equal(value.Vector([]float64{1, 2})))
	})

	t.Run("slice bounds checked", func(t *testing.T) {
		_, err := EvalString("slice(rates, 0, 9)", "test", binds)
		assert.True(t, config.IsKind(err, config.ErrShapeMismatch))
	})
}

func TestComparisonsAndLogic(t *testing.T) {
	binds := value.Context{"x": value.Scalar(2), "v": value.Vector([]float64{1, 2})}

	t.Run("ordering", func(t *testing.T) {
		v := eval(t, "x > 1", binds)
		assert.True(t, v.Equal(value.Bool(true)))
	})

	t.Run("equality on vectors", func(t *testing.T) {
		v := eval(t, "v == [1, 2]", binds)
		assert.True(t, v.Equal(value.Bool(true)))
	})

	t.Run("ordering requires scalars", func(t *testing.T) {
		_, err := EvalString("v > 1", "test", binds)
		assert.True(t, config.IsKind(err, config.ErrShapeMismatch))
	})

	t.Run("logical and", func(t *testing.T) {
		v := eval(t, "x > 1 && x < 3", binds)
		assert.True(t, v.Equal(value.Bool(true)))
	})

	t.Run("logical not", func(t *testing.T) {
		v := eval(t, "!(x > 1)", binds)
		assert.True(t, v.Equal(value.Bool(false)))
	})
}

func TestSandbox(t *testing.T) {
	t.Run("unknown variable", func(t *testing.T) {
		_, err := EvalString("missing + 1", "test", nil)
		require.Error(t, err)
		assert.True(t, config.IsKind(err, config.ErrUnknownVariable))
		assert.ErrorContains(t, err, "missing")
	})

	t.Run("disallowed function", func(t *testing.T) {
		_, err := EvalString("file(\"/etc/passwd\")", "test", nil)
		require.Error(t, err)
		assert.True(t, config.IsKind(err, config.ErrUnsafeExpression))
		assert.ErrorContains(t, err, `"file" is not allowed`)
	})

	t.Run("conditional rejected", func(t *testing.T) {
		_, err := EvalString("true ? 1 : 2", "test", nil)
		require.Error(t, err)
		assert.True(t, config.IsKind(err, config.ErrUnsafeExpression))
	})

	t.Run("for expression rejected", func(t *testing.T) {
		_, err := EvalString("[for i in [1, 2] : i]", "test", nil)
		require.Error(t, err)
		assert.True(t, config.IsKind(err, config.ErrUnsafeExpression))
	})

	t.Run("attribute access rejected", func(t *testing.T) {
		_, err := EvalString("x.field", "test", value.Context{"x": value.Scalar(1)})
		require.Error(t, err)
		assert.True(t, config.IsKind(err, config.ErrUnsafeExpression))
	})

	t.Run("template interpolation rejected", func(t *testing.T) {
		_, err := EvalString(`"prefix-${1}"`, "test", nil)
		require.Error(t, err)
		assert.True(t, config.IsKind(err, config.ErrUnsafeExpression))
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := EvalString("1 +", "test", nil)
		require.Error(t, err)
		assert.True(t, config.IsKind(err, config.ErrUnsafeExpression))
	})
}

func TestFreeVariables(t *testing.T) {
	e, err := Parse("a * b + a + sum(c)", "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, FreeVariables(e))
}
