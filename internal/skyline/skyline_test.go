package skyline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/phylogen/internal/config"
	"github.com/vk/phylogen/internal/value"
)

func param(t *testing.T, src string) *config.ParameterSpec {
	t.Helper()
	model, err := config.LoadSource([]byte(src), "test.hcl")
	require.NoError(t, err)
	require.Len(t, model.Params, 1)
	return model.Params[0]
}

func TestResolveConstant(t *testing.T) {
	t.Run("literal", func(t *testing.T) {
		p := param(t, `parameter "rate" { value = 0.05 }`)
		s, err := Resolve(p, nil, 0)
		require.NoError(t, err)
		assert.True(t, s.IsConstant())
		assert.True(t, s.ValueAt(0).Equal(value.Scalar(0.05)))
		assert.Equal(t, "0.05", s.String())
	})

	t.Run("expression over context", func(t *testing.T) {
		p := param(t, `parameter "rate" { value = "base * 2" }`)
		ctx := value.Context{"base": value.Scalar(0.1)}
		s, err := Resolve(p, ctx, 0)
		require.NoError(t, err)
		assert.True(t, s.ValueAt(99).Equal(value.Scalar(0.2)))
	})

	t.Run("scalar broadcasts to vector role", func(t *testing.T) {
		p := param(t, `
parameter "sampling" {
  dims  = "vector"
  value = 0.3
}
`)
		s, err := Resolve(p, nil, 3)
		require.NoError(t, err)
		assert.True(t, s.Values[0].Equal(value.Vector([]float64{0.3, 0.3, 0.3})))
	})

	t.Run("scalar broadcasts to matrix role", func(t *testing.T) {
		p := param(t, `
parameter "migration" {
  dims  = "matrix"
  value = 0.1
}
`)
		s, err := Resolve(p, nil, 2)
		require.NoError(t, err)
		assert.True(t, s.Values[0].Equal(value.Matrix([][]float64{{0.1, 0.1}, {0.1, 0.1}})))
	})

	t.Run("wrong vector length", func(t *testing.T) {
		p := param(t, `
parameter "sampling" {
  dims  = "vector"
  value = [0.1, 0.2]
}
`)
		_, err := Resolve(p, nil, 3)
		require.Error(t, err)
		assert.True(t, config.IsKind(err, config.ErrSkylineShapeMismatch))
	})
}

func TestResolvePiecewise(t *testing.T) {
	ctx := value.Context{
		"x": value.Scalar(0.05),
		"y": value.Scalar(0.2),
	}

	t.Run("mixed literals and expressions", func(t *testing.T) {
		p := param(t, `
parameter "rate" {
  value        = [0, "x", "y"]
  change_times = [1, 2]
}
`)
		s, err := Resolve(p, ctx, 0)
		require.NoError(t, err)
		require.Len(t, s.Values, 3)
		assert.True(t, s.Values[0].Equal(value.Scalar(0)))
		assert.True(t, s.Values[1].Equal(value.Scalar(0.05)))
		assert.True(t, s.Values[2].Equal(value.Scalar(0.2)))
		assert.Equal(t, []float64{1, 2}, s.ChangeTimes)
	})

	t.Run("expression yielding a vector of intervals", func(t *testing.T) {
		p := param(t, `
parameter "rate" {
  value        = "[x, y]"
  change_times = 1.5
}
`)
		s, err := Resolve(p, ctx, 0)
		require.NoError(t, err)
		require.Len(t, s.Values, 2)
		assert.Equal(t, []float64{1.5}, s.ChangeTimes)
	})

	t.Run("scalar change time wraps to a single interval boundary", func(t *testing.T) {
		p := param(t, `
parameter "rate" {
  value        = [1, 2]
  change_times = 3
}
`)
		s, err := Resolve(p, ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []float64{3}, s.ChangeTimes)
	})

	t.Run("per-interval scalars broadcast to vector role", func(t *testing.T) {
		p := param(t, `
parameter "sampling" {
  dims         = "vector"
  value        = [0, "y"]
  change_times = [2]
}
`)
		s, err := Resolve(p, ctx, 2)
		require.NoError(t, err)
		assert.True(t, s.Values[0].Equal(value.Vector([]float64{0, 0})))
		assert.True(t, s.Values[1].Equal(value.Vector([]float64{0.2, 0.2})))
	})

	t.Run("count mismatch", func(t *testing.T) {
		p := param(t, `
parameter "rate" {
  value        = [1, 2, 3]
  change_times = [1]
}
`)
		_, err := Resolve(p, ctx, 0)
		require.Error(t, err)
		assert.True(t, config.IsKind(err, config.ErrSkylineShapeMismatch))
		assert.ErrorContains(t, err, "one more element")
	})

	t.Run("non-increasing change times", func(t *testing.T) {
		p := param(t, `
parameter "rate" {
  value        = [1, 2, 3]
  change_times = [2, 2]
}
`)
		_, err := Resolve(p, ctx, 0)
		require.Error(t, err)
		assert.ErrorContains(t, err, "strictly increasing")
	})

	t.Run("negative change time", func(t *testing.T) {
		p := param(t, `
parameter "rate" {
  value        = [1, 2]
  change_times = [-1]
}
`)
		_, err := Resolve(p, ctx, 0)
		require.Error(t, err)
		assert.ErrorContains(t, err, "non-negative")
	})
}

func TestValueAt(t *testing.T) {
	s := &Skyline{
		ChangeTimes: []float64{1, 2},
		Values:      []value.Value{value.Scalar(10), value.Scalar(20), value.Scalar(30)},
	}

	assert.True(t, s.ValueAt(0).Equal(value.Scalar(10)))
	assert.True(t, s.ValueAt(0.999).Equal(value.Scalar(10)))
	// A change time belongs to the interval it starts.
	assert.True(t, s.ValueAt(1).Equal(value.Scalar(20)))
	assert.True(t, s.ValueAt(1.5).Equal(value.Scalar(20)))
	assert.True(t, s.ValueAt(2).Equal(value.Scalar(30)))
	assert.True(t, s.ValueAt(100).Equal(value.Scalar(30)))
}

func TestSkylineString(t *testing.T) {
	s := &Skyline{
		ChangeTimes: []float64{1, 2},
		Values:      []value.Value{value.Scalar(0), value.Scalar(0.05), value.Scalar(0.2)},
	}
	assert.Equal(t, "{value=[0, 0.05, 0.2], change_times=[1, 2]}", s.String())
}

func TestValidate(t *testing.T) {
	declared := map[string]bool{"x": true}

	t.Run("undeclared reference", func(t *testing.T) {
		p := param(t, `parameter "rate" { value = "x + nope" }`)
		err := Validate(p, declared, 0)
		require.Error(t, err)
		assert.True(t, config.IsKind(err, config.ErrUnknownVariable))
		assert.ErrorContains(t, err, "nope")
	})

	t.Run("vector role needs populations", func(t *testing.T) {
		p := param(t, `
parameter "sampling" {
  dims  = "vector"
  value = 0.3
}
`)
		err := Validate(p, declared, 0)
		require.Error(t, err)
		assert.True(t, config.IsKind(err, config.ErrInvalidConfig))
	})

	t.Run("literal count mismatch caught statically", func(t *testing.T) {
		p := param(t, `
parameter "rate" {
  value        = [1, 2]
  change_times = [1, 2]
}
`)
		err := Validate(p, declared, 0)
		require.Error(t, err)
		assert.True(t, config.IsKind(err, config.ErrSkylineShapeMismatch))
	})

	t.Run("literal times order caught statically", func(t *testing.T) {
		p := param(t, `
parameter "rate" {
  value        = [1, 2, 3]
  change_times = [5, 4]
}
`)
		err := Validate(p, declared, 0)
		require.Error(t, err)
		assert.ErrorContains(t, err, "strictly increasing")
	})

	t.Run("expression times skip static order check", func(t *testing.T) {
		p := param(t, `
parameter "rate" {
  value        = [1, 2]
  change_times = ["x"]
}
`)
		assert.NoError(t, Validate(p, declared, 0))
	})
}
