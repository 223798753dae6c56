package value

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// FromCty converts a statically-known cty value into a Value. Numbers map to
// scalars, strings to labels, and tuples/lists of numbers to vectors or
// matrices. Anything else (objects, null, unknown) is rejected.
func FromCty(v cty.Value) (Value, error) {
	if v.IsNull() || !v.IsKnown() {
		return Value{}, fmt.Errorf("value must be statically known and non-null")
	}

	ty := v.Type()
	switch {
	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return Scalar(f), nil
	case ty == cty.String:
		return Label(v.AsString()), nil
	case ty == cty.Bool:
		return Bool(v.True()), nil
	case ty.IsTupleType() || ty.IsListType():
		return fromCtySequence(v)
	}
	return Value{}, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
}

func fromCtySequence(v cty.Value) (Value, error) {
	elems := v.AsValueSlice()
	if len(elems) == 0 {
		return Vector(nil), nil
	}

	first := elems[0].Type()
	if first == cty.Number {
		vec := make([]float64, len(elems))
		for i, e := range elems {
			if e.Type() != cty.Number {
				return Value{}, fmt.Errorf("mixed element types in list: %s at index %d", e.Type().FriendlyName(), i)
			}
			f, _ := e.AsBigFloat().Float64()
			vec[i] = f
		}
		return Vector(vec), nil
	}

	if first.IsTupleType() || first.IsListType() {
		mat := make([][]float64, len(elems))
		width := -1
		for i, e := range elems {
			row, err := fromCtySequence(e)
			if err != nil {
				return Value{}, err
			}
			rv, err := row.AsVector()
			if err != nil {
				return Value{}, fmt.Errorf("row %d of nested list: %w", i, err)
			}
			if width == -1 {
				width = len(rv)
			} else if len(rv) != width {
				return Value{}, fmt.Errorf("ragged nested list: row %d has %d elements, expected %d", i, len(rv), width)
			}
			mat[i] = rv
		}
		return Matrix(mat), nil
	}

	return Value{}, fmt.Errorf("unsupported list element type %s", first.FriendlyName())
}

// ToCty converts a Value back into a cty value, used when reporting resolved
// values through HCL-typed interfaces.
func ToCty(v Value) cty.Value {
	switch v.kind {
	case KindScalar:
		return cty.NumberFloatVal(v.scalar)
	case KindLabel:
		return cty.StringVal(v.label)
	case KindBool:
		return cty.BoolVal(v.b)
	case KindVector:
		if len(v.vec) == 0 {
			return cty.EmptyTupleVal
		}
		elems := make([]cty.Value, len(v.vec))
		for i, f := range v.vec {
			elems[i] = cty.NumberFloatVal(f)
		}
		return cty.TupleVal(elems)
	case KindMatrix:
		if len(v.mat) == 0 {
			return cty.EmptyTupleVal
		}
		rows := make([]cty.Value, len(v.mat))
		for i := range v.mat {
			rows[i] = ToCty(Vector(v.mat[i]))
		}
		return cty.TupleVal(rows)
	}
	return cty.NilVal
}
