package distribution

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// argReader pulls typed parameters out of the raw HCL attribute map,
// recording the first failure and which parameters were consumed so extras
// can be reported.
type argReader struct {
	args map[string]cty.Value
	seen map[string]bool
	err  error
}

func (r *argReader) get(name string) (cty.Value, bool) {
	r.seen[name] = true
	v, ok := r.args[name]
	return v, ok
}

func (r *argReader) number(name string) float64 {
	if r.err != nil {
		return 0
	}
	v, ok := r.get(name)
	if !ok {
		r.err = fmt.Errorf("missing required parameter %q", name)
		return 0
	}
	if v.Type() != cty.Number {
		r.err = fmt.Errorf("parameter %q must be a number", name)
		return 0
	}
	f, _ := v.AsBigFloat().Float64()
	return f
}

func (r *argReader) numbers(name string) []float64 {
	if r.err != nil {
		return nil
	}
	v, ok := r.get(name)
	if !ok {
		r.err = fmt.Errorf("missing required parameter %q", name)
		return nil
	}
	if !v.Type().IsTupleType() && !v.Type().IsListType() {
		r.err = fmt.Errorf("parameter %q must be a list of numbers", name)
		return nil
	}
	elems := v.AsValueSlice()
	out := make([]float64, len(elems))
	for i, e := range elems {
		if e.Type() != cty.Number {
			r.err = fmt.Errorf("parameter %q must contain only numbers", name)
			return nil
		}
		f, _ := e.AsBigFloat().Float64()
		out[i] = f
	}
	return out
}

func (r *argReader) strings(name string) []string {
	if r.err != nil {
		return nil
	}
	v, ok := r.get(name)
	if !ok {
		r.err = fmt.Errorf("missing required parameter %q", name)
		return nil
	}
	if !v.Type().IsTupleType() && !v.Type().IsListType() {
		r.err = fmt.Errorf("parameter %q must be a list of strings", name)
		return nil
	}
	elems := v.AsValueSlice()
	out := make([]string, len(elems))
	for i, e := range elems {
		if e.Type() != cty.String {
			r.err = fmt.Errorf("parameter %q must contain only strings", name)
			return nil
		}
		out[i] = e.AsString()
	}
	return out
}

// unused returns the name of one parameter that was supplied but never
// consumed, or "" when all were used. Sorted so error messages are stable.
func (r *argReader) unused() string {
	var extras []string
	for name := range r.args {
		if !r.seen[name] {
			extras = append(extras, name)
		}
	}
	if len(extras) == 0 {
		return ""
	}
	sort.Strings(extras)
	return extras[0]
}
