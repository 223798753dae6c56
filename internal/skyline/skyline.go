// Package skyline resolves piecewise-constant-in-time ("skyline") model
// parameters. A spec declares one value per time interval plus the ordered
// change times between intervals; values may be literals, context-variable
// names or expressions. Resolution normalizes every form into the same
// internal representation, validated against the dimensionality the
// parameter's role requires.
package skyline

import (
	"fmt"
	"strings"

	"github.com/vk/phylogen/internal/value"
)

// Skyline is a normalized, resolved skyline: values holds exactly one more
// element than changeTimes, and the parameter equals Values[i] on the
// half-open interval [ChangeTimes[i-1], ChangeTimes[i]) with the obvious
// conventions at the ends.
type Skyline struct {
	ChangeTimes []float64
	Values      []value.Value
}

// Constant builds a single-interval skyline.
func Constant(v value.Value) *Skyline {
	return &Skyline{Values: []value.Value{v}}
}

// ValueAt returns the value in effect at the given time: the value of the
// interval the time falls into, with change times belonging to the interval
// they start.
func (s *Skyline) ValueAt(t float64) value.Value {
	// Upper-bound search over the change times.
	idx := 0
	for idx < len(s.ChangeTimes) && s.ChangeTimes[idx] <= t {
		idx++
	}
	return s.Values[idx]
}

// IsConstant reports whether the skyline has a single interval.
func (s *Skyline) IsConstant() bool { return len(s.ChangeTimes) == 0 }

// Equal reports deep equality.
func (s *Skyline) Equal(o *Skyline) bool {
	if len(s.ChangeTimes) != len(o.ChangeTimes) || len(s.Values) != len(o.Values) {
		return false
	}
	for i := range s.ChangeTimes {
		if s.ChangeTimes[i] != o.ChangeTimes[i] {
			return false
		}
	}
	for i := range s.Values {
		if !s.Values[i].Equal(o.Values[i]) {
			return false
		}
	}
	return true
}

// String renders the skyline for metadata rows. A single-interval skyline
// collapses to its value, matching how constant parameters are recorded.
func (s *Skyline) String() string {
	if s.IsConstant() {
		return s.Values[0].String()
	}
	vals := make([]string, len(s.Values))
	for i, v := range s.Values {
		vals[i] = v.String()
	}
	times := make([]string, len(s.ChangeTimes))
	for i, t := range s.ChangeTimes {
		times[i] = fmt.Sprintf("%g", t)
	}
	return fmt.Sprintf("{value=[%s], change_times=[%s]}",
		strings.Join(vals, ", "), strings.Join(times, ", "))
}
