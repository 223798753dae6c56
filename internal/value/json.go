package value

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON renders the value with its natural JSON shape: scalars as
// numbers, vectors and matrices as (nested) arrays, labels as strings. This
// is the wire form handed to external simulator commands.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindScalar:
		return json.Marshal(v.scalar)
	case KindVector:
		if v.vec == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.vec)
	case KindMatrix:
		if v.mat == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.mat)
	case KindLabel:
		return json.Marshal(v.label)
	case KindBool:
		return json.Marshal(v.b)
	}
	return nil, fmt.Errorf("cannot marshal value of kind %s", v.kind)
}
