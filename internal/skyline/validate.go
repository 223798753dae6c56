package skyline

import (
	"github.com/vk/phylogen/internal/config"
	"github.com/vk/phylogen/internal/expr"
)

// Validate performs the static checks possible before any sample is drawn:
// expression references must name declared context variables, vector and
// matrix roles need a population list, and interval counts and change-time
// ordering are checked wherever the spec is fully literal. Violations here
// abort the run before any simulation work begins.
func Validate(p *config.ParameterSpec, declared map[string]bool, populations int) error {
	if (p.Dims == config.DimsVector || p.Dims == config.DimsMatrix) && populations == 0 {
		return config.NewError(config.ErrInvalidConfig, p.Name,
			"a %s parameter requires dataset populations to be declared", p.Dims)
	}

	if err := validateElementRefs(p.Value, declared, p.Name); err != nil {
		return err
	}
	if p.IsConstant() {
		return nil
	}
	if err := validateElementRefs(p.ChangeTimes, declared, p.Name); err != nil {
		return err
	}

	// Literal interval counts can be checked without resolving.
	if p.Value.List != nil && p.ChangeTimes.List != nil {
		if len(p.Value.List) != len(p.ChangeTimes.List)+1 {
			return config.NewError(config.ErrSkylineShapeMismatch, p.Name,
				"value must have exactly one more element than change_times (got %d values and %d change times)",
				len(p.Value.List), len(p.ChangeTimes.List))
		}
	}
	if times, ok := literalTimes(p.ChangeTimes); ok {
		for i, t := range times {
			if t < 0 {
				return config.NewError(config.ErrSkylineShapeMismatch, p.Name,
					"change times must be non-negative (got %g)", t)
			}
			if i > 0 && times[i-1] >= t {
				return config.NewError(config.ErrSkylineShapeMismatch, p.Name,
					"change times must be strictly increasing (got %g then %g)", times[i-1], t)
			}
		}
	}
	return nil
}

func validateElementRefs(e *config.Element, declared map[string]bool, subject string) error {
	if e == nil {
		return nil
	}
	if e.Expr != nil {
		for _, ref := range expr.FreeVariables(e.Expr) {
			if !declared[ref] {
				return config.NewError(config.ErrUnknownVariable, subject,
					"expression %q references undeclared variable %q", e.Text, ref)
			}
		}
	}
	for _, child := range e.List {
		if err := validateElementRefs(child, declared, subject); err != nil {
			return err
		}
	}
	return nil
}

// literalTimes extracts change times when every element is a literal.
func literalTimes(e *config.Element) ([]float64, bool) {
	if e == nil {
		return nil, false
	}
	if e.Literal != nil {
		return []float64{*e.Literal}, true
	}
	if e.List == nil {
		return nil, false
	}
	times := make([]float64, len(e.List))
	for i, child := range e.List {
		if child.Literal == nil {
			return nil, false
		}
		times[i] = *child.Literal
	}
	return times, true
}
