// Package distribution implements the named probability distributions that
// context variables may be drawn from. Specs are validated when constructed
// so malformed configurations fail at load time, before any simulation work
// begins. All draws consume entropy from a caller-supplied source, keeping a
// whole sample reproducible from a single seed.
package distribution

import (
	"fmt"
	"math"

	"github.com/zclconf/go-cty/cty"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/vk/phylogen/internal/value"
)

// Kind names a supported distribution family.
type Kind string

const (
	Uniform     Kind = "uniform"
	Normal      Kind = "normal"
	LogNormal   Kind = "lognormal"
	Weibull     Kind = "weibull"
	Exponential Kind = "exponential"
	Gamma       Kind = "gamma"
	Beta        Kind = "beta"
	IntUniform  Kind = "int-uniform"
	Categorical Kind = "categorical"
)

// Spec is an immutable, validated distribution specification. Only the
// fields relevant to its Kind are populated.
type Spec struct {
	Kind Kind

	Low, High   float64 // uniform, int-uniform
	Mean, Std   float64 // normal, lognormal
	Scale       float64 // weibull
	Shape       float64 // weibull
	Rate        float64 // exponential
	Alpha, Beta float64 // gamma, beta

	Categories    []string  // categorical
	Probabilities []float64 // categorical
}

// New builds and validates a Spec from a kind name and its raw HCL
// attribute values. Unknown kinds, missing parameters, extra parameters and
// out-of-range parameters are all rejected here.
func New(kind string, args map[string]cty.Value) (*Spec, error) {
	b := &argReader{args: args, seen: make(map[string]bool)}
	s := &Spec{Kind: Kind(kind)}

	switch s.Kind {
	case Uniform:
		s.Low = b.number("low")
		s.High = b.number("high")
		if b.err == nil && s.Low >= s.High {
			return nil, fmt.Errorf("uniform requires low < high (got low=%v, high=%v)", s.Low, s.High)
		}
	case Normal:
		s.Mean = b.number("mean")
		s.Std = b.number("std")
		if b.err == nil && s.Std <= 0 {
			return nil, fmt.Errorf("normal requires std > 0 (got %v)", s.Std)
		}
	case LogNormal:
		s.Mean = b.number("mean")
		s.Std = b.number("std")
		if b.err == nil && s.Std <= 0 {
			return nil, fmt.Errorf("lognormal requires std > 0 (got %v)", s.Std)
		}
	case Weibull:
		s.Scale = b.number("scale")
		s.Shape = b.number("shape")
		if b.err == nil && (s.Scale <= 0 || s.Shape <= 0) {
			return nil, fmt.Errorf("weibull requires scale > 0 and shape > 0 (got scale=%v, shape=%v)", s.Scale, s.Shape)
		}
	case Exponential:
		s.Rate = b.number("rate")
		if b.err == nil && s.Rate <= 0 {
			return nil, fmt.Errorf("exponential requires rate > 0 (got %v)", s.Rate)
		}
	case Gamma:
		s.Alpha = b.number("alpha")
		s.Beta = b.number("beta")
		if b.err == nil && (s.Alpha <= 0 || s.Beta <= 0) {
			return nil, fmt.Errorf("gamma requires alpha > 0 and beta > 0 (got alpha=%v, beta=%v)", s.Alpha, s.Beta)
		}
	case Beta:
		s.Alpha = b.number("alpha")
		s.Beta = b.number("beta")
		if b.err == nil && (s.Alpha <= 0 || s.Beta <= 0) {
			return nil, fmt.Errorf("beta requires alpha > 0 and beta > 0 (got alpha=%v, beta=%v)", s.Alpha, s.Beta)
		}
	case IntUniform:
		s.Low = b.number("low")
		s.High = b.number("high")
		if b.err == nil {
			if s.Low != math.Trunc(s.Low) || s.High != math.Trunc(s.High) {
				return nil, fmt.Errorf("int-uniform requires integer bounds (got low=%v, high=%v)", s.Low, s.High)
			}
			if s.Low >= s.High {
				return nil, fmt.Errorf("int-uniform requires low < high (got low=%v, high=%v)", s.Low, s.High)
			}
		}
	case Categorical:
		s.Categories = b.strings("categories")
		s.Probabilities = b.numbers("probabilities")
		if b.err == nil {
			if err := validateCategorical(s.Categories, s.Probabilities); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unknown distribution %q", kind)
	}

	if b.err != nil {
		return nil, fmt.Errorf("%s: %w", kind, b.err)
	}
	if extra := b.unused(); extra != "" {
		return nil, fmt.Errorf("%s does not take a parameter %q", kind, extra)
	}
	return s, nil
}

func validateCategorical(categories []string, probabilities []float64) error {
	if len(categories) == 0 {
		return fmt.Errorf("categorical requires at least one category")
	}
	if len(categories) != len(probabilities) {
		return fmt.Errorf("categorical requires one probability per category (got %d categories, %d probabilities)",
			len(categories), len(probabilities))
	}
	var sum float64
	for _, p := range probabilities {
		if p < 0 {
			return fmt.Errorf("categorical probabilities must be non-negative (got %v)", p)
		}
		sum += p
	}
	const tol = 1e-9
	if math.Abs(sum-1) > tol {
		return fmt.Errorf("categorical probabilities must sum to 1 (got %v)", sum)
	}
	return nil
}

// Sample draws one value from the distribution: a scalar for every numeric
// family, a label for categorical.
func (s *Spec) Sample(rng *rand.Rand) value.Value {
	switch s.Kind {
	case Uniform:
		return value.Scalar(distuv.Uniform{Min: s.Low, Max: s.High, Src: rng}.Rand())
	case Normal:
		return value.Scalar(distuv.Normal{Mu: s.Mean, Sigma: s.Std, Src: rng}.Rand())
	case LogNormal:
		return value.Scalar(distuv.LogNormal{Mu: s.Mean, Sigma: s.Std, Src: rng}.Rand())
	case Weibull:
		return value.Scalar(distuv.Weibull{K: s.Shape, Lambda: s.Scale, Src: rng}.Rand())
	case Exponential:
		// Parameterized by rate; mean is 1/rate.
		return value.Scalar(distuv.Exponential{Rate: s.Rate, Src: rng}.Rand())
	case Gamma:
		return value.Scalar(distuv.Gamma{Alpha: s.Alpha, Beta: s.Beta, Src: rng}.Rand())
	case Beta:
		return value.Scalar(distuv.Beta{Alpha: s.Alpha, Beta: s.Beta, Src: rng}.Rand())
	case IntUniform:
		span := int64(s.High) - int64(s.Low)
		return value.Scalar(s.Low + float64(rng.Int63n(span)))
	case Categorical:
		cat := distuv.NewCategorical(s.Probabilities, rng)
		return value.Label(s.Categories[int(cat.Rand())])
	}
	panic(fmt.Sprintf("distribution: sample on invalid kind %q", s.Kind))
}

// IsDiscrete reports whether draws are category labels rather than numbers.
func (s *Spec) IsDiscrete() bool { return s.Kind == Categorical }
