package hotune

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

//////
// Errors.
//////

var (
	// ErrInvalidSpace is returned when a SearchSpace cannot be searched.
	ErrInvalidSpace = errors.New("invalid search space")

	// ErrUnknownParam is returned by Params getters for a missing name.
	ErrUnknownParam = errors.New("unknown parameter")

	// ErrParamType is returned by Params getters when the stored value has a
	// different type.
	ErrParamType = errors.New("parameter has a different type")
)

//////
// Factory.
//////

// IntDimension returns an integer dimension over the inclusive range r.
func IntDimension(name string, r ParameterRange[int]) Dimension {
	return Dimension{Name: name, Kind: Int, Min: float64(r.Min), Max: float64(r.Max)}
}

// FloatDimension returns a real dimension over the range r.
func FloatDimension(name string, r ParameterRange[float64]) Dimension {
	return Dimension{Name: name, Kind: Float, Min: r.Min, Max: r.Max}
}

// CategoricalDimension returns a dimension taking one of choices.
func CategoricalDimension(name string, choices ...string) Dimension {
	c := make([]string, len(choices))
	copy(c, choices)

	return Dimension{Name: name, Kind: Categorical, Choices: c}
}

//////
// Methods.
//////

// Validate checks that the space is non-empty, that names are unique and
// non-empty, that numeric ranges are ordered and that categorical dimensions
// have at least one choice.
func (s SearchSpace) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no dimensions", ErrInvalidSpace)
	}

	seen := make(map[string]struct{}, len(s))

	for _, d := range s {
		if d.Name == "" {
			return fmt.Errorf("%w: dimension without a name", ErrInvalidSpace)
		}

		if _, ok := seen[d.Name]; ok {
			return fmt.Errorf("%w: duplicate dimension %q", ErrInvalidSpace, d.Name)
		}

		seen[d.Name] = struct{}{}

		switch d.Kind {
		case Int, Float:
			if d.Min > d.Max {
				return fmt.Errorf("%w: %q has min %v greater than max %v", ErrInvalidSpace, d.Name, d.Min, d.Max)
			}
		case Categorical:
			if len(d.Choices) == 0 {
				return fmt.Errorf("%w: %q has no choices", ErrInvalidSpace, d.Name)
			}
		default:
			return fmt.Errorf("%w: %q has unknown kind %d", ErrInvalidSpace, d.Name, d.Kind)
		}
	}

	return nil
}

// sample draws one configuration uniformly from the space.
func (s SearchSpace) sample(rng *rand.Rand) Params {
	params := make(Params, len(s))

	for _, d := range s {
		switch d.Kind {
		case Int:
			lo := int64(d.Min)
			hi := int64(d.Max)
			params[d.Name] = int(lo + rng.Int63n(hi-lo+1))
		case Float:
			params[d.Name] = d.Min + rng.Float64()*(d.Max-d.Min)
		case Categorical:
			params[d.Name] = d.Choices[rng.Intn(len(d.Choices))]
		}
	}

	return params
}

// width returns the length of the encoded vector for the space.
func (s SearchSpace) width() int {
	n := 0

	for _, d := range s {
		if d.Kind == Categorical {
			n += len(d.Choices)
		} else {
			n++
		}
	}

	return n
}

// encode maps params onto the unit hypercube used by the Gaussian Process.
// Numeric dimensions are min-max scaled, categoricals are one-hot.
func (s SearchSpace) encode(params Params) []float64 {
	out := make([]float64, 0, s.width())

	for _, d := range s {
		switch d.Kind {
		case Int, Float:
			out = append(out, unitScale(toFloat(params[d.Name]), d.Min, d.Max))
		case Categorical:
			v, _ := params[d.Name].(string)
			for _, c := range d.Choices {
				if c == v {
					out = append(out, 1)
				} else {
					out = append(out, 0)
				}
			}
		}
	}

	return out
}

// Int returns the value of an Int dimension.
func (p Params) Int(name string) (int, error) {
	v, ok := p[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}

	i, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("%w: %q is %T, not int", ErrParamType, name, v)
	}

	return i, nil
}

// Float returns the value of a Float dimension.
func (p Params) Float(name string) (float64, error) {
	v, ok := p[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}

	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %q is %T, not float64", ErrParamType, name, v)
	}

	return f, nil
}

// Categorical returns the value of a Categorical dimension.
func (p Params) Categorical(name string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}

	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, not string", ErrParamType, name, v)
	}

	return s, nil
}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}

	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}

	return c
}

// String renders the params as "name=value" pairs in name order.
func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}

	return strings.Join(parts, " ")
}
