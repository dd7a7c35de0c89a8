package aggregate

import "fmt"

// Spec configures one aggregate column of a pivot.
type Spec struct {
	// Name labels the output; it defaults to "<func>(<column>)".
	Name   string
	Column string
	Func   Func
	// Weight is the weight column of WeightedMean.
	Weight string
	// Custom names the registered reducer/combiner pair of a Custom spec.
	Custom string
}

// OutputName returns the label of the aggregate output.
func (s Spec) OutputName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Func == Custom {
		return fmt.Sprintf("%s(%s)", s.Custom, s.Column)
	}
	return fmt.Sprintf("%s(%s)", s.Func, s.Column)
}

// Columns returns the table columns the aggregate reads.
func (s Spec) Columns() []string {
	if s.Func == WeightedMean && s.Weight != "" {
		return []string{s.Column, s.Weight}
	}
	return []string{s.Column}
}

// Validate checks that the spec is complete.
func (s Spec) Validate() error {
	switch {
	case s.Func >= numFuncs:
		return fmt.Errorf("%w: %s", ErrUnknownFunc, s.Func)
	case s.Column == "":
		return fmt.Errorf("aggregate %s: missing column", s.Func)
	case s.Func == WeightedMean && s.Weight == "":
		return fmt.Errorf("aggregate %s(%s): missing weight column", s.Func, s.Column)
	case s.Func == Custom && s.Custom == "":
		return fmt.Errorf("%w: custom aggregate on %q has no name", ErrUnknownFunc, s.Column)
	}
	return nil
}
