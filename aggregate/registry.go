package aggregate

import (
	"fmt"
	"sync"

	"github.com/vegasq/cubecat/scalar"
)

// Reducer folds the cell values of a leaf group into a partial result.
type Reducer func(values []scalar.Scalar) scalar.Scalar

// Combiner folds the partial results of child groups.
type Combiner func(partials []scalar.Scalar) scalar.Scalar

type custom struct {
	reduce  Reducer
	combine Combiner
}

// Registry holds custom aggregates by name. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]custom
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]custom)}
}

// Default is the registry used by New.
var Default = NewRegistry()

// Register adds a custom aggregate. A nil combiner reuses the reducer on
// the partial results.
func (r *Registry) Register(name string, reduce Reducer, combine Combiner) error {
	if reduce == nil {
		return fmt.Errorf("custom aggregate %q: nil reducer", name)
	}
	if combine == nil {
		combine = Combiner(reduce)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.funcs[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateCustom, name)
	}
	r.funcs[name] = custom{reduce: reduce, combine: combine}
	return nil
}

func (r *Registry) lookup(name string) (custom, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.funcs[name]
	return c, ok
}

// New returns an empty accumulator for s over a column of dtype dt.
func (r *Registry) New(s Spec, dt scalar.DType) (Accumulator, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	switch s.Func {
	case Sum, SumAbs, SumNotNull, PctSumParent, PctSumGrandTotal:
		return &sumAcc{fn: s.Func, dtype: dt}, nil
	case Count:
		return &countAcc{}, nil
	case Mean:
		return &meanAcc{}, nil
	case WeightedMean:
		return &weightedAcc{}, nil
	case Min, Max:
		return &markAcc{high: s.Func == Max, dtype: dt}, nil
	case Any, First, Last:
		return &pickAcc{fn: s.Func, dtype: dt}, nil
	case And, Or:
		return &logicAcc{and: s.Func == And}, nil
	case DistinctCount, Unique, Dominant, Median, Join:
		return &bagAcc{fn: s.Func, dtype: dt}, nil
	case Custom:
		c, ok := r.lookup(s.Custom)
		if !ok {
			return nil, fmt.Errorf("%w: custom %q", ErrUnknownFunc, s.Custom)
		}
		return &customAcc{fn: c}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFunc, s.Func)
}

// Register adds a custom aggregate to the Default registry.
func Register(name string, reduce Reducer, combine Combiner) error {
	return Default.Register(name, reduce, combine)
}

// New returns an accumulator from the Default registry.
func New(s Spec, dt scalar.DType) (Accumulator, error) {
	return Default.New(s, dt)
}
