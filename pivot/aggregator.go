package pivot

import (
	"fmt"

	"github.com/vegasq/cubecat/aggregate"
	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/table"
)

// aggregator binds the aggregate specs of a config to table columns.
type aggregator struct {
	specs   []aggregate.Spec
	reg     *aggregate.Registry
	values  []*table.Column
	weights []*table.Column
}

func newAggregator(cfg Config, tbl *table.Table) (*aggregator, error) {
	a := &aggregator{specs: cfg.Aggregates, reg: cfg.registry()}
	for _, s := range cfg.Aggregates {
		col, err := tbl.Column(s.Column)
		if err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", s.OutputName(), err)
		}
		var w *table.Column
		if s.Func == aggregate.WeightedMean {
			if w, err = tbl.Column(s.Weight); err != nil {
				return nil, fmt.Errorf("aggregate %s: %w", s.OutputName(), err)
			}
		}
		a.values = append(a.values, col)
		a.weights = append(a.weights, w)
	}
	if _, err := a.empty(); err != nil {
		return nil, err
	}
	return a, nil
}

// empty returns a fresh accumulator per spec.
func (a *aggregator) empty() ([]aggregate.Accumulator, error) {
	accs := make([]aggregate.Accumulator, len(a.specs))
	for i, s := range a.specs {
		acc, err := a.reg.New(s, a.values[i].DType())
		if err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", s.OutputName(), err)
		}
		accs[i] = acc
	}
	return accs, nil
}

func (a *aggregator) add(accs []aggregate.Accumulator, row uint32) {
	for i, acc := range accs {
		w := scalar.None()
		if a.weights[i] != nil {
			w = a.weights[i].Scalar(row)
		}
		acc.Add(row, a.values[i].Scalar(row), w)
	}
}

func (a *aggregator) fold(rows []uint32) ([]aggregate.Accumulator, error) {
	accs, err := a.empty()
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		a.add(accs, row)
	}
	return accs, nil
}

// rank returns the value that orders a group of rows for a top-N limit:
// the named aggregate, or the row count when name is empty.
func (a *aggregator) rank(name string, rows []uint32) scalar.Scalar {
	if name == "" {
		return scalar.Int64(int64(len(rows)))
	}
	for i, s := range a.specs {
		if s.OutputName() != name {
			continue
		}
		acc, err := a.reg.New(s, a.values[i].DType())
		if err != nil {
			return scalar.Error(a.values[i].DType())
		}
		for _, row := range rows {
			w := scalar.None()
			if a.weights[i] != nil {
				w = a.weights[i].Scalar(row)
			}
			acc.Add(row, a.values[i].Scalar(row), w)
		}
		return acc.Value()
	}
	return scalar.None()
}
