package query

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vegasq/cubecat/aggregate"
	"github.com/vegasq/cubecat/filter"
	"github.com/vegasq/cubecat/pivot"
	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/sorter"
	"github.com/vegasq/cubecat/traversal"
)

// Config is the configuration of one view.
type Config struct {
	Filters  []filter.Term
	Combiner filter.Combiner
	Search   filter.Search
	Sort     []sorter.Key

	// Pivots and Aggregates make the view grouped. Aggregates without
	// pivots aggregate everything into the root.
	Pivots     []pivot.Level
	Aggregates []aggregate.Spec
	// Depth is the default expansion depth of a grouped view.
	Depth int
	// TreeOrder orders the siblings of a grouped view. The zero value sorts
	// them by the first aggregate, ascending; traversal.ByValue by value.
	TreeOrder traversal.TreeOrder
}

// Grouped reports whether the view materializes a pivot tree.
func (c Config) Grouped() bool { return len(c.Pivots) > 0 || len(c.Aggregates) > 0 }

// Filtered reports whether the view has filter terms or a search.
func (c Config) Filtered() bool { return len(c.Filters) > 0 || c.Search.Text != "" }

func (c Config) pivot(reg *aggregate.Registry) pivot.Config {
	return pivot.Config{Pivots: c.Pivots, Aggregates: c.Aggregates, Registry: reg}
}

// Validate checks the parts of c that do not depend on the table.
func (c Config) Validate() error {
	for i, k := range c.Sort {
		if k.Column == "" {
			return fmt.Errorf("sort key %d: missing column", i)
		}
	}
	if c.Depth < 0 {
		return fmt.Errorf("negative depth %d", c.Depth)
	}
	if c.Grouped() {
		return c.pivot(nil).Validate()
	}
	return nil
}

// LoadConfig reads a view config from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML view config. Unknown fields and unknown enum
// names are rejected.
func ParseConfig(data []byte) (Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f fileConfig
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg, err := f.resolve()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type fileConfig struct {
	Filter struct {
		Combiner string       `yaml:"combiner"`
		Terms    []termConfig `yaml:"terms"`
	} `yaml:"filter"`
	Search struct {
		Text    string   `yaml:"text"`
		Columns []string `yaml:"columns"`
	} `yaml:"search"`
	Sort       []keyConfig       `yaml:"sort"`
	Pivots     []levelConfig     `yaml:"pivots"`
	Aggregates []aggregateConfig `yaml:"aggregates"`
	Depth      int               `yaml:"depth"`
	TreeOrder  struct {
		Aggregate string `yaml:"aggregate"`
		Order     string `yaml:"order"`
	} `yaml:"tree_order"`
}

type termConfig struct {
	Column   string         `yaml:"column"`
	Op       string         `yaml:"op"`
	Value    any            `yaml:"value"`
	Values   []any          `yaml:"values"`
	Level    int            `yaml:"level"`
	AggLevel string         `yaml:"agg_level"`
	Binning  *binningConfig `yaml:"binning"`
	Combiner string         `yaml:"combiner"`
	Terms    []termConfig   `yaml:"terms"`
}

type binningConfig struct {
	Type   string  `yaml:"type"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Size   float64 `yaml:"size"`
	Double bool    `yaml:"double"`
}

type keyConfig struct {
	Column    string  `yaml:"column"`
	Order     string  `yaml:"order"`
	Limit     float64 `yaml:"limit"`
	LimitType string  `yaml:"limit_type"`
}

type levelConfig struct {
	Column    string         `yaml:"column"`
	AggLevel  string         `yaml:"agg_level"`
	Binning   *binningConfig `yaml:"binning"`
	Limit     float64        `yaml:"limit"`
	LimitType string         `yaml:"limit_type"`
	SortBy    string         `yaml:"sort_by"`
	Ascending bool           `yaml:"ascending"`
}

type aggregateConfig struct {
	Name   string `yaml:"name"`
	Column string `yaml:"column"`
	Func   string `yaml:"func"`
	Weight string `yaml:"weight"`
	Custom string `yaml:"custom"`
}

func (f *fileConfig) resolve() (Config, error) {
	var cfg Config
	var err error
	if cfg.Combiner, err = filter.ParseCombiner(f.Filter.Combiner); err != nil {
		return cfg, err
	}
	for i, t := range f.Filter.Terms {
		term, err := t.resolve()
		if err != nil {
			return cfg, fmt.Errorf("filter term %d: %w", i, err)
		}
		cfg.Filters = append(cfg.Filters, term)
	}
	cfg.Search = filter.Search{Text: f.Search.Text, Columns: f.Search.Columns}

	for i, k := range f.Sort {
		key := sorter.Key{Column: k.Column, Limit: k.Limit}
		if key.Type, err = sorter.ParseType(k.Order); err != nil {
			return cfg, fmt.Errorf("sort key %d: %w", i, err)
		}
		if key.LimitType, err = sorter.ParseLimitType(k.LimitType); err != nil {
			return cfg, fmt.Errorf("sort key %d: %w", i, err)
		}
		cfg.Sort = append(cfg.Sort, key)
	}

	for i, l := range f.Pivots {
		lvl := pivot.Level{Column: l.Column, Limit: l.Limit, SortBy: l.SortBy, Ascending: l.Ascending}
		if lvl.AggLevel, err = scalar.ParseAggLevel(l.AggLevel); err != nil {
			return cfg, fmt.Errorf("pivot %d: %w", i, err)
		}
		if lvl.Binning, err = l.Binning.resolve(); err != nil {
			return cfg, fmt.Errorf("pivot %d: %w", i, err)
		}
		if lvl.LimitType, err = sorter.ParseLimitType(l.LimitType); err != nil {
			return cfg, fmt.Errorf("pivot %d: %w", i, err)
		}
		cfg.Pivots = append(cfg.Pivots, lvl)
	}

	for i, a := range f.Aggregates {
		spec := aggregate.Spec{Name: a.Name, Column: a.Column, Weight: a.Weight, Custom: a.Custom}
		if spec.Func, err = aggregate.ParseFunc(a.Func); err != nil {
			return cfg, fmt.Errorf("aggregate %d: %w", i, err)
		}
		cfg.Aggregates = append(cfg.Aggregates, spec)
	}

	cfg.Depth = f.Depth
	cfg.TreeOrder = traversal.ByValue
	if f.TreeOrder.Order != "" {
		if cfg.TreeOrder.Type, err = sorter.ParseType(f.TreeOrder.Order); err != nil {
			return cfg, fmt.Errorf("tree order: %w", err)
		}
	}
	if name := f.TreeOrder.Aggregate; name != "" {
		cfg.TreeOrder.Aggregate = -1
		for i, a := range cfg.Aggregates {
			if a.OutputName() == name {
				cfg.TreeOrder.Aggregate = i
			}
		}
		if cfg.TreeOrder.Aggregate < 0 {
			return cfg, fmt.Errorf("tree order: %w: %q", pivot.ErrUnknownAggregate, name)
		}
	}
	return cfg, nil
}

func (t termConfig) resolve() (filter.Term, error) {
	term := filter.Term{Column: t.Column, Level: t.Level, Threshold: scalar.None()}
	var err error
	if term.Op, err = filter.ParseOp(t.Op); err != nil {
		return term, err
	}
	if term.AggLevel, err = scalar.ParseAggLevel(t.AggLevel); err != nil {
		return term, err
	}
	if term.Binning, err = t.Binning.resolve(); err != nil {
		return term, err
	}
	if t.Value != nil {
		term.Threshold = operand(t.Value)
	}
	for _, v := range t.Values {
		term.Bag = append(term.Bag, operand(v))
	}
	if term.Op == filter.OpGroupFilter {
		dep := &filter.Dependency{}
		if dep.Combiner, err = filter.ParseCombiner(t.Combiner); err != nil {
			return term, err
		}
		for i, sub := range t.Terms {
			st, err := sub.resolve()
			if err != nil {
				return term, fmt.Errorf("group term %d: %w", i, err)
			}
			dep.Terms = append(dep.Terms, st)
		}
		term.Dependency = dep
	}
	return term, nil
}

func (b *binningConfig) resolve() (scalar.Binning, error) {
	if b == nil {
		return scalar.Binning{}, nil
	}
	bt, err := scalar.ParseBinningType(b.Type)
	if err != nil {
		return scalar.Binning{}, err
	}
	return scalar.Binning{Type: bt, Min: b.Min, Max: b.Max, Size: b.Size, IsDouble: b.Double}, nil
}

// operand converts a decoded YAML value to a scalar. Strings are kept as
// strings; the filter compiler parses them into the column type.
func operand(v any) scalar.Scalar {
	switch x := v.(type) {
	case nil:
		return scalar.Null(scalar.DTypeStr)
	case bool:
		return scalar.Bool(x)
	case int:
		return scalar.Int64(int64(x))
	case int64:
		return scalar.Int64(x)
	case uint64:
		return scalar.Float64(float64(x))
	case float64:
		return scalar.Float64(x)
	case time.Time:
		return scalar.String(x.Format(time.RFC3339))
	case string:
		return scalar.String(x)
	}
	return scalar.String(fmt.Sprint(v))
}
