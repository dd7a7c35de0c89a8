package reader

import (
	"slices"

	"github.com/vegasq/cubecat/table"
)

const defaultBatchSize = 1024

// Option configures LoadTable.
type Option func(*options)

type options struct {
	primaryKey string
	columns    []string
	batchSize  int
	changeLog  int
}

func defaultOptions() options {
	return options{batchSize: defaultBatchSize, changeLog: table.DefaultChangeLogCapacity}
}

func (o options) keep(name string) bool {
	return len(o.columns) == 0 || name == FileColumn || slices.Contains(o.columns, name)
}

// WithPrimaryKey makes column the primary key of the loaded table. Rows
// sharing a key replace each other in file order.
func WithPrimaryKey(column string) Option {
	return func(o *options) { o.primaryKey = column }
}

// WithColumns loads only the named columns.
func WithColumns(names ...string) Option {
	return func(o *options) { o.columns = names }
}

// WithBatchSize sets how many rows are read and upserted at once.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithChangeLogCapacity sets the change log capacity of the loaded table.
func WithChangeLogCapacity(n int) Option {
	return func(o *options) { o.changeLog = n }
}
