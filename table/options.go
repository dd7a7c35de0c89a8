package table

// DefaultChangeLogCapacity is the number of row changes kept for
// incremental consumers.
const DefaultChangeLogCapacity = 1 << 16

type options struct {
	primaryKey        string
	changeLogCapacity int
}

func defaultOptions() options {
	return options{changeLogCapacity: DefaultChangeLogCapacity}
}

// Option configures a Table.
type Option func(*options)

// WithPrimaryKey keys rows by the named column. Without it every Upsert
// appends and rows are keyed by their id.
func WithPrimaryKey(column string) Option {
	return func(o *options) {
		o.primaryKey = column
	}
}

// WithChangeLogCapacity bounds the change log. Zero disables it, forcing
// consumers to rebuild after every mutation.
func WithChangeLogCapacity(n int) Option {
	return func(o *options) {
		o.changeLogCapacity = n
	}
}
