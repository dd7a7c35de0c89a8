package reader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/table"
)

// FileColumn is the column that records the source file of each row in
// multi-file loads.
const FileColumn = "_file"

// maxFiles limits glob expansion to prevent resource exhaustion.
const maxFiles = 1000

// ErrNoFiles is returned when a glob pattern matches nothing.
var ErrNoFiles = errors.New("no files match pattern")

// Reader reads one parquet file into table rows.
//
// It maintains both an OS file handle and a parquet file handle to enable
// proper resource cleanup.
type Reader struct {
	file   *os.File
	pqFile *parquet.File
	fields []Field
}

// NewReader opens the parquet file at path and maps its schema to column
// types.
//
// Example:
//
//	r, err := NewReader("data.parquet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pqFile, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	fields, err := mapSchema(pqFile.Schema())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Reader{
		file:   file,
		pqFile: pqFile,
		fields: fields,
	}, nil
}

// Schema returns the parquet file schema.
func (r *Reader) Schema() *parquet.Schema {
	return r.pqFile.Schema()
}

// Fields returns the mapped leaf columns in file order.
func (r *Reader) Fields() []Field { return r.fields }

// TableSchema returns the table schema of the mapped columns.
func (r *Reader) TableSchema() table.Schema {
	schema := make(table.Schema, len(r.fields))
	for i, f := range r.fields {
		schema[i] = table.Field{Name: f.Name, DType: f.DType}
	}
	return schema
}

// NumRows returns the number of rows in the file.
func (r *Reader) NumRows() int64 { return r.pqFile.NumRows() }

// ReadAll reads every row of the file into memory. Missing and null cells
// become nulls of the column type.
func (r *Reader) ReadAll() ([]table.Row, error) {
	rows := make([]table.Row, 0, r.NumRows())
	err := r.scan(defaultBatchSize, func(batch []table.Row) error {
		rows = append(rows, batch...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// scan reads the file in batches of up to n rows. The batch slice is reused
// between calls.
func (r *Reader) scan(n int, fn func([]table.Row) error) error {
	reader := parquet.NewReader(r.pqFile)
	defer func() { _ = reader.Close() }()

	buf := make([]parquet.Row, n)
	batch := make([]table.Row, 0, n)
	cells := make([][]parquet.Value, len(r.Schema().Columns()))
	for {
		got, err := reader.ReadRows(buf)
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return fmt.Errorf("failed to read row: %w", err)
		}
		batch = batch[:0]
		for _, row := range buf[:got] {
			batch = append(batch, r.convert(row, cells))
		}
		if len(batch) > 0 {
			if err := fn(batch); err != nil {
				return err
			}
		}
		if eof || got == 0 {
			return nil
		}
	}
}

func (r *Reader) convert(row parquet.Row, cells [][]parquet.Value) table.Row {
	for i := range cells {
		cells[i] = cells[i][:0]
	}
	for _, v := range row {
		if c := v.Column(); c >= 0 && c < len(cells) {
			cells[c] = append(cells[c], v)
		}
	}
	out := make(table.Row, len(r.fields))
	for _, f := range r.fields {
		out[f.Name] = f.decode(cells[f.column])
	}
	return out
}

// Close closes the underlying file. It is safe to call Close multiple times.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// LoadTable reads the parquet files matching pattern into a new table.
//
// The pattern can be a plain path or include wildcards:
//   - * matches any sequence of non-separator characters
//   - ? matches any single non-separator character
//   - [range] matches any character in range
//
// The first file defines the schema. When the pattern is a glob, each row
// is tagged with a "_file" column holding its source path.
func LoadTable(pattern string, opts ...Option) (*table.Table, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	files, multi, err := expand(pattern)
	if err != nil {
		return nil, err
	}

	var tbl *table.Table
	for _, path := range files {
		r, err := NewReader(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if tbl == nil {
			if tbl, err = newTable(r, o, multi); err != nil {
				_ = r.Close()
				return nil, err
			}
		}
		readErr := r.load(tbl, o, path, multi)
		closeErr := r.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read rows from %s: %w", path, readErr)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("failed to close %s: %w", path, closeErr)
		}
	}
	return tbl, nil
}

func newTable(r *Reader, o options, multi bool) (*table.Table, error) {
	var schema table.Schema
	for _, f := range r.TableSchema() {
		if o.keep(f.Name) {
			schema = append(schema, f)
		}
	}
	for _, name := range o.columns {
		if _, ok := schema.Index(name); !ok {
			return nil, fmt.Errorf("projection: %w", &table.SchemaError{Column: name})
		}
	}
	if multi {
		if _, ok := schema.Index(FileColumn); ok {
			return nil, fmt.Errorf("%q is reserved for multi-file loads: %w", FileColumn, table.ErrDuplicateColumn)
		}
		schema = append(schema, table.Field{Name: FileColumn, DType: scalar.DTypeStr})
	}
	tblOpts := []table.Option{table.WithChangeLogCapacity(o.changeLog)}
	if o.primaryKey != "" {
		tblOpts = append(tblOpts, table.WithPrimaryKey(o.primaryKey))
	}
	return table.New(schema, tblOpts...)
}

func (r *Reader) load(tbl *table.Table, o options, path string, multi bool) error {
	return r.scan(o.batchSize, func(batch []table.Row) error {
		for _, row := range batch {
			for name := range row {
				if !o.keep(name) {
					delete(row, name)
				}
			}
			if multi {
				row[FileColumn] = scalar.String(path)
			}
		}
		return tbl.Upsert(batch...)
	})
}

// expand resolves pattern to the files to read. It reports whether the
// pattern was a glob.
func expand(pattern string) ([]string, bool, error) {
	if !strings.ContainsAny(pattern, "*?[]") {
		return []string{pattern}, false, nil
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, false, fmt.Errorf("invalid glob pattern: %w", err)
	}
	if len(matches) == 0 {
		return nil, false, fmt.Errorf("%w: %s", ErrNoFiles, pattern)
	}
	if len(matches) > maxFiles {
		return nil, false, fmt.Errorf("glob pattern matched too many files (%d), maximum is %d", len(matches), maxFiles)
	}
	return matches, true, nil
}
