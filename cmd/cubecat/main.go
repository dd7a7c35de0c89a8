// Command cubecat loads parquet files into memory, materializes a filtered,
// sorted or pivoted view over them and prints it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vegasq/cubecat/internal/logging"
	"github.com/vegasq/cubecat/output"
	"github.com/vegasq/cubecat/query"
	"github.com/vegasq/cubecat/reader"
	"github.com/vegasq/cubecat/scalar"
)

type options struct {
	config    string
	format    string
	limit     int
	offset    int
	depth     int
	expandAll bool
	schema    bool
	key       string
	columns   string
	logLevel  string
	logFormat string
	pattern   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("cubecat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.config, "config", "", "YAML view config (filters, sort, pivots, aggregates)")
	fs.StringVar(&o.format, "f", "jsonl", "Output format: json, jsonl, csv, table")
	fs.IntVar(&o.limit, "limit", 0, "Limit number of rows (0 = unlimited)")
	fs.IntVar(&o.offset, "offset", 0, "Skip this many visible rows")
	fs.IntVar(&o.depth, "depth", -1, "Override the expansion depth of a grouped view")
	fs.BoolVar(&o.expandAll, "expand-all", false, "Expand every level of a grouped view")
	fs.BoolVar(&o.schema, "schema", false, "Show schema information instead of data")
	fs.StringVar(&o.key, "key", "", "Primary key column")
	fs.StringVar(&o.columns, "columns", "", "Comma separated columns to load")
	fs.StringVar(&o.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	fs.StringVar(&o.logFormat, "log-format", "text", "Log format: text, json")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: cubecat [options] <file.parquet|pattern>\n\n")
		fmt.Fprintf(stderr, "Materialize a view over Parquet files.\n\n")
		fmt.Fprintf(stderr, "IMPORTANT: All flags must come BEFORE file arguments.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  cubecat data.parquet\n")
		fmt.Fprintf(stderr, "  cubecat -f table -config view.yaml 'data/*.parquet'\n")
		fmt.Fprintf(stderr, "  cubecat -schema data.parquet\n")
	}

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.limit < 0 {
		return o, fmt.Errorf("-limit must be non-negative, got %d", o.limit)
	}
	if o.offset < 0 {
		return o, fmt.Errorf("-offset must be non-negative, got %d", o.offset)
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return o, errors.New("missing parquet file argument")
	}
	o.pattern = fs.Arg(0)
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err == nil {
		err = execute(ctx, o, stdout, stderr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newLogger(o options, w io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return nil, fmt.Errorf("-log-level: %w", err)
	}
	switch o.logFormat {
	case "text":
		return logging.NewTextLogger(w, level), nil
	case "json":
		return logging.NewJSONLogger(w, level), nil
	}
	return nil, fmt.Errorf("-log-format: unsupported format %q", o.logFormat)
}

func execute(ctx context.Context, o options, stdout, stderr io.Writer) error {
	formatter, err := output.New(o.format, stdout)
	if err != nil {
		return err
	}
	if o.schema {
		return showSchema(o.pattern, formatter, stderr)
	}

	logger, err := newLogger(o, stderr)
	if err != nil {
		return err
	}

	cfg := query.Config{}
	if o.config != "" {
		if cfg, err = query.LoadConfig(o.config); err != nil {
			return err
		}
	}
	switch {
	case o.expandAll:
		cfg.Depth = len(cfg.Pivots)
	case o.depth >= 0:
		cfg.Depth = o.depth
	}

	var loadOpts []reader.Option
	if o.key != "" {
		loadOpts = append(loadOpts, reader.WithPrimaryKey(o.key))
	}
	if o.columns != "" {
		loadOpts = append(loadOpts, reader.WithColumns(strings.Split(o.columns, ",")...))
	}
	tbl, err := reader.LoadTable(o.pattern, loadOpts...)
	if err != nil {
		return err
	}
	logger.Info("loaded table", "rows", tbl.NumLive(), "columns", len(tbl.Schema()))

	qc, err := query.NewContext(tbl, cfg,
		query.WithLogger(logger),
		query.WithMetrics(query.NewMetrics(prometheus.NewRegistry())),
		query.WithSink(&logSink{log: logger}),
	)
	if err != nil {
		return err
	}
	if err := qc.Step(ctx); err != nil {
		return err
	}

	view, err := qc.View()
	if err != nil {
		return err
	}
	defer view.Release()

	end := view.Len()
	if o.limit > 0 && o.offset+o.limit < end {
		end = o.offset + o.limit
	}
	if err := formatter.Format(output.FromView(view, o.offset, end)); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}

func showSchema(pattern string, formatter output.Formatter, stderr io.Writer) error {
	path := pattern
	if strings.ContainsAny(pattern, "*?[]") {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid glob pattern: %w", err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("%w: %s", reader.ErrNoFiles, pattern)
		}
		path = matches[0]
		if len(matches) > 1 {
			fmt.Fprintf(stderr, "# Showing schema from: %s (%d files matched)\n", path, len(matches))
		}
	}

	infos, err := reader.ExtractSchemaInfo(path)
	if err != nil {
		return err
	}
	frame := output.Frame{Columns: []string{"name", "type", "physical_type", "logical_type", "required", "optional", "repeated"}}
	for _, f := range infos {
		frame.Rows = append(frame.Rows, []scalar.Scalar{
			scalar.String(f.Name),
			scalar.String(f.Type),
			scalar.String(f.PhysicalType),
			scalar.String(f.LogicalType),
			scalar.Bool(f.Required),
			scalar.Bool(f.Optional),
			scalar.Bool(f.Repeated),
		})
	}
	return formatter.Format(frame)
}

// logSink reports step progress at debug level.
type logSink struct {
	log *logging.Logger
}

func (s *logSink) Update(phase string, pct int) {
	s.log.Debug("progress", slog.String("phase", phase), slog.Int("pct", pct))
}

func (s *logSink) Cancelled() bool { return false }
