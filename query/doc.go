// Package query drives the materialization of views over a table.
//
// A Context owns one view: its config, its pivot builder and the last
// committed flat or tree index. The caller schedules the work. Each call to
// Advance runs exactly one phase:
//
//	filter    compile the filter terms and evaluate the row mask
//	order     sort the passing rows, or stage the pivot tree
//	traverse  lay out the visible tree nodes, or collect updated positions
//	done      commit the staged results
//
// Step runs the remaining phases of a step in one call:
//
//	cfg, err := query.LoadConfig("view.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	qc, err := query.NewContext(tbl, cfg, query.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := qc.Step(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	view, _ := qc.View()
//	defer view.Release()
//
// # Cancellation
//
// Phases poll the context passed to Advance, the Sink given with WithSink
// and Cancel at bounded intervals. A cancelled or failed phase discards
// the whole step; readers keep seeing the previous commit.
//
// # Configuration
//
// Views load from YAML. Enum values use the names the packages print:
//
//	filter:
//	  combiner: and
//	  terms:
//	    - column: region
//	      op: in
//	      values: [East, West]
//	sort:
//	  - column: amount
//	    order: desc
//	    limit: 10
//	pivots:
//	  - column: region
//	aggregates:
//	  - column: amount
//	    func: sum
//	depth: 1
package query
