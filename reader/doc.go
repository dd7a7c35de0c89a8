// Package reader loads Apache Parquet files into tables.
//
// Each parquet leaf column becomes one table column. Nested fields use dot
// notation ("address.street") and repeated leaves load as list columns.
// Column types follow the parquet logical type when there is one:
//
//	DATE               date
//	TIMESTAMP, INT96   time
//	TIME               duration
//	DECIMAL            decimal
//	INT(bits, signed)  the matching integer type
//	UUID               str
//	STRING, ENUM, JSON str
//
// and the physical type otherwise.
//
// # Loading
//
//	tbl, err := reader.LoadTable("data/*.parquet", reader.WithPrimaryKey("id"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Glob patterns may match up to 1000 files. Rows loaded through a glob carry
// a "_file" column with their source path; single file loads keep the
// file's schema unchanged.
//
// # Schema Introspection
//
//	infos, err := reader.ExtractSchemaInfo("data.parquet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, info := range infos {
//	    fmt.Printf("%s: %s (%s)\n", info.Name, info.Type, info.PhysicalType)
//	}
//
// # Resource Management
//
// A Reader holds an open file. Always call Close when done reading:
//
//	r, err := reader.NewReader("data.parquet")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
package reader
