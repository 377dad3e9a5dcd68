// Package ese declares the narrow, interface-only view of an Extensible
// Storage Engine database that the core needs: named tables, record
// iteration, and per-record column lookup by string name. Parsing the
// actual ESE page format (B-tree walking, page headers, tagged data) is
// out of scope; production callers supply their own Database
// implementation backed by a real reader.
package ese

import "iter"

// Value is a single column value pulled from a record. The underlying
// type is one of nil, bool, int32, int64, uint32, uint64, string,
// []byte, or []int32, mirroring the tagged variant a self-describing
// ESE column can hold.
type Value any

// Record is an opaque row exposing column lookup by name. Records are
// transient: no record outlives the iteration step that produced it.
type Record interface {
	// Get returns the named column's value and whether it was present.
	// A present-but-null column returns (nil, true).
	Get(column string) (Value, bool)

	// AsMap returns every populated column as a name-to-value mapping.
	AsMap() map[string]Value

	// Columns enumerates the column names populated on this record.
	Columns() []string
}

// Table is a named, iterable collection of records.
type Table interface {
	// Name returns the table's name, e.g. "datatable".
	Name() string

	// ColumnNames enumerates every column the table defines, including
	// columns that happen to be null on every record.
	ColumnNames() []string

	// Records iterates the table's rows in storage order.
	Records() iter.Seq[Record]
}

// Database is the minimal handle the core needs on an ntds.dit-shaped
// ESE file: lookup of its three well-known tables by name.
type Database interface {
	// Table returns the named table and whether it exists.
	Table(name string) (Table, bool)

	// Close releases any resources backing the database.
	Close() error
}

// Well-known table names consumed by the schema resolver and core.
const (
	TableDatatable = "datatable"
	TableLinkTable = "link_table"
	TableSDTable   = "sd_table"
)
