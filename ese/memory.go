package ese

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
)

// MemoryRecord is a Record backed by an in-memory map. Zero value is an
// empty record.
type MemoryRecord struct {
	columns map[string]Value
}

// NewMemoryRecord wraps a pre-built column map as a Record.
func NewMemoryRecord(columns map[string]Value) MemoryRecord {
	if columns == nil {
		columns = map[string]Value{}
	}
	return MemoryRecord{columns: columns}
}

func (r MemoryRecord) Get(column string) (Value, bool) {
	v, ok := r.columns[column]
	return v, ok
}

func (r MemoryRecord) AsMap() map[string]Value {
	out := make(map[string]Value, len(r.columns))
	for k, v := range r.columns {
		out[k] = v
	}
	return out
}

func (r MemoryRecord) Columns() []string {
	out := make([]string, 0, len(r.columns))
	for k := range r.columns {
		out = append(out, k)
	}
	return out
}

// MemoryTable is a Table backed by an ordered slice of records, fixed
// up front from a JSON fixture or built programmatically by tests.
type MemoryTable struct {
	name    string
	columns []string
	records []Record
}

// NewMemoryTable builds a table from its column list and rows, in
// iteration order.
func NewMemoryTable(name string, columns []string, records []Record) *MemoryTable {
	return &MemoryTable{name: name, columns: columns, records: records}
}

func (t *MemoryTable) Name() string          { return t.name }
func (t *MemoryTable) ColumnNames() []string { return t.columns }

func (t *MemoryTable) Records() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, rec := range t.records {
			if !yield(rec) {
				return
			}
		}
	}
}

// MemoryDatabase is a small, in-memory Database used by tests and by
// the demo CLI subcommand. It is never a production ESE engine: it
// exists so the schema resolver, DN builder, and secret decryption
// pipeline can be exercised against hand-built or fixture-loaded data
// without a real ntds.dit file.
type MemoryDatabase struct {
	tables map[string]*MemoryTable
}

// NewMemoryDatabase builds an empty in-memory database. Use AddTable
// to populate it, or LoadMemoryDatabaseFixture to load one from JSON.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{tables: map[string]*MemoryTable{}}
}

// AddTable registers a table under its own name, overwriting any
// previous table of the same name.
func (d *MemoryDatabase) AddTable(t *MemoryTable) {
	d.tables[t.Name()] = t
}

func (d *MemoryDatabase) Table(name string) (Table, bool) {
	t, ok := d.tables[name]
	if !ok {
		return nil, false
	}
	return t, true
}

func (d *MemoryDatabase) Close() error { return nil }

// fixture is the on-disk JSON shape a MemoryDatabase is loaded from:
//
//	{
//	  "tables": {
//	    "datatable": {
//	      "columns": ["ATTm131532", "..."],
//	      "records": [ {"ATTm131532": "value", "DNT_col": 42}, ... ]
//	    }
//	  }
//	}
//
// String values of the form "hex:<hexdigits>" are decoded to []byte so
// fixtures can express binary columns (PEK blobs, security descriptors,
// encrypted secrets) without a separate encoding scheme. Whole-number
// JSON values are decoded to int64, the integer type the schema resolver
// and DN builder read; other numbers stay float64.
type fixture struct {
	Tables map[string]fixtureTable `json:"tables"`
}

type fixtureTable struct {
	Columns []string         `json:"columns"`
	Records []map[string]any `json:"records"`
}

const hexValuePrefix = "hex:"

func normalizeFixtureValue(v any) Value {
	switch val := v.(type) {
	case string:
		if rest, ok := trimHexPrefix(val); ok {
			raw, err := hex.DecodeString(rest)
			if err == nil {
				return raw
			}
		}
		return val
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeFixtureValue(elem)
		}
		return out
	default:
		return val
	}
}

func trimHexPrefix(s string) (string, bool) {
	if len(s) < len(hexValuePrefix) || s[:len(hexValuePrefix)] != hexValuePrefix {
		return "", false
	}
	return s[len(hexValuePrefix):], true
}

// LoadMemoryDatabaseFixture builds a MemoryDatabase from a JSON fixture
// read from r.
func LoadMemoryDatabaseFixture(r io.Reader) (*MemoryDatabase, error) {
	var fx fixture
	if err := json.NewDecoder(r).Decode(&fx); err != nil {
		return nil, fmt.Errorf("decoding ese fixture: %w", err)
	}

	db := NewMemoryDatabase()
	for name, ft := range fx.Tables {
		records := make([]Record, 0, len(ft.Records))
		for _, row := range ft.Records {
			cols := make(map[string]Value, len(row))
			for k, v := range row {
				cols[k] = normalizeFixtureValue(v)
			}
			records = append(records, NewMemoryRecord(cols))
		}
		db.AddTable(NewMemoryTable(name, ft.Columns, records))
	}
	return db, nil
}

// LoadMemoryDatabaseFixtureFile opens path and loads it as a fixture.
func LoadMemoryDatabaseFixtureFile(path string) (*MemoryDatabase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ese fixture %s: %w", path, err)
	}
	defer f.Close()
	return LoadMemoryDatabaseFixture(f)
}
