package ese_test

import (
	"strings"
	"testing"

	"github.com/sprocket-security/ntdsdump/ese"
	"github.com/stretchr/testify/require"
)

func TestMemoryTableRecords(t *testing.T) {
	r := require.New(t)

	rec1 := ese.NewMemoryRecord(map[string]ese.Value{"rdn": "Users"})
	rec2 := ese.NewMemoryRecord(map[string]ese.Value{"rdn": "Computers"})
	table := ese.NewMemoryTable("datatable", []string{"rdn"}, []ese.Record{rec1, rec2})

	var seen []string
	for rec := range table.Records() {
		v, ok := rec.Get("rdn")
		r.True(ok)
		seen = append(seen, v.(string))
	}
	r.Equal([]string{"Users", "Computers"}, seen)
}

func TestMemoryTableRecordsStopsOnFalse(t *testing.T) {
	r := require.New(t)

	rec1 := ese.NewMemoryRecord(map[string]ese.Value{"rdn": "A"})
	rec2 := ese.NewMemoryRecord(map[string]ese.Value{"rdn": "B"})
	table := ese.NewMemoryTable("datatable", nil, []ese.Record{rec1, rec2})

	count := 0
	for range table.Records() {
		count++
		break
	}
	r.Equal(1, count)
}

func TestMemoryDatabaseTableLookup(t *testing.T) {
	r := require.New(t)

	db := ese.NewMemoryDatabase()
	db.AddTable(ese.NewMemoryTable(ese.TableDatatable, nil, nil))

	_, ok := db.Table(ese.TableDatatable)
	r.True(ok)

	_, ok = db.Table("nonexistent")
	r.False(ok)

	r.NoError(db.Close())
}

func TestLoadMemoryDatabaseFixture(t *testing.T) {
	r := require.New(t)

	fixtureJSON := `{
		"tables": {
			"datatable": {
				"columns": ["rdn", "pek_list"],
				"records": [
					{"rdn": "Example", "pek_list": "hex:0102030405"},
					{"rdn": "NoBlob"}
				]
			}
		}
	}`

	db, err := ese.LoadMemoryDatabaseFixture(strings.NewReader(fixtureJSON))
	r.NoError(err)

	table, ok := db.Table("datatable")
	r.True(ok)
	r.Equal("datatable", table.Name())

	var rows []ese.Record
	for rec := range table.Records() {
		rows = append(rows, rec)
	}
	r.Len(rows, 2)

	blob, ok := rows[0].Get("pek_list")
	r.True(ok)
	r.Equal([]byte{0x01, 0x02, 0x03, 0x04, 0x05}, blob)

	_, ok = rows[1].Get("pek_list")
	r.False(ok)
}

func TestNormalizeFixtureValuePlainString(t *testing.T) {
	r := require.New(t)

	fixtureJSON := `{
		"tables": {
			"datatable": {
				"columns": ["rdn"],
				"records": [{"rdn": "plain-value"}]
			}
		}
	}`

	db, err := ese.LoadMemoryDatabaseFixture(strings.NewReader(fixtureJSON))
	r.NoError(err)

	table, _ := db.Table("datatable")
	for rec := range table.Records() {
		v, ok := rec.Get("rdn")
		r.True(ok)
		r.Equal("plain-value", v)
	}
}
