package reader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/table"
)

type sale struct {
	ID     int64    `parquet:"id"`
	Region string   `parquet:"region"`
	Amount float64  `parquet:"amount"`
	Qty    int32    `parquet:"qty"`
	Day    int32    `parquet:"day,date"`
	At     int64    `parquet:"at,timestamp(millisecond)"`
	Note   *string  `parquet:"note,optional"`
	Tags   []string `parquet:"tags,list"`
}

var (
	march15 = time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	opening = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)
)

func epochDays(t time.Time) int32 { return int32(t.Unix() / 86400) }

func sampleSales() []sale {
	note := "rush"
	return []sale{
		{ID: 1, Region: "East", Amount: 10.5, Qty: 2, Day: epochDays(march15), At: opening.UnixMilli(), Note: &note, Tags: []string{"new", "promo"}},
		{ID: 2, Region: "West", Amount: 20, Qty: 1, Day: epochDays(march15) + 1, At: opening.Add(time.Hour).UnixMilli(), Tags: []string{"repeat"}},
	}
}

func writeSales(t *testing.T, path string, rows []sale) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := parquet.NewGenericWriter[sale](f)
	_, err = w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func salesFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.parquet")
	writeSales(t, path, sampleSales())
	return path
}

func TestNewReaderMapsSchema(t *testing.T) {
	r, err := NewReader(salesFile(t))
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.Equal(t, int64(2), r.NumRows())
	assert.Equal(t, table.Schema{
		{Name: "id", DType: scalar.DTypeInt64},
		{Name: "region", DType: scalar.DTypeStr},
		{Name: "amount", DType: scalar.DTypeFloat64},
		{Name: "qty", DType: scalar.DTypeInt32},
		{Name: "day", DType: scalar.DTypeDate},
		{Name: "at", DType: scalar.DTypeTime},
		{Name: "note", DType: scalar.DTypeStr},
		{Name: "tags", DType: scalar.DTypeListStr},
	}, r.TableSchema())
	assert.True(t, r.Fields()[7].Repeated)
	assert.False(t, r.Fields()[0].Repeated)
}

func TestReadAll(t *testing.T) {
	r, err := NewReader(salesFile(t))
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, int64(1), first["id"].Int64())
	assert.Equal(t, "East", first["region"].Str())
	assert.Equal(t, 10.5, first["amount"].Float64())
	assert.Equal(t, scalar.DTypeInt32, first["qty"].DType())
	assert.Equal(t, scalar.NewDate(2024, time.March, 15), first["day"].Date())
	assert.Equal(t, opening, first["at"].Time().Std())
	assert.Equal(t, "rush", first["note"].Str())

	var tags []string
	for _, s := range first["tags"].List() {
		tags = append(tags, s.Str())
	}
	assert.Equal(t, []string{"new", "promo"}, tags)

	second := rows[1]
	assert.True(t, second["note"].IsNull())
	assert.Equal(t, scalar.DTypeStr, second["note"].DType())
	assert.Equal(t, scalar.NewDate(2024, time.March, 16), second["day"].Date())
	assert.Equal(t, 1, second["tags"].Len())
}

func TestCloseTwice(t *testing.T) {
	r, err := NewReader(salesFile(t))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}

func TestLoadTableSingleFile(t *testing.T) {
	tbl, err := LoadTable(salesFile(t), WithPrimaryKey("id"))
	require.NoError(t, err)

	assert.Equal(t, 2, tbl.NumLive())
	_, hasFile := tbl.Schema().Index(FileColumn)
	assert.False(t, hasFile, "single file loads keep the file schema")

	row, ok := tbl.RowByKey(scalar.Int64(2))
	require.True(t, ok)
	region, err := tbl.Column("region")
	require.NoError(t, err)
	assert.Equal(t, "West", region.Scalar(row).Str())
}

func TestLoadTableGlob(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"a.parquet", "b.parquet", "c.parquet"} {
		rows := sampleSales()
		for j := range rows {
			rows[j].ID += int64(10 * i)
		}
		writeSales(t, filepath.Join(dir, name), rows)
	}

	tbl, err := LoadTable(filepath.Join(dir, "*.parquet"), WithBatchSize(1))
	require.NoError(t, err)
	assert.Equal(t, 6, tbl.NumLive())

	files, err := tbl.Column(FileColumn)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.parquet"), files.Scalar(0).Str())
	assert.Equal(t, filepath.Join(dir, "c.parquet"), files.Scalar(5).Str())
}

func TestLoadTableColumns(t *testing.T) {
	tbl, err := LoadTable(salesFile(t), WithColumns("region", "amount"))
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "amount"}, tbl.Schema().Names())
	assert.Equal(t, 2, tbl.NumLive())

	_, err = LoadTable(salesFile(t), WithColumns("nope"))
	assert.ErrorIs(t, err, table.ErrColumnNotFound)
}

func TestLoadTableErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadTable(filepath.Join(dir, "*.parquet"))
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = LoadTable(filepath.Join(dir, "missing.parquet"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	junk := filepath.Join(dir, "junk.parquet")
	require.NoError(t, os.WriteFile(junk, []byte("not parquet"), 0o644))
	_, err = LoadTable(junk)
	assert.Error(t, err)

	_, err = LoadTable(salesFile(t), WithPrimaryKey("missing"))
	assert.ErrorIs(t, err, table.ErrColumnNotFound)
}

func TestColumnName(t *testing.T) {
	tests := []struct {
		path []string
		want string
	}{
		{[]string{"id"}, "id"},
		{[]string{"address", "street"}, "address.street"},
		{[]string{"tags", "list", "element"}, "tags"},
		{[]string{"orders", "list", "item", "price"}, "orders.price"},
		{[]string{"list", "element"}, "list.element"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, columnName(tt.path), tt.path)
	}
}

func TestConverter(t *testing.T) {
	t.Run("decimal int64", func(t *testing.T) {
		dt, conv := converter(parquet.Decimal(2, 10, parquet.Int64Type))
		assert.Equal(t, scalar.DTypeDecimal, dt)
		assert.Equal(t, "-12.34", conv(parquet.Int64Value(-1234)).Decimal().String())
	})
	t.Run("decimal bytes", func(t *testing.T) {
		_, conv := converter(parquet.Decimal(1, 5, parquet.FixedLenByteArrayType(2)))
		// 0xfc18 is -1000 in two's complement.
		got := conv(parquet.FixedLenByteArrayValue([]byte{0xfc, 0x18}))
		assert.Equal(t, "-100", got.Decimal().String())
	})
	t.Run("unsigned", func(t *testing.T) {
		dt, conv := converter(parquet.Uint(32))
		assert.Equal(t, scalar.DTypeUint32, dt)
		assert.Equal(t, int64(4_000_000_000), conv(parquet.Int32Value(int32(-294967296))).Int64())
	})
	t.Run("signed small", func(t *testing.T) {
		dt, conv := converter(parquet.Int(16))
		assert.Equal(t, scalar.DTypeInt16, dt)
		assert.Equal(t, int64(-7), conv(parquet.Int32Value(-7)).Int64())
	})
	t.Run("time of day", func(t *testing.T) {
		dt, conv := converter(parquet.Time(parquet.Millisecond))
		assert.Equal(t, scalar.DTypeDuration, dt)
		got := conv(parquet.Int32Value(int32((90 * time.Minute).Milliseconds())))
		assert.InDelta(t, float64(scalar.DurationOf(90*time.Minute)), float64(got.Duration()), scalar.Epsilon)
	})
	t.Run("timestamp micros", func(t *testing.T) {
		dt, conv := converter(parquet.Timestamp(parquet.Microsecond))
		assert.Equal(t, scalar.DTypeTime, dt)
		assert.Equal(t, opening, conv(parquet.Int64Value(opening.UnixMicro())).Time().Std())
	})
	t.Run("date", func(t *testing.T) {
		dt, conv := converter(parquet.Date())
		assert.Equal(t, scalar.DTypeDate, dt)
		assert.Equal(t, scalar.NewDate(2024, time.March, 15), conv(parquet.Int32Value(epochDays(march15))).Date())
	})
	t.Run("string", func(t *testing.T) {
		dt, conv := converter(parquet.String())
		assert.Equal(t, scalar.DTypeStr, dt)
		assert.Equal(t, "hello", conv(parquet.ByteArrayValue([]byte("hello"))).Str())
	})
}

func TestListItemWidensElements(t *testing.T) {
	assert.Equal(t, scalar.DTypeInt64, listItem(scalar.Int32(3), scalar.DTypeInt64).DType())
	assert.Equal(t, scalar.DTypeFloat64, listItem(scalar.Float32(1.5), scalar.DTypeFloat64).DType())

	d, err := scalar.ParseDecimal("2.5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, listItem(scalar.DecimalValue(d), scalar.DTypeFloat64).Float64())
}

func TestExtractSchemaInfo(t *testing.T) {
	infos, err := ExtractSchemaInfo(salesFile(t))
	require.NoError(t, err)
	require.Len(t, infos, 8)

	assert.Equal(t, SchemaInfo{Name: "id", Type: "int64", PhysicalType: "INT64", Required: true}, infos[0])
	assert.Equal(t, "date", infos[4].Type)
	assert.Equal(t, "INT32", infos[4].PhysicalType)
	assert.NotEmpty(t, infos[4].LogicalType)

	note := infos[6]
	assert.True(t, note.Optional)
	assert.False(t, note.Required)

	tags := infos[7]
	assert.Equal(t, "list_str", tags.Type)
	assert.True(t, tags.Repeated)
}
