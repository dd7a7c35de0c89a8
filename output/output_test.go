package output

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/cubecat/aggregate"
	"github.com/vegasq/cubecat/pivot"
	"github.com/vegasq/cubecat/query"
	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/sorter"
	"github.com/vegasq/cubecat/table"
	"github.com/vegasq/cubecat/traversal"
)

func sampleFrame() Frame {
	return Frame{
		Columns: []string{"name", "age", "score", "note"},
		Rows: [][]scalar.Scalar{
			{scalar.String("alice"), scalar.Int32(30), scalar.Float64(95.5), scalar.Null(scalar.DTypeStr)},
			{scalar.String("=SUM(A1)"), scalar.Int32(25), scalar.Float64(82), scalar.String("ok")},
		},
	}
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVFormatter(&buf).Format(sampleFrame()))
	assert.Equal(t, "name,age,score,note\nalice,30,95.5,\n'=SUM(A1),25,82,ok\n", buf.String())
}

func TestCSVFormatterEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVFormatter(&buf).Format(Frame{Columns: []string{"a", "b"}}))
	assert.Equal(t, "a,b\n", buf.String())
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   scalar.Scalar
		want string
	}{
		{"null", scalar.Null(scalar.DTypeInt64), ""},
		{"none", scalar.None(), ""},
		{"error", scalar.Error(scalar.DTypeFloat64), "#ERROR"},
		{"plain string", scalar.String("hello"), "hello"},
		{"formula", scalar.String("+1"), "'+1"},
		{"quote in formula", scalar.String("@it's"), "'@it''s"},
		{"negative number", scalar.Int64(-4), "-4"},
		{"bool", scalar.Bool(true), "true"},
		{"date", scalar.DateValue(scalar.NewDate(2024, 3, 15)), "2024-03-15"},
		{"list", scalar.List(scalar.DTypeStr, []scalar.Scalar{scalar.String("a"), scalar.String("b")}), "[a, b]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.in))
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(&buf).Format(sampleFrame()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, map[string]any{"name": "alice", "age": float64(30), "score": 95.5, "note": nil}, first)
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTableFormatter(&buf).Format(sampleFrame()))
	out := buf.String()
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "95.5")
	assert.Contains(t, out, "null")
}

func TestNew(t *testing.T) {
	for name, want := range map[string]Formatter{
		"json":  &JSONFormatter{},
		"jsonl": &JSONFormatter{},
		"csv":   &CSVFormatter{},
		"table": &TableFormatter{},
	} {
		f, err := New(name, nil)
		require.NoError(t, err)
		assert.IsType(t, want, f, name)
	}
	_, err := New("xml", nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSetOutput(t *testing.T) {
	var first, second bytes.Buffer
	f := NewCSVFormatter(&first)
	f.SetOutput(&second)
	require.NoError(t, f.Format(Frame{Columns: []string{"x"}}))
	assert.Empty(t, first.String())
	assert.Equal(t, "x\n", second.String())
}

func salesContext(t *testing.T, cfg query.Config) *query.Context {
	t.Helper()
	tbl, err := table.New(table.Schema{
		{Name: "region", DType: scalar.DTypeStr},
		{Name: "product", DType: scalar.DTypeStr},
		{Name: "amount", DType: scalar.DTypeInt64},
	})
	require.NoError(t, err)
	sale := func(region, product string, amount int64) table.Row {
		return table.Row{"region": scalar.String(region), "product": scalar.String(product), "amount": scalar.Int64(amount)}
	}
	require.NoError(t, tbl.Upsert(
		sale("East", "a", 10),
		sale("West", "a", 20),
		sale("East", "b", 30),
		sale("West", "b", 50),
	))
	qc, err := query.NewContext(tbl, cfg)
	require.NoError(t, err)
	require.NoError(t, qc.Step(context.Background()))
	return qc
}

func TestFromFlatView(t *testing.T) {
	qc := salesContext(t, query.Config{Sort: []sorter.Key{{Column: "amount", Type: sorter.Descending}}})
	v, err := qc.View()
	require.NoError(t, err)
	defer v.Release()

	f := FromView(v, 0, 2)
	assert.Equal(t, []string{"region", "product", "amount"}, f.Columns)
	require.Equal(t, 2, f.Len())

	var buf bytes.Buffer
	require.NoError(t, NewCSVFormatter(&buf).Format(f))
	assert.Equal(t, "region,product,amount\nWest,b,50\nEast,b,30\n", buf.String())
}

func TestFromGroupedView(t *testing.T) {
	qc := salesContext(t, query.Config{
		Pivots:     []pivot.Level{{Column: "region"}, {Column: "product"}},
		Aggregates: []aggregate.Spec{{Name: "total", Column: "amount", Func: aggregate.Sum}},
		Depth:      1,
		TreeOrder:  traversal.ByValue,
	})
	_, err := qc.Expand(1)
	require.NoError(t, err)
	v, err := qc.View()
	require.NoError(t, err)
	defer v.Release()

	var buf bytes.Buffer
	require.NoError(t, NewCSVFormatter(&buf).Format(FromView(v, 0, v.Len())))
	assert.Equal(t, "group,count,total\nTotal,4,110\nEast,2,40\n\"  a\",1,10\n\"  b\",1,30\nWest,2,70\n", buf.String())
}
