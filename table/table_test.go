package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/cubecat/scalar"
)

func salesSchema() Schema {
	return Schema{
		{Name: "id", DType: scalar.DTypeInt64},
		{Name: "region", DType: scalar.DTypeStr},
		{Name: "amount", DType: scalar.DTypeFloat64},
	}
}

func newSales(t *testing.T, opts ...Option) *Table {
	t.Helper()
	tbl, err := New(salesSchema(), append([]Option{WithPrimaryKey("id")}, opts...)...)
	require.NoError(t, err)
	return tbl
}

func sale(id int64, region string, amount float64) Row {
	return Row{"id": scalar.Int64(id), "region": scalar.String(region), "amount": scalar.Float64(amount)}
}

func TestNewRejectsBadSchema(t *testing.T) {
	_, err := New(Schema{{Name: "a"}, {Name: "a"}})
	assert.ErrorIs(t, err, ErrDuplicateColumn)

	_, err = New(salesSchema(), WithPrimaryKey("missing"))
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestUpsertInsertAndUpdate(t *testing.T) {
	tbl := newSales(t)
	require.NoError(t, tbl.Upsert(sale(1, "East", 10), sale(2, "West", 20)))
	assert.Equal(t, uint64(1), tbl.Epoch())
	assert.Equal(t, 2, tbl.NumLive())

	require.NoError(t, tbl.Upsert(Row{"id": scalar.Int64(2), "amount": scalar.Int64(25)}))
	row, ok := tbl.RowByKey(scalar.Int64(2))
	require.True(t, ok)
	assert.Equal(t, uint32(1), row)
	assert.Equal(t, "West", tbl.Scalar(row, 1).Str())
	assert.Equal(t, 25.0, tbl.Scalar(row, 2).Float64())

	changes, ok := tbl.ChangesSince(1)
	require.True(t, ok)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeUpdate, changes[0].Kind)
	assert.Equal(t, 20.0, changes[0].Old[2].Float64())
}

func TestUpsertIsAtomic(t *testing.T) {
	tbl := newSales(t)
	err := tbl.Upsert(sale(1, "East", 10), Row{"id": scalar.Int64(2), "region": scalar.Int64(5)})
	assert.ErrorIs(t, err, scalar.ErrTypeMismatch)
	assert.Equal(t, 0, tbl.NumLive())
	assert.Equal(t, uint64(0), tbl.Epoch())

	err = tbl.Upsert(Row{"nope": scalar.Int64(1)})
	assert.ErrorIs(t, err, ErrColumnNotFound)

	err = tbl.Upsert(Row{"region": scalar.String("East")})
	assert.ErrorIs(t, err, ErrMissingPrimaryKey)
}

func TestDeleteKeepsRowIDs(t *testing.T) {
	tbl := newSales(t)
	require.NoError(t, tbl.Upsert(sale(1, "East", 10), sale(2, "West", 20), sale(3, "East", 30)))

	assert.Equal(t, 1, tbl.Delete(scalar.Int64(2), scalar.Int64(99)))
	assert.False(t, tbl.Live(1))
	assert.Equal(t, 3, tbl.Len())
	_, ok := tbl.RowByKey(scalar.Int64(2))
	assert.False(t, ok)

	require.NoError(t, tbl.Upsert(sale(2, "North", 5)))
	row, ok := tbl.RowByKey(scalar.Int64(2))
	require.True(t, ok)
	assert.Equal(t, uint32(1), row)
	assert.Equal(t, "North", tbl.Scalar(row, 1).Str())

	changes, ok := tbl.ChangesSince(1)
	require.True(t, ok)
	require.Len(t, changes, 2)
	assert.Equal(t, ChangeDelete, changes[0].Kind)
	assert.Equal(t, "West", changes[0].Old[1].Str())
	assert.Equal(t, ChangeInsert, changes[1].Kind)
	assert.Nil(t, changes[1].Old)
}

func TestChangeLogTruncation(t *testing.T) {
	tbl := newSales(t, WithChangeLogCapacity(2))
	for i := int64(1); i <= 4; i++ {
		require.NoError(t, tbl.Upsert(sale(i, "East", float64(i))))
	}
	_, ok := tbl.ChangesSince(0)
	assert.False(t, ok)

	changes, ok := tbl.ChangesSince(2)
	require.True(t, ok)
	assert.Len(t, changes, 2)

	changes, ok = tbl.ChangesSince(4)
	require.True(t, ok)
	assert.Empty(t, changes)
}

func TestImplicitKeys(t *testing.T) {
	tbl, err := New(salesSchema())
	require.NoError(t, err)
	require.NoError(t, tbl.Upsert(sale(7, "East", 1), sale(7, "East", 1)))
	assert.Equal(t, 2, tbl.NumLive())
	assert.Equal(t, int64(1), tbl.PrimaryKey(1).Int64())
	assert.Equal(t, 1, tbl.Delete(scalar.Int64(0)))
}

func TestColumnStorage(t *testing.T) {
	tbl := newSales(t)
	require.NoError(t, tbl.Upsert(sale(1, "East", 10), sale(2, "East", 20), Row{"id": scalar.Int64(3)}))

	c, err := tbl.Column("region")
	require.NoError(t, err)
	ids, ok := Values[VocabID](c)
	require.True(t, ok)
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, 1, c.Vocab().Len())
	assert.Equal(t, scalar.StatusInvalid, c.Status(2))
	assert.True(t, c.Scalar(2).IsNull())

	_, err = tbl.Column("nope")
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "nope", se.Column)
}

func TestVocab(t *testing.T) {
	v := NewVocab()
	a := v.Intern("a")
	b := v.Intern("b")
	assert.Equal(t, a, v.Intern("a"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, "b", v.Resolve(b))
	_, ok := v.Lookup("c")
	assert.False(t, ok)
	assert.Equal(t, 2, v.Len())
}
