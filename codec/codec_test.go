package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minidbms/catalog"
	"minidbms/common"
)

func compositeTable() *catalog.Table {
	return &catalog.Table{
		Name: "pairs",
		Columns: []catalog.Column{
			{Name: "a", Type: catalog.TypeInt},
			{Name: "b", Type: catalog.TypeInt},
			{Name: "c", Type: catalog.TypeVarchar, Length: 5, Nullable: true},
			{Name: "d", Type: catalog.TypeFloat, Nullable: true},
		},
		PrimaryKey: []string{"a", "b"},
	}
}

func TestEncode_CompositeKey(t *testing.T) {
	key, value, err := Encode(compositeTable(), []Field{{"a", "1"}, {"b", "2"}, {"c", "x"}})
	require.NoError(t, err)
	assert.Equal(t, "1#2", key)
	assert.Equal(t, "x", value)
}

func TestEncode_KeyFollowsDeclaredOrder(t *testing.T) {
	table := compositeTable()
	orders := [][]Field{
		{{"a", "1"}, {"b", "2"}, {"c", "x"}},
		{{"b", "2"}, {"a", "1"}, {"c", "x"}},
		{{"c", "x"}, {"b", "2"}, {"a", "1"}},
	}
	for _, fields := range orders {
		key, value, err := Encode(table, fields)
		require.NoError(t, err)
		assert.Equal(t, "1#2", key)
		assert.Equal(t, "x", value)
	}
}

func TestEncode_ValueKeepsInputOrder(t *testing.T) {
	table := compositeTable()

	_, value, err := Encode(table, []Field{{"a", "1"}, {"d", "2.5"}, {"b", "2"}, {"c", "x"}})
	require.NoError(t, err)
	assert.Equal(t, "2.5#x", value)

	_, value, err = Encode(table, []Field{{"c", "x"}, {"a", "1"}, {"b", "2"}, {"d", "2.5"}})
	require.NoError(t, err)
	assert.Equal(t, "x#2.5", value)
}

func TestEncode_Deterministic(t *testing.T) {
	table := compositeTable()
	fields := []Field{{"a", "7"}, {"b", "8"}, {"c", "hi"}, {"d", "1"}}
	k1, v1, err := Encode(table, fields)
	require.NoError(t, err)
	k2, v2, err := Encode(table, fields)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Equal(t, v1, v2)
}

func TestEncode_UnknownFields(t *testing.T) {
	_, _, err := Encode(compositeTable(), []Field{{"a", "1"}, {"b", "2"}, {"zz", "1"}, {"yy", "2"}})
	require.Error(t, err)
	assert.Equal(t, common.KindUnknownField, common.KindOf(err))
	assert.Contains(t, err.Error(), "yy, zz")
}

func TestEncode_MissingKeyField(t *testing.T) {
	_, _, err := Encode(compositeTable(), []Field{{"a", "1"}, {"c", "x"}})
	require.Error(t, err)
	assert.Equal(t, common.KindMissingKeyField, common.KindOf(err))
	assert.Contains(t, err.Error(), "b")
}

func TestEncode_InvalidValues(t *testing.T) {
	table := compositeTable()
	cases := map[string][]Field{
		"int":       {{"a", "one"}, {"b", "2"}},
		"float":     {{"a", "1"}, {"b", "2"}, {"d", "abc"}},
		"length":    {{"a", "1"}, {"b", "2"}, {"c", "toolong"}},
		"separator": {{"a", "1"}, {"b", "2"}, {"c", "x#y"}},
		"empty key": {{"a", ""}, {"b", "2"}},
		"duplicate": {{"a", "1"}, {"a", "1"}, {"b", "2"}},
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Encode(table, fields)
			require.Error(t, err)
			assert.Equal(t, common.KindInvalidValue, common.KindOf(err))
		})
	}
}

func TestEncode_NotNullColumnRequired(t *testing.T) {
	table := &catalog.Table{
		Name: "t",
		Columns: []catalog.Column{
			{Name: "id", Type: catalog.TypeInt},
			{Name: "name", Type: catalog.TypeVarchar},
		},
		PrimaryKey: []string{"id"},
	}
	_, _, err := Encode(table, []Field{{"id", "1"}})
	require.Error(t, err)
	assert.Equal(t, common.KindInvalidValue, common.KindOf(err))

	table.Columns[1].Nullable = true
	key, value, err := Encode(table, []Field{{"id", "1"}})
	require.NoError(t, err)
	assert.Equal(t, "1", key)
	assert.Equal(t, "", value)
}

func TestDecode(t *testing.T) {
	table := compositeTable()
	fields := Decode(table, "1#2", "x#2.5")
	assert.Equal(t, []Field{{"a", "1"}, {"b", "2"}, {"$1", "x"}, {"$2", "2.5"}}, fields)
	assert.Equal(t, "a=1, b=2, $1=x, $2=2.5", Format(fields))

	assert.Equal(t, []Field{{"a", "1"}, {"b", "2"}}, Decode(table, "1#2", ""))
}
