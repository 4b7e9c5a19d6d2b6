package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/identity-field/sheetsync/pkg/smartsheet"
)

func keyRow(tank, city, state interface{}) smartsheet.Row {
	return smartsheet.Row{
		ID: 1,
		Cells: []smartsheet.Cell{
			{ColumnID: 100, Value: tank},
			{ColumnID: 200, Value: city},
			{ColumnID: 300, Value: state},
		},
	}
}

func TestExtractKey(t *testing.T) {
	key, ok := ExtractKey(keyRow("010", " Tulsa ", "OK"), []int64{100, 200, 300})
	assert.True(t, ok)
	assert.Equal(t, "10|tulsa|ok", key)
}

func TestExtractKeyNumericEquivalence(t *testing.T) {
	a, _ := ExtractKey(keyRow("010", "Tulsa", "OK"), []int64{100, 200, 300})
	b, _ := ExtractKey(keyRow(float64(10), "tulsa", "ok"), []int64{100, 200, 300})
	assert.Equal(t, a, b)
}

func TestExtractKeyMissingComponent(t *testing.T) {
	for _, row := range []smartsheet.Row{
		keyRow(nil, "Tulsa", "OK"),
		keyRow("10", "", "OK"),
		keyRow("10", "Tulsa", "   "),
	} {
		key, ok := ExtractKey(row, []int64{100, 200, 300})
		assert.False(t, ok)
		assert.Equal(t, "", key)
	}
}

func TestExtractKeyNoColumns(t *testing.T) {
	_, ok := ExtractKey(keyRow("10", "Tulsa", "OK"), nil)
	assert.False(t, ok)
}

func TestExtractKeySingleColumn(t *testing.T) {
	key, ok := ExtractKey(keyRow("123.0", "x", "y"), []int64{100})
	assert.True(t, ok)
	assert.Equal(t, "123", key)
}
