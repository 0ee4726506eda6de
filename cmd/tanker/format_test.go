package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRows is a minimal tanker.Rows for exercising materialize without a
// live connection.
type fakeRows struct {
	cols []string
	data [][]any
	pos  int
}

func (f *fakeRows) Columns() ([]string, error) { return f.cols, nil }
func (f *fakeRows) Next() bool {
	if f.pos >= len(f.data) {
		return false
	}
	f.pos++
	return true
}
func (f *fakeRows) Scan(dest ...any) error {
	row := f.data[f.pos-1]
	for i, v := range row {
		p := dest[i].(*any)
		*p = v
	}
	return nil
}
func (f *fakeRows) Err() error   { return nil }
func (f *fakeRows) Close() error { return nil }

func TestMaterializeDrainsRowsIntoMaps(t *testing.T) {
	rows := &fakeRows{
		cols: []string{"id", "name"},
		data: [][]any{{int64(1), "acme"}, {int64(2), "globex"}},
	}

	cols, out, err := materialize(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, cols)
	require.Len(t, out, 2)
	assert.Equal(t, "acme", out[0]["name"])
	assert.Equal(t, int64(2), out[1]["id"])
}

func TestFormatCellHandlesCommonTypes(t *testing.T) {
	assert.Equal(t, "", formatCell(nil))
	assert.Equal(t, "acme", formatCell("acme"))
	assert.Equal(t, "acme", formatCell([]byte("acme")))
	assert.Equal(t, "3.5", formatCell(3.5))
	assert.Equal(t, "7", formatCell(7))
}
