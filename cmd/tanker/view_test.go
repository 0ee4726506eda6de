package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tanker/schema"
	"tanker/view"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	user, err := schema.NewTable("user", []*schema.Column{
		{Name: "email", CType: schema.CTypeVarchar},
	}, []string{"email"}, nil, "", nil)
	require.NoError(t, err)
	team, err := schema.NewTable("team", []*schema.Column{
		{Name: "name", CType: schema.CTypeVarchar},
		{Name: "owner", CType: schema.CTypeM2O, FKTable: "user", FKColumn: "id"},
	}, []string{"name"}, nil, "", nil)
	require.NoError(t, err)
	reg, err := schema.NewRegistry([]*schema.Table{user, team})
	require.NoError(t, err)
	return reg
}

func TestDefaultViewIncludesIDAndDefaultFields(t *testing.T) {
	reg := testRegistry(t)
	team, ok := reg.Table("team")
	require.True(t, ok)

	v, err := defaultView(team, reg)
	require.NoError(t, err)

	names := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		names[i] = f.Name
	}
	assert.ElementsMatch(t, []string{"id", "name", "owner.email"}, names)
}

func TestParseOrderDefaultsToAscending(t *testing.T) {
	items := parseOrder([]string{"name", "created_at:desc", "id:ASC"})
	require.Len(t, items, 3)
	assert.Equal(t, view.OrderItem{Col: "name", Dir: "ASC"}, items[0])
	assert.Equal(t, view.OrderItem{Col: "created_at", Dir: "DESC"}, items[1])
	assert.Equal(t, view.OrderItem{Col: "id", Dir: "ASC"}, items[2])
}

func TestParseOrderEmptyInput(t *testing.T) {
	assert.Empty(t, parseOrder(nil))
}

func TestLoadRowDataRequiresFile(t *testing.T) {
	_, err := loadRowData(&commonFlags{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--file")
}

func TestLoadRowDataParsesJSONArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"acme"},{"name":"globex"}]`), 0o644))

	rows, err := loadRowData(&commonFlags{file: path})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "acme", rows[0]["name"])
	assert.Equal(t, "globex", rows[1]["name"])
}

func TestLoadRowDataRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))

	_, err := loadRowData(&commonFlags{file: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON array")
}

func TestLimitOffsetPtrOnlySetWhenFlagChanged(t *testing.T) {
	f := &commonFlags{limit: 10, offset: 5}
	assert.Nil(t, limitPtr(f))
	assert.Nil(t, offsetPtr(f))

	f.hasLimit = true
	f.hasOffset = true
	require.NotNil(t, limitPtr(f))
	require.NotNil(t, offsetPtr(f))
	assert.Equal(t, 10, *limitPtr(f))
	assert.Equal(t, 5, *offsetPtr(f))
}
