package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTableInjectsID(t *testing.T) {
	tbl, err := NewTable("team", []*Column{{Name: "name", CType: CTypeVarchar}}, nil, nil, "", nil)
	require.NoError(t, err)

	id := tbl.FindColumn("id")
	require.NotNil(t, id)
	assert.Equal(t, CTypeBigint, id.CType)
	assert.Equal(t, []string{"name"}, tbl.Key, "single non-id column becomes the inferred natural key")
}

func TestNewTableRejectsUnknownKeyColumn(t *testing.T) {
	_, err := NewTable("team", []*Column{{Name: "name", CType: CTypeVarchar}}, []string{"missing"}, nil, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestNewTableRejectsArrayOnRelation(t *testing.T) {
	cols := []*Column{{Name: "owner", CType: CTypeM2O, FKTable: "user", FKColumn: "id", ArrayDim: 1}}
	_, err := NewTable("team", cols, nil, nil, "", nil)
	require.Error(t, err)
}

func TestTableDefaultFieldsExpandsM2O(t *testing.T) {
	user, err := NewTable("user", []*Column{{Name: "email", CType: CTypeVarchar}}, []string{"email"}, nil, "", nil)
	require.NoError(t, err)
	team, err := NewTable("team", []*Column{
		{Name: "name", CType: CTypeVarchar},
		{Name: "owner", CType: CTypeM2O, FKTable: "user", FKColumn: "email"},
	}, []string{"name"}, nil, "", nil)
	require.NoError(t, err)

	reg, err := NewRegistry([]*Table{user, team})
	require.NoError(t, err)

	fields, err := team.DefaultFields(reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "owner.email"}, fields)
}

func TestTableLinkFindsReversePath(t *testing.T) {
	team, err := NewTable("team", []*Column{{Name: "name", CType: CTypeVarchar}}, []string{"name"}, nil, "", nil)
	require.NoError(t, err)
	member, err := NewTable("member", []*Column{
		{Name: "handle", CType: CTypeVarchar},
		{Name: "team", CType: CTypeM2O, FKTable: "team", FKColumn: "id"},
	}, []string{"handle"}, nil, "", nil)
	require.NoError(t, err)

	reg, err := NewRegistry([]*Table{team, member})
	require.NoError(t, err)

	paths := team.Link(reg, "member")
	require.NotEmpty(t, paths)
	assert.Equal(t, "team", paths[0][0].Column, "o2m reverse edge carries the remote m2o column name")
	assert.True(t, paths[0][0].Reverse)
}

func TestNormalizeDataType(t *testing.T) {
	cases := map[string]CType{
		"BIGINT":           CTypeBigint,
		"int(11)":          CTypeInteger,
		"double precision": CTypeFloat,
		"boolean":          CTypeBool,
		"timestamp with time zone": CTypeTimestampTZ,
		"timestamp":        CTypeTimestamp,
		"date":             CTypeDate,
		"jsonb":            CTypeJSONB,
		"blob":             CTypeBytea,
		"varchar(255)":     CTypeVarchar,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeDataType(raw), raw)
	}
}
