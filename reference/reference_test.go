package reference

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tanker/schema"
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

func quoteIdent(s string) string { return `"` + s + `"` }

func TestGetRefDirectColumn(t *testing.T) {
	reg := testRegistry(t)
	set := New(reg, "team")

	ref, err := set.GetRef("name")
	require.NoError(t, err)
	assert.Equal(t, "team", ref.RemoteTable)
	assert.Equal(t, "name", ref.RemoteField)
	assert.Equal(t, "team", ref.JoinAlias)
	assert.Empty(t, set.GetSQLJoins(quoteIdent), "a direct column never creates a join")
}

func TestGetRefM2OCreatesJoin(t *testing.T) {
	reg := testRegistry(t)
	set := New(reg, "team")

	ref, err := set.GetRef("owner.email")
	require.NoError(t, err)
	assert.Equal(t, "user", ref.RemoteTable)
	assert.Equal(t, "email", ref.RemoteField)
	assert.Equal(t, "user_1", ref.JoinAlias)

	joins := set.GetSQLJoins(quoteIdent)
	assert.Contains(t, joins, `LEFT JOIN "user" AS "user_1"`)
	assert.Contains(t, joins, `"team"."owner" = "user_1"."id"`)
}

func TestGetRefDedupesIdenticalJoin(t *testing.T) {
	reg := testRegistry(t)
	set := New(reg, "team")

	_, err := set.GetRef("owner.email")
	require.NoError(t, err)
	ref2, err := set.GetRef("owner.email")
	require.NoError(t, err)

	assert.Equal(t, "user_1", ref2.JoinAlias, "a second request for the same path reuses the same alias")
	joins := set.GetSQLJoins(quoteIdent)
	assert.Equal(t, 1, strings.Count(joins, "LEFT JOIN"))
}

func TestGetRefUnknownColumn(t *testing.T) {
	reg := testRegistry(t)
	set := New(reg, "team")

	_, err := set.GetRef("nonexistent")
	require.Error(t, err)
}

func TestOverrideRootAliasRebindsFieldResolution(t *testing.T) {
	reg := testRegistry(t)
	set := New(reg, "team")
	set.OverrideRootAlias("tmp_abc123")

	ref, err := set.GetRef("name")
	require.NoError(t, err)
	assert.Equal(t, "tmp_abc123", ref.JoinAlias)
}
