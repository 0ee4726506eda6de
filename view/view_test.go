package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tanker/backend"
	"tanker/expr"
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

func testView(t *testing.T) *View {
	reg := testRegistry(t)
	team, _ := reg.Table("team")
	v, err := New(team, reg, []ViewField{
		{Name: "name", Kind: FieldColumn, Path: "name"},
		{Name: "owner_email", Kind: FieldPath, Path: "owner.email"},
	})
	require.NoError(t, err)
	return v
}

func TestViewKeyColsFallsBackToNaturalKey(t *testing.T) {
	v := testView(t)
	assert.Equal(t, []string{"name"}, v.KeyCols())
}

func TestViewKeyColsPrefersID(t *testing.T) {
	reg := testRegistry(t)
	team, _ := reg.Table("team")
	v, err := New(team, reg, []ViewField{
		{Name: "id", Kind: FieldColumn, Path: "id"},
		{Name: "name", Kind: FieldColumn, Path: "name"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, v.KeyCols())
}

func TestViewRejectsMissingNaturalKey(t *testing.T) {
	reg := testRegistry(t)
	team, _ := reg.Table("team")
	_, err := New(team, reg, []ViewField{
		{Name: "owner_email", Kind: FieldPath, Path: "owner.email"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestViewReadAssemblesJoinsAndFilter(t *testing.T) {
	v := testView(t)
	stmt, err := v.Read(ReadOptions{Filters: []string{`(like owner_email "%@x.com")`}})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `SELECT "team"."name" AS "name", "user_1"."email" AS "owner_email"`)
	assert.Contains(t, stmt.SQL, `LEFT JOIN "user" AS "user_1"`)
	assert.Contains(t, stmt.SQL, `WHERE ("user_1"."email" LIKE %s)`)
	assert.Equal(t, []any{"%@x.com"}, stmt.Params)
}

func TestViewReadAutoGroupsByOnAggregate(t *testing.T) {
	reg := testRegistry(t)
	team, _ := reg.Table("team")
	node, err := expr.Parse(`(count name)`)
	require.NoError(t, err)
	v, err := New(team, reg, []ViewField{
		{Name: "name", Kind: FieldColumn, Path: "name"},
		{Name: "n", Kind: FieldExpr, Expr: node},
	})
	require.NoError(t, err)

	stmt, err := v.Read(ReadOptions{})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `GROUP BY "team"."name"`)
}

func TestViewDeleteByFilters(t *testing.T) {
	v := testView(t)
	p, err := v.Delete(DeleteOptions{Filters: []string{`(= name {who})`}, Args: map[string]any{"who": "acme"}})
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Contains(t, p.Steps[0].SQL, `DELETE FROM "team" WHERE "id" IN (SELECT "team"."id" FROM "team" WHERE`)
	assert.Equal(t, []any{"acme"}, p.Steps[0].Params)
}

func TestViewDeleteRequiresExactlyOneMode(t *testing.T) {
	v := testView(t)
	_, err := v.Delete(DeleteOptions{})
	require.Error(t, err)

	_, err = v.Delete(DeleteOptions{Filters: []string{"x"}, Data: []map[string]any{{"name": "acme"}}})
	require.Error(t, err)
}

func TestViewDeleteByDataStagesAndJoinDeletes(t *testing.T) {
	reg := testRegistry(t)
	team, _ := reg.Table("team")
	v, err := New(team, reg, []ViewField{{Name: "name", Kind: FieldColumn, Path: "name"}})
	require.NoError(t, err)

	p, err := v.Delete(DeleteOptions{
		Data:    []map[string]any{{"name": "acme"}},
		Backend: &mockAdapter{kind: backend.KindClientServer},
		Quote:   func(s string) string { return `"` + s + `"` },
	})
	require.NoError(t, err)
	require.Len(t, p.Steps, 3)
	assert.Equal(t, "create", p.Steps[0].Kind)
	assert.Equal(t, "delete_joined", p.Steps[1].Kind)
	assert.Contains(t, p.Steps[1].SQL, "EXISTS (SELECT 1 FROM")
	assert.Equal(t, "drop", p.Steps[2].Kind)
	assert.Equal(t, [][]any{{"acme"}}, p.Rows)
}

func TestViewDeleteByDataSwapNegatesJoin(t *testing.T) {
	reg := testRegistry(t)
	team, _ := reg.Table("team")
	v, err := New(team, reg, []ViewField{{Name: "name", Kind: FieldColumn, Path: "name"}})
	require.NoError(t, err)

	p, err := v.Delete(DeleteOptions{
		Data:    []map[string]any{{"name": "acme"}},
		Swap:    true,
		Backend: &mockAdapter{kind: backend.KindClientServer},
		Quote:   func(s string) string { return `"` + s + `"` },
	})
	require.NoError(t, err)
	assert.Contains(t, p.Steps[1].SQL, "NOT EXISTS (SELECT 1 FROM")
}

func TestViewDeleteByDataAppliesACLFilters(t *testing.T) {
	reg := testRegistry(t)
	team, _ := reg.Table("team")
	v, err := New(team, reg, []ViewField{{Name: "name", Kind: FieldColumn, Path: "name"}})
	require.NoError(t, err)

	p, err := v.Delete(DeleteOptions{
		Data:       []map[string]any{{"name": "acme"}},
		ACLFilters: []string{`(= name {caller})`},
		Args:       map[string]any{"caller": "alice"},
		Backend:    &mockAdapter{kind: backend.KindClientServer},
		Quote:      func(s string) string { return `"` + s + `"` },
	})
	require.NoError(t, err)
	assert.Contains(t, p.Steps[1].SQL, "EXISTS (SELECT 1 FROM")
	assert.Contains(t, p.Steps[1].SQL, `AND (`)
	assert.Equal(t, []any{"alice"}, p.Steps[1].Params)
}
