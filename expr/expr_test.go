package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tanker/reference"
	"tanker/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	user, err := schema.NewTable("user", []*schema.Column{
		{Name: "email", CType: schema.CTypeVarchar},
		{Name: "age", CType: schema.CTypeInteger},
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

func TestParseSimpleCall(t *testing.T) {
	node, err := Parse(`(= name {who})`)
	require.NoError(t, err)
	call, ok := node.(Call)
	require.True(t, ok)
	assert.Equal(t, "=", call.Op)
	assert.Len(t, call.Args, 2)
}

func TestParseUnexpectedEOF(t *testing.T) {
	_, err := Parse(`(= name`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected EOF")
}

func TestParseUnexpectedRParen(t *testing.T) {
	_, err := Parse(`)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected )")
}

func TestParseTrailingTokens(t *testing.T) {
	_, err := Parse(`(= a b) garbage`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unexpected tokens after ending )")
}

func TestEvalComparisonWithParam(t *testing.T) {
	reg := testRegistry(t)
	refs := reference.New(reg, "team")
	env := NewEnv(refs, map[string]string{"name": "name"}, map[string]any{"who": "acme"}, nil, nil)

	node, err := Parse(`(= name {who})`)
	require.NoError(t, err)
	sql, params, err := Eval(node, env)
	require.NoError(t, err)
	assert.Equal(t, `("team"."name" = %s)`, sql)
	assert.Equal(t, []any{"acme"}, params)
}

func TestEvalDottedPathJoins(t *testing.T) {
	reg := testRegistry(t)
	refs := reference.New(reg, "team")
	env := NewEnv(refs, map[string]string{"owner_email": "owner.email"}, nil, nil, nil)

	node, err := Parse(`(like owner_email "%@example.com")`)
	require.NoError(t, err)
	sql, _, err := Eval(node, env)
	require.NoError(t, err)
	assert.Contains(t, sql, `"user_1"."email"`)
	assert.Contains(t, refs.GetSQLJoins(func(s string) string { return `"` + s + `"` }), `LEFT JOIN "user" AS "user_1"`)
}

func TestEvalUnresolvedSymbol(t *testing.T) {
	reg := testRegistry(t)
	refs := reference.New(reg, "team")
	env := NewEnv(refs, nil, nil, nil, nil)

	node, err := Parse(`(= nope 1)`)
	require.NoError(t, err)
	_, _, err = Eval(node, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nope" not understood`)
}

func TestEvalAggregateAndIsAggregate(t *testing.T) {
	reg := testRegistry(t)
	refs := reference.New(reg, "team")
	env := NewEnv(refs, map[string]string{"name": "name"}, nil, nil, nil)

	node, err := Parse(`(count name)`)
	require.NoError(t, err)
	sql, _, err := Eval(node, env)
	require.NoError(t, err)
	assert.Equal(t, `COUNT("team"."name")`, sql)
	assert.True(t, IsAggregate("count"))
	assert.False(t, IsAggregate("name"))
}

func TestEvalPositionalParams(t *testing.T) {
	reg := testRegistry(t)
	refs := reference.New(reg, "team")
	env := NewEnv(refs, map[string]string{"name": "name"}, nil, []any{"acme"}, nil)

	node, err := Parse(`(= name {})`)
	require.NoError(t, err)
	sql, params, err := Eval(node, env)
	require.NoError(t, err)
	assert.Equal(t, `("team"."name" = %s)`, sql)
	assert.Equal(t, []any{"acme"}, params)
}

func TestEvalFromSubSelect(t *testing.T) {
	reg := testRegistry(t)
	refs := reference.New(reg, "team")
	env := NewEnv(refs, nil, map[string]any{"who": "acme"}, nil, nil)

	node, err := Parse(`(exists (from user (select 1) (where (= email {who}))))`)
	require.NoError(t, err)
	sql, params, err := Eval(node, env)
	require.NoError(t, err)
	assert.Contains(t, sql, "EXISTS (SELECT 1 FROM")
	assert.Contains(t, sql, `WHERE ("user"."email" = %s)`)
	_ = params
}

func TestEvalUnaryMinus(t *testing.T) {
	reg := testRegistry(t)
	refs := reference.New(reg, "team")
	env := NewEnv(refs, nil, nil, nil, nil)

	node, err := Parse(`(- 5)`)
	require.NoError(t, err)
	sql, params, err := Eval(node, env)
	require.NoError(t, err)
	assert.Equal(t, "(-%s)", sql)
	assert.Equal(t, []any{int64(5)}, params)
}
