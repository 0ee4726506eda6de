package tomlschema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[[tables]]
table = "user"
key = ["email"]

[tables.columns]
email = "varchar"
age = "integer"

[tables.defaults]
age = "0"

[[tables]]
table = "team"

[tables.columns]
name = "varchar"
owner = "m2o user.id"

[[tables.values]]
name = "root"
`

func TestParseBuildsTablesKeysDefaultsAndSeeds(t *testing.T) {
	tables, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, tables, 2)

	user := tables[0]
	assert.Equal(t, "user", user.Name)
	assert.Equal(t, []string{"email"}, user.Key)

	age := user.FindColumn("age")
	require.NotNil(t, age)
	require.NotNil(t, age.Default)
	assert.Equal(t, "0", *age.Default)

	team := tables[1]
	owner := team.FindColumn("owner")
	require.NotNil(t, owner)
	assert.Equal(t, "user", owner.FKTable)
	assert.Equal(t, "id", owner.FKColumn)
	require.Len(t, team.SeedValues, 1)
	assert.Equal(t, "root", team.SeedValues[0]["name"])
}

func TestParseRejectsUnknownUseIndex(t *testing.T) {
	const bad = `
[[tables]]
table = "t"
use-index = "hash"
[tables.columns]
a = "integer"
`
	_, err := Parse(strings.NewReader(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash")
}
