package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"tanker/schema"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestIntrospectDiscoversTablesColumnsAndForeignKeys(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		CREATE TABLE user (id INTEGER PRIMARY KEY, email TEXT NOT NULL);
		CREATE TABLE team (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			owner INTEGER REFERENCES user(id)
		);
	`)
	require.NoError(t, err)

	in := &Introspecter{}
	tables, err := in.Introspect(ctx, db)
	require.NoError(t, err)

	byName := map[string]*schema.Table{}
	for _, tbl := range tables {
		byName[tbl.Name] = tbl
	}
	require.Contains(t, byName, "user")
	require.Contains(t, byName, "team")

	owner := byName["team"].FindColumn("owner")
	require.NotNil(t, owner)
	assert.Equal(t, schema.CTypeM2O, owner.CType)
	assert.Equal(t, "user", owner.FKTable)
	assert.Equal(t, "id", owner.FKColumn)

	email := byName["user"].FindColumn("email")
	require.NotNil(t, email)
	assert.False(t, email.Nullable)
}
