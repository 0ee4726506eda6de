package tanker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/cockroachdb"

	"tanker/backend"
	_ "tanker/backend/postgres"
	"tanker/schema"
	"tanker/view"
)

// startCRDB brings up a disposable single-node CockroachDB cluster and
// rewrites its connection string onto the "crdb://" scheme so Open
// selects backend.CRDB (and installs cockroach-go's serialization-retry
// wrapper) rather than plain backend.PostgreSQL.
func startCRDB(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := cockroachdb.Run(ctx, "cockroachdb/cockroach:v23.1.13")
	require.NoError(t, err, "failed to start cockroachdb container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate cockroachdb container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return "crdb://" + dsn[len("postgresql://"):]
}

func TestCRDBBackendDistributedWriteSurvivesRetryIntegration(t *testing.T) {
	uri := startCRDB(t)
	ctx := context.Background()

	team, err := schema.NewTable("team", []*schema.Column{
		{Name: "name", CType: schema.CTypeVarchar},
	}, []string{"name"}, nil, "", nil)
	require.NoError(t, err)

	pool, err := Open(ctx, uri, Config{Schema: SchemaSource{Tables: []*schema.Table{team}}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	assert.Equal(t, "crdb", string(pool.Adapter().Name()))
	assert.Equal(t, backend.KindDistributed, pool.Adapter().Kind())

	derived, c, err := Enter(ctx, pool)
	require.NoError(t, err)
	require.NoError(t, CreateTables(derived, c, pool))
	require.NoError(t, c.Leave(derived, nil))

	v, err := view.New(team, pool.Registry(), []view.ViewField{
		{Name: "name", Kind: view.FieldColumn, Path: "name"},
	})
	require.NoError(t, err)

	derived, c, err = Enter(ctx, pool)
	require.NoError(t, err)
	pipeline, err := v.Write(view.WriteOptions{
		Rows:    []map[string]any{{"name": "acme"}},
		Backend: pool.Adapter(),
		Quote:   pool.Adapter().QuoteIdentifier,
	})
	require.NoError(t, err)
	writeResult, err := c.RunWrite(derived, pipeline)
	require.NoError(t, err)
	assert.Equal(t, view.WriteResult{}, writeResult)
	require.NoError(t, c.Leave(derived, nil))

	derived, c, err = Enter(ctx, pool)
	require.NoError(t, err)
	stmt, err := v.Read(view.ReadOptions{Quote: pool.Adapter().QuoteIdentifier})
	require.NoError(t, err)
	rows, err := c.RunRead(derived, stmt)
	require.NoError(t, err)
	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []string{"acme"}, names)
	require.NoError(t, c.Leave(derived, nil))
}
