package tanker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	_ "tanker/backend/postgres"
	"tanker/schema"
	"tanker/view"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("tanker"),
		postgres.WithUsername("tanker"),
		postgres.WithPassword("tankerpass"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return uri
}

func TestPostgresBackendCreateWriteReadDeleteIntegration(t *testing.T) {
	uri := startPostgres(t)
	ctx := context.Background()

	team, err := schema.NewTable("team", []*schema.Column{
		{Name: "name", CType: schema.CTypeVarchar},
	}, []string{"name"}, nil, "", nil)
	require.NoError(t, err)

	pool, err := Open(ctx, uri, Config{Schema: SchemaSource{Tables: []*schema.Table{team}}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

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
		Rows:    []map[string]any{{"name": "acme"}, {"name": "globex"}},
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
	assert.ElementsMatch(t, []string{"acme", "globex"}, names)
	require.NoError(t, c.Leave(derived, nil))

	derived, c, err = Enter(ctx, pool)
	require.NoError(t, err)
	delPipeline, err := v.Delete(view.DeleteOptions{
		Filters: []string{`(= name {target})`},
		Args:    map[string]any{"target": "acme"},
		Quote:   pool.Adapter().QuoteIdentifier,
	})
	require.NoError(t, err)
	require.NoError(t, c.RunDelete(derived, delPipeline))
	require.NoError(t, c.Leave(derived, nil))

	derived, c, err = Enter(ctx, pool)
	require.NoError(t, err)
	stmt, err = v.Read(view.ReadOptions{Quote: pool.Adapter().QuoteIdentifier})
	require.NoError(t, err)
	rows, err = c.RunRead(derived, stmt)
	require.NoError(t, err)
	names = nil
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []string{"globex"}, names)
	require.NoError(t, c.Leave(derived, nil))
}
