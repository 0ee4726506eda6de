package tanker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	_ "tanker/backend/mysql"
	"tanker/schema"
	"tanker/view"
)

// startMySQL brings up a disposable MySQL container and returns a tanker
// connection URI for it, grounded on internal/apply's own
// container-per-test setup (testing.Short skip, t.Cleanup termination).
func startMySQL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("tanker"),
		mysql.WithUsername("root"),
		mysql.WithPassword("tankerpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate MySQL container: %v", err)
		}
	})

	// ConnectionString returns a go-sql-driver/mysql DSN
	// ("user:pass@tcp(host:port)/db"), not a "mysql://" URI, so Open's
	// URI form is built from the container's host/port directly instead.
	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	return "mysql://root:tankerpass@" + host + ":" + port.Port() + "/tanker?parseTime=true"
}

func TestMySQLBackendCreateWriteReadDeleteIntegration(t *testing.T) {
	uri := startMySQL(t)
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
		Data:    []map[string]any{{"name": "acme"}},
		Backend: pool.Adapter(),
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
