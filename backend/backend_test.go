package backend

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAdapter struct{ name Type }

func (m *mockAdapter) Name() Type                 { return m.name }
func (m *mockAdapter) Kind() Kind                 { return KindEmbedded }
func (m *mockAdapter) QuoteIdentifier(s string) string { return `"` + s + `"` }
func (m *mockAdapter) QuoteString(s string) string     { return "'" + s + "'" }
func (m *mockAdapter) RewriteSQL(s string) string      { return s }
func (m *mockAdapter) UpsertSupported() bool           { return false }
func (m *mockAdapter) ArrayLiteral(l string) string    { return l }
func (m *mockAdapter) CreateTableIDClause(quote func(string) string) string {
	return quote("id") + " INTEGER PRIMARY KEY"
}
func (m *mockAdapter) BulkLoad(context.Context, *sql.Conn, string, []string, [][]any) error {
	return nil
}

func TestRegisterAndGet(t *testing.T) {
	snapshot := snapshotRegistry()
	defer resetRegistry(snapshot)

	resetRegistry(map[Type]func() Adapter{})
	Register("mock", func() Adapter { return &mockAdapter{name: "mock"} })

	a, err := Get("mock")
	require.NoError(t, err)
	assert.Equal(t, Type("mock"), a.Name())
}

func TestGetUnregisteredBackend(t *testing.T) {
	snapshot := snapshotRegistry()
	defer resetRegistry(snapshot)
	resetRegistry(map[Type]func() Adapter{})

	_, err := Get("nope")
	require.Error(t, err)
}

func TestParseURIScheme(t *testing.T) {
	cases := map[string]Type{
		"sqlite":     SQLite,
		"postgresql": PostgreSQL,
		"postgres":   PostgreSQL,
		"crdb":       CRDB,
		"mysql":      MySQL,
	}
	for scheme, want := range cases {
		got, err := ParseURIScheme(scheme)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseURIScheme("oracle")
	require.Error(t, err)
}
