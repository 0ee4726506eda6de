package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tanker.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigReadsDBURIFromFile(t *testing.T) {
	path := writeConfigFile(t, `
db-uri = "sqlite:///tmp/db.sqlite"
encoding = "utf-8"

[acl-read]
team = ["(= owner {caller})"]
`)
	uri, cfg, err := loadConfig(&commonFlags{config: path})
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/db.sqlite", uri)
	assert.Equal(t, "sqlite:///tmp/db.sqlite", cfg.DBURI)
	assert.Equal(t, "utf-8", cfg.Encoding)
	assert.Equal(t, []string{"(= owner {caller})"}, cfg.ACLRead["team"])
}

func TestLoadConfigFlagOverridesFileURI(t *testing.T) {
	path := writeConfigFile(t, `db-uri = "sqlite:///tmp/db.sqlite"`)
	uri, cfg, err := loadConfig(&commonFlags{config: path, dbURI: "postgresql://host/db"})
	require.NoError(t, err)
	assert.Equal(t, "postgresql://host/db", uri)
	assert.Equal(t, "postgresql://host/db", cfg.DBURI)
}

func TestLoadConfigRequiresAURI(t *testing.T) {
	_, _, err := loadConfig(&commonFlags{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection URI is required")
}

func TestLoadConfigSetsSchemaTOMLPath(t *testing.T) {
	path := writeConfigFile(t, `
db-uri = "sqlite:///tmp/db.sqlite"
schema-toml = "schema.toml"
`)
	_, cfg, err := loadConfig(&commonFlags{config: path})
	require.NoError(t, err)
	assert.Equal(t, "schema.toml", cfg.Schema.TOMLPath)
}

func TestLoadConfigRejectsUnreadableFile(t *testing.T) {
	_, _, err := loadConfig(&commonFlags{config: filepath.Join(t.TempDir(), "missing.toml")})
	require.Error(t, err)
}
