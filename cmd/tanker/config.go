package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"tanker"
)

// cliConfig is the CLI's own TOML shape for --config: a connection URI
// plus the Config fields a caller would otherwise set programmatically,
// following internal/parser/toml's flat-decode-then-convert structure.
type cliConfig struct {
	DBURI         string              `toml:"db-uri"`
	SchemaTOML    string              `toml:"schema-toml"`
	Encoding      string              `toml:"encoding"`
	ACLRead       map[string][]string `toml:"acl-read"`
	ACLWrite      map[string][]string `toml:"acl-write"`
	PGMinPoolSize int                 `toml:"pg-min-pool-size"`
	PGMaxPoolSize int                 `toml:"pg-max-pool-size"`
}

// loadConfig builds a tanker.Config from --config (if given) with
// --db-uri taking precedence when both are set.
func loadConfig(f *commonFlags) (string, tanker.Config, error) {
	var cc cliConfig
	if f.config != "" {
		if _, err := toml.DecodeFile(f.config, &cc); err != nil {
			return "", tanker.Config{}, fmt.Errorf("tanker: read config %q: %w", f.config, err)
		}
	}

	uri := cc.DBURI
	if f.dbURI != "" {
		uri = f.dbURI
	}
	if uri == "" {
		return "", tanker.Config{}, fmt.Errorf("tanker: a connection URI is required, via --db-uri or --config's db-uri")
	}

	cfg := tanker.Config{
		DBURI:         uri,
		Encoding:      cc.Encoding,
		ACLRead:       cc.ACLRead,
		ACLWrite:      cc.ACLWrite,
		PGMinPoolSize: cc.PGMinPoolSize,
		PGMaxPoolSize: cc.PGMaxPoolSize,
	}
	if cc.SchemaTOML != "" {
		cfg.Schema = tanker.SchemaSource{TOMLPath: cc.SchemaTOML}
	}
	return uri, cfg, nil
}

func readRowFile(path string) ([]byte, error) {
	if path == "-" {
		return readAllStdin()
	}
	return os.ReadFile(path)
}
