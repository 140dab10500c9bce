// Package config provides configuration loading for the allowlist registrar.
//
// Configuration is loaded from an optional YAML file, then overridden by
// environment variables. The admin secret is wrapped in Secret so that it
// never appears in logs or serialized output.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// DefaultCollection is the fixed collection name used across runs.
//
// The name is stable on purpose: the metadata API has no way to look up a
// collection before creating it, so repeated runs must converge on one
// collection instead of accumulating a new one per run.
const DefaultCollection = "allowed-queries"

// DefaultPattern matches GraphQL query documents anywhere under the root.
const DefaultPattern = "**/*.graphql"

// Config holds the complete registrar configuration.
type Config struct {
	// Endpoint is the base URL of the GraphQL engine (e.g. http://localhost:8080).
	Endpoint string `koanf:"endpoint"`

	// AdminSecret authenticates against the metadata API as the admin role.
	AdminSecret Secret `koanf:"admin_secret"`

	// Collection is the server-side query collection name.
	Collection string `koanf:"collection"`

	// Pattern is the file name pattern for query documents.
	Pattern string `koanf:"pattern"`

	// Root is the directory the document search starts from.
	Root string `koanf:"root"`

	// RepoName namespaces document identifiers across repositories.
	// When empty and DetectRepo is true, it is derived from the git remote.
	RepoName string `koanf:"repo_name"`

	// DetectRepo enables deriving RepoName from the enclosing git repository.
	DetectRepo bool `koanf:"detect_repo"`

	// Timeout bounds each request to the metadata API.
	Timeout Duration `koanf:"timeout"`

	// DryRun collects and logs documents without calling the API.
	DryRun bool `koanf:"dry_run"`

	Logging LoggingConfig `koanf:"logging"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Endpoint is empty or not an http(s) URL
//   - AdminSecret is empty
//   - Collection or Pattern is empty
//   - Timeout is not positive
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required (set ALLOWLIST_ENDPOINT or HASURA_GRAPHQL_ENDPOINT)")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", c.Endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint %q: scheme must be http or https", c.Endpoint)
	}
	if !c.AdminSecret.IsSet() {
		return errors.New("admin secret is required (set ALLOWLIST_ADMIN_SECRET or HASURA_GRAPHQL_ADMIN_SECRET)")
	}
	if c.Collection == "" {
		return errors.New("collection name cannot be empty")
	}
	if c.Pattern == "" {
		return errors.New("pattern cannot be empty")
	}
	if c.Timeout.Duration() <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = Duration(30 * time.Second)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}
