package config

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// DefaultConfigFile is looked up relative to the working directory
	// when no explicit config path is given.
	DefaultConfigFile = ".allowlist-registrar.yaml"

	envPrefix = "ALLOWLIST_"
)

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (ALLOWLIST_ENDPOINT, ALLOWLIST_ADMIN_SECRET, ...)
//  2. YAML config file (.allowlist-registrar.yaml in the working directory)
//  3. Hardcoded defaults
//
// The configPath parameter specifies the YAML file to load. If empty, the
// default file is used when it exists; a missing default file is not an
// error, a missing explicit file is.
//
// Load does not validate: callers overlay command-line flags first and then
// call Config.Validate themselves.
//
// # Environment Variable Mapping
//
// Variables with the ALLOWLIST_ prefix map to config fields:
//
//	ALLOWLIST_ENDPOINT     -> endpoint
//	ALLOWLIST_ADMIN_SECRET -> admin_secret
//	ALLOWLIST_LOG_LEVEL    -> logging.level
//	ALLOWLIST_LOG_FORMAT   -> logging.format
//
// For compatibility with the GraphQL engine's own tooling, two engine
// variables are honored when the prefixed forms are unset:
//
//	HASURA_GRAPHQL_ENDPOINT     -> endpoint
//	HASURA_GRAPHQL_ADMIN_SECRET -> admin_secret
//
// GITHUB_REPOSITORY, when set (as it is in GitHub Actions), supplies the
// repository name used to namespace document identifiers.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	explicit := configPath != ""
	if configPath == "" {
		configPath = DefaultConfigFile
	}

	if content, err := readConfigFile(configPath); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, err
		}
	} else {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Override with ALLOWLIST_* environment variables.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		switch key {
		case "log_level":
			return "logging.level"
		case "log_format":
			return "logging.format"
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEngineEnv(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

// applyEngineEnv fills unset fields from the GraphQL engine's conventional
// environment variables and the CI-provided repository slug.
func applyEngineEnv(cfg *Config) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = os.Getenv("HASURA_GRAPHQL_ENDPOINT")
	}
	if !cfg.AdminSecret.IsSet() {
		cfg.AdminSecret = Secret(os.Getenv("HASURA_GRAPHQL_ADMIN_SECRET"))
	}
	if cfg.RepoName == "" {
		cfg.RepoName = os.Getenv("GITHUB_REPOSITORY")
	}
}

// readConfigFile opens and reads a config file, enforcing permission and
// size checks on the already-opened descriptor to avoid a stat/read race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties checks file permissions and size. The file
// may carry the admin secret, so group/world-readable permissions are
// rejected outright.
func validateConfigFileProperties(info os.FileInfo) error {
	// Skip the permission check on Windows (different permission model).
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
