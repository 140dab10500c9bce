package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test,
// mirroring t.Chdir which requires Go 1.24+.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restoring working directory: %v", err)
		}
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
endpoint: http://engine:8080
admin_secret: filesecret
collection: ci-queries
pattern: "*.gql"
timeout: 10s
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://engine:8080", cfg.Endpoint)
	assert.Equal(t, "filesecret", cfg.AdminSecret.Value())
	assert.Equal(t, "ci-queries", cfg.Collection)
	assert.Equal(t, "*.gql", cfg.Pattern)
	assert.Equal(t, 10*time.Second, cfg.Timeout.Duration())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	// Run from a directory guaranteed not to contain the default file.
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCollection, cfg.Collection)
	assert.Equal(t, DefaultPattern, cfg.Pattern)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
endpoint: http://from-file:8080
admin_secret: filesecret
`)
	t.Setenv("ALLOWLIST_ENDPOINT", "http://from-env:8080")
	t.Setenv("ALLOWLIST_ADMIN_SECRET", "envsecret")
	t.Setenv("ALLOWLIST_LOG_LEVEL", "warn")
	t.Setenv("ALLOWLIST_REPO_NAME", "acme/api")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:8080", cfg.Endpoint)
	assert.Equal(t, "envsecret", cfg.AdminSecret.Value())
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "acme/api", cfg.RepoName)
}

func TestLoadEngineEnvFallback(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HASURA_GRAPHQL_ENDPOINT", "http://engine:8080")
	t.Setenv("HASURA_GRAPHQL_ADMIN_SECRET", "enginesecret")
	t.Setenv("GITHUB_REPOSITORY", "acme/storefront")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://engine:8080", cfg.Endpoint)
	assert.Equal(t, "enginesecret", cfg.AdminSecret.Value())
	assert.Equal(t, "acme/storefront", cfg.RepoName)
}

func TestLoadPrefixedEnvBeatsEngineEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ALLOWLIST_ENDPOINT", "http://prefixed:8080")
	t.Setenv("HASURA_GRAPHQL_ENDPOINT", "http://engine:8080")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://prefixed:8080", cfg.Endpoint)
}

func TestLoadRejectsWorldReadableFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission check is skipped on Windows")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("admin_secret: topsecret\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadAcceptsReadOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: http://engine:8080\n"), 0400))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://engine:8080", cfg.Endpoint)
}

func TestLoadRejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.yaml")
	big := make([]byte, maxConfigFileSize+1)
	require.NoError(t, os.WriteFile(path, big, 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestSecretNeverSerializes(t *testing.T) {
	cfg := &Config{AdminSecret: "topsecret"}

	out, err := json.Marshal(cfg.AdminSecret)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "topsecret")
	assert.Contains(t, string(out), "REDACTED")

	assert.Equal(t, "[REDACTED]", cfg.AdminSecret.String())
	assert.Equal(t, "topsecret", cfg.AdminSecret.Value())
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.Error(t, d.UnmarshalText([]byte("-5s")))
	require.Error(t, d.UnmarshalText([]byte("bogus")))
}
