package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
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

func writeQuery(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// resetFlags clears flag state left behind by a previous Execute call.
func resetFlags() {
	flags = cliFlags{}
	for _, cmd := range []*cobra.Command{rootCmd, syncCmd} {
		for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			})
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func decodeJSON(t *testing.T, r *http.Request, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(v))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "allowlist-registrar "+version)
}

func TestSyncDryRunListsDocuments(t *testing.T) {
	dir := t.TempDir()
	writeQuery(t, dir, "get_user.graphql", "query GetUser { user { id } }")
	writeQuery(t, dir, "list_orders.graphql", "query ListOrders { orders { id } }")
	chdir(t, dir)

	out, err := execute(t, "sync", "--dry-run", "--root", dir, "--repo-name", "acme/api")
	require.NoError(t, err)

	assert.Contains(t, out, "acme/api:get_user:")
	assert.Contains(t, out, "acme/api:list_orders:")
}

func TestSyncRequiresEndpoint(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("ALLOWLIST_ADMIN_SECRET", "s")

	_, err := execute(t, "sync", "--root", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")
}

func TestSyncAgainstEngine(t *testing.T) {
	var ops []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Type string `json:"type"`
		}
		decodeJSON(t, r, &req)
		ops = append(ops, req.Type)
		w.Write([]byte(`{"message":"success"}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeQuery(t, dir, "get_user.graphql", "query GetUser { user { id } }")
	chdir(t, dir)
	t.Setenv("ALLOWLIST_ENDPOINT", srv.URL)
	t.Setenv("ALLOWLIST_ADMIN_SECRET", "testsecret")

	out, err := execute(t, "sync", "--root", dir, "--collection", "ci-queries")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"create_query_collection",
		"add_query_to_collection",
		"add_collection_to_allowlist",
	}, ops)
	assert.Contains(t, out, "collection ci-queries created: 1 added, 0 already present, activated")
}
