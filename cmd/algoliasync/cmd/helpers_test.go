package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testProjectConfig = `
index:
  backend: bleve
  prefix: test_
localization:
  enabled: true
  default_locale: en
  locales: [en, fr]
cache:
  backend: memory
content_types:
  enabled: [cocktail, page]
`

const testContentExport = `{
  "items": [
    {"id": 1, "type": "cocktail", "status": "publish", "title": "Negroni", "locale": "en", "published_at": "2024-05-01T00:00:00Z"},
    {"id": 2, "type": "cocktail", "status": "publish", "title": "Martini", "locale": "en", "published_at": "2024-05-02T00:00:00Z"},
    {"id": 3, "type": "cocktail", "status": "publish", "title": "Secret Sour", "locale": "en", "published_at": "2024-05-03T00:00:00Z"},
    {"id": 4, "type": "cocktail", "status": "publish", "title": "Boulevardier", "locale": "fr", "published_at": "2024-05-04T00:00:00Z"}
  ],
  "item_fields": {
    "3": {"search_hidden": false}
  }
}`

// testProject writes a bleve-backed project into a temp dir and isolates
// the user config and credentials from the environment.
func testProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("ALGOLIA_APPLICATION_ID", "")
	t.Setenv("ALGOLIA_ADMIN_API_KEY", "")
	t.Setenv("ALGOLIASYNC_INDEX_BACKEND", "")
	t.Setenv("ALGOLIASYNC_DATA_DIR", filepath.Join(dir, "data"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".algoliasync.yaml"), []byte(testProjectConfig), 0o600))
	return dir
}

// importTestContent loads testContentExport into the project's content database.
func importTestContent(t *testing.T, dir string) {
	t.Helper()
	path := filepath.Join(dir, "export.json")
	require.NoError(t, os.WriteFile(path, []byte(testContentExport), 0o600))

	out, err := run(t, dir, "content", "import", path)
	require.NoError(t, err, out)
}

// run executes the CLI in-process against the project in dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--config", dir, "--no-daemon"}, args...))

	err := cmd.Execute()
	return buf.String(), err
}
