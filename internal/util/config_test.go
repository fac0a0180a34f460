package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfiguration(t *testing.T) {
	want := Configuration{
		LogLevel:       "debug",
		LogFile:        "/tmp/app.log",
		StatusInterval: 5 * time.Second,
		Sql:            SqlConfig{Driver: "sqlite3", DSN: ":memory:"},
		Widget:         WidgetConfig{ButtonLabel: "OK"},
	}

	tomlPath := write(t, "app.toml", `
log_level = "debug"
log_file = "/tmp/app.log"
status_interval = "5s"

[sql]
driver = "sqlite3"
dsn = ":memory:"
`)
	yamlPath := write(t, "app.yaml", `
log_level: debug
log_file: /tmp/app.log
status_interval: 5s
sql:
  driver: sqlite3
  dsn: ":memory:"
`)

	for _, path := range []string{tomlPath, yamlPath} {
		cfg, err := LoadConfiguration(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, cfg, path)
	}
}

func TestLoadConfigurationErrors(t *testing.T) {
	_, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadConfiguration(write(t, "app.json", "{}"))
	assert.ErrorContains(t, err, "unsupported")

	_, err = LoadConfiguration(write(t, "bad.toml", "log_level = "))
	assert.Error(t, err)
}
