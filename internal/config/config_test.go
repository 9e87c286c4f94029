package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	require.NoError(t, Initialize())
	require.NotNil(t, v)

	assert.Equal(t, "sqlite", GetString("driver"))
	assert.Equal(t, "", GetString("db"))
	assert.False(t, GetBool("json"))
	assert.Equal(t, "sql", GetString("session.backend"))
	assert.Equal(t, 30*time.Second, GetDuration("sqlite.busy_timeout"))
	assert.Equal(t, ",", GetString("import.delimiter"))
	assert.Equal(t, `"`, GetString("import.quote"))
	assert.Equal(t, 72*time.Hour, GetDuration("import.retention"))
	assert.Equal(t, "info", GetString("log.level"))
	assert.False(t, GetBool("telemetry.enabled"))
	assert.Equal(t, 30*time.Second, GetDuration("telemetry.interval"))
	assert.Empty(t, ConfigFileUsed())
}

func TestEnvironmentBinding(t *testing.T) {
	tests := []struct {
		env, key, value string
		get             func(string) any
		want            any
	}{
		{"RMI_JSON", "json", "true", func(k string) any { return GetBool(k) }, true},
		{"RMI_ACTOR", "actor", "jsmith", func(k string) any { return GetString(k) }, "jsmith"},
		{"RMI_SESSION_BACKEND", "session.backend", "redis", func(k string) any { return GetString(k) }, "redis"},
		{"RMI_IMPORT_RETENTION", "import.retention", "1h", func(k string) any { return GetDuration(k) }, time.Hour},
		{"RMI_LOG_LEVEL", "log.level", "debug", func(k string) any { return GetString(k) }, "debug"},
		{"RMI_TELEMETRY_ENABLED", "telemetry.enabled", "true", func(k string) any { return GetBool(k) }, true},
		{"RMI_TELEMETRY_ENDPOINT", "telemetry.endpoint", "otel:4318", func(k string) any { return GetString(k) }, "otel:4318"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			require.NoError(t, Initialize())
			assert.Equal(t, tt.want, tt.get(tt.key))
		})
	}
}

func TestConfigFileDiscovery(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".rmi"), 0o750))
	cfg := "driver: mysql\ndb: \"rmi:rmi@tcp(localhost:3306)/redmine\"\nimport:\n  delimiter: \";\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".rmi", "config.yaml"), []byte(cfg), 0o600))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	oldWD, _ := os.Getwd()
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	require.NoError(t, Initialize())
	assert.Equal(t, "mysql", GetString("driver"))
	assert.Equal(t, ";", GetString("import.delimiter"))
	assert.Equal(t, `"`, GetString("import.quote"), "unset keys keep defaults")
	assert.Contains(t, ConfigFileUsed(), filepath.Join(".rmi", "config.yaml"))

	t.Setenv("RMI_DRIVER", "postgres")
	require.NoError(t, Initialize())
	assert.Equal(t, "postgres", GetString("driver"), "environment beats the file")
}

func TestInitializeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("json: true\n"), 0o600))
	require.NoError(t, InitializeFile(path))
	assert.True(t, GetBool("json"))

	Set("json", false)
	assert.False(t, GetBool("json"))

	require.Error(t, InitializeFile(filepath.Join(t.TempDir(), "missing.yaml")))
}
