package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"logLevel": "debug",
		"server": { "port": "8080", "assetsDir": "/srv/models" },
		"db": { "driver": "postgres", "host": "10.0.0.1" },
		"auth": { "enabled": true, "users": { "admin": "hunter2" } }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigName+".json"), []byte(cfg), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", GetString("logLevel"))
	assert.Equal(t, "8080", GetString("server.port"))
	assert.Equal(t, "/srv/models", GetString("server.assetsDir"))
	assert.Equal(t, "postgres", GetString("db.driver"))
	assert.Equal(t, "10.0.0.1", GetString("db.host"))
	assert.True(t, GetBool("auth.enabled"))
	assert.Equal(t, map[string]string{"admin": "hunter2"}, GetStringMapString("auth.users"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigName+".json"), []byte(`{}`), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "info", GetString("logLevel"))
	assert.Equal(t, "./logs", GetString("logsDir"))
	assert.Equal(t, "0.0.0.0", GetString("server.host"))
	assert.Equal(t, "3000", GetString("server.port"))
	assert.Equal(t, "./models", GetString("server.assetsDir"))
	assert.Equal(t, 100, GetInt("server.maxUploadMB"))
	assert.Equal(t, "sqlite", GetString("db.driver"))
	assert.Equal(t, "./anatomy_lab.db", GetString("db.path"))
	assert.False(t, GetBool("auth.enabled"))
	assert.False(t, GetBool("influx.enabled"))
	assert.Equal(t, "lab_events", GetString("influx.bucket"))
	assert.False(t, GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", GetString("graylog.address"))
}

func TestLoad_MissingConfigFileUsesDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "3000", GetString("server.port"))
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigName+".json"), []byte(`{nope`), 0644))

	err := Load(dir)
	assert.Error(t, err)
}
