package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "versionpatcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadReadsYAML(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
strict_deletions: true
s3:
  region: eu-west-1
  endpoint: http://localhost:9000
  path_style: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, cfg.Source)
	require.Equal(t, "debug", cfg.LogLevel)
	require.True(t, cfg.StrictDeletions)
	require.Equal(t, S3{Region: "eu-west-1", Endpoint: "http://localhost:9000", PathStyle: true}, cfg.S3)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "log_level: info\nstrict_deletions: true\n")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvStrictDeletions, "false")
	t.Setenv(EnvS3Region, "us-east-2")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "error", cfg.LogLevel)
	require.False(t, cfg.StrictDeletions)
	require.Equal(t, "us-east-2", cfg.S3.Region)
}

func TestLoadUsesConfigEnvVar(t *testing.T) {
	path := writeConfig(t, "log_level: warn\n")
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadDefaultLocationIsOptional(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv(EnvConfigFile, "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Empty(t, cfg.Source)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	path := writeConfig(t, "log_level: loud\nunknown_key: 1\ns3:\n  path_style: yes-please\n")

	_, err := Load(path)
	require.Error(t, err)

	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	require.GreaterOrEqual(t, len(verr.Issues), 3)
}

func TestLoadRejectsBadStrictDeletionsEnv(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv(EnvStrictDeletions, "sometimes")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadDotEnvIgnoresMissingFile(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("VERSIONPATCHER_TEST_DOTENV=loaded\n"), 0o644))
	t.Setenv("VERSIONPATCHER_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("VERSIONPATCHER_TEST_DOTENV"))
	require.NoError(t, LoadDotEnv(path))
	require.Equal(t, "loaded", os.Getenv("VERSIONPATCHER_TEST_DOTENV"))
}
