package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "techpm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "state", cfg.StatePath)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "state", cfg.Storage.DSN)
	assert.Equal(t, DefaultStoreKey, cfg.Storage.Key)
	assert.Equal(t, filepath.Join("state", "exports"), cfg.Artifacts.Root)
	assert.Equal(t, "log", cfg.Notify.Driver)
	assert.Equal(t, 25, cfg.Timer.DefaultMinutes)
	assert.True(t, cfg.Journal)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
state_path: /var/lib/techpm
journal: false
storage:
  driver: sqlite
timer:
  default_minutes: 50
artifacts:
  driver: s3
  s3:
    bucket: exports
    region: eu-west-1
`)
	t.Setenv("TECHPM_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("TECHPM_S3_PATH_STYLE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/techpm", cfg.StatePath)
	assert.False(t, cfg.Journal)
	assert.Equal(t, filepath.Join("/var/lib/techpm", "techpm.db"), cfg.Storage.DSN)
	assert.Equal(t, 50, cfg.Timer.DefaultMinutes)
	assert.Equal(t, "exports", cfg.Artifacts.S3.Bucket)
	assert.Equal(t, "http://localhost:9000", cfg.Artifacts.S3.Endpoint)
	assert.True(t, cfg.Artifacts.S3.PathStyle)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown storage", "storage:\n  driver: redis\n"},
		{"postgres without dsn", "storage:\n  driver: postgres\n"},
		{"s3 without bucket", "artifacts:\n  driver: s3\n"},
		{"discord without token", "notify:\n  driver: discord\n"},
		{"bad yaml", "storage: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
