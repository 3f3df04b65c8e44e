package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_DefaultsOnly(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []int{2022, 2023, 2024}, cfg.Dataset.Years)
	assert.Equal(t, DefaultDatasetFile, cfg.Dataset.Path)
	assert.True(t, cfg.Dataset.CacheEnabled)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NotEmpty(t, cfg.Paths.ExecutableDir)
}

func TestLoadFile_Precedence(t *testing.T) {
	path := writeYAML(t, `
server:
  port: 9090
  read_timeout: 5s
dataset:
  path: /srv/ipeds.xlsx
  years: [2020, 2021]
logging:
  level: debug
`)
	t.Setenv("IPEDS_SERVER_PORT", "7070")
	t.Setenv("IPEDS_DATASET_CACHE_ENABLED", "false")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port, "env wins over file")
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout, "file wins over defaults")
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout, "defaults survive")
	assert.Equal(t, "/srv/ipeds.xlsx", cfg.Dataset.Path)
	assert.Equal(t, []int{2020, 2021}, cfg.Dataset.Years)
	assert.False(t, cfg.Dataset.CacheEnabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFile_EnvYears(t *testing.T) {
	t.Setenv("IPEDS_DATASET_YEARS", "2019,2020")
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, []int{2019, 2020}, cfg.Dataset.Years)
}

func TestLoadFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad port", map[string]string{"IPEDS_SERVER_PORT": "70000"}, "invalid server port"},
		{"zero read timeout", map[string]string{"IPEDS_SERVER_READ_TIMEOUT": "0s"}, "read timeout"},
		{"duplicate year", map[string]string{"IPEDS_DATASET_YEARS": "2022,2022"}, "listed twice"},
		{"year out of range", map[string]string{"IPEDS_DATASET_YEARS": "1900"}, "out of range"},
		{"tolerance", map[string]string{"IPEDS_DATASET_PCT_SUM_TOLERANCE": "101"}, "tolerance"},
		{"sample ratio", map[string]string{"IPEDS_TELEMETRY_SAMPLE_RATIO": "1.5"}, "sample ratio"},
		{"trace exporter", map[string]string{"IPEDS_TELEMETRY_TRACE_EXPORTER": "jaeger"}, "trace exporter"},
		{"log level", map[string]string{"IPEDS_LOGGING_LEVEL": "loud"}, "log level"},
		{"empty dataset path", map[string]string{"IPEDS_DATASET_FILE": " "}, "dataset path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFile("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate_NormalizesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "syslog"
	cfg.Logging.FilePath = ""
	require.NoError(t, cfg.validate())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "both", cfg.Logging.Output)
	assert.Equal(t, "logs/app.log", cfg.Logging.FilePath)
}

func TestPaths_ResolveDatasetFile(t *testing.T) {
	exeDir := t.TempDir()
	dataDir := filepath.Join(exeDir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	t.Run("absolute path untouched", func(t *testing.T) {
		p := newPaths(exeDir, PathsConfig{}, "/abs/file.csv")
		assert.Equal(t, "/abs/file.csv", p.ResolveDatasetFile())
	})

	t.Run("found under data dir", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, "wide.csv"), []byte("name\n"), 0o644))
		p := newPaths(exeDir, PathsConfig{}, "elsewhere/wide.csv")
		assert.Equal(t, filepath.Join(dataDir, "wide.csv"), p.ResolveDatasetFile())
	})

	t.Run("missing falls back to executable relative", func(t *testing.T) {
		p := newPaths(exeDir, PathsConfig{}, "missing/none.csv")
		assert.Equal(t, filepath.Join(exeDir, "missing/none.csv"), p.ResolveDatasetFile())
	})
}

func TestPaths_EnsureDirectories(t *testing.T) {
	exeDir := t.TempDir()
	p := newPaths(exeDir, PathsConfig{ExportsDir: "out/exports"}, "")
	require.NoError(t, p.EnsureDirectories())

	assert.DirExists(t, filepath.Join(exeDir, "out", "exports"))
	assert.DirExists(t, filepath.Join(exeDir, DefaultLogsDir))
	assert.Equal(t, filepath.Join(exeDir, "out", "exports", "a.csv"), p.GetExportPath("a.csv"))
}
