package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ipedspulse/internal/dataprocessing"
	apperrors "ipedspulse/internal/errors"
	"ipedspulse/internal/exporter"
	"ipedspulse/internal/services"
	"ipedspulse/internal/shared/testutil"
)

type cliEnv struct {
	dir     string
	config  string
	dataset string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf("paths:\n  executable_dir: %q\nlogging:\n  level: error\n", dir)
	require.NoError(t, os.WriteFile(config, []byte(yaml), 0644))
	return cliEnv{
		dir:     dir,
		config:  config,
		dataset: testutil.WriteFile(t, "wide.csv", testutil.StandardCSV()),
	}
}

// run executes the CLI and returns stdout, stderr and the error.
func (e cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", e.config, "--file", e.dataset}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestValidate_Text(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "rows read:        3")
	assert.Contains(t, out, "records produced: 8")
	assert.Contains(t, out, "skipped:          1")
	assert.Contains(t, out, "  missing        1")
	assert.Contains(t, out, "Beta College 2024 missing")
}

func TestValidate_JSON(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(t, "validate", "--json")
	require.NoError(t, err)

	var stats dataprocessing.ReshapeStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats), out)
	assert.Equal(t, 8, stats.RecordsProduced)
	assert.Equal(t, 3, stats.Institutions)
	assert.Equal(t, []int{2022, 2023, 2024}, stats.Years)
	assert.Equal(t, 1, stats.Skipped[dataprocessing.SkipMissing])
}

func TestValidate_MaxSkipped(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "validate", "--max-skipped", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 institution-years skipped")

	_, _, err = env.run(t, "validate", "--max-skipped", "1")
	assert.NoError(t, err)
}

func TestReshape_Stdout(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(t, "reshape")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 9)
	assert.Equal(t, exporter.RecordHeaders, rows[0])
	assert.Equal(t, "Alpha U", rows[1][1])
}

func TestReshape_FileOutputs(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "reshape", "--out", "long.csv", "--bom")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(env.dir, "data", "exports", "long.csv"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\xEF\xBB\xBF")))

	target := filepath.Join(env.dir, "long.xlsx")
	_, _, err = env.run(t, "reshape", "--out", target)
	require.NoError(t, err)

	f, err := excelize.OpenFile(target)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(exporter.RecordsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 9)
}

func TestSummary(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(t, "summary", "--year", "2022")
	require.NoError(t, err)

	var report struct {
		Dataset services.DatasetInfo   `json:"dataset"`
		Summary map[string]interface{} `json:"summary"`
		Funnel  map[string]interface{} `json:"funnel"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, 8, report.Dataset.Records)
	assert.Empty(t, report.Dataset.Skips)
	assert.Equal(t, float64(4500), report.Summary["total_applicants"])
	assert.Equal(t, float64(850), report.Summary["total_enrolled"])
	assert.Len(t, report.Funnel["stages"], 3)
}

func TestSummary_UnknownYear(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "summary", "--year", "1999")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrInvalidFilter)
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		format  string
		out     string
		want    string
		wantErr bool
	}{
		{"", "", "csv", false},
		{"", "report.XLSX", "xlsx", false},
		{"", "report.csv", "csv", false},
		{"CSV", "report.xlsx", "csv", false},
		{"xlsx", "", "xlsx", false},
		{"json", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.out, func(t *testing.T) {
			got, err := outputFormat(tt.format, tt.out)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
