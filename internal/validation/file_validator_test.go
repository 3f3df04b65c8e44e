package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipedspulse/internal/shared/testutil"
)

func TestFileValidator_ValidateDatasetFile(t *testing.T) {
	tests := []struct {
		name      string
		setupFunc func(t *testing.T) string
		maxBytes  int64
		wantErr   error
	}{
		{
			name: "csv file",
			setupFunc: func(t *testing.T) string {
				return testutil.WriteFile(t, "wide.csv", testutil.StandardCSV())
			},
		},
		{
			name: "upper case xlsx extension",
			setupFunc: func(t *testing.T) string {
				return testutil.WriteFile(t, "WIDE.XLSX", "PK")
			},
		},
		{
			name: "missing file",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "absent.csv")
			},
			wantErr: ErrFileMissing,
		},
		{
			name: "directory with dataset extension",
			setupFunc: func(t *testing.T) string {
				dir := filepath.Join(t.TempDir(), "data.csv")
				require.NoError(t, os.Mkdir(dir, 0755))
				return dir
			},
			wantErr: ErrNotAFile,
		},
		{
			name: "json file",
			setupFunc: func(t *testing.T) string {
				return testutil.WriteFile(t, "wide.json", "{}")
			},
			wantErr: ErrUnsupportedExtension,
		},
		{
			name: "excel lock file",
			setupFunc: func(t *testing.T) string {
				return testutil.WriteFile(t, "~$wide.xlsx", "lock")
			},
			wantErr: ErrTemporaryFile,
		},
		{
			name: "empty file",
			setupFunc: func(t *testing.T) string {
				return testutil.WriteFile(t, "empty.csv", "")
			},
			wantErr: ErrEmptyFile,
		},
		{
			name: "over the size limit",
			setupFunc: func(t *testing.T) string {
				return testutil.WriteFile(t, "wide.csv", testutil.StandardCSV())
			},
			maxBytes: 16,
			wantErr:  ErrFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewFileValidator(testutil.DiscardLogger())
			if tt.maxBytes != 0 {
				validator.WithMaxBytes(tt.maxBytes)
			}

			err := validator.ValidateDatasetFile(tt.setupFunc(t))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	validator := NewFileValidator(nil)

	dir := filepath.Join(t.TempDir(), "exports", "nested")
	require.NoError(t, validator.ValidateOutputDirectory(dir))
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file is removed")

	file := testutil.WriteFile(t, "plain.txt", "x")
	assert.Error(t, validator.ValidateOutputDirectory(filepath.Join(file, "sub")))
}
