package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// MaxDatasetBytes bounds the wide file read into memory.
const MaxDatasetBytes int64 = 256 << 20

var (
	ErrFileMissing          = errors.New("file does not exist")
	ErrNotAFile             = errors.New("path is a directory")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrTemporaryFile        = errors.New("temporary office file")
	ErrEmptyFile            = errors.New("file is empty")
	ErrFileTooLarge         = errors.New("file exceeds size limit")
)

// datasetExtensions are the formats the parser reads.
var datasetExtensions = map[string]struct{}{
	".csv":  {},
	".txt":  {},
	".xlsx": {},
	".xlsm": {},
}

// FileValidator checks dataset sources and output locations before they are used
type FileValidator struct {
	logger   *slog.Logger
	maxBytes int64
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger:   logger.With(slog.String("component", "file_validator")),
		maxBytes: MaxDatasetBytes,
	}
}

// WithMaxBytes replaces the dataset size limit. Zero or less disables it.
func (v *FileValidator) WithMaxBytes(n int64) *FileValidator {
	v.maxBytes = n
	return v
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		v.logger.Error("File does not exist", slog.String("file", path))
		return nil, fmt.Errorf("%w: %s", ErrFileMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file", slog.String("path", path))
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()
	return info, nil
}

// ValidateDatasetFile checks that path is a readable, non-empty CSV or XLSX
// file within the size limit.
func (v *FileValidator) ValidateDatasetFile(path string) error {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") {
		return fmt.Errorf("%w: %s", ErrTemporaryFile, path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := datasetExtensions[ext]; !ok {
		return fmt.Errorf("%w: %q (want .csv or .xlsx)", ErrUnsupportedExtension, ext)
	}

	info, err := v.ValidateFile(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	if v.maxBytes > 0 && info.Size() > v.maxBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, path, info.Size(), v.maxBytes)
	}

	v.logger.Debug("Dataset file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	// Verify it's writable by creating a test file
	tmp, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	tmp.Close()
	os.Remove(tmp.Name())
	return nil
}
