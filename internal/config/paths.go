package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved file system layout
type Paths struct {
	ExecutableDir string
	DataDir       string
	ExportsDir    string
	LogsDir       string
	// DatasetFile is the configured dataset path before lookup; see ResolveDatasetFile.
	DatasetFile string
}

// GetPaths returns the default layout relative to the executable location
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	exeDir := filepath.Dir(exe)
	return newPaths(exeDir, PathsConfig{
		DataDir:    DefaultDataDir,
		ExportsDir: DefaultExportsDir,
		LogsDir:    DefaultLogsDir,
	}, DefaultDatasetFile), nil
}

// newPaths anchors relative directories at exeDir.
//
//	<exe dir>/
//	  ├── data/
//	  │   ├── ipeds_enrollment_wide.csv
//	  │   └── exports/
//	  └── logs/
func newPaths(exeDir string, cfg PathsConfig, datasetFile string) *Paths {
	anchor := func(p, def string) string {
		if p == "" {
			p = def
		}
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(exeDir, p)
	}
	return &Paths{
		ExecutableDir: exeDir,
		DataDir:       anchor(cfg.DataDir, DefaultDataDir),
		ExportsDir:    anchor(cfg.ExportsDir, DefaultExportsDir),
		LogsDir:       anchor(cfg.LogsDir, DefaultLogsDir),
		DatasetFile:   datasetFile,
	}
}

// EnsureDirectories creates all writable directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	logger := slog.Default()
	for _, dir := range []string{p.DataDir, p.ExportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// ResolveDatasetFile locates the dataset. Absolute paths are returned as is.
// Relative paths are tried against the working directory, the executable
// directory and the data directory, in that order. When none exists the
// executable-relative candidate is returned so the caller reports a useful path.
func (p *Paths) ResolveDatasetFile() string {
	if p.DatasetFile == "" || filepath.IsAbs(p.DatasetFile) {
		return p.DatasetFile
	}

	candidates := []string{
		p.DatasetFile,
		filepath.Join(p.ExecutableDir, p.DatasetFile),
		filepath.Join(p.DataDir, filepath.Base(p.DatasetFile)),
	}
	for _, c := range candidates {
		if FileExists(c) {
			abs, err := filepath.Abs(c)
			if err != nil {
				return c
			}
			return abs
		}
	}
	return candidates[1]
}

// GetExportPath returns the path for an exported file
func (p *Paths) GetExportPath(filename string) string {
	return filepath.Join(p.ExportsDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs detailed path resolution information for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		return
	}
	dataset := p.ResolveDatasetFile()
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("executable", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("exports", p.ExportsDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("dataset",
			slog.String("configured", p.DatasetFile),
			slog.String("resolved", dataset),
			slog.Bool("exists", FileExists(dataset)),
		))
}
