package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"ipedspulse/internal/config"
	apperrors "ipedspulse/internal/errors"
	"ipedspulse/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{
		paths:  paths,
		logger: slog.Default().With(slog.String("component", "csv_writer")),
	}
}

// WithLogger replaces the writer's logger.
func (w *CSVWriter) WithLogger(logger *slog.Logger) *CSVWriter {
	if logger != nil {
		w.logger = logger.With(slog.String("component", "csv_writer"))
	}
	return w
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes rows to a file; relative paths land in the exports directory.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) (string, error) {
	fullPath := w.resolvePath(filePath)

	w.logger.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", apperrors.NewStorageError("failed to create directory", err).WithContext("path", fullPath)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", apperrors.NewStorageError("failed to open file", err).WithContext("path", fullPath)
	}
	defer file.Close()

	if err := WriteRows(file, options); err != nil {
		return "", err
	}
	return fullPath, file.Close()
}

// WriteRows writes headers and rows to out.
func WriteRows(out io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportRecords writes long-format records to a file and returns its path.
func (w *CSVWriter) ExportRecords(filePath string, records []domain.EnrollmentRecord, bom bool) (string, error) {
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   RecordHeaders,
		Records:   recordRows(records),
		BOMPrefix: bom,
	})
}

// WriteRecords streams long-format records to out.
func WriteRecords(out io.Writer, records []domain.EnrollmentRecord, bom bool) error {
	sw, err := NewStreamWriter(out, RecordHeaders, bom)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := sw.WriteRecord(RecordRow(r)); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func recordRows(records []domain.EnrollmentRecord) [][]string {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = RecordRow(r)
	}
	return rows
}

// StreamWriter provides streaming CSV writing for large datasets
type StreamWriter struct {
	writer *csv.Writer
}

// NewStreamWriter writes the optional BOM and the header row, then returns
// a writer for the data rows.
func NewStreamWriter(out io.Writer, headers []string, bom bool) (*StreamWriter, error) {
	if bom {
		if _, err := out.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	writer := csv.NewWriter(out)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}
	return &StreamWriter{writer: writer}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Flush writes any buffered rows.
func (s *StreamWriter) Flush() error {
	s.writer.Flush()
	return s.writer.Error()
}

// resolvePath resolves a path to the appropriate directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.paths == nil {
		return filePath
	}
	return w.paths.GetExportPath(filePath)
}
