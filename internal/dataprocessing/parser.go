package dataprocessing

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "ipedspulse/internal/errors"
	"ipedspulse/pkg/contracts/domain"
)

var (
	// ErrEmptySource is returned when the file has no header row.
	ErrEmptySource = errors.New("dataset has no header row")
	// ErrIdentityColumnMissing is returned when no institution name column exists.
	ErrIdentityColumnMissing = errors.New("dataset is missing the institution name column")
	// ErrUnsupportedFormat is returned for file extensions other than csv and xlsx.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
)

// identityAliases maps normalized header names to identity fields.
var identityAliases = map[string]string{
	"name":             "name",
	"institution":      "name",
	"institution_name": "name",
	"state":            "state",
	"stabbr":           "state",
	"type":             "type",
	"institution_type": "type",
	"control":          "type",
	"unit_id":          "unit_id",
	"unitid":           "unit_id",
	"city":             "city",
	"region":           "region",
	"size":             "size",
	"institution_size": "size",
}

// RawTable is the parsed wide file before reshaping.
type RawTable struct {
	Source  string
	Header  []string
	Records []domain.RawRecord
	// Years found in the metric columns of the header, ascending.
	Years []int
}

// Parser reads wide-format enrollment files.
type Parser struct {
	logger *slog.Logger
	sheet  string
}

// NewParser creates a parser. sheet selects the XLSX worksheet; empty means the first one.
func NewParser(logger *slog.Logger, sheet string) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		logger: logger.With(slog.String("component", "parser")),
		sheet:  sheet,
	}
}

// ParseFile reads a .csv or .xlsx file from disk.
func (p *Parser) ParseFile(ctx context.Context, path string) (*RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return p.ParseCSV(ctx, f, path)
	case ".xlsx", ".xlsm":
		return p.ParseXLSX(ctx, f, path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ParseCSV reads a wide CSV document.
func (p *Parser) ParseCSV(ctx context.Context, r io.Reader, source string) (*RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("failed to read csv", err).WithContext("source", source)
		}
		rows = append(rows, row)
		if len(rows)%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	return p.parseRows(ctx, source, rows)
}

// ParseXLSX reads the configured worksheet of a workbook.
func (p *Parser) ParseXLSX(ctx context.Context, r io.Reader, source string) (*RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open workbook", err).WithContext("source", source)
	}
	defer f.Close()

	sheet := p.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook %s has no sheets", ErrEmptySource, source)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheet, source, err)
	}
	p.logger.DebugContext(ctx, "read worksheet",
		slog.String("sheet", sheet),
		slog.Int("rows", len(rows)))

	return p.parseRows(ctx, source, rows)
}

func (p *Parser) parseRows(ctx context.Context, source string, rows [][]string) (*RawTable, error) {
	headerIdx := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySource, source)
	}

	header := make([]string, len(rows[headerIdx]))
	identityCols := make(map[string]int)
	metricCols := make(map[string]int)
	yearSet := make(map[int]struct{})
	for i, h := range rows[headerIdx] {
		name := NormalizeHeader(h)
		header[i] = name
		if field, ok := identityAliases[name]; ok {
			if _, dup := identityCols[field]; !dup {
				identityCols[field] = i
			}
			continue
		}
		if _, year, ok := domain.ParseColumnName(name); ok {
			metricCols[name] = i
			yearSet[year] = struct{}{}
		}
	}

	nameIdx, ok := identityCols["name"]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIdentityColumnMissing, source)
	}

	table := &RawTable{Source: source, Header: header}
	for y := range yearSet {
		table.Years = append(table.Years, y)
	}
	sort.Ints(table.Years)

	for i := headerIdx + 1; i < len(rows); i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := rows[i]
		if blankRow(row) {
			continue
		}

		rec := domain.RawRecord{
			Line:  i + 1,
			Cells: make(map[string]string, len(metricCols)),
		}
		rec.Name = cell(row, nameIdx)
		rec.State = strings.ToUpper(cellAt(row, identityCols, "state"))
		rec.Type = cellAt(row, identityCols, "type")
		rec.UnitID = cellAt(row, identityCols, "unit_id")
		rec.City = cellAt(row, identityCols, "city")
		rec.Region = cellAt(row, identityCols, "region")
		rec.Size = cellAt(row, identityCols, "size")

		for col, idx := range metricCols {
			if idx < len(row) {
				rec.Cells[col] = row[idx]
			}
		}
		table.Records = append(table.Records, rec)
	}

	p.logger.InfoContext(ctx, "parsed dataset",
		slog.String("source", source),
		slog.Int("columns", len(header)),
		slog.Int("metric_columns", len(metricCols)),
		slog.Int("rows", len(table.Records)),
		slog.Any("years", table.Years))

	return table, nil
}

// NormalizeHeader lowercases a column name, strips a UTF-8 BOM and
// replaces spaces and dashes with underscores.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	return h
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func cellAt(row []string, cols map[string]int, field string) string {
	idx, ok := cols[field]
	if !ok {
		return ""
	}
	return cell(row, idx)
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
