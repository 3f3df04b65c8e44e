package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"ipedspulse/pkg/contracts/domain"
)

// RecordsSheet is the worksheet name of an XLSX export.
const RecordsSheet = "Enrollment"

// XLSXWriter writes long-format records as an Excel workbook.
type XLSXWriter struct {
	sheet string
}

// NewXLSXWriter creates a writer using RecordsSheet.
func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{sheet: RecordsSheet}
}

// WriteRecords streams records into a single-sheet workbook on out. Counts
// and rates are written as numbers; undefined rates stay empty.
func (x *XLSXWriter) WriteRecords(out io.Writer, records []domain.EnrollmentRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", x.sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(x.sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	header := make([]interface{}, len(RecordHeaders))
	for i, h := range RecordHeaders {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, xlsxRow(r)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush workbook: %w", err)
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func xlsxRow(r domain.EnrollmentRecord) []interface{} {
	rate := func(v domain.Rate) interface{} {
		if !v.Valid {
			return nil
		}
		return v.Value
	}
	return []interface{}{
		r.UnitID, r.Name, r.State, r.Region, r.Type, r.Size, r.Year,
		r.Applicants, r.Admissions, r.Enrolled,
		rate(r.AdmitRate), rate(r.YieldRate), rate(r.Conversion),
		r.Demographics.Hispanic, r.Demographics.White, r.Demographics.Black,
		r.Demographics.Asian, r.Demographics.Other,
		r.DiversityIndex,
	}
}
