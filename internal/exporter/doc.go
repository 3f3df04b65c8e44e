// Package exporter writes long-format enrollment records for download.
//
// This package contains two writers:
//
// CSVWriter: CSV output with an optional UTF-8 BOM for Excel compatibility,
// either to a file in the exports directory or to any io.Writer.
//
// XLSXWriter: the same table as an Excel workbook, streamed through excelize.
//
// Undefined rates are written as empty cells in both formats.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(paths)
//	path, err := w.ExportRecords("enrollment_long.csv", records, true)
//
//	err = exporter.NewXLSXWriter().WriteRecords(rw, records)
package exporter
