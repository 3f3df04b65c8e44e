package exporter

import (
	"strconv"

	"ipedspulse/pkg/contracts/domain"
)

// RecordHeaders is the column layout of a long-format export.
var RecordHeaders = []string{
	"unit_id", "institution", "state", "region", "type", "size", "year",
	"applicants", "admissions", "enrolled",
	"admit_rate", "yield_rate", "conversion_rate",
	"pct_hispanic", "pct_white", "pct_black", "pct_asian", "pct_other",
	"diversity_index",
}

// RecordRow renders one record in RecordHeaders order.
func RecordRow(r domain.EnrollmentRecord) []string {
	return []string{
		r.UnitID, r.Name, r.State, r.Region, r.Type, r.Size, strconv.Itoa(r.Year),
		formatInt(r.Applicants), formatInt(r.Admissions), formatInt(r.Enrolled),
		formatRate(r.AdmitRate), formatRate(r.YieldRate), formatRate(r.Conversion),
		formatFloat(r.Demographics.Hispanic), formatFloat(r.Demographics.White),
		formatFloat(r.Demographics.Black), formatFloat(r.Demographics.Asian),
		formatFloat(r.Demographics.Other),
		strconv.FormatFloat(r.DiversityIndex, 'f', 4, 64),
	}
}

// formatFloat formats a share with exactly 2 decimal places
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// formatRate writes a rate with 6 decimals, or nothing when undefined.
func formatRate(r domain.Rate) string {
	if !r.Valid {
		return ""
	}
	return strconv.FormatFloat(r.Value, 'f', 6, 64)
}
