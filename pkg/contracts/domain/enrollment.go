package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultYears are the reporting years carried by the published dataset.
var DefaultYears = []int{2022, 2023, 2024}

// Metric identifies a per-year column family in the wide source file.
type Metric string

const (
	MetricApplicants  Metric = "applicants"
	MetricAdmissions  Metric = "admissions"
	MetricEnrolled    Metric = "enrolled"
	MetricPctHispanic Metric = "pct_hispanic"
	MetricPctWhite    Metric = "pct_white"
	MetricPctBlack    Metric = "pct_black"
	MetricPctAsian    Metric = "pct_asian"
	MetricPctOther    Metric = "pct_other"
)

// CountMetrics are the admissions funnel counts.
var CountMetrics = []Metric{MetricApplicants, MetricAdmissions, MetricEnrolled}

// DemographicMetrics are the enrollment share columns, in display order.
var DemographicMetrics = []Metric{MetricPctHispanic, MetricPctWhite, MetricPctBlack, MetricPctAsian, MetricPctOther}

// YearMetrics lists every column family that must be present for a year to be usable.
var YearMetrics = append(append([]Metric{}, CountMetrics...), DemographicMetrics...)

// ColumnName returns the wide-format column for a metric in a year, e.g. "applicants_2022".
func ColumnName(m Metric, year int) string {
	return fmt.Sprintf("%s_%d", m, year)
}

// ParseColumnName splits a wide-format column name back into metric and year.
func ParseColumnName(column string) (Metric, int, bool) {
	idx := strings.LastIndex(column, "_")
	if idx <= 0 || idx == len(column)-1 {
		return "", 0, false
	}
	year, err := strconv.Atoi(column[idx+1:])
	if err != nil {
		return "", 0, false
	}
	m := Metric(column[:idx])
	for _, known := range YearMetrics {
		if known == m {
			return m, year, true
		}
	}
	return "", 0, false
}

// Identity carries the per-institution attributes shared by every year.
type Identity struct {
	UnitID string `json:"unit_id,omitempty"`
	Name   string `json:"institution"`
	State  string `json:"state,omitempty"`
	Region string `json:"region,omitempty"`
	Type   string `json:"type,omitempty"`
	Size   string `json:"size,omitempty"`
	City   string `json:"city,omitempty"`
}

// RawRecord is one institution row of the wide source file.
// Cells holds the untouched year-scoped values keyed by column name.
type RawRecord struct {
	Identity
	Line  int
	Cells map[string]string
}

// Cell returns the raw value for a metric in a year and whether the column exists.
func (r RawRecord) Cell(m Metric, year int) (string, bool) {
	v, ok := r.Cells[ColumnName(m, year)]
	return v, ok
}

// Demographics holds the enrollment shares of one institution-year, in percent.
type Demographics struct {
	Hispanic float64 `json:"pct_hispanic"`
	White    float64 `json:"pct_white"`
	Black    float64 `json:"pct_black"`
	Asian    float64 `json:"pct_asian"`
	Other    float64 `json:"pct_other"`
}

// Values returns the shares in DemographicMetrics order.
func (d Demographics) Values() []float64 {
	return []float64{d.Hispanic, d.White, d.Black, d.Asian, d.Other}
}

// Sum returns the total of all shares; a well-formed row sums to about 100.
func (d Demographics) Sum() float64 {
	return d.Hispanic + d.White + d.Black + d.Asian + d.Other
}

// Set assigns the share for a demographic metric.
func (d *Demographics) Set(m Metric, v float64) {
	switch m {
	case MetricPctHispanic:
		d.Hispanic = v
	case MetricPctWhite:
		d.White = v
	case MetricPctBlack:
		d.Black = v
	case MetricPctAsian:
		d.Asian = v
	case MetricPctOther:
		d.Other = v
	}
}

// EnrollmentRecord is one institution-year in long format with derived ratios.
type EnrollmentRecord struct {
	Identity
	Year           int          `json:"year"`
	Applicants     int64        `json:"applicants"`
	Admissions     int64        `json:"admissions"`
	Enrolled       int64        `json:"enrolled"`
	Demographics   Demographics `json:"demographics"`
	AdmitRate      Rate         `json:"admit_rate"`
	YieldRate      Rate         `json:"yield_rate"`
	Conversion     Rate         `json:"conversion_rate"`
	DiversityIndex float64      `json:"diversity_index"`
}

// Key uniquely identifies the record within a dataset.
func (r EnrollmentRecord) Key() string {
	return fmt.Sprintf("%s|%d", r.Name, r.Year)
}

// Count returns the funnel count for a count metric.
func (r EnrollmentRecord) Count(m Metric) int64 {
	switch m {
	case MetricApplicants:
		return r.Applicants
	case MetricAdmissions:
		return r.Admissions
	case MetricEnrolled:
		return r.Enrolled
	}
	return 0
}

// Value returns a numeric view of any rankable metric. The boolean is false
// when the metric is an undefined rate or unknown.
func (r EnrollmentRecord) Value(m RankMetric) (float64, bool) {
	switch m {
	case RankApplicants:
		return float64(r.Applicants), true
	case RankAdmissions:
		return float64(r.Admissions), true
	case RankEnrolled:
		return float64(r.Enrolled), true
	case RankAdmitRate:
		return r.AdmitRate.Float64()
	case RankYieldRate:
		return r.YieldRate.Float64()
	case RankConversion:
		return r.Conversion.Float64()
	case RankDiversity:
		return r.DiversityIndex, true
	}
	return 0, false
}

// RankMetric names a metric that views can sort, rank or compare on.
type RankMetric string

const (
	RankApplicants RankMetric = "applicants"
	RankAdmissions RankMetric = "admissions"
	RankEnrolled   RankMetric = "enrolled"
	RankAdmitRate  RankMetric = "admit_rate"
	RankYieldRate  RankMetric = "yield_rate"
	RankConversion RankMetric = "conversion_rate"
	RankDiversity  RankMetric = "diversity_index"
)

// RankMetrics lists every supported RankMetric.
var RankMetrics = []RankMetric{
	RankApplicants, RankAdmissions, RankEnrolled,
	RankAdmitRate, RankYieldRate, RankConversion, RankDiversity,
}

// ParseRankMetric validates a metric name from user input.
func ParseRankMetric(s string) (RankMetric, error) {
	for _, m := range RankMetrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// IsRate reports whether the metric is a ratio rather than a count.
func (m RankMetric) IsRate() bool {
	return m == RankAdmitRate || m == RankYieldRate || m == RankConversion
}
