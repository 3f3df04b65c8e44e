package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"ipedspulse/pkg/contracts/domain"
)

// SkipReason explains why an institution-year was left out of the long table.
type SkipReason string

const (
	// SkipMissing: a required cell is absent or empty, or the name is blank.
	SkipMissing SkipReason = "missing"
	// SkipInvalid: a cell is not a number, a count is negative or
	// fractional, or a share is outside [0,100].
	SkipInvalid SkipReason = "invalid"
	// SkipInconsistent: admissions exceed applicants or enrolled exceed admissions.
	SkipInconsistent SkipReason = "inconsistent"
	// SkipDuplicate: the institution-year was already produced by an earlier row.
	SkipDuplicate SkipReason = "duplicate"
)

// Skip records one dropped institution-year.
type Skip struct {
	Line        int        `json:"line"`
	Institution string     `json:"institution"`
	Year        int        `json:"year"`
	Reason      SkipReason `json:"reason"`
	Column      string     `json:"column,omitempty"`
	Detail      string     `json:"detail,omitempty"`
}

// ReshapeStats summarises a reshape run.
type ReshapeStats struct {
	RowsRead        int                `json:"rows_read"`
	RecordsProduced int                `json:"records_produced"`
	Institutions    int                `json:"institutions"`
	Years           []int              `json:"years"`
	Skipped         map[SkipReason]int `json:"skipped"`
	PctSumWarnings  int                `json:"pct_sum_warnings"`
	// Skips keeps the first MaxSkipDetails drops for diagnostics.
	Skips []Skip `json:"skips,omitempty"`
}

// SkippedTotal is the number of dropped institution-years.
func (s ReshapeStats) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// SkippedByReason returns the skip counts keyed by plain strings.
func (s ReshapeStats) SkippedByReason() map[string]int {
	out := make(map[string]int, len(s.Skipped))
	for r, c := range s.Skipped {
		out[string(r)] = c
	}
	return out
}

// ReshapeConfig controls the wide to long transform.
type ReshapeConfig struct {
	Years           []int
	PctSumTolerance float64
	MaxSkipDetails  int
}

// DefaultReshapeConfig returns the settings for the published dataset.
func DefaultReshapeConfig() ReshapeConfig {
	return ReshapeConfig{
		Years:           append([]int(nil), domain.DefaultYears...),
		PctSumTolerance: 1.0,
		MaxSkipDetails:  100,
	}
}

// Reshaper turns wide RawRecords into long EnrollmentRecords.
type Reshaper struct {
	logger *slog.Logger
	cfg    ReshapeConfig
}

// NewReshaper creates a reshaper. An empty year list falls back to domain.DefaultYears.
func NewReshaper(logger *slog.Logger, cfg ReshapeConfig) *Reshaper {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Years) == 0 {
		cfg.Years = append([]int(nil), domain.DefaultYears...)
	}
	years := append([]int(nil), cfg.Years...)
	sort.Ints(years)
	cfg.Years = years
	return &Reshaper{
		logger: logger.With(slog.String("component", "reshaper")),
		cfg:    cfg,
	}
}

// Reshape produces one record per institution and configured year with
// complete, valid data. Bad institution-years are dropped and counted; the
// only error is context cancellation. Output is sorted by name, then year.
func (r *Reshaper) Reshape(ctx context.Context, raws []domain.RawRecord) ([]domain.EnrollmentRecord, ReshapeStats, error) {
	stats := ReshapeStats{
		RowsRead: len(raws),
		Years:    append([]int(nil), r.cfg.Years...),
		Skipped:  make(map[SkipReason]int),
	}

	seen := make(map[string]struct{}, len(raws)*len(r.cfg.Years))
	out := make([]domain.EnrollmentRecord, 0, len(raws)*len(r.cfg.Years))

	for i, raw := range raws {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}

		for _, year := range r.cfg.Years {
			if raw.Name == "" {
				r.skip(ctx, &stats, Skip{Line: raw.Line, Year: year, Reason: SkipMissing, Detail: "blank institution name"})
				continue
			}

			rec, skip, ok := r.extract(raw, year)
			if !ok {
				r.skip(ctx, &stats, skip)
				continue
			}

			key := rec.Key()
			if _, dup := seen[key]; dup {
				r.skip(ctx, &stats, Skip{Line: raw.Line, Institution: raw.Name, Year: year, Reason: SkipDuplicate})
				continue
			}
			seen[key] = struct{}{}

			if math.Abs(rec.Demographics.Sum()-100) > r.cfg.PctSumTolerance {
				stats.PctSumWarnings++
				r.logger.DebugContext(ctx, "demographic shares do not sum to 100",
					slog.String("institution", rec.Name),
					slog.Int("year", year),
					slog.Float64("sum", rec.Demographics.Sum()))
			}

			out = append(out, rec)
		}
	}

	assignSizes(out)
	for i := range out {
		if out[i].Region == "" {
			out[i].Region = RegionForState(out[i].State)
		}
		out[i] = DeriveRates(out[i])
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Year < out[j].Year
	})

	institutions := make(map[string]struct{})
	for _, rec := range out {
		institutions[rec.Name] = struct{}{}
	}
	stats.RecordsProduced = len(out)
	stats.Institutions = len(institutions)

	r.logger.InfoContext(ctx, "reshape complete",
		slog.Int("rows_read", stats.RowsRead),
		slog.Int("records", stats.RecordsProduced),
		slog.Int("institutions", stats.Institutions),
		slog.Int("skipped", stats.SkippedTotal()),
		slog.Any("skipped_by_reason", stats.SkippedByReason()),
		slog.Int("pct_sum_warnings", stats.PctSumWarnings))

	return out, stats, nil
}

func (r *Reshaper) skip(ctx context.Context, stats *ReshapeStats, s Skip) {
	stats.Skipped[s.Reason]++
	if len(stats.Skips) < r.cfg.MaxSkipDetails {
		stats.Skips = append(stats.Skips, s)
	}
	r.logger.DebugContext(ctx, "institution-year skipped",
		slog.Int("line", s.Line),
		slog.String("institution", s.Institution),
		slog.Int("year", s.Year),
		slog.String("reason", string(s.Reason)),
		slog.String("column", s.Column),
		slog.String("detail", s.Detail))
}

// extract builds the record for one year of a raw row.
func (r *Reshaper) extract(raw domain.RawRecord, year int) (domain.EnrollmentRecord, Skip, bool) {
	skip := Skip{Line: raw.Line, Institution: raw.Name, Year: year}
	rec := domain.EnrollmentRecord{Identity: raw.Identity, Year: year}

	for _, m := range domain.CountMetrics {
		col := domain.ColumnName(m, year)
		v, present := raw.Cell(m, year)
		if !present || strings.TrimSpace(v) == "" {
			skip.Reason, skip.Column = SkipMissing, col
			return rec, skip, false
		}
		n, err := ParseCount(v)
		if err != nil {
			skip.Reason, skip.Column, skip.Detail = SkipInvalid, col, err.Error()
			return rec, skip, false
		}
		switch m {
		case domain.MetricApplicants:
			rec.Applicants = n
		case domain.MetricAdmissions:
			rec.Admissions = n
		case domain.MetricEnrolled:
			rec.Enrolled = n
		}
	}

	for _, m := range domain.DemographicMetrics {
		col := domain.ColumnName(m, year)
		v, present := raw.Cell(m, year)
		if !present || strings.TrimSpace(v) == "" {
			skip.Reason, skip.Column = SkipMissing, col
			return rec, skip, false
		}
		pct, err := ParsePercent(v)
		if err != nil {
			skip.Reason, skip.Column, skip.Detail = SkipInvalid, col, err.Error()
			return rec, skip, false
		}
		rec.Demographics.Set(m, pct)
	}

	if rec.Admissions > rec.Applicants {
		skip.Reason = SkipInconsistent
		skip.Detail = fmt.Sprintf("admissions %d exceed applicants %d", rec.Admissions, rec.Applicants)
		return rec, skip, false
	}
	if rec.Enrolled > rec.Admissions {
		skip.Reason = SkipInconsistent
		skip.Detail = fmt.Sprintf("enrolled %d exceed admissions %d", rec.Enrolled, rec.Admissions)
		return rec, skip, false
	}

	return rec, skip, true
}

// assignSizes fills Size from each institution's mean enrolled count when
// the source did not provide one.
func assignSizes(records []domain.EnrollmentRecord) {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, rec := range records {
		sums[rec.Name] += float64(rec.Enrolled)
		counts[rec.Name]++
	}
	for i := range records {
		if records[i].Size != "" {
			continue
		}
		records[i].Size = SizeForEnrollment(sums[records[i].Name] / float64(counts[records[i].Name]))
	}
}

// thousandsPattern matches a number whose commas group digits by three.
var thousandsPattern = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)

// ParseCount parses a non-negative integer count. Thousands separators and
// integral decimals such as "1200.0" are accepted; misplaced commas are not.
func ParseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		if !thousandsPattern.MatchString(s) {
			return 0, fmt.Errorf("misplaced thousands separator: %q", s)
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative count %d", n)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative count %v", f)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not a whole count: %v", f)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f >= math.MaxInt64 {
		return 0, fmt.Errorf("count %v out of range", f)
	}
	return int64(f), nil
}

// ParsePercent parses a share in [0,100]; a trailing percent sign is allowed.
func ParsePercent(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if f < 0 || f > 100 {
		return 0, fmt.Errorf("share %v outside [0,100]", f)
	}
	return f, nil
}
