package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"ipedspulse/internal/dataprocessing"
	"ipedspulse/internal/exporter"
	api "ipedspulse/pkg/contracts/api/v1"
	"ipedspulse/pkg/contracts/domain"
	"ipedspulse/pkg/contracts/events"
)

// RecordPage is one page of filtered long-format records.
type RecordPage struct {
	Total   int                       `json:"total"`
	Limit   int                       `json:"limit"`
	Offset  int                       `json:"offset"`
	Records []domain.EnrollmentRecord `json:"records"`
}

// Filters lists the values a dashboard can filter on.
func (s *DatasetService) Filters(ctx context.Context) domain.FilterOptions {
	opts, _ := cachedView(ctx, s, "filters", "", func() (domain.FilterOptions, error) {
		return s.table.FilterOptions(), nil
	})
	return opts
}

// Summary computes the KPI block.
func (s *DatasetService) Summary(ctx context.Context, f domain.Filter) (domain.Summary, error) {
	return filteredView(ctx, s, "summary", f, "", func(records []domain.EnrollmentRecord) (domain.Summary, error) {
		return dataprocessing.Summarize(records), nil
	})
}

// Funnel computes the admissions funnel with leakage.
func (s *DatasetService) Funnel(ctx context.Context, f domain.Filter) (domain.Funnel, error) {
	return filteredView(ctx, s, "funnel", f, "", func(records []domain.EnrollmentRecord) (domain.Funnel, error) {
		return dataprocessing.Funnel(records), nil
	})
}

// Trends computes per-year totals and pooled rates.
func (s *DatasetService) Trends(ctx context.Context, f domain.Filter) ([]domain.YearTrend, error) {
	return filteredView(ctx, s, "trends", f, "", func(records []domain.EnrollmentRecord) ([]domain.YearTrend, error) {
		return dataprocessing.TrendsByYear(records), nil
	})
}

// Demographics computes the enrollment-weighted composition per year.
func (s *DatasetService) Demographics(ctx context.Context, f domain.Filter) ([]domain.DemographicYear, error) {
	return filteredView(ctx, s, "demographics", f, "", func(records []domain.EnrollmentRecord) ([]domain.DemographicYear, error) {
		return dataprocessing.DemographicsByYear(records), nil
	})
}

// States computes the choropleth rows.
func (s *DatasetService) States(ctx context.Context, f domain.Filter) ([]domain.StateSummary, error) {
	return filteredView(ctx, s, "states", f, "", func(records []domain.EnrollmentRecord) ([]domain.StateSummary, error) {
		return dataprocessing.StateSummaries(records), nil
	})
}

// Growth computes enrollment change between the first and last selected year.
func (s *DatasetService) Growth(ctx context.Context, f domain.Filter) ([]domain.Growth, error) {
	return filteredView(ctx, s, "growth", f, "", func(records []domain.EnrollmentRecord) ([]domain.Growth, error) {
		return dataprocessing.EnrollmentGrowth(records), nil
	})
}

// Top ranks institutions by metric. A negative minEnrolled uses the
// configured floor.
func (s *DatasetService) Top(ctx context.Context, f domain.Filter, metric string, limit int, minEnrolled int64) ([]domain.InstitutionAggregate, error) {
	m, err := domain.ParseRankMetric(metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetric, err)
	}
	if minEnrolled < 0 {
		minEnrolled = s.cfg.MinEnrolledForRanking
	}
	params := fmt.Sprintf("%s|%d|%d", m, limit, minEnrolled)
	return filteredView(ctx, s, "top", f, params, func(records []domain.EnrollmentRecord) ([]domain.InstitutionAggregate, error) {
		top, err := dataprocessing.TopInstitutions(records, m, limit, minEnrolled)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMetric, err)
		}
		return top, nil
	})
}

// Records returns a page of the filtered table. limit 0 uses DefaultPageSize.
func (s *DatasetService) Records(ctx context.Context, f domain.Filter, limit, offset int) (RecordPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	selected, err := filteredView(ctx, s, "records", f, "", func(records []domain.EnrollmentRecord) ([]domain.EnrollmentRecord, error) {
		return records, nil
	})
	if err != nil {
		return RecordPage{}, err
	}

	page := RecordPage{
		Total:   len(selected),
		Limit:   limit,
		Offset:  offset,
		Records: []domain.EnrollmentRecord{},
	}
	if offset < len(selected) {
		end := min(offset+limit, len(selected))
		page.Records = append(page.Records, selected[offset:end]...)
	}
	return page, nil
}

// Profile builds the single-institution page. year 0 is the latest year.
func (s *DatasetService) Profile(ctx context.Context, name string, year int) (domain.InstitutionProfile, error) {
	year, err := s.resolveYear(name, year)
	if err != nil {
		return domain.InstitutionProfile{}, err
	}
	key := name + "|" + strconv.Itoa(year)
	return cachedView(ctx, s, "profile", key, func() (domain.InstitutionProfile, error) {
		return dataprocessing.BuildProfile(s.table.Records(), name, year)
	})
}

// Peers benchmarks an institution against a peer group.
func (s *DatasetService) Peers(ctx context.Context, name string, year int, peerType string, n int) (domain.PeerComparison, error) {
	year, err := s.resolveYear(name, year)
	if err != nil {
		return domain.PeerComparison{}, err
	}
	pt, err := parsePeerType(peerType)
	if err != nil {
		return domain.PeerComparison{}, err
	}
	if n <= 0 {
		n = dataprocessing.DefaultPeerCount
	}
	key := fmt.Sprintf("%s|%d|%s|%d", name, year, pt, n)
	return cachedView(ctx, s, "peers", key, func() (domain.PeerComparison, error) {
		return dataprocessing.Compare(s.table.Records(), name, year, pt, n)
	})
}

func parsePeerType(s string) (domain.PeerType, error) {
	switch pt := domain.PeerType(s); pt {
	case "":
		return domain.PeerNational, nil
	case domain.PeerNational, domain.PeerSameRegion, domain.PeerSameState, domain.PeerSameType,
		domain.PeerSameSize, domain.PeerTopApplicants, domain.PeerSimilar:
		return pt, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeerType, s)
}

// Similar finds the k nearest institutions in the same year.
func (s *DatasetService) Similar(ctx context.Context, name string, year, k int) ([]domain.SimilarInstitution, error) {
	year, err := s.resolveYear(name, year)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = dataprocessing.DefaultSimilarCount
	}
	key := fmt.Sprintf("%s|%d|%d", name, year, k)
	return cachedView(ctx, s, "similar", key, func() ([]domain.SimilarInstitution, error) {
		similar, ok := dataprocessing.SimilarInstitutions(s.table.Records(), name, year, k)
		if !ok {
			return nil, fmt.Errorf("similar: %w", ErrNoData)
		}
		return similar, nil
	})
}

// Change compares an institution's year with the previous one and
// decomposes the enrollment change.
func (s *DatasetService) Change(ctx context.Context, name string, year int) (domain.InstitutionChange, error) {
	year, err := s.resolveYear(name, year)
	if err != nil {
		return domain.InstitutionChange{}, err
	}
	key := name + "|" + strconv.Itoa(year)
	return cachedView(ctx, s, "change", key, func() (domain.InstitutionChange, error) {
		change, err := dataprocessing.Change(s.table.Records(), name, year)
		if errors.Is(err, dataprocessing.ErrYearNotFound) {
			return change, fmt.Errorf("%w: %v", ErrNoData, err)
		}
		return change, err
	})
}

// Baseline returns the record a simulation starts from.
func (s *DatasetService) Baseline(name string, year int) (domain.EnrollmentRecord, error) {
	year, err := s.resolveYear(name, year)
	if err != nil {
		return domain.EnrollmentRecord{}, err
	}
	r, _ := s.table.Find(name, year)
	if !r.AdmitRate.Valid || !r.YieldRate.Valid {
		return r, fmt.Errorf("%w: %q has undefined rates in %d", ErrInvalidBaseline, name, year)
	}
	return r, nil
}

// Simulate projects the funnel. A named institution supplies the baseline.
func (s *DatasetService) Simulate(ctx context.Context, req api.SimulationRequest) (domain.SimulationResult, error) {
	ctx, span := s.tracer.Start(ctx, "dataset.simulate")
	defer span.End()

	in := req.SimulationInput
	if req.Institution != "" {
		base, err := s.Baseline(req.Institution, req.Year)
		if err != nil {
			return domain.SimulationResult{}, err
		}
		in.BaseApplicants = base.Applicants
		in.BaseAdmitRate = base.AdmitRate.Value
		in.BaseYieldRate = base.YieldRate.Value
	}

	start := time.Now()
	result := dataprocessing.Simulate(in)
	s.metrics.RecordQuery(ctx, "simulate", time.Since(start), false)
	return result, nil
}

// Goal recommends funnel changes that reach an enrollment goal. A named
// institution supplies the baseline.
func (s *DatasetService) Goal(ctx context.Context, req api.GoalRequest) (domain.GoalPlan, error) {
	ctx, span := s.tracer.Start(ctx, "dataset.goal")
	defer span.End()

	in := domain.GoalInput{
		BaseApplicants: req.BaseApplicants,
		BaseAdmitRate:  req.BaseAdmitRate,
		BaseYieldRate:  req.BaseYieldRate,
		EnrollmentGoal: req.EnrollmentGoal,
	}
	if req.Institution != "" {
		base, err := s.Baseline(req.Institution, req.Year)
		if err != nil {
			return domain.GoalPlan{}, err
		}
		in.BaseApplicants = base.Applicants
		in.BaseAdmitRate = base.AdmitRate.Value
		in.BaseYieldRate = base.YieldRate.Value
	}
	if in.BaseApplicants <= 0 || in.BaseAdmitRate <= 0 || in.BaseYieldRate <= 0 {
		return domain.GoalPlan{}, fmt.Errorf("%w: applicants, admit rate and yield rate must be positive", ErrInvalidBaseline)
	}

	start := time.Now()
	plan := dataprocessing.GoalRecommendations(in)
	s.metrics.RecordQuery(ctx, "goal", time.Since(start), false)
	return plan, nil
}

// ExportCSV writes the filtered records as CSV and returns the row count.
func (s *DatasetService) ExportCSV(ctx context.Context, w io.Writer, f domain.Filter, bom bool) (int, error) {
	return s.export(ctx, "csv", f, func(records []domain.EnrollmentRecord) error {
		return exporter.WriteRecords(w, records, bom)
	})
}

// ExportXLSX writes the filtered records as an Excel workbook and returns the row count.
func (s *DatasetService) ExportXLSX(ctx context.Context, w io.Writer, f domain.Filter) (int, error) {
	return s.export(ctx, "xlsx", f, func(records []domain.EnrollmentRecord) error {
		return exporter.NewXLSXWriter().WriteRecords(w, records)
	})
}

func (s *DatasetService) export(ctx context.Context, format string, f domain.Filter, write func([]domain.EnrollmentRecord) error) (int, error) {
	ctx, span := s.tracer.Start(ctx, "dataset.export."+format)
	defer span.End()

	if err := s.validateFilter(f); err != nil {
		return 0, err
	}
	sel := s.table.Where(f)
	if sel.Empty() {
		return 0, fmt.Errorf("export: %w", ErrNoData)
	}
	records := sel.Records()
	if err := write(records); err != nil {
		return 0, fmt.Errorf("failed to write %s export: %w", format, err)
	}
	s.metrics.RecordExport(ctx, format, len(records))
	return len(records), nil
}

// Snapshot bundles the overview views for the live dashboard channel.
func (s *DatasetService) Snapshot(ctx context.Context, f domain.Filter, requestID string) (events.DashboardSnapshot, error) {
	summary, err := s.Summary(ctx, f)
	if err != nil {
		return events.DashboardSnapshot{}, err
	}
	funnel, err := s.Funnel(ctx, f)
	if err != nil {
		return events.DashboardSnapshot{}, err
	}
	trends, err := s.Trends(ctx, f)
	if err != nil {
		return events.DashboardSnapshot{}, err
	}
	return events.DashboardSnapshot{
		RequestID:   requestID,
		Filter:      f.Normalize(),
		Fingerprint: s.Fingerprint(),
		Summary:     summary,
		Funnel:      funnel,
		Trends:      trends,
	}, nil
}
