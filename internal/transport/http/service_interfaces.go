package http

import (
	"context"
	"io"

	"ipedspulse/internal/services"
	api "ipedspulse/pkg/contracts/api/v1"
	"ipedspulse/pkg/contracts/domain"
)

// Versioned is implemented by services whose responses depend on one
// immutable dataset; the fingerprint becomes the response ETag.
type Versioned interface {
	Fingerprint() string
}

// DashboardService defines the overview views
type DashboardService interface {
	Versioned
	Filters(ctx context.Context) domain.FilterOptions
	Summary(ctx context.Context, f domain.Filter) (domain.Summary, error)
	Funnel(ctx context.Context, f domain.Filter) (domain.Funnel, error)
	Trends(ctx context.Context, f domain.Filter) ([]domain.YearTrend, error)
	Demographics(ctx context.Context, f domain.Filter) ([]domain.DemographicYear, error)
	States(ctx context.Context, f domain.Filter) ([]domain.StateSummary, error)
	Growth(ctx context.Context, f domain.Filter) ([]domain.Growth, error)
	Top(ctx context.Context, f domain.Filter, metric string, limit int, minEnrolled int64) ([]domain.InstitutionAggregate, error)
	Records(ctx context.Context, f domain.Filter, limit, offset int) (services.RecordPage, error)
}

// InstitutionService defines the single-institution views
type InstitutionService interface {
	Versioned
	Profile(ctx context.Context, name string, year int) (domain.InstitutionProfile, error)
	Peers(ctx context.Context, name string, year int, peerType string, n int) (domain.PeerComparison, error)
	Similar(ctx context.Context, name string, year, k int) ([]domain.SimilarInstitution, error)
	Change(ctx context.Context, name string, year int) (domain.InstitutionChange, error)
}

// SimulatorService defines the what-if projections
type SimulatorService interface {
	Simulate(ctx context.Context, req api.SimulationRequest) (domain.SimulationResult, error)
	Goal(ctx context.Context, req api.GoalRequest) (domain.GoalPlan, error)
}

// ExportService defines the filtered record downloads
type ExportService interface {
	Versioned
	ExportCSV(ctx context.Context, w io.Writer, f domain.Filter, bom bool) (int, error)
	ExportXLSX(ctx context.Context, w io.Writer, f domain.Filter) (int, error)
}

var (
	_ DashboardService   = (*services.DatasetService)(nil)
	_ InstitutionService = (*services.DatasetService)(nil)
	_ SimulatorService   = (*services.DatasetService)(nil)
	_ ExportService      = (*services.DatasetService)(nil)
)
