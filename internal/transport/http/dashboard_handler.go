package http

import (
	"context"
	"log/slog"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "ipedspulse/internal/errors"
	mw "ipedspulse/internal/middleware"
	api "ipedspulse/pkg/contracts/api/v1"
	"ipedspulse/pkg/contracts/domain"
)

// ViewResponse wraps every dashboard view with the selection it was
// computed for.
type ViewResponse struct {
	Status      string        `json:"status"`
	Fingerprint string        `json:"fingerprint"`
	Filter      domain.Filter `json:"filter"`
	Data        interface{}   `json:"data"`
	Count       int           `json:"count,omitempty"`
}

// topMetrics are the leaderboard orderings accepted by GetTop.
var topMetrics = []string{
	string(domain.RankApplicants),
	string(domain.RankAdmissions),
	string(domain.RankEnrolled),
	string(domain.RankAdmitRate),
	string(domain.RankYieldRate),
}

// DashboardHandler serves the overview views over filtered records
type DashboardHandler struct {
	service      DashboardService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validator    *mw.ValidationMiddleware
	params       *mw.QueryParamValidator
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
		validator:    mw.NewValidationMiddleware(logger, errorHandler),
		params:       mw.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the dashboard routes
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/filters", h.GetFilters)
	r.Group(func(r chi.Router) {
		r.Use(h.FilterCtx)
		r.Get("/summary", h.GetSummary)
		r.Get("/funnel", h.GetFunnel)
		r.Get("/trends", h.GetTrends)
		r.Get("/demographics", h.GetDemographics)
		r.Get("/states", h.GetStates)
		r.Get("/growth", h.GetGrowth)
		r.Get("/top", h.GetTop)
		r.Get("/records", h.GetRecords)
	})
	return r
}

type filterCtxKey struct{}

// FilterCtx parses and validates the filter parameters once per request.
func (h *DashboardHandler) FilterCtx(next http.Handler) http.Handler {
	return filterCtx(h.validator, h.errorHandler, next)
}

func filterCtx(v *mw.ValidationMiddleware, eh *apierrors.ErrorHandler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, err := ParseFilter(r.URL.Query())
		if err != nil {
			eh.HandleError(w, r, err)
			return
		}
		if err := v.ValidateStruct(f); err != nil {
			eh.HandleError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), filterCtxKey{}, f)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// filterFrom returns the filter stored by FilterCtx.
func filterFrom(ctx context.Context) domain.Filter {
	f, _ := ctx.Value(filterCtxKey{}).(domain.Filter)
	return f
}

// GetFilters handles GET /api/dashboard/filters
func (h *DashboardHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	if checkNotModified(w, r, h.service) {
		return
	}
	render.JSON(w, r, h.service.Filters(r.Context()))
}

// GetSummary handles GET /api/dashboard/summary
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	serveView(h, w, r, "summary", h.service.Summary)
}

// GetFunnel handles GET /api/dashboard/funnel
func (h *DashboardHandler) GetFunnel(w http.ResponseWriter, r *http.Request) {
	serveView(h, w, r, "funnel", h.service.Funnel)
}

// GetTrends handles GET /api/dashboard/trends
func (h *DashboardHandler) GetTrends(w http.ResponseWriter, r *http.Request) {
	serveView(h, w, r, "trends", h.service.Trends)
}

// GetDemographics handles GET /api/dashboard/demographics
func (h *DashboardHandler) GetDemographics(w http.ResponseWriter, r *http.Request) {
	serveView(h, w, r, "demographics", h.service.Demographics)
}

// GetStates handles GET /api/dashboard/states
func (h *DashboardHandler) GetStates(w http.ResponseWriter, r *http.Request) {
	serveView(h, w, r, "states", h.service.States)
}

// GetGrowth handles GET /api/dashboard/growth
func (h *DashboardHandler) GetGrowth(w http.ResponseWriter, r *http.Request) {
	serveView(h, w, r, "growth", h.service.Growth)
}

// GetTop handles GET /api/dashboard/top?metric=&limit=&min_enrolled=
func (h *DashboardHandler) GetTop(w http.ResponseWriter, r *http.Request) {
	metric, ok := h.params.ValidateEnum(w, r, "metric", topMetrics, string(domain.RankEnrolled))
	if !ok {
		return
	}
	req := api.TopRequest{Metric: metric}
	limit, ok := h.params.ValidateInt(w, r, "limit", 1, 100, 10)
	if !ok {
		return
	}
	req.Limit = limit
	// -1 defers to the configured floor
	minEnrolled, ok := h.params.ValidateInt(w, r, "min_enrolled", -1, math.MaxInt32, -1)
	if !ok {
		return
	}
	if minEnrolled >= 0 {
		req.MinEnrolled = int64(minEnrolled)
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	serveView(h, w, r, "top", func(ctx context.Context, f domain.Filter) ([]domain.InstitutionAggregate, error) {
		return h.service.Top(ctx, f, req.Metric, req.Limit, int64(minEnrolled))
	})
}

// GetRecords handles GET /api/dashboard/records?limit=&offset=
func (h *DashboardHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.params.ValidateInt(w, r, "limit", 0, 5000, 0)
	if !ok {
		return
	}
	offset, ok := h.params.ValidateInt(w, r, "offset", 0, math.MaxInt32, 0)
	if !ok {
		return
	}

	f := filterFrom(r.Context())
	page, err := h.service.Records(r.Context(), f, limit, offset)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	if checkNotModified(w, r, h.service) {
		return
	}
	render.JSON(w, r, ViewResponse{
		Status:      "success",
		Fingerprint: h.service.Fingerprint(),
		Filter:      f,
		Data:        page,
		Count:       len(page.Records),
	})
}

// serveView runs one filtered view and renders it with the dataset ETag.
// The view is computed before If-None-Match is honoured so that invalid
// selections are reported rather than answered with 304.
func serveView[T any](h *DashboardHandler, w http.ResponseWriter, r *http.Request, view string, compute func(context.Context, domain.Filter) (T, error)) {
	ctx := r.Context()
	f := filterFrom(ctx)

	data, err := compute(ctx, f)
	if err != nil {
		h.logger.DebugContext(ctx, "view failed",
			slog.String("view", view),
			slog.String("filter", f.Key()),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(ctx)),
		)
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	if checkNotModified(w, r, h.service) {
		return
	}
	render.JSON(w, r, ViewResponse{
		Status:      "success",
		Fingerprint: h.service.Fingerprint(),
		Filter:      f,
		Data:        data,
	})
}
