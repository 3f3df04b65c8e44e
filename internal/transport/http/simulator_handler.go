package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "ipedspulse/internal/errors"
	mw "ipedspulse/internal/middleware"
	api "ipedspulse/pkg/contracts/api/v1"
)

// SimulatorHandler serves the what-if projections
type SimulatorHandler struct {
	service      SimulatorService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validator    *mw.ValidationMiddleware
}

// NewSimulatorHandler creates a new simulator handler
func NewSimulatorHandler(service SimulatorService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SimulatorHandler {
	return &SimulatorHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "simulator_handler")),
		errorHandler: errorHandler,
		validator:    mw.NewValidationMiddleware(logger, errorHandler),
	}
}

// Routes returns the simulator routes
func (h *SimulatorHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(mw.ContentTypeValidator("application/json"))
	r.Use(h.validator.ValidateRequest)

	r.Post("/project", h.Project)
	r.Post("/goal", h.Goal)
	return r
}

// Project handles POST /api/simulator/project
func (h *SimulatorHandler) Project(w http.ResponseWriter, r *http.Request) {
	var req api.SimulationRequest
	if err := h.validator.DecodeAndValidate(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.Simulate(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	h.logger.DebugContext(r.Context(), "simulation projected",
		slog.String("institution", req.Institution),
		slog.Float64("delta_enrolled", result.DeltaEnrolled),
	)
	render.JSON(w, r, result)
}

// Goal handles POST /api/simulator/goal
func (h *SimulatorHandler) Goal(w http.ResponseWriter, r *http.Request) {
	var req api.GoalRequest
	if err := h.validator.DecodeAndValidate(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	plan, err := h.service.Goal(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, plan)
}
