package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "ipedspulse/internal/errors"
	mw "ipedspulse/internal/middleware"
	"ipedspulse/internal/services"
	api "ipedspulse/pkg/contracts/api/v1"
	"ipedspulse/pkg/contracts/domain"
)

var peerTypes = []string{
	string(domain.PeerNational),
	string(domain.PeerSameRegion),
	string(domain.PeerSameState),
	string(domain.PeerSameType),
	string(domain.PeerSameSize),
	string(domain.PeerTopApplicants),
	string(domain.PeerSimilar),
}

// InstitutionHandler serves the single-institution views
type InstitutionHandler struct {
	service      InstitutionService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validator    *mw.ValidationMiddleware
	params       *mw.QueryParamValidator
}

// NewInstitutionHandler creates a new institution handler
func NewInstitutionHandler(service InstitutionService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *InstitutionHandler {
	return &InstitutionHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "institution_handler")),
		errorHandler: errorHandler,
		validator:    mw.NewValidationMiddleware(logger, errorHandler),
		params:       mw.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the institution routes
func (h *InstitutionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/{name}", func(r chi.Router) {
		r.Use(h.InstitutionCtx)
		r.Get("/profile", h.GetProfile)
		r.Get("/peers", h.GetPeers)
		r.Get("/similar", h.GetSimilar)
		r.Get("/yoy", h.GetYearOverYear)
	})
	return r
}

type institutionCtxKey struct{}

// InstitutionCtx validates the {name} and year parameters.
func (h *InstitutionHandler) InstitutionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, err := url.PathUnescape(chi.URLParam(r, "name"))
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("name", "institution name is not valid path encoding"))
			return
		}
		year, ok := h.params.ValidateInt(w, r, "year", 0, 2100, 0)
		if !ok {
			return
		}
		req := api.InstitutionRequest{Name: name, Year: year}
		if err := h.validator.ValidateStruct(req); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), institutionCtxKey{}, req)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func institutionFrom(ctx context.Context) api.InstitutionRequest {
	req, _ := ctx.Value(institutionCtxKey{}).(api.InstitutionRequest)
	return req
}

// GetProfile handles GET /api/institutions/{name}/profile?year=
func (h *InstitutionHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	req := institutionFrom(r.Context())
	profile, err := h.service.Profile(r.Context(), req.Name, req.Year)
	if err != nil {
		h.fail(w, r, req, err)
		return
	}
	if checkNotModified(w, r, h.service) {
		return
	}
	render.JSON(w, r, profile)
}

// GetPeers handles GET /api/institutions/{name}/peers?year=&peer_type=&n=
func (h *InstitutionHandler) GetPeers(w http.ResponseWriter, r *http.Request) {
	n, ok := h.params.ValidateInt(w, r, "n", 1, 200, 10)
	if !ok {
		return
	}
	peerType, ok := h.params.ValidateEnum(w, r, "peer_type", peerTypes, "")
	if !ok {
		return
	}
	req := api.PeerRequest{
		InstitutionRequest: institutionFrom(r.Context()),
		PeerType:           peerType,
		N:                  n,
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	peers, err := h.service.Peers(r.Context(), req.Name, req.Year, req.PeerType, req.N)
	if err != nil {
		h.fail(w, r, req.InstitutionRequest, err)
		return
	}
	if checkNotModified(w, r, h.service) {
		return
	}
	render.JSON(w, r, peers)
}

// GetSimilar handles GET /api/institutions/{name}/similar?year=&k=
func (h *InstitutionHandler) GetSimilar(w http.ResponseWriter, r *http.Request) {
	k, ok := h.params.ValidateInt(w, r, "k", 1, 100, 5)
	if !ok {
		return
	}
	req := institutionFrom(r.Context())

	similar, err := h.service.Similar(r.Context(), req.Name, req.Year, k)
	if err != nil {
		h.fail(w, r, req, err)
		return
	}
	if checkNotModified(w, r, h.service) {
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"institution": req.Name,
		"year":        req.Year,
		"k":           k,
		"similar":     similar,
	})
}

// GetYearOverYear handles GET /api/institutions/{name}/yoy?year=
func (h *InstitutionHandler) GetYearOverYear(w http.ResponseWriter, r *http.Request) {
	req := institutionFrom(r.Context())
	change, err := h.service.Change(r.Context(), req.Name, req.Year)
	if err != nil {
		h.fail(w, r, req, err)
		return
	}
	if checkNotModified(w, r, h.service) {
		return
	}
	render.JSON(w, r, change)
}

func (h *InstitutionHandler) fail(w http.ResponseWriter, r *http.Request, req api.InstitutionRequest, err error) {
	h.logger.DebugContext(r.Context(), "institution view failed",
		slog.String("institution", req.Name),
		slog.Int("year", req.Year),
		slog.String("error", err.Error()),
	)
	if errors.Is(err, services.ErrInstitutionNotFound) {
		h.errorHandler.HandleError(w, r, apierrors.InstitutionNotFoundError(req.Name))
		return
	}
	h.errorHandler.HandleError(w, r, mapServiceError(err))
}
