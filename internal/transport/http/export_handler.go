package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "ipedspulse/internal/errors"
	mw "ipedspulse/internal/middleware"
	"ipedspulse/pkg/contracts/domain"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportHandler serves filtered long-format records as downloads
type ExportHandler struct {
	service      ExportService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validator    *mw.ValidationMiddleware
	params       *mw.QueryParamValidator
}

// NewExportHandler creates a new export handler
func NewExportHandler(service ExportService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ExportHandler {
	return &ExportHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "export_handler")),
		errorHandler: errorHandler,
		validator:    mw.NewValidationMiddleware(logger, errorHandler),
		params:       mw.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the export routes
func (h *ExportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return filterCtx(h.validator, h.errorHandler, next)
	})

	r.Get("/records.csv", h.ExportCSV)
	r.Get("/records.xlsx", h.ExportXLSX)
	return r
}

// ExportCSV handles GET /api/export/records.csv?bom=
func (h *ExportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	bom, ok := h.params.ValidateBool(w, r, "bom", false)
	if !ok {
		return
	}
	h.serve(w, r, "csv", contentTypeCSV, func(ctx context.Context, buf io.Writer, f domain.Filter) (int, error) {
		return h.service.ExportCSV(ctx, buf, f, bom)
	})
}

// ExportXLSX handles GET /api/export/records.xlsx
func (h *ExportHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "xlsx", contentTypeXLSX, h.service.ExportXLSX)
}

// serve renders the export into memory first so a failure still yields a
// problem response instead of a truncated file.
func (h *ExportHandler) serve(w http.ResponseWriter, r *http.Request, format, contentType string, write func(context.Context, io.Writer, domain.Filter) (int, error)) {
	ctx := r.Context()
	f := filterFrom(ctx)

	var buf bytes.Buffer
	rows, err := write(ctx, &buf, f)
	if err != nil {
		mapped := mapServiceError(err)
		var apiErr *apierrors.APIError
		if !errors.As(mapped, &apiErr) && ctx.Err() == nil {
			mapped = apierrors.NewWithDetails(http.StatusInternalServerError, "EXPORT_FAILED", apierrors.ErrExportFailed.Message, err.Error())
		}
		h.errorHandler.HandleError(w, r, mapped)
		return
	}

	h.logger.InfoContext(ctx, "records exported",
		slog.String("format", format),
		slog.Int("rows", rows),
		slog.String("filter", f.Key()),
	)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(h.service.Fingerprint(), format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Record-Count", strconv.Itoa(rows))
	if fp := h.service.Fingerprint(); fp != "" {
		w.Header().Set("ETag", etag(fp))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(ctx, "export write interrupted", slog.String("error", err.Error()))
	}
}

func exportFilename(fingerprint, ext string) string {
	if len(fingerprint) > 8 {
		fingerprint = fingerprint[:8]
	}
	if fingerprint == "" {
		return "enrollment_records." + ext
	}
	return "enrollment_records_" + fingerprint + "." + ext
}
