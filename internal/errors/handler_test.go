package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipedspulse/internal/shared/testutil"
)

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantCode   string
	}{
		{
			name:       "context deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "wrapped cancellation",
			err:        fmt.Errorf("computing view: %w", context.Canceled),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "institution not found",
			err:        InstitutionNotFoundError("Nowhere U"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeInstitutionNotFound,
			wantCode:   "INSTITUTION_NOT_FOUND",
		},
		{
			name:       "empty selection",
			err:        fmt.Errorf("summary: %w", ErrNoData),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNoData,
			wantCode:   "NO_DATA",
		},
		{
			name:       "validation app error",
			err:        NewAppValidationError("year must be one of 2022, 2023, 2024"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "dataset app error",
			err:        NewDatasetError("dataset not loaded", nil),
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeDatasetUnavailable,
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodGet, "/api/dashboard/summary", nil)
			w := httptest.NewRecorder()
			h.HandleError(w, req, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/dashboard/summary", body["instance"])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error_code"])
			}
			assert.NotContains(t, body, "stack")
		})
	}
}

func TestErrorHandler_NilErrorWritesNothing(t *testing.T) {
	h := NewErrorHandler(testutil.DiscardLogger(), false)
	w := httptest.NewRecorder()
	h.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, 0, w.Body.Len())
}

func TestErrorHandler_LogsServerErrorsAtErrorLevel(t *testing.T) {
	logger, capture := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)

	w := httptest.NewRecorder()
	h.HandleError(w, httptest.NewRequest(http.MethodGet, "/x", nil), fmt.Errorf("disk on fire"))

	rec, ok := capture.Find("request failed")
	require.True(t, ok)
	assert.Equal(t, "disk on fire", rec.Attrs["error"])
	assert.Equal(t, "error_handler", rec.Attrs["component"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "stack")
}

func TestRecoveryMiddleware(t *testing.T) {
	h := NewErrorHandler(testutil.DiscardLogger(), false)
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("bad state") })

	w := httptest.NewRecorder()
	RecoveryMiddleware(h)(panicky).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), TypeInternal)
}

func TestProblemDetailsMarshal(t *testing.T) {
	pd := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found", "", "/a").
		WithExtension("trace_id", "abc").
		WithExtension("status", 999)

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "abc", body["trace_id"])
	assert.Equal(t, float64(http.StatusNotFound), body["status"], "standard fields win over extensions")
	assert.NotContains(t, body, "detail")
}

func TestAppError(t *testing.T) {
	cause := fmt.Errorf("open data.csv: no such file")
	err := NewDatasetError("cannot load dataset", cause).WithContext("path", "data.csv")

	assert.Equal(t, "[DATASET] cannot load dataset: open data.csv: no such file", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsType(fmt.Errorf("startup: %w", err), ErrTypeDataset))
	assert.False(t, IsType(err, ErrTypeParsing))
	assert.Equal(t, "data.csv", err.Context["path"])
}
