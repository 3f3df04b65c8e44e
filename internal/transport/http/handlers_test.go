package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ipedspulse/internal/config"
	apierrors "ipedspulse/internal/errors"
	"ipedspulse/internal/exporter"
	mw "ipedspulse/internal/middleware"
	"ipedspulse/internal/services"
	"ipedspulse/internal/shared/testutil"
)

type testServer struct {
	router  chi.Router
	dataset *services.DatasetService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	path := testutil.WriteFile(t, "wide.csv", testutil.StandardCSV())
	cfg := config.Default().Dataset
	cfg.Path = path

	logger := testutil.DiscardLogger()
	ds, err := services.NewDatasetService(context.Background(), path, cfg, logger, nil, nil)
	require.NoError(t, err)

	eh := apierrors.NewErrorHandler(logger, false)
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.NotFound(eh.NotFound)
	r.MethodNotAllowed(eh.MethodNotAllowed)
	r.Mount("/api/dashboard", NewDashboardHandler(ds, logger, eh).Routes())
	r.Mount("/api/institutions", NewInstitutionHandler(ds, logger, eh).Routes())
	r.Mount("/api/simulator", NewSimulatorHandler(ds, logger, eh).Routes())
	r.Mount("/api/export", NewExportHandler(ds, logger, eh).Routes())

	health := NewHealthHandler(services.NewHealthService("test", ds, nil, logger), logger)
	r.Mount("/api/health", health.Routes())
	r.Get("/api/version", health.Version)
	r.Handle("/metrics", NewMetricsHandler(nil))

	return &testServer{router: r, dataset: ds}
}

func (s *testServer) do(t *testing.T, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestDashboardHandler_Summary(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/dashboard/summary?year=2022", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `"`+s.dataset.Fingerprint()+`"`, rec.Header().Get("ETag"))

	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(4500), data["total_applicants"])
	assert.Equal(t, float64(2600), data["total_admissions"])
	assert.Equal(t, float64(850), data["total_enrolled"])
	assert.Equal(t, float64(3), data["institution_count"])
	filter := body["filter"].(map[string]interface{})
	assert.Equal(t, []interface{}{float64(2022)}, filter["years"])
}

func TestDashboardHandler_NotModified(t *testing.T) {
	s := newTestServer(t)
	tag := `"` + s.dataset.Fingerprint() + `"`

	rec := s.do(t, http.MethodGet, "/api/dashboard/trends", "", map[string]string{"If-None-Match": tag})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/dashboard/trends", "", map[string]string{"If-None-Match": `"stale"`})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/dashboard/summary?year=1999", "", map[string]string{"If-None-Match": tag})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "invalid filter wins over a matching ETag")

	rec = s.do(t, http.MethodGet, "/api/dashboard/records?institution=Nowhere", "", map[string]string{"If-None-Match": tag})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/institutions/Nowhere/profile", "", map[string]string{"If-None-Match": tag})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboardHandler_Views(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCode   string
	}{
		{name: "funnel", target: "/api/dashboard/funnel", wantStatus: http.StatusOK},
		{name: "trends", target: "/api/dashboard/trends?state=CA,TX", wantStatus: http.StatusOK},
		{name: "demographics", target: "/api/dashboard/demographics", wantStatus: http.StatusOK},
		{name: "states", target: "/api/dashboard/states?type=Public", wantStatus: http.StatusOK},
		{name: "growth", target: "/api/dashboard/growth", wantStatus: http.StatusOK},
		{name: "year not in dataset", target: "/api/dashboard/summary?year=1999", wantStatus: http.StatusBadRequest, wantCode: "INVALID_PARAMETER"},
		{name: "year not a number", target: "/api/dashboard/summary?year=abc", wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "year out of range", target: "/api/dashboard/summary?year=3000", wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "empty selection", target: "/api/dashboard/summary?institution=Nowhere", wantStatus: http.StatusNotFound, wantCode: "NO_DATA"},
		{name: "unknown route", target: "/api/dashboard/nothing", wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.target, "", nil)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeBody(t, rec)["error_code"])
			}
		})
	}
}

func TestDashboardHandler_Top(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/dashboard/top?metric=enrolled&limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeBody(t, rec)["data"].([]interface{})
	require.Len(t, data, 2)
	first := data[0].(map[string]interface{})
	assert.Equal(t, "Gamma Institute", first["institution"])
	assert.Equal(t, float64(1), first["rank"])

	for _, metric := range []string{"conversion_rate", "bogus"} {
		rec = s.do(t, http.MethodGet, "/api/dashboard/top?metric="+metric, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, metric)
		assert.Equal(t, "VALIDATION_FAILED", decodeBody(t, rec)["error_code"], metric)
	}

	rec = s.do(t, http.MethodGet, "/api/dashboard/top?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardHandler_Records(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/dashboard/records?limit=3&offset=0", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(3), body["count"])
	page := body["data"].(map[string]interface{})
	assert.Equal(t, float64(8), page["total"])

	rec = s.do(t, http.MethodGet, "/api/dashboard/records?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardHandler_Filters(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/dashboard/filters", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, []interface{}{float64(2022), float64(2023), float64(2024)}, body["years"])
	assert.Len(t, body["institutions"], 3)
}

func TestInstitutionHandler(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCode   string
	}{
		{name: "profile latest", target: "/api/institutions/Alpha%20U/profile", wantStatus: http.StatusOK},
		{name: "profile year", target: "/api/institutions/Alpha%20U/profile?year=2022", wantStatus: http.StatusOK},
		{name: "unknown institution", target: "/api/institutions/Nowhere/profile", wantStatus: http.StatusNotFound, wantCode: "INSTITUTION_NOT_FOUND"},
		{name: "missing year", target: "/api/institutions/Beta%20College/profile?year=2024", wantStatus: http.StatusNotFound, wantCode: "NO_DATA"},
		{name: "peers", target: "/api/institutions/Alpha%20U/peers?peer_type=same_type&n=5", wantStatus: http.StatusOK},
		{name: "peers bad type", target: "/api/institutions/Alpha%20U/peers?peer_type=rivals", wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "similar", target: "/api/institutions/Alpha%20U/similar?k=1", wantStatus: http.StatusOK},
		{name: "similar k too large", target: "/api/institutions/Alpha%20U/similar?k=1000", wantStatus: http.StatusBadRequest},
		{name: "yoy", target: "/api/institutions/Alpha%20U/yoy?year=2023", wantStatus: http.StatusOK},
		{name: "yoy first year", target: "/api/institutions/Alpha%20U/yoy?year=2022", wantStatus: http.StatusNotFound, wantCode: "NO_DATA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.target, "", nil)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeBody(t, rec)["error_code"])
			}
		})
	}
}

func TestInstitutionHandler_UnknownNameInDetails(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/institutions/Nowhere%20State/peers", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, apierrors.TypeInstitutionNotFound, body["type"])
	assert.Equal(t, `institution "Nowhere State" not found`, body["detail"])
	assert.Equal(t, "Nowhere State", body["details"])
}

func TestInstitutionHandler_YearOverYear(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/institutions/Alpha%20U/yoy?year=2023", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Alpha U", body["institution"])
	decomposition := body["decomposition"].(map[string]interface{})
	assert.InDelta(t, 50, decomposition["delta_enrolled"], 1e-9)
}

func TestSimulatorHandler(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
	}{
		{name: "project", target: "/api/simulator/project", body: `{"base_applicants":1000,"base_admit_rate":0.7,"base_yield_rate":0.2,"applicants_change_pct":10}`, wantStatus: http.StatusOK},
		{name: "project from institution", target: "/api/simulator/project", body: `{"institution":"Alpha U","year":2022,"admit_rate_change":0.05}`, wantStatus: http.StatusOK},
		{name: "project undefined baseline", target: "/api/simulator/project", body: `{"institution":"Beta College","year":2023}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "project rate out of range", target: "/api/simulator/project", body: `{"base_applicants":1000,"base_admit_rate":1.5,"base_yield_rate":0.2}`, wantStatus: http.StatusBadRequest},
		{name: "project malformed", target: "/api/simulator/project", body: `{"base_applicants":`, wantStatus: http.StatusBadRequest},
		{name: "goal", target: "/api/simulator/goal", body: `{"base_applicants":1000,"base_admit_rate":0.7,"base_yield_rate":0.2,"enrollment_goal":160}`, wantStatus: http.StatusOK},
		{name: "goal unknown institution", target: "/api/simulator/goal", body: `{"institution":"Nowhere","enrollment_goal":160}`, wantStatus: http.StatusNotFound},
		{name: "goal missing target", target: "/api/simulator/goal", body: `{"base_applicants":1000}`, wantStatus: http.StatusBadRequest},
		{name: "goal zero baseline", target: "/api/simulator/goal", body: `{"enrollment_goal":160}`, wantStatus: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.target, tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/simulator/project", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing content type")

	rec = s.do(t, http.MethodGet, "/api/simulator/project", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestExportHandler_CSV(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/export/records.csv?year=2022", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, contentTypeCSV, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "enrollment_records_")
	assert.Equal(t, "3", rec.Header().Get("X-Record-Count"))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, exporter.RecordHeaders, rows[0])

	rec = s.do(t, http.MethodGet, "/api/export/records.csv?bom=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\xEF\xBB\xBF")))

	rec = s.do(t, http.MethodGet, "/api/export/records.csv?institution=Nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportHandler_XLSX(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/export/records.xlsx?state=CA", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, contentTypeXLSX, rec.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(exporter.RecordsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 4, "header plus three Alpha U years")
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)

	for _, target := range []string{"/api/health", "/api/health/ready", "/api/health/live", "/api/version"} {
		rec := s.do(t, http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, target)
	}

	rec := s.do(t, http.MethodGet, "/api/version", "", nil)
	assert.Equal(t, s.dataset.Fingerprint(), decodeBody(t, rec)["dataset_fingerprint"])

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
