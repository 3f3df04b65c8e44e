// Package http implements the HTTP handlers of the enrollment analytics
// service. Handlers are a thin layer between the chi router and the
// services package: they parse and validate requests, call a service and
// render the result.
//
// # Handlers
//
//	DashboardHandler    /api/dashboard/*      overview views over a filter
//	InstitutionHandler  /api/institutions/*   profile, peers, similar, yoy
//	SimulatorHandler    /api/simulator/*      funnel projection and goal search
//	ExportHandler       /api/export/*         filtered records as CSV or XLSX
//	HealthHandler       /api/health/*         health, readiness, liveness
//	MetricsHandler      /metrics              Prometheus exposition
//
// # Filters
//
// Every filtered endpoint accepts the repeatable query parameters year,
// institution, state, region, type and size. Values of one parameter are
// OR-ed, parameters are AND-ed:
//
//	GET /api/dashboard/summary?year=2022&year=2023&state=CA
//
// # Caching
//
// The dataset is immutable for the life of the process, so view responses
// carry its fingerprint as ETag and honour If-None-Match with 304.
//
// # Error Handling
//
// Service sentinels are mapped to API errors and rendered as RFC 7807
// Problem Details by the shared ErrorHandler:
//
//	services.ErrInstitutionNotFound   404 INSTITUTION_NOT_FOUND
//	services.ErrNoData                404 NO_DATA
//	services.ErrInvalidBaseline       422 INVALID_BASELINE
//	services.ErrInvalid*              400 INVALID_PARAMETER
//
// # Testing
//
// Handlers are tested with httptest, against testify mocks of the service
// interfaces and against a DatasetService loaded from a fixture file.
package http
