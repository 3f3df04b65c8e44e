// Package services implements the business logic layer of the enrollment
// analytics service. It sits between the transports (HTTP handlers and the
// dashboard WebSocket) and the pure computations in dataprocessing.
//
// # Architecture
//
// Services follow these principles:
//
//	1. Context propagation for cancellation and tracing
//	2. Dependency injection of logger, tracer and metrics
//	3. Sentinel errors that handlers translate to HTTP semantics
//	4. Immutable state after construction
//
// # Available Services
//
//	- DatasetService: loads the wide file once, owns the long-format table,
//	  its fingerprint and the query cache, and computes every dashboard view
//	- HealthService: health, readiness, liveness and version reporting
//
// # Loading
//
// NewDatasetService parses and reshapes the configured file while hashing it
// concurrently. A missing or unreadable file, a file without a header row or
// without an institution name column is fatal; individual bad
// institution-years are dropped and reported through DatasetInfo.
//
// # Views
//
// Every view takes a domain.Filter. Results are memoised by view name, the
// canonical filter key and the view parameters:
//
//	summary, err := ds.Summary(ctx, domain.Filter{Years: []int{2024}})
//	if errors.Is(err, services.ErrNoData) {
//	    // the filter selects nothing
//	}
//
// Cached values are shared between callers and must be treated as read-only.
//
// # Error Handling
//
//	- ErrNoData: the selection is empty
//	- ErrInstitutionNotFound: unknown institution name
//	- ErrInvalidFilter, ErrInvalidMetric, ErrInvalidPeerType, ErrInvalidBaseline: bad input
package services
