// Package app wires the IPEDS enrollment dashboard together and manages
// its lifecycle.
//
// # Initialization Flow
//
// NewApplication performs, in order:
//
//	1. Load configuration (defaults, YAML file, IPEDS_* environment)
//	2. Initialize the slog logger and resolve the data, export and log directories
//	3. Initialize OpenTelemetry tracing and the Prometheus metric exporter
//	4. Load and reshape the wide enrollment file into the in-memory dataset
//	5. Create the websocket hub and the health service
//	6. Build the chi router and the HTTP server
//
// A dataset that cannot be loaded aborts startup; the server never runs
// without data.
//
// # Usage
//
//	a, err := app.NewApplication(ctx, nil, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := a.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Run returns after SIGINT, SIGTERM or cancellation of ctx, once HTTP
// requests are drained, websocket clients are closed and telemetry is
// flushed.
package app
