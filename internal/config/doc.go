// Package config provides centralized configuration management for the
// enrollment pulse service and CLI.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file (config.yaml, configs/config.yaml or IPEDS_CONFIG_FILE)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables use the IPEDS_ prefix and the section name:
//
//	IPEDS_SERVER_PORT=8080
//	IPEDS_DATASET_FILE=data/ipeds_enrollment_wide.csv
//	IPEDS_DATASET_YEARS=2022,2023,2024
//	IPEDS_LOGGING_LEVEL=debug
//	IPEDS_TELEMETRY_TRACE_EXPORTER=stdout
//
// # Path Management
//
// Paths are resolved relative to the executable directory so the server
// behaves the same regardless of the working directory:
//
//	paths := cfg.ResolvedPaths()
//	out := paths.GetExportPath("records.xlsx")
//
// # Validation
//
// Load rejects invalid ports, non-positive timeouts, empty or duplicate
// year lists, out of range tolerances and unknown exporters.
package config
