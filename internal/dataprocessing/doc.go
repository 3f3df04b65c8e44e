// Package dataprocessing turns the wide IPEDS admissions file into long
// institution-year records and computes every analytical view served by the API.
//
// # Architecture
//
// The package is organized into three main components:
//
// 1. Parser: reads CSV or XLSX sources into raw rows keyed by column name
// 2. Reshaper: validates each institution-year, drops bad ones and derives rates
// 3. Analytics: pure functions over []domain.EnrollmentRecord (summaries,
// trends, peers, rankings, insights, simulation)
//
// # Usage
//
//	parser := dataprocessing.NewParser(logger, "")
//	table, err := parser.ParseFile(ctx, "data/ipeds_enrollment_wide.csv")
//	if err != nil {
//	    return err
//	}
//
//	reshaper := dataprocessing.NewReshaper(logger, dataprocessing.DefaultReshapeConfig())
//	records, stats, err := reshaper.Reshape(ctx, table.Records)
//
//	summary := dataprocessing.Summarize(records)
//
// # Rates
//
// Admit and yield rates are fractions. A rate whose denominator is zero is
// undefined (domain.UndefinedRate); undefined values are skipped by means,
// percentiles and rankings rather than treated as zero.
//
// All analytics functions are safe for concurrent use: they never mutate
// their input slice.
package dataprocessing
