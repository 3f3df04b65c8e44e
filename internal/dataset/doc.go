// Package dataset holds the immutable long-format enrollment table and the
// memoisation layer used by the query services.
//
// A Table is built once after reshaping and never modified. Every filter
// method returns a new Table over a subset of the same records, so filters
// chain and commute:
//
//	t.ByYear(2023).ByInstitutions("Alpha U")
//	t.ByInstitutions("Alpha U").ByYear(2023) // same records, same order
//
// QueryCache memoises view results keyed by the canonical filter tuple and
// collapses concurrent computations of the same key.
package dataset
