// Package shared holds code used by several internal packages that belongs
// to none of them.
//
// The testutil subpackage builds wide-format enrollment fixtures
// (StandardCSV, WideCSV) and captures slog output for assertions. It is
// imported only from _test.go files.
package shared
