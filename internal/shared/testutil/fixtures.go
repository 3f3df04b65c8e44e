package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// YearCells holds the raw cells of one institution-year in a wide file.
// An empty string is written as an empty cell.
type YearCells struct {
	Applicants string
	Admissions string
	Enrolled   string
	Pct        [5]string
}

// Counts is shorthand for a complete year with a fixed demographic mix.
func Counts(applicants, admissions, enrolled int) YearCells {
	return YearCells{
		Applicants: fmt.Sprint(applicants),
		Admissions: fmt.Sprint(admissions),
		Enrolled:   fmt.Sprint(enrolled),
		Pct:        [5]string{"30", "40", "10", "15", "5"},
	}
}

// WideInstitution is one row of a wide fixture file.
type WideInstitution struct {
	Name  string
	State string
	Type  string
	Years map[int]YearCells
}

var demographicColumns = []string{"pct_hispanic", "pct_white", "pct_black", "pct_asian", "pct_other"}

// WideCSV renders institutions as a wide-format CSV document.
func WideCSV(years []int, insts ...WideInstitution) string {
	header := []string{"name", "state", "type"}
	for _, y := range years {
		header = append(header,
			fmt.Sprintf("applicants_%d", y),
			fmt.Sprintf("admissions_%d", y),
			fmt.Sprintf("enrolled_%d", y))
		for _, c := range demographicColumns {
			header = append(header, fmt.Sprintf("%s_%d", c, y))
		}
	}

	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	b.WriteString("\n")
	for _, inst := range insts {
		row := []string{quote(inst.Name), inst.State, inst.Type}
		for _, y := range years {
			cells := inst.Years[y]
			row = append(row, cells.Applicants, cells.Admissions, cells.Enrolled)
			row = append(row, cells.Pct[:]...)
		}
		b.WriteString(strings.Join(row, ","))
		b.WriteString("\n")
	}
	return b.String()
}

// StandardInstitutions is the fixture shared by package tests:
//
//	Alpha U          complete for every year, 2022 admit 0.70 / yield 150/700
//	Beta College     2023 has zero applicants and admissions, 2024 lacks admissions
//	Gamma Institute  complete for every year
func StandardInstitutions() []WideInstitution {
	beta2024 := Counts(600, 0, 90)
	beta2024.Admissions = ""
	return []WideInstitution{
		{
			Name: "Alpha U", State: "CA", Type: "Public",
			Years: map[int]YearCells{
				2022: Counts(1000, 700, 150),
				2023: Counts(1200, 800, 200),
				2024: Counts(1100, 750, 180),
			},
		},
		{
			Name: "Beta College", State: "NY", Type: "Private",
			Years: map[int]YearCells{
				2022: Counts(500, 400, 100),
				2023: Counts(0, 0, 0),
				2024: beta2024,
			},
		},
		{
			Name: "Gamma Institute", State: "TX", Type: "Public",
			Years: map[int]YearCells{
				2022: Counts(3000, 1500, 600),
				2023: Counts(3300, 1600, 560),
				2024: Counts(3600, 1700, 640),
			},
		},
	}
}

// StandardCSV renders StandardInstitutions for 2022-2024.
func StandardCSV() string {
	return WideCSV([]int{2022, 2023, 2024}, StandardInstitutions()...)
}

// WriteFile writes content under t.TempDir and returns its path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

func quote(s string) string {
	if strings.ContainsAny(s, ",\"") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
