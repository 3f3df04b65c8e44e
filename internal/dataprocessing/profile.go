package dataprocessing

import (
	"errors"
	"fmt"
	"sort"

	"ipedspulse/pkg/contracts/domain"
)

var (
	// ErrInstitutionNotFound is returned when no record carries the requested name.
	ErrInstitutionNotFound = errors.New("institution not found")
	// ErrYearNotFound is returned when the institution has no record in the requested year.
	ErrYearNotFound = errors.New("no record for year")
)

// IntervalConfidence is the confidence level of profile rate intervals.
const IntervalConfidence = 0.95

// BuildProfile assembles the single-institution view. year 0 selects the
// institution's latest year. Insights compare against national peers.
func BuildProfile(records []domain.EnrollmentRecord, name string, year int) (domain.InstitutionProfile, error) {
	history, err := institutionHistory(records, name)
	if err != nil {
		return domain.InstitutionProfile{}, err
	}

	if year == 0 {
		year = history[len(history)-1].Year
	}
	latest, ok := recordInYear(history, year)
	if !ok {
		return domain.InstitutionProfile{}, fmt.Errorf("%w: %q in %d", ErrYearNotFound, name, year)
	}

	profile := domain.InstitutionProfile{
		Identity:      latest.Identity,
		Year:          year,
		Latest:        latest,
		History:       history,
		AdmitInterval: WilsonInterval(latest.Admissions, latest.Applicants, IntervalConfidence),
		YieldInterval: WilsonInterval(latest.Enrolled, latest.Admissions, IntervalConfidence),
	}
	profile.Rankings, _ = Rankings(records, name, year)

	ic := InsightContext{Peers: make(map[domain.RankMetric]domain.Percentiles, 3)}
	national := recordsForYear(records, year)
	for _, m := range []domain.RankMetric{domain.RankYieldRate, domain.RankAdmitRate, domain.RankDiversity} {
		if values := metricValues(national, m); len(values) > 0 {
			ic.Peers[m] = Percentiles(values)
		}
	}

	if change, ok := changeFromHistory(history, year); ok {
		profile.YearOverYear = &change.YearOverYear
		profile.Decomposition = change.Decomposition
		ic.YoY = profile.YearOverYear
		ic.Decomposition = change.Decomposition
	}

	profile.Insights = GenerateInsights(latest, ic)
	return profile, nil
}

// Change compares an institution's year with the year before it. year 0
// selects the latest year. The decomposition is nil unless both years have
// defined admit and yield rates.
func Change(records []domain.EnrollmentRecord, name string, year int) (domain.InstitutionChange, error) {
	history, err := institutionHistory(records, name)
	if err != nil {
		return domain.InstitutionChange{}, err
	}
	if year == 0 {
		year = history[len(history)-1].Year
	}
	if _, ok := recordInYear(history, year); !ok {
		return domain.InstitutionChange{}, fmt.Errorf("%w: %q in %d", ErrYearNotFound, name, year)
	}
	change, ok := changeFromHistory(history, year)
	if !ok {
		return domain.InstitutionChange{}, fmt.Errorf("%w: %q in %d", ErrYearNotFound, name, year-1)
	}
	return change, nil
}

// changeFromHistory is false when the previous year is missing.
func changeFromHistory(history []domain.EnrollmentRecord, year int) (domain.InstitutionChange, bool) {
	cur, ok := recordInYear(history, year)
	if !ok {
		return domain.InstitutionChange{}, false
	}
	prev, ok := recordInYear(history, year-1)
	if !ok {
		return domain.InstitutionChange{}, false
	}
	yoy, _ := YearOverYear([]domain.EnrollmentRecord{prev, cur}, year)
	change := domain.InstitutionChange{
		Institution:  cur.Name,
		Year:         year,
		YearOverYear: yoy,
	}
	if prev.AdmitRate.Valid && prev.YieldRate.Valid && cur.AdmitRate.Valid && cur.YieldRate.Valid {
		d := Decompose(
			prev.Applicants, prev.AdmitRate.Value, prev.YieldRate.Value,
			cur.Applicants, cur.AdmitRate.Value, cur.YieldRate.Value,
		)
		change.Decomposition = &d
	}
	return change, true
}

// institutionHistory returns the institution's records sorted by year.
func institutionHistory(records []domain.EnrollmentRecord, name string) ([]domain.EnrollmentRecord, error) {
	var history []domain.EnrollmentRecord
	for _, r := range records {
		if r.Name == name {
			history = append(history, r)
		}
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInstitutionNotFound, name)
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Year < history[j].Year })
	return history, nil
}

func recordInYear(history []domain.EnrollmentRecord, year int) (domain.EnrollmentRecord, bool) {
	for _, r := range history {
		if r.Year == year {
			return r, true
		}
	}
	return domain.EnrollmentRecord{}, false
}
