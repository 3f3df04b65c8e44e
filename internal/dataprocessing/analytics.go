package dataprocessing

import (
	"fmt"
	"sort"

	"ipedspulse/pkg/contracts/domain"
)

// Funnel stage labels.
const (
	StageApplicants = "Applicants"
	StageAdmitted   = "Admitted"
	StageEnrolled   = "Enrolled"
)

// DefaultMinEnrolled is the enrolled floor for TopInstitutions.
const DefaultMinEnrolled = 100

type totals struct {
	applicants, admissions, enrolled int64
}

func (t *totals) add(r domain.EnrollmentRecord) {
	t.applicants += r.Applicants
	t.admissions += r.Admissions
	t.enrolled += r.Enrolled
}

func sumRecords(records []domain.EnrollmentRecord) totals {
	var t totals
	for _, r := range records {
		t.add(r)
	}
	return t
}

// Summarize computes the KPI block. Pooled rates divide the totals; mean
// rates average the per-record rates that are defined.
func Summarize(records []domain.EnrollmentRecord) domain.Summary {
	t := sumRecords(records)

	admit := make([]domain.Rate, 0, len(records))
	yield := make([]domain.Rate, 0, len(records))
	institutions := make(map[string]struct{})
	years := make(map[int]struct{})
	var diversity float64
	for _, r := range records {
		admit = append(admit, r.AdmitRate)
		yield = append(yield, r.YieldRate)
		institutions[r.Name] = struct{}{}
		years[r.Year] = struct{}{}
		diversity += r.DiversityIndex
	}

	s := domain.Summary{
		TotalApplicants:  t.applicants,
		TotalAdmissions:  t.admissions,
		TotalEnrolled:    t.enrolled,
		AdmitRate:        PooledRate(t.admissions, t.applicants),
		YieldRate:        PooledRate(t.enrolled, t.admissions),
		Conversion:       PooledRate(t.enrolled, t.applicants),
		MeanAdmitRate:    MeanRate(admit),
		MeanYieldRate:    MeanRate(yield),
		InstitutionCount: len(institutions),
		YearCount:        len(years),
		RecordCount:      len(records),
	}
	if len(records) > 0 {
		s.MeanDiversity = roundTo(diversity/float64(len(records)), 4)
	}
	return s
}

// Funnel returns the applicants, admitted and enrolled stages with leakage.
func Funnel(records []domain.EnrollmentRecord) domain.Funnel {
	t := sumRecords(records)
	return domain.Funnel{
		Stages: []domain.FunnelStage{
			{Stage: StageApplicants, Value: t.applicants, Share: PooledRate(t.applicants, t.applicants)},
			{Stage: StageAdmitted, Value: t.admissions, Share: PooledRate(t.admissions, t.applicants), StageRate: PooledRate(t.admissions, t.applicants)},
			{Stage: StageEnrolled, Value: t.enrolled, Share: PooledRate(t.enrolled, t.applicants), StageRate: PooledRate(t.enrolled, t.admissions)},
		},
		Leakage: FunnelLeakage(t.applicants, t.admissions, t.enrolled),
	}
}

// FunnelLeakage counts students lost between stages.
func FunnelLeakage(applicants, admitted, enrolled int64) domain.Leakage {
	notAdmitted := applicants - admitted
	notEnrolled := admitted - enrolled
	return domain.Leakage{
		NotAdmitted:       notAdmitted,
		AdmittedNotEnroll: notEnrolled,
		Total:             notAdmitted + notEnrolled,
		SelectionRate:     PooledRate(admitted, applicants),
		YieldRate:         PooledRate(enrolled, admitted),
		Conversion:        PooledRate(enrolled, applicants),
	}
}

// TrendsByYear aggregates the funnel per year, ascending.
func TrendsByYear(records []domain.EnrollmentRecord) []domain.YearTrend {
	byYear := make(map[int]*totals)
	names := make(map[int]map[string]struct{})
	for _, r := range records {
		t, ok := byYear[r.Year]
		if !ok {
			t = &totals{}
			byYear[r.Year] = t
			names[r.Year] = make(map[string]struct{})
		}
		t.add(r)
		names[r.Year][r.Name] = struct{}{}
	}

	out := make([]domain.YearTrend, 0, len(byYear))
	for year, t := range byYear {
		out = append(out, domain.YearTrend{
			Year:             year,
			Applicants:       t.applicants,
			Admissions:       t.admissions,
			Enrolled:         t.enrolled,
			AdmitRate:        PooledRate(t.admissions, t.applicants),
			YieldRate:        PooledRate(t.enrolled, t.admissions),
			Conversion:       PooledRate(t.enrolled, t.applicants),
			InstitutionCount: len(names[year]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// DemographicsByYear weights each record's shares by its enrolled count.
// Years with nobody enrolled are omitted.
func DemographicsByYear(records []domain.EnrollmentRecord) []domain.DemographicYear {
	type acc struct {
		enrolled int64
		weighted [5]float64
	}
	byYear := make(map[int]*acc)
	for _, r := range records {
		a, ok := byYear[r.Year]
		if !ok {
			a = &acc{}
			byYear[r.Year] = a
		}
		a.enrolled += r.Enrolled
		for i, v := range r.Demographics.Values() {
			a.weighted[i] += v * float64(r.Enrolled)
		}
	}

	out := make([]domain.DemographicYear, 0, len(byYear))
	for year, a := range byYear {
		if a.enrolled == 0 {
			continue
		}
		dy := domain.DemographicYear{Year: year, TotalEnrolled: a.enrolled}
		for i, m := range domain.DemographicMetrics {
			dy.Shares.Set(m, roundTo(a.weighted[i]/float64(a.enrolled), 2))
		}
		out = append(out, dy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// maxSampleInstitutions is how many names a state tooltip lists.
const maxSampleInstitutions = 3

// StateSummaries aggregates records per state for the map, largest
// enrollment first. Records without a state are left out.
func StateSummaries(records []domain.EnrollmentRecord) []domain.StateSummary {
	type acc struct {
		totals
		region string
		names  map[string]struct{}
	}
	byState := make(map[string]*acc)
	for _, r := range records {
		if r.State == "" {
			continue
		}
		a, ok := byState[r.State]
		if !ok {
			a = &acc{region: r.Region, names: make(map[string]struct{})}
			byState[r.State] = a
		}
		a.add(r)
		a.names[r.Name] = struct{}{}
	}

	out := make([]domain.StateSummary, 0, len(byState))
	for state, a := range byState {
		names := make([]string, 0, len(a.names))
		for n := range a.names {
			names = append(names, n)
		}
		sort.Strings(names)
		sample := names
		if len(sample) > maxSampleInstitutions {
			sample = append(append([]string{}, names[:maxSampleInstitutions]...), "...")
		}
		out = append(out, domain.StateSummary{
			State:              state,
			Region:             a.region,
			Applicants:         a.applicants,
			Admissions:         a.admissions,
			Enrolled:           a.enrolled,
			AdmitRate:          PooledRate(a.admissions, a.applicants),
			YieldRate:          PooledRate(a.enrolled, a.admissions),
			InstitutionCount:   len(a.names),
			SampleInstitutions: sample,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Enrolled != out[j].Enrolled {
			return out[i].Enrolled > out[j].Enrolled
		}
		return out[i].State < out[j].State
	})
	return out
}

// AggregateInstitutions sums each institution's funnel over the records.
func AggregateInstitutions(records []domain.EnrollmentRecord) []domain.InstitutionAggregate {
	index := make(map[string]int)
	var out []domain.InstitutionAggregate
	for _, r := range records {
		i, ok := index[r.Name]
		if !ok {
			i = len(out)
			index[r.Name] = i
			out = append(out, domain.InstitutionAggregate{Name: r.Name, State: r.State, Size: r.Size})
		}
		out[i].Applicants += r.Applicants
		out[i].Admissions += r.Admissions
		out[i].Enrolled += r.Enrolled
		out[i].YearCount++
	}
	for i := range out {
		out[i].AdmitRate = PooledRate(out[i].Admissions, out[i].Applicants)
		out[i].YieldRate = PooledRate(out[i].Enrolled, out[i].Admissions)
	}
	return out
}

// TopInstitutions ranks institutions aggregated over the selected years.
// Institutions with fewer than minEnrolled students in total are left out;
// a negative minEnrolled means DefaultMinEnrolled. Undefined rates sort last.
func TopInstitutions(records []domain.EnrollmentRecord, metric domain.RankMetric, n int, minEnrolled int64) ([]domain.InstitutionAggregate, error) {
	value, err := aggregateValue(metric)
	if err != nil {
		return nil, err
	}
	if minEnrolled < 0 {
		minEnrolled = DefaultMinEnrolled
	}

	all := AggregateInstitutions(records)
	kept := all[:0]
	for _, a := range all {
		if a.Enrolled >= minEnrolled {
			kept = append(kept, a)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		vi, oki := value(kept[i])
		vj, okj := value(kept[j])
		if oki != okj {
			return oki
		}
		if vi != vj {
			return vi > vj
		}
		return kept[i].Name < kept[j].Name
	})

	if n > 0 && len(kept) > n {
		kept = kept[:n]
	}
	for i := range kept {
		kept[i].Rank = i + 1
	}
	return kept, nil
}

func aggregateValue(metric domain.RankMetric) (func(domain.InstitutionAggregate) (float64, bool), error) {
	switch metric {
	case domain.RankApplicants:
		return func(a domain.InstitutionAggregate) (float64, bool) { return float64(a.Applicants), true }, nil
	case domain.RankAdmissions:
		return func(a domain.InstitutionAggregate) (float64, bool) { return float64(a.Admissions), true }, nil
	case domain.RankEnrolled:
		return func(a domain.InstitutionAggregate) (float64, bool) { return float64(a.Enrolled), true }, nil
	case domain.RankAdmitRate:
		return func(a domain.InstitutionAggregate) (float64, bool) { return a.AdmitRate.Float64() }, nil
	case domain.RankYieldRate:
		return func(a domain.InstitutionAggregate) (float64, bool) { return a.YieldRate.Float64() }, nil
	}
	return nil, fmt.Errorf("metric %q cannot rank aggregated institutions", metric)
}

// EnrollmentGrowth compares enrolled between the first and last year in the
// records, for institutions present in both. Largest absolute change first.
func EnrollmentGrowth(records []domain.EnrollmentRecord) []domain.Growth {
	years := distinctYears(records)
	if len(years) < 2 {
		return []domain.Growth{}
	}
	first, last := years[0], years[len(years)-1]

	firstBy := make(map[string]int64)
	lastBy := make(map[string]int64)
	for _, r := range records {
		switch r.Year {
		case first:
			firstBy[r.Name] += r.Enrolled
		case last:
			lastBy[r.Name] += r.Enrolled
		}
	}

	out := make([]domain.Growth, 0, len(firstBy))
	for name, f := range firstBy {
		l, ok := lastBy[name]
		if !ok {
			continue
		}
		out = append(out, domain.Growth{
			Name:          name,
			FirstYear:     first,
			LastYear:      last,
			EnrolledFirst: f,
			EnrolledLast:  l,
			Change:        l - f,
			ChangePct:     percentChange(float64(l), float64(f)).Round(2),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := abs64(out[i].Change), abs64(out[j].Change)
		if ai != aj {
			return ai > aj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// YearOverYear compares the pooled funnel of year with year-1. The boolean
// is false when no record exists for year. Deltas are undefined when the
// previous year is absent or its base is zero.
func YearOverYear(records []domain.EnrollmentRecord, year int) (domain.YearOverYear, bool) {
	var cur, prev totals
	var hasCur, hasPrev bool
	for _, r := range records {
		switch r.Year {
		case year:
			cur.add(r)
			hasCur = true
		case year - 1:
			prev.add(r)
			hasPrev = true
		}
	}
	if !hasCur {
		return domain.YearOverYear{}, false
	}

	out := domain.YearOverYear{
		Year:       year,
		Applicants: cur.applicants,
		Admissions: cur.admissions,
		Enrolled:   cur.enrolled,
		AdmitRate:  PooledRate(cur.admissions, cur.applicants),
		YieldRate:  PooledRate(cur.enrolled, cur.admissions),
	}
	if !hasPrev {
		return out, true
	}

	p := year - 1
	out.PreviousYear = &p
	out.DeltaApplicants = percentChange(float64(cur.applicants), float64(prev.applicants)).Round(2)
	out.DeltaAdmissions = percentChange(float64(cur.admissions), float64(prev.admissions)).Round(2)
	out.DeltaEnrolled = percentChange(float64(cur.enrolled), float64(prev.enrolled)).Round(2)
	out.DeltaAdmitRate = out.AdmitRate.Sub(PooledRate(prev.admissions, prev.applicants)).Round(4)
	out.DeltaYieldRate = out.YieldRate.Sub(PooledRate(prev.enrolled, prev.admissions)).Round(4)
	return out, true
}

// percentChange is (cur-prev)/prev in percent, undefined when prev is zero.
func percentChange(cur, prev float64) domain.Rate {
	r := domain.NewRate(cur-prev, prev)
	return r.Percent()
}

func distinctYears(records []domain.EnrollmentRecord) []int {
	set := make(map[int]struct{})
	for _, r := range records {
		set[r.Year] = struct{}{}
	}
	years := make([]int, 0, len(set))
	for y := range set {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
