package dataprocessing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"ipedspulse/pkg/contracts/domain"
)

// DeriveRates fills the derived ratios of a record. It is pure: the same
// counts always give the same rates, and zero denominators give UndefinedRate.
func DeriveRates(r domain.EnrollmentRecord) domain.EnrollmentRecord {
	r.AdmitRate = PooledRate(r.Admissions, r.Applicants)
	r.YieldRate = PooledRate(r.Enrolled, r.Admissions)
	r.Conversion = PooledRate(r.Enrolled, r.Applicants)
	r.DiversityIndex = DiversityIndex(r.Demographics.Values())
	return r
}

// PooledRate divides two totals.
func PooledRate(num, den int64) domain.Rate {
	return domain.NewRate(float64(num), float64(den))
}

// MeanRate averages the defined rates. Undefined rates are skipped rather
// than counted as zero; with nothing defined the mean is undefined.
func MeanRate(rates []domain.Rate) domain.Rate {
	var sum float64
	n := 0
	for _, r := range rates {
		if v, ok := r.Float64(); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return domain.UndefinedRate
	}
	return domain.DefinedRate(sum / float64(n))
}

// DiversityIndex is Simpson's index 1 - Σp² over the shares, after
// normalising them to sum to one. Negative and NaN shares are ignored.
func DiversityIndex(shares []float64) float64 {
	valid := make([]float64, 0, len(shares))
	for _, s := range shares {
		if !math.IsNaN(s) && s >= 0 {
			valid = append(valid, s)
		}
	}
	total := floats.Sum(valid)
	if total == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range valid {
		p := s / total
		sumSq += p * p
	}
	return roundTo(1-sumSq, 4)
}

// WilsonInterval returns the Wilson score interval for successes/total at
// the given confidence level, as fractions in [0,1].
func WilsonInterval(successes, total int64, confidence float64) domain.Interval {
	out := domain.Interval{Confidence: confidence}
	if total <= 0 || confidence <= 0 || confidence >= 1 {
		return out
	}

	n := float64(total)
	p := float64(successes) / n
	z := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	z2 := z * z

	denominator := 1 + z2/n
	center := (p + z2/(2*n)) / denominator
	margin := z * math.Sqrt((p*(1-p)+z2/(4*n))/n) / denominator

	out.Lower = roundTo(math.Max(0, center-margin), 4)
	out.Upper = roundTo(math.Min(1, center+margin), 4)
	return out
}

// Decompose splits the change in enrolled = applicants × admit × yield
// between a base and a compare period into sequential effects:
//
//	applicants  (A1 - A0) × r0 × y0
//	admit rate  A1 × (r1 - r0) × y0
//	yield       A1 × r1 × (y1 - y0)
func Decompose(a0 int64, r0, y0 float64, a1 int64, r1, y1 float64) domain.Decomposition {
	A0, A1 := float64(a0), float64(a1)

	base := A0 * r0 * y0
	compare := A1 * r1 * y1
	delta := compare - base

	effApp := (A1 - A0) * r0 * y0
	effAdmit := A1 * (r1 - r0) * y0
	effYield := A1 * r1 * (y1 - y0)

	return domain.Decomposition{
		EnrolledBase:     math.Round(base),
		EnrolledCompare:  math.Round(compare),
		DeltaEnrolled:    math.Round(delta),
		EffectApplicants: math.Round(effApp),
		EffectAdmitRate:  math.Round(effAdmit),
		EffectYieldRate:  math.Round(effYield),
		Residual:         math.Round(delta - (effApp + effAdmit + effYield)),
		PrimaryDriver:    primaryDriver(effApp, effAdmit, effYield),
	}
}

func primaryDriver(app, admit, yield float64) string {
	lever, effect := string(domain.LeverApplicants), app
	if math.Abs(admit) > math.Abs(effect) {
		lever, effect = string(domain.LeverAdmitRate), admit
	}
	if math.Abs(yield) > math.Abs(effect) {
		lever, effect = string(domain.LeverYieldRate), yield
	}
	switch {
	case effect > 0:
		return lever + "_increase"
	case effect < 0:
		return lever + "_decrease"
	default:
		return "none"
	}
}

// Quantile returns the p-quantile of sorted values by linear interpolation
// between closest ranks (h = (n-1)p). sorted must be ascending and non-empty.
func Quantile(p float64, sorted []float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// Percentiles returns p10 through p90 of values; zeros when empty.
func Percentiles(values []float64) domain.Percentiles {
	if len(values) == 0 {
		return domain.Percentiles{}
	}
	sorted := sortedCopy(values)
	return domain.Percentiles{
		P10: Quantile(0.10, sorted),
		P25: Quantile(0.25, sorted),
		P50: Quantile(0.50, sorted),
		P75: Quantile(0.75, sorted),
		P90: Quantile(0.90, sorted),
	}
}

// RankAndPercentile locates value among all. Rank 1 is the highest value,
// ties share a rank. Percentile is the share of values strictly below, in percent.
func RankAndPercentile(value float64, all []float64) domain.Standing {
	if len(all) == 0 || math.IsNaN(value) {
		return domain.Standing{}
	}
	above, below := 0, 0
	for _, v := range all {
		switch {
		case v > value:
			above++
		case v < value:
			below++
		}
	}
	return domain.Standing{
		Rank:       above + 1,
		Total:      len(all),
		Percentile: domain.DefinedRate(roundTo(float64(below)/float64(len(all))*100, 1)),
	}
}

// DescribeValues summarises a metric over a set of values.
func DescribeValues(metric domain.RankMetric, values []float64) domain.PeerStats {
	out := domain.PeerStats{Metric: metric, Count: len(values)}
	if len(values) == 0 {
		return out
	}
	sorted := sortedCopy(values)
	out.Percentiles = Percentiles(sorted)
	out.Median = out.P50
	out.Min = sorted[0]
	out.Max = sorted[len(sorted)-1]
	if len(values) < 2 {
		out.Mean = values[0]
		return out
	}
	out.Mean, out.StdDev = stat.MeanStdDev(values, nil)
	return out
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
