package dataprocessing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"ipedspulse/pkg/contracts/domain"
)

// Defaults for peer selection.
const (
	DefaultPeerCount    = 25
	DefaultSimilarCount = 15
)

// recordsForYear returns the records of one year.
func recordsForYear(records []domain.EnrollmentRecord, year int) []domain.EnrollmentRecord {
	out := make([]domain.EnrollmentRecord, 0, len(records)/3+1)
	for _, r := range records {
		if r.Year == year {
			out = append(out, r)
		}
	}
	return out
}

func findRecord(records []domain.EnrollmentRecord, name string) (domain.EnrollmentRecord, bool) {
	for _, r := range records {
		if r.Name == name {
			return r, true
		}
	}
	return domain.EnrollmentRecord{}, false
}

// PeerGroup selects the comparison group for target in year. When the
// target has no record that year every institution of the year is returned.
// n bounds top_n_applicants and similar groups; n <= 0 uses DefaultPeerCount.
func PeerGroup(records []domain.EnrollmentRecord, target string, year int, peerType domain.PeerType, n int) ([]domain.EnrollmentRecord, error) {
	if n <= 0 {
		n = DefaultPeerCount
	}
	yearData := recordsForYear(records, year)
	self, ok := findRecord(yearData, target)
	if !ok {
		return yearData, nil
	}

	keep := func(pred func(domain.EnrollmentRecord) bool) []domain.EnrollmentRecord {
		out := make([]domain.EnrollmentRecord, 0, len(yearData))
		for _, r := range yearData {
			if pred(r) {
				out = append(out, r)
			}
		}
		return out
	}

	switch peerType {
	case domain.PeerNational, "":
		return yearData, nil
	case domain.PeerSameRegion:
		return keep(func(r domain.EnrollmentRecord) bool { return r.Region == self.Region }), nil
	case domain.PeerSameState:
		return keep(func(r domain.EnrollmentRecord) bool { return r.State == self.State }), nil
	case domain.PeerSameType:
		return keep(func(r domain.EnrollmentRecord) bool { return r.Type == self.Type }), nil
	case domain.PeerSameSize:
		return keep(func(r domain.EnrollmentRecord) bool { return r.Size == self.Size }), nil
	case domain.PeerTopApplicants:
		sorted := append([]domain.EnrollmentRecord(nil), yearData...)
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].Applicants != sorted[j].Applicants {
				return sorted[i].Applicants > sorted[j].Applicants
			}
			return sorted[i].Name < sorted[j].Name
		})
		if len(sorted) > n {
			sorted = sorted[:n]
		}
		return sorted, nil
	case domain.PeerSimilar:
		similar, _ := SimilarInstitutions(records, target, year, n)
		names := make(map[string]struct{}, len(similar)+1)
		names[target] = struct{}{}
		for _, s := range similar {
			names[s.Name] = struct{}{}
		}
		return keep(func(r domain.EnrollmentRecord) bool {
			_, in := names[r.Name]
			return in
		}), nil
	}
	return nil, fmt.Errorf("unknown peer type %q", peerType)
}

// PeerStatistics describes one metric over a peer group, ignoring undefined values.
func PeerStatistics(peers []domain.EnrollmentRecord, metric domain.RankMetric) domain.PeerStats {
	return DescribeValues(metric, metricValues(peers, metric))
}

func metricValues(records []domain.EnrollmentRecord, metric domain.RankMetric) []float64 {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := r.Value(metric); ok {
			values = append(values, v)
		}
	}
	return values
}

// Compare benchmarks target against its peer group on every rank metric.
func Compare(records []domain.EnrollmentRecord, target string, year int, peerType domain.PeerType, n int) (domain.PeerComparison, error) {
	peers, err := PeerGroup(records, target, year, peerType, n)
	if err != nil {
		return domain.PeerComparison{}, err
	}
	if peerType == "" {
		peerType = domain.PeerNational
	}

	out := domain.PeerComparison{
		Institution: target,
		Year:        year,
		PeerType:    peerType,
		PeerCount:   len(peers),
		Peers:       make([]string, 0, len(peers)),
		Stats:       make(map[domain.RankMetric]domain.PeerStats, len(domain.RankMetrics)),
		Standing:    make(map[domain.RankMetric]domain.Standing, len(domain.RankMetrics)),
	}
	for _, p := range peers {
		if p.Name != target {
			out.Peers = append(out.Peers, p.Name)
		}
	}
	sort.Strings(out.Peers)

	self, found := findRecord(peers, target)
	for _, m := range domain.RankMetrics {
		values := metricValues(peers, m)
		out.Stats[m] = DescribeValues(m, values)
		if found {
			out.Standing[m] = standingOf(self, m, values)
		}
	}
	return out, nil
}

func standingOf(r domain.EnrollmentRecord, m domain.RankMetric, values []float64) domain.Standing {
	v, ok := r.Value(m)
	if !ok {
		return domain.Standing{Total: len(values)}
	}
	return RankAndPercentile(v, values)
}

// Rankings places target nationally, within its state and within its region
// for year. The boolean is false when target has no record that year.
func Rankings(records []domain.EnrollmentRecord, target string, year int) (domain.Rankings, bool) {
	yearData := recordsForYear(records, year)
	self, ok := findRecord(yearData, target)
	if !ok {
		return domain.Rankings{}, false
	}

	var state, region []domain.EnrollmentRecord
	for _, r := range yearData {
		if r.State == self.State {
			state = append(state, r)
		}
		if r.Region == self.Region {
			region = append(region, r)
		}
	}

	rank := func(group []domain.EnrollmentRecord) map[domain.RankMetric]domain.Standing {
		out := make(map[domain.RankMetric]domain.Standing, len(domain.RankMetrics))
		for _, m := range domain.RankMetrics {
			out[m] = standingOf(self, m, metricValues(group, m))
		}
		return out
	}
	return domain.Rankings{
		National: rank(yearData),
		State:    rank(state),
		Region:   rank(region),
	}, true
}

// similarityFeatures are the columns compared by SimilarInstitutions.
// Undefined rates count as zero.
func similarityFeatures(r domain.EnrollmentRecord) []float64 {
	return []float64{
		float64(r.Applicants),
		r.AdmitRate.Value,
		r.YieldRate.Value,
		float64(r.Enrolled),
		r.DiversityIndex,
		r.Demographics.Hispanic,
		r.Demographics.White,
		r.Demographics.Black,
		r.Demographics.Asian,
	}
}

// SimilarInstitutions returns the k nearest institutions to target in year
// by Euclidean distance over standardised features. The boolean is false
// when target has no record that year.
func SimilarInstitutions(records []domain.EnrollmentRecord, target string, year int, k int) ([]domain.SimilarInstitution, bool) {
	if k <= 0 {
		k = DefaultSimilarCount
	}
	yearData := recordsForYear(records, year)
	targetIdx := -1
	for i, r := range yearData {
		if r.Name == target {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return nil, false
	}

	matrix := make([][]float64, len(yearData))
	for i, r := range yearData {
		matrix[i] = similarityFeatures(r)
	}
	standardize(matrix)

	type candidate struct {
		idx  int
		dist float64
	}
	candidates := make([]candidate, 0, len(yearData)-1)
	for i := range yearData {
		if i == targetIdx || yearData[i].Name == target {
			continue
		}
		candidates = append(candidates, candidate{idx: i, dist: floats.Distance(matrix[i], matrix[targetIdx], 2)})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].dist != candidates[b].dist {
			return candidates[a].dist < candidates[b].dist
		}
		return yearData[candidates[a].idx].Name < yearData[candidates[b].idx].Name
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]domain.SimilarInstitution, len(candidates))
	for i, c := range candidates {
		r := yearData[c.idx]
		out[i] = domain.SimilarInstitution{
			Name:           r.Name,
			State:          r.State,
			Distance:       roundTo(c.dist, 4),
			Applicants:     r.Applicants,
			Enrolled:       r.Enrolled,
			AdmitRate:      r.AdmitRate,
			YieldRate:      r.YieldRate,
			DiversityIndex: r.DiversityIndex,
		}
	}
	return out, true
}

// standardize rescales each column in place to zero mean and unit
// population standard deviation. Constant columns become zero.
func standardize(matrix [][]float64) {
	if len(matrix) == 0 {
		return
	}
	cols := len(matrix[0])
	column := make([]float64, len(matrix))
	for c := 0; c < cols; c++ {
		for r := range matrix {
			column[r] = matrix[r][c]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		for r := range matrix {
			if std == 0 || math.IsNaN(std) {
				matrix[r][c] = 0
				continue
			}
			matrix[r][c] = (matrix[r][c] - mean) / std
		}
	}
}
