package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipedspulse/pkg/contracts/domain"
)

func names(records []domain.EnrollmentRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out
}

func TestPeerGroup(t *testing.T) {
	records := standardRecords(t)

	tests := []struct {
		name     string
		target   string
		peerType domain.PeerType
		n        int
		want     []string
	}{
		{name: "national", target: "Alpha U", peerType: domain.PeerNational, want: []string{"Alpha U", "Beta College", "Gamma Institute"}},
		{name: "empty type means national", target: "Alpha U", want: []string{"Alpha U", "Beta College", "Gamma Institute"}},
		{name: "same state", target: "Alpha U", peerType: domain.PeerSameState, want: []string{"Alpha U"}},
		{name: "same type", target: "Alpha U", peerType: domain.PeerSameType, want: []string{"Alpha U", "Gamma Institute"}},
		{name: "same size", target: "Alpha U", peerType: domain.PeerSameSize, want: []string{"Alpha U", "Beta College"}},
		{name: "same region", target: "Gamma Institute", peerType: domain.PeerSameRegion, want: []string{"Gamma Institute"}},
		{name: "top applicants", target: "Beta College", peerType: domain.PeerTopApplicants, n: 2, want: []string{"Gamma Institute", "Alpha U"}},
		{name: "similar", target: "Alpha U", peerType: domain.PeerSimilar, n: 1, want: []string{"Alpha U", "Beta College"}},
		{name: "unknown target gets every institution", target: "Nowhere", peerType: domain.PeerSameState, want: []string{"Alpha U", "Beta College", "Gamma Institute"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PeerGroup(records, tt.target, 2022, tt.peerType, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
			for _, r := range got {
				assert.Equal(t, 2022, r.Year)
			}
		})
	}

	_, err := PeerGroup(records, "Alpha U", 2022, domain.PeerType("galaxy"), 0)
	assert.Error(t, err)
}

func TestPeerStatistics_IgnoresUndefined(t *testing.T) {
	peers := selectYear(standardRecords(t), 2023)

	stats := PeerStatistics(peers, domain.RankYieldRate)
	assert.Equal(t, 2, stats.Count, "Beta College has no yield in 2023")
	assert.InDelta(t, (0.25+0.35)/2, stats.Mean, 1e-12)

	counts := PeerStatistics(peers, domain.RankEnrolled)
	assert.Equal(t, 3, counts.Count)
	assert.Equal(t, 0.0, counts.Min)
	assert.Equal(t, 560.0, counts.Max)
}

func TestCompare(t *testing.T) {
	cmp, err := Compare(standardRecords(t), "Alpha U", 2022, "", 0)
	require.NoError(t, err)

	assert.Equal(t, domain.PeerNational, cmp.PeerType)
	assert.Equal(t, 3, cmp.PeerCount)
	assert.Equal(t, []string{"Beta College", "Gamma Institute"}, cmp.Peers)
	assert.Len(t, cmp.Stats, len(domain.RankMetrics))
	assert.Equal(t, 2, cmp.Standing[domain.RankEnrolled].Rank)
	assert.Equal(t, 3, cmp.Standing[domain.RankYieldRate].Rank)
	assert.Equal(t, 0.0, cmp.Standing[domain.RankYieldRate].Percentile.Value)
}

func TestRankings(t *testing.T) {
	records := standardRecords(t)

	r, ok := Rankings(records, "Alpha U", 2022)
	require.True(t, ok)

	assert.Equal(t, domain.Standing{Rank: 2, Total: 3, Percentile: domain.DefinedRate(33.3)}, r.National[domain.RankEnrolled])
	assert.Equal(t, domain.Standing{Rank: 1, Total: 1, Percentile: domain.DefinedRate(0)}, r.State[domain.RankEnrolled])
	assert.Equal(t, 1, r.Region[domain.RankApplicants].Total)
	assert.Equal(t, 2, r.National[domain.RankAdmitRate].Rank, "Beta College admits a higher share")

	beta, ok := Rankings(records, "Beta College", 2023)
	require.True(t, ok)
	assert.Equal(t, domain.Standing{Total: 2}, beta.National[domain.RankYieldRate], "undefined yield has no rank")

	_, ok = Rankings(records, "Beta College", 2024)
	assert.False(t, ok)
}

func TestSimilarInstitutions(t *testing.T) {
	records := standardRecords(t)

	similar, ok := SimilarInstitutions(records, "Alpha U", 2022, 0)
	require.True(t, ok)
	require.Len(t, similar, 2, "target is excluded")
	assert.Equal(t, "Beta College", similar[0].Name)
	assert.Equal(t, "Gamma Institute", similar[1].Name)
	assert.Less(t, similar[0].Distance, similar[1].Distance)
	assert.Greater(t, similar[0].Distance, 0.0)

	top, ok := SimilarInstitutions(records, "Alpha U", 2022, 1)
	require.True(t, ok)
	assert.Len(t, top, 1)

	_, ok = SimilarInstitutions(records, "Nowhere", 2022, 5)
	assert.False(t, ok)
}

func TestStandardize_ConstantColumn(t *testing.T) {
	m := [][]float64{{1, 5}, {3, 5}}
	standardize(m)
	assert.Equal(t, [][]float64{{-1, 0}, {1, 0}}, m)
}
