package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipedspulse/pkg/contracts/domain"
)

func TestBuildProfile_LatestYear(t *testing.T) {
	p, err := BuildProfile(standardRecords(t), "Alpha U", 0)
	require.NoError(t, err)

	assert.Equal(t, 2024, p.Year)
	assert.Equal(t, "Alpha U", p.Name)
	assert.Equal(t, "CA", p.State)
	require.Len(t, p.History, 3)
	assert.Equal(t, 2022, p.History[0].Year)
	assert.Equal(t, int64(1100), p.Latest.Applicants)
	assert.Equal(t, 0.95, p.AdmitInterval.Confidence)
	assert.Less(t, p.AdmitInterval.Lower, p.Latest.AdmitRate.Value)
	assert.Greater(t, p.AdmitInterval.Upper, p.Latest.AdmitRate.Value)
	require.NotNil(t, p.YearOverYear)
	require.NotNil(t, p.Decomposition)
	assert.NotEmpty(t, p.Rankings.National)
}

func TestBuildProfile_Decomposition(t *testing.T) {
	p, err := BuildProfile(standardRecords(t), "Alpha U", 2023)
	require.NoError(t, err)

	require.NotNil(t, p.Decomposition)
	assert.Equal(t, 50.0, p.Decomposition.DeltaEnrolled)
	assert.Equal(t, "applicants_increase", p.Decomposition.PrimaryDriver)
	require.NotNil(t, p.YearOverYear)
	assert.InDelta(t, 33.33, p.YearOverYear.DeltaEnrolled.Value, 1e-9)

	var levels []domain.InsightLevel
	for _, in := range p.Insights {
		if in.Metric == string(domain.RankEnrolled) {
			levels = append(levels, in.Level)
		}
	}
	assert.Equal(t, []domain.InsightLevel{domain.InsightSuccess}, levels)
}

func TestBuildProfile_UndefinedRates(t *testing.T) {
	p, err := BuildProfile(standardRecords(t), "Beta College", 2023)
	require.NoError(t, err)

	assert.Equal(t, domain.Interval{Confidence: 0.95}, p.AdmitInterval)
	assert.Equal(t, domain.Interval{Confidence: 0.95}, p.YieldInterval)
	assert.Nil(t, p.Decomposition, "no decomposition without defined rates")
	require.NotNil(t, p.YearOverYear)
	assert.Equal(t, -100.0, p.YearOverYear.DeltaEnrolled.Value)

	require.NotEmpty(t, p.Insights)
	assert.Equal(t, domain.InsightDanger, p.Insights[0].Level)
	assert.NotContains(t, p.Insights[0].Detail, "Primary driver")
}

func TestBuildProfile_Errors(t *testing.T) {
	records := standardRecords(t)

	_, err := BuildProfile(records, "Nowhere U", 0)
	assert.ErrorIs(t, err, ErrInstitutionNotFound)

	_, err = BuildProfile(records, "Beta College", 2024)
	assert.ErrorIs(t, err, ErrYearNotFound)
}

func TestChange(t *testing.T) {
	records := standardRecords(t)

	c, err := Change(records, "Alpha U", 2023)
	require.NoError(t, err)
	assert.Equal(t, "Alpha U", c.Institution)
	assert.Equal(t, 2023, c.Year)
	require.NotNil(t, c.YearOverYear.PreviousYear)
	assert.Equal(t, 2022, *c.YearOverYear.PreviousYear)
	require.NotNil(t, c.Decomposition)
	assert.Equal(t, 50.0, c.Decomposition.DeltaEnrolled)

	latest, err := Change(records, "Gamma Institute", 0)
	require.NoError(t, err)
	assert.Equal(t, 2024, latest.Year)

	_, err = Change(records, "Alpha U", 2022)
	assert.ErrorIs(t, err, ErrYearNotFound, "2021 is not in the dataset")

	_, err = Change(records, "Nowhere U", 0)
	assert.ErrorIs(t, err, ErrInstitutionNotFound)
}

func TestGenerateInsights(t *testing.T) {
	r := domain.EnrollmentRecord{
		AdmitRate:      domain.DefinedRate(0.1),
		YieldRate:      domain.DefinedRate(0.5),
		DiversityIndex: 0.8,
	}
	peers := map[domain.RankMetric]domain.Percentiles{
		domain.RankYieldRate: {P25: 0.2, P75: 0.4},
		domain.RankAdmitRate: {P25: 0.2, P75: 0.6},
		domain.RankDiversity: {P25: 0.3, P75: 0.7},
	}
	yoy := &domain.YearOverYear{DeltaEnrolled: domain.DefinedRate(-8)}
	dec := &domain.Decomposition{PrimaryDriver: "yield_rate_decrease"}

	got := GenerateInsights(r, InsightContext{Peers: peers, YoY: yoy, Decomposition: dec})

	require.Len(t, got, 4)
	assert.Equal(t, domain.InsightSuccess, got[0].Level)
	assert.Equal(t, "yield_rate", got[0].Metric)
	assert.Equal(t, domain.InsightInfo, got[1].Level)
	assert.Equal(t, "admit_rate", got[1].Metric)
	assert.Equal(t, domain.InsightDanger, got[2].Level)
	assert.Contains(t, got[2].Detail, "yield_rate_decrease")
	assert.Equal(t, domain.InsightInfo, got[3].Level)
	assert.Equal(t, "diversity_index", got[3].Metric)
}

func TestGenerateInsights_Quiet(t *testing.T) {
	r := domain.EnrollmentRecord{
		AdmitRate:      domain.DefinedRate(0.5),
		YieldRate:      domain.UndefinedRate,
		DiversityIndex: 0.5,
	}
	peers := map[domain.RankMetric]domain.Percentiles{
		domain.RankYieldRate: {P25: 0.2, P75: 0.4},
		domain.RankAdmitRate: {P25: 0.2, P75: 0.6},
		domain.RankDiversity: {P25: 0.3, P75: 0.7},
	}
	yoy := &domain.YearOverYear{DeltaEnrolled: domain.DefinedRate(3)}

	assert.Empty(t, GenerateInsights(r, InsightContext{Peers: peers, YoY: yoy}))
	assert.Empty(t, GenerateInsights(r, InsightContext{}))
}
