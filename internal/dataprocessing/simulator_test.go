package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipedspulse/pkg/contracts/domain"
)

func TestSimulate(t *testing.T) {
	res := Simulate(domain.SimulationInput{
		BaseApplicants:      1000,
		BaseAdmitRate:       0.5,
		BaseYieldRate:       0.4,
		ApplicantsChangePct: 10,
		AdmitRateChange:     0.05,
		YieldRateChange:     -0.05,
	})

	assert.Equal(t, 200.0, res.BaseEnrolled)
	assert.Equal(t, 1100.0, res.ProjApplicants)
	assert.Equal(t, 605.0, res.ProjAdmitted)
	assert.Equal(t, 0.55, res.ProjAdmitRate)
	assert.Equal(t, 0.35, res.ProjYieldRate)
	assert.Equal(t, 212.0, res.ProjEnrolled)
	assert.Equal(t, 12.0, res.DeltaEnrolled)
	assert.InDelta(t, 5.88, res.DeltaEnrolledPct.Value, 0.01)
	assert.InDelta(t, 0.1925, res.ProjConversion.Value, 1e-4)
}

func TestSimulate_EdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		in    domain.SimulationInput
		check func(t *testing.T, res domain.SimulationResult)
	}{
		{
			name: "rates clamp to one",
			in:   domain.SimulationInput{BaseApplicants: 100, BaseAdmitRate: 0.5, BaseYieldRate: 0.9, AdmitRateChange: 0.8, YieldRateChange: 0.5},
			check: func(t *testing.T, res domain.SimulationResult) {
				assert.Equal(t, 1.0, res.ProjAdmitRate)
				assert.Equal(t, 1.0, res.ProjYieldRate)
				assert.Equal(t, 100.0, res.ProjEnrolled)
			},
		},
		{
			name: "rates clamp to zero",
			in:   domain.SimulationInput{BaseApplicants: 100, BaseAdmitRate: 0.2, BaseYieldRate: 0.3, AdmitRateChange: -0.5},
			check: func(t *testing.T, res domain.SimulationResult) {
				assert.Equal(t, 0.0, res.ProjAdmitRate)
				assert.Equal(t, 0.0, res.ProjEnrolled)
			},
		},
		{
			name: "all applicants removed",
			in:   domain.SimulationInput{BaseApplicants: 100, BaseAdmitRate: 0.2, BaseYieldRate: 0.3, ApplicantsChangePct: -100},
			check: func(t *testing.T, res domain.SimulationResult) {
				assert.Equal(t, 0.0, res.ProjApplicants)
				assert.False(t, res.ProjConversion.Valid)
			},
		},
		{
			name: "zero baseline leaves percent change undefined",
			in:   domain.SimulationInput{BaseApplicants: 0, BaseAdmitRate: 0.5, BaseYieldRate: 0.5, ApplicantsChangePct: 50},
			check: func(t *testing.T, res domain.SimulationResult) {
				assert.Equal(t, 0.0, res.BaseEnrolled)
				assert.False(t, res.DeltaEnrolledPct.Valid)
			},
		},
		{
			name: "no change",
			in:   domain.SimulationInput{BaseApplicants: 1000, BaseAdmitRate: 0.5, BaseYieldRate: 0.4},
			check: func(t *testing.T, res domain.SimulationResult) {
				assert.Equal(t, res.BaseEnrolled, res.ProjEnrolled)
				assert.Equal(t, 0.0, res.DeltaEnrolledPct.Value)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Simulate(tt.in))
		})
	}
}

func TestGoalRecommendations(t *testing.T) {
	base := domain.GoalInput{BaseApplicants: 1000, BaseAdmitRate: 0.5, BaseYieldRate: 0.4}

	tests := []struct {
		name        string
		goal        int64
		wantMet     bool
		wantLevers  []domain.Lever
		wantChanges []float64
	}{
		{name: "already met", goal: 150, wantMet: true},
		{name: "yield alone", goal: 210, wantMet: true, wantLevers: []domain.Lever{domain.LeverYieldRate}, wantChanges: []float64{0.02}},
		{name: "yield then admit", goal: 300, wantMet: true, wantLevers: []domain.Lever{domain.LeverYieldRate, domain.LeverAdmitRate}, wantChanges: []float64{0.1, 0.1}},
		{name: "applicants within reach", goal: 350, wantMet: true, wantLevers: []domain.Lever{domain.LeverYieldRate, domain.LeverAdmitRate, domain.LeverApplicants}, wantChanges: []float64{0.1, 0.1, 16.7}},
		{name: "out of reach", goal: 400, wantMet: false, wantLevers: []domain.Lever{domain.LeverYieldRate, domain.LeverAdmitRate, domain.LeverApplicants}, wantChanges: []float64{0.1, 0.1, 33.3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			in.EnrollmentGoal = tt.goal
			plan := GoalRecommendations(in)

			assert.Equal(t, tt.wantMet, plan.GoalMet)
			assert.NotEmpty(t, plan.Message)
			assert.Equal(t, float64(tt.goal)-200, plan.Gap)
			require.Len(t, plan.Recommendations, len(tt.wantLevers))
			for i, rec := range plan.Recommendations {
				assert.Equal(t, tt.wantLevers[i], rec.Lever)
				assert.InDelta(t, tt.wantChanges[i], rec.Change, 1e-9)
				assert.Equal(t, i+1, rec.Priority)
			}
		})
	}
}

func TestGoalRecommendations_RateCeiling(t *testing.T) {
	plan := GoalRecommendations(domain.GoalInput{
		BaseApplicants: 1000, BaseAdmitRate: 0.95, BaseYieldRate: 0.97, EnrollmentGoal: 1100,
	})
	require.Len(t, plan.Recommendations, 3)
	assert.InDelta(t, 0.03, plan.Recommendations[0].Change, 1e-9, "yield cannot pass 1")
	assert.InDelta(t, 0.05, plan.Recommendations[1].Change, 1e-9, "admit rate cannot pass 1")
	assert.Equal(t, domain.LeverApplicants, plan.Recommendations[2].Lever)
	assert.InDelta(t, 10.0, plan.Recommendations[2].Change, 1e-9)
	assert.True(t, plan.GoalMet)
}
