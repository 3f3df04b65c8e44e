package dataprocessing

import (
	"fmt"
	"math"

	"ipedspulse/pkg/contracts/domain"
)

// Goal search limits. Rate levers move at most maxRateLift; the plan is
// feasible only if the applicant increase stays within maxApplicantLiftPct.
const (
	maxRateLift         = 0.10
	maxApplicantLiftPct = 30.0
)

// Simulate projects the funnel after applying the requested changes.
// Projected rates are clamped to [0,1].
func Simulate(in domain.SimulationInput) domain.SimulationResult {
	baseEnrolled := float64(in.BaseApplicants) * in.BaseAdmitRate * in.BaseYieldRate

	applicants := float64(in.BaseApplicants) * (1 + in.ApplicantsChangePct/100)
	if applicants < 0 {
		applicants = 0
	}
	admitRate := clamp01(in.BaseAdmitRate + in.AdmitRateChange)
	yieldRate := clamp01(in.BaseYieldRate + in.YieldRateChange)
	admitted := applicants * admitRate
	enrolled := admitted * yieldRate

	return domain.SimulationResult{
		BaseApplicants:   in.BaseApplicants,
		BaseAdmitRate:    in.BaseAdmitRate,
		BaseYieldRate:    in.BaseYieldRate,
		BaseEnrolled:     math.Round(baseEnrolled),
		ProjApplicants:   math.Round(applicants),
		ProjAdmitted:     math.Round(admitted),
		ProjAdmitRate:    roundTo(admitRate, 4),
		ProjYieldRate:    roundTo(yieldRate, 4),
		ProjEnrolled:     math.Round(enrolled),
		ProjConversion:   domain.NewRate(enrolled, applicants).Round(4),
		DeltaEnrolled:    math.Round(enrolled - baseEnrolled),
		DeltaEnrolledPct: percentChange(enrolled, baseEnrolled).Round(2),
	}
}

// GoalRecommendations searches for the smallest set of lever changes that
// reaches the enrollment goal. Yield is tried first, then admit rate, and
// whatever gap remains is closed with applicants.
func GoalRecommendations(in domain.GoalInput) domain.GoalPlan {
	current := float64(in.BaseApplicants) * in.BaseAdmitRate * in.BaseYieldRate
	goal := float64(in.EnrollmentGoal)
	gap := goal - current

	if gap <= 0 {
		return domain.GoalPlan{
			GoalMet:         true,
			Gap:             math.Round(gap),
			Message:         fmt.Sprintf("Current funnel already yields %.0f enrolled, meeting the goal of %d.", current, in.EnrollmentGoal),
			Recommendations: []domain.Recommendation{},
		}
	}

	plan := domain.GoalPlan{Gap: math.Round(gap)}
	applicants := float64(in.BaseApplicants)
	admit, yield := in.BaseAdmitRate, in.BaseYieldRate

	// Yield needed with applicants and admit rate fixed.
	needYield := goal / (applicants * admit)
	yieldLift := math.Min(needYield-yield, math.Min(maxRateLift, 1-yield))
	if yieldLift > 0 {
		yield += yieldLift
		plan.Recommendations = append(plan.Recommendations, domain.Recommendation{
			Lever:    domain.LeverYieldRate,
			Change:   roundTo(yieldLift, 4),
			Unit:     "rate",
			Priority: 1,
			Message:  fmt.Sprintf("Raise yield rate by %.1f points to %s.", yieldLift*100, pct(yield)),
		})
	}
	if reaches(applicants*admit*yield, goal) {
		plan.GoalMet = true
		plan.Message = "Goal reachable through yield improvement."
		return plan
	}

	needAdmit := goal / (applicants * yield)
	admitLift := math.Min(needAdmit-admit, math.Min(maxRateLift, 1-admit))
	if admitLift > 0 {
		admit += admitLift
		plan.Recommendations = append(plan.Recommendations, domain.Recommendation{
			Lever:    domain.LeverAdmitRate,
			Change:   roundTo(admitLift, 4),
			Unit:     "rate",
			Priority: 2,
			Message:  fmt.Sprintf("Raise admit rate by %.1f points to %s.", admitLift*100, pct(admit)),
		})
	}
	if reaches(applicants*admit*yield, goal) {
		plan.GoalMet = true
		plan.Message = "Goal reachable through yield and admit rate changes."
		return plan
	}

	needApplicants := goal / (admit * yield)
	liftPct := (needApplicants - applicants) / applicants * 100
	plan.Recommendations = append(plan.Recommendations, domain.Recommendation{
		Lever:    domain.LeverApplicants,
		Change:   roundTo(liftPct, 1),
		Unit:     "percent",
		Priority: 3,
		Message:  fmt.Sprintf("Grow applicants by %.1f%% to %.0f.", liftPct, math.Ceil(needApplicants)),
	})
	if liftPct <= maxApplicantLiftPct {
		plan.GoalMet = true
		plan.Message = "Goal reachable with combined funnel changes."
	} else {
		plan.Message = fmt.Sprintf("Goal requires more than a %.0f%% increase in applicants.", maxApplicantLiftPct)
	}
	return plan
}

func reaches(projected, goal float64) bool {
	return projected >= goal-1e-9
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
