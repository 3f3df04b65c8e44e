package dataprocessing

import (
	"fmt"

	"ipedspulse/pkg/contracts/domain"
)

// MaxInsights bounds the list returned by GenerateInsights.
const MaxInsights = 6

// Thresholds on the year-over-year change in enrolled students, in percent.
const (
	enrollmentDropPct   = -5.0
	enrollmentGrowthPct = 10.0
)

// InsightContext is what GenerateInsights needs besides the record itself.
// Peers maps metrics to the distribution they are judged against; YoY and
// Decomposition may be nil when no previous year exists.
type InsightContext struct {
	Peers         map[domain.RankMetric]domain.Percentiles
	YoY           *domain.YearOverYear
	Decomposition *domain.Decomposition
}

// GenerateInsights applies the rule set to one institution-year. Rules are
// evaluated in a fixed order and at most MaxInsights are returned.
func GenerateInsights(r domain.EnrollmentRecord, ic InsightContext) []domain.Insight {
	out := make([]domain.Insight, 0, MaxInsights)
	add := func(in domain.Insight) {
		if len(out) < MaxInsights {
			out = append(out, in)
		}
	}

	if p, ok := ic.Peers[domain.RankYieldRate]; ok && r.YieldRate.Valid {
		switch {
		case r.YieldRate.Value > p.P75:
			add(domain.Insight{
				Level:   domain.InsightSuccess,
				Metric:  string(domain.RankYieldRate),
				Message: "Strong yield rate",
				Detail:  fmt.Sprintf("Yield of %s is above the peer 75th percentile (%s).", pct(r.YieldRate.Value), pct(p.P75)),
			})
		case r.YieldRate.Value < p.P25:
			add(domain.Insight{
				Level:   domain.InsightWarning,
				Metric:  string(domain.RankYieldRate),
				Message: "Yield below peers",
				Detail:  fmt.Sprintf("Yield of %s is below the peer 25th percentile (%s).", pct(r.YieldRate.Value), pct(p.P25)),
			})
		}
	}

	if p, ok := ic.Peers[domain.RankAdmitRate]; ok && r.AdmitRate.Valid && r.AdmitRate.Value < p.P25 {
		add(domain.Insight{
			Level:   domain.InsightInfo,
			Metric:  string(domain.RankAdmitRate),
			Message: "Highly selective",
			Detail:  fmt.Sprintf("Admit rate of %s is below the peer 25th percentile (%s).", pct(r.AdmitRate.Value), pct(p.P25)),
		})
	}

	if ic.YoY != nil && ic.YoY.DeltaEnrolled.Valid {
		delta := ic.YoY.DeltaEnrolled.Value
		switch {
		case delta < enrollmentDropPct:
			detail := fmt.Sprintf("Enrollment fell %.1f%% from the previous year.", -delta)
			if ic.Decomposition != nil && ic.Decomposition.PrimaryDriver != "none" {
				detail += fmt.Sprintf(" Primary driver: %s.", ic.Decomposition.PrimaryDriver)
			}
			add(domain.Insight{
				Level:   domain.InsightDanger,
				Metric:  string(domain.RankEnrolled),
				Message: "Enrollment decline",
				Detail:  detail,
			})
		case delta > enrollmentGrowthPct:
			add(domain.Insight{
				Level:   domain.InsightSuccess,
				Metric:  string(domain.RankEnrolled),
				Message: "Enrollment growth",
				Detail:  fmt.Sprintf("Enrollment grew %.1f%% from the previous year.", delta),
			})
		}
	}

	if p, ok := ic.Peers[domain.RankDiversity]; ok && r.DiversityIndex > p.P75 {
		add(domain.Insight{
			Level:   domain.InsightInfo,
			Metric:  string(domain.RankDiversity),
			Message: "High diversity",
			Detail:  fmt.Sprintf("Diversity index of %.3f is above the peer 75th percentile (%.3f).", r.DiversityIndex, p.P75),
		})
	}
	return out
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
