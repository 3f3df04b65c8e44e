package domain

// Rates are fractions in [0,1]. Changes between two rates are expressed in
// the same unit (0.05 is five percentage points). Changes between two counts
// are expressed in percent.

// Summary is the KPI block of the overview dashboard.
type Summary struct {
	TotalApplicants  int64   `json:"total_applicants"`
	TotalAdmissions  int64   `json:"total_admissions"`
	TotalEnrolled    int64   `json:"total_enrolled"`
	AdmitRate        Rate    `json:"admit_rate"`
	YieldRate        Rate    `json:"yield_rate"`
	Conversion       Rate    `json:"conversion_rate"`
	MeanAdmitRate    Rate    `json:"mean_admit_rate"`
	MeanYieldRate    Rate    `json:"mean_yield_rate"`
	MeanDiversity    float64 `json:"mean_diversity_index"`
	InstitutionCount int     `json:"institution_count"`
	YearCount        int     `json:"year_count"`
	RecordCount      int     `json:"record_count"`
}

// FunnelStage is one bar of the admissions funnel.
type FunnelStage struct {
	Stage string `json:"stage"`
	Value int64  `json:"value"`
	// Share of applicants reaching this stage.
	Share Rate `json:"share"`
	// Conversion from the previous stage; undefined for the first stage.
	StageRate Rate `json:"stage_rate"`
}

// Funnel is the three-stage admissions funnel with leakage between stages.
type Funnel struct {
	Stages  []FunnelStage `json:"stages"`
	Leakage Leakage       `json:"leakage"`
}

// Leakage counts the students lost at each funnel stage.
type Leakage struct {
	NotAdmitted       int64 `json:"not_admitted"`
	AdmittedNotEnroll int64 `json:"admitted_not_enrolled"`
	Total             int64 `json:"total"`
	SelectionRate     Rate  `json:"selection_rate"`
	YieldRate         Rate  `json:"yield_rate"`
	Conversion        Rate  `json:"conversion_rate"`
}

// YearTrend aggregates the funnel for one year.
type YearTrend struct {
	Year             int   `json:"year"`
	Applicants       int64 `json:"applicants"`
	Admissions       int64 `json:"admissions"`
	Enrolled         int64 `json:"enrolled"`
	AdmitRate        Rate  `json:"admit_rate"`
	YieldRate        Rate  `json:"yield_rate"`
	Conversion       Rate  `json:"conversion_rate"`
	InstitutionCount int   `json:"institution_count"`
}

// DemographicYear is the enrollment-weighted composition for one year.
type DemographicYear struct {
	Year          int          `json:"year"`
	TotalEnrolled int64        `json:"total_enrolled"`
	Shares        Demographics `json:"shares"`
}

// StateSummary is one region of the choropleth map.
type StateSummary struct {
	State              string   `json:"state"`
	Region             string   `json:"region,omitempty"`
	Applicants         int64    `json:"applicants"`
	Admissions         int64    `json:"admissions"`
	Enrolled           int64    `json:"enrolled"`
	AdmitRate          Rate     `json:"admit_rate"`
	YieldRate          Rate     `json:"yield_rate"`
	InstitutionCount   int      `json:"institution_count"`
	SampleInstitutions []string `json:"sample_institutions"`
}

// InstitutionAggregate sums an institution's funnel over the selected years.
type InstitutionAggregate struct {
	Rank       int    `json:"rank"`
	Name       string `json:"institution"`
	State      string `json:"state,omitempty"`
	Size       string `json:"size,omitempty"`
	Applicants int64  `json:"applicants"`
	Admissions int64  `json:"admissions"`
	Enrolled   int64  `json:"enrolled"`
	AdmitRate  Rate   `json:"admit_rate"`
	YieldRate  Rate   `json:"yield_rate"`
	YearCount  int    `json:"year_count"`
}

// Growth compares an institution's enrollment between the first and last year selected.
type Growth struct {
	Name          string `json:"institution"`
	FirstYear     int    `json:"first_year"`
	LastYear      int    `json:"last_year"`
	EnrolledFirst int64  `json:"enrolled_first"`
	EnrolledLast  int64  `json:"enrolled_last"`
	Change        int64  `json:"change"`
	ChangePct     Rate   `json:"change_pct"`
}

// YearOverYear compares the pooled funnel of a year with the year before.
type YearOverYear struct {
	Year            int   `json:"year"`
	PreviousYear    *int  `json:"previous_year"`
	Applicants      int64 `json:"applicants"`
	Admissions      int64 `json:"admissions"`
	Enrolled        int64 `json:"enrolled"`
	AdmitRate       Rate  `json:"admit_rate"`
	YieldRate       Rate  `json:"yield_rate"`
	DeltaApplicants Rate  `json:"delta_applicants_pct"`
	DeltaAdmissions Rate  `json:"delta_admissions_pct"`
	DeltaEnrolled   Rate  `json:"delta_enrolled_pct"`
	DeltaAdmitRate  Rate  `json:"delta_admit_rate"`
	DeltaYieldRate  Rate  `json:"delta_yield_rate"`
}

// Decomposition splits a change in enrollment into funnel effects:
// enrolled = applicants × admit rate × yield rate.
type Decomposition struct {
	EnrolledBase     float64 `json:"enrolled_base"`
	EnrolledCompare  float64 `json:"enrolled_compare"`
	DeltaEnrolled    float64 `json:"delta_enrolled"`
	EffectApplicants float64 `json:"effect_applicants"`
	EffectAdmitRate  float64 `json:"effect_admit_rate"`
	EffectYieldRate  float64 `json:"effect_yield_rate"`
	Residual         float64 `json:"residual"`
	PrimaryDriver    string  `json:"primary_driver"`
}

// InstitutionChange explains one institution's movement since the previous year.
type InstitutionChange struct {
	Institution   string         `json:"institution"`
	Year          int            `json:"year"`
	YearOverYear  YearOverYear   `json:"year_over_year"`
	Decomposition *Decomposition `json:"decomposition,omitempty"`
}

// Interval is a confidence interval for a proportion.
type Interval struct {
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Confidence float64 `json:"confidence"`
}

// Percentiles is the standard distribution summary used for benchmarking.
type Percentiles struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// Standing locates one value in a distribution. Rank 1 is the highest value.
type Standing struct {
	Rank       int  `json:"rank,omitempty"`
	Total      int  `json:"total"`
	Percentile Rate `json:"percentile"`
}

// PeerStats summarises a metric over a peer group.
type PeerStats struct {
	Metric RankMetric `json:"metric"`
	Count  int        `json:"count"`
	Mean   float64    `json:"mean"`
	Median float64    `json:"median"`
	StdDev float64    `json:"std"`
	Min    float64    `json:"min"`
	Max    float64    `json:"max"`
	Percentiles
}

// PeerType selects how a peer group is formed.
type PeerType string

const (
	PeerNational      PeerType = "national"
	PeerSameRegion    PeerType = "same_region"
	PeerSameState     PeerType = "same_state"
	PeerSameType      PeerType = "same_type"
	PeerSameSize      PeerType = "same_size"
	PeerTopApplicants PeerType = "top_n_applicants"
	PeerSimilar       PeerType = "similar"
)

// PeerComparison is the benchmarking view for one institution.
type PeerComparison struct {
	Institution string                   `json:"institution"`
	Year        int                      `json:"year"`
	PeerType    PeerType                 `json:"peer_type"`
	PeerCount   int                      `json:"peer_count"`
	Peers       []string                 `json:"peers"`
	Stats       map[RankMetric]PeerStats `json:"stats"`
	Standing    map[RankMetric]Standing  `json:"standing"`
}

// SimilarInstitution is a nearest neighbour in standardised feature space.
type SimilarInstitution struct {
	Name           string  `json:"institution"`
	State          string  `json:"state,omitempty"`
	Distance       float64 `json:"distance"`
	Applicants     int64   `json:"applicants"`
	Enrolled       int64   `json:"enrolled"`
	AdmitRate      Rate    `json:"admit_rate"`
	YieldRate      Rate    `json:"yield_rate"`
	DiversityIndex float64 `json:"diversity_index"`
}

// Rankings places an institution nationally, in its state and in its region.
type Rankings struct {
	National map[RankMetric]Standing `json:"national"`
	State    map[RankMetric]Standing `json:"state"`
	Region   map[RankMetric]Standing `json:"region"`
}

// InsightLevel is the severity of a generated insight.
type InsightLevel string

const (
	InsightSuccess InsightLevel = "success"
	InsightWarning InsightLevel = "warning"
	InsightInfo    InsightLevel = "info"
	InsightDanger  InsightLevel = "danger"
)

// Insight is a rule-based observation about an institution.
type Insight struct {
	Level   InsightLevel `json:"type"`
	Metric  string       `json:"metric"`
	Message string       `json:"message"`
	Detail  string       `json:"detail"`
}

// InstitutionProfile is the single-institution page.
type InstitutionProfile struct {
	Identity
	Year          int                `json:"year"`
	Latest        EnrollmentRecord   `json:"latest"`
	History       []EnrollmentRecord `json:"history"`
	AdmitInterval Interval           `json:"admit_rate_interval"`
	YieldInterval Interval           `json:"yield_rate_interval"`
	Rankings      Rankings           `json:"rankings"`
	YearOverYear  *YearOverYear      `json:"year_over_year,omitempty"`
	Decomposition *Decomposition     `json:"decomposition,omitempty"`
	Insights      []Insight          `json:"insights"`
}

// SimulationInput describes a funnel baseline and the changes to apply.
type SimulationInput struct {
	BaseApplicants      int64   `json:"base_applicants" validate:"min=0"`
	BaseAdmitRate       float64 `json:"base_admit_rate" validate:"min=0,max=1"`
	BaseYieldRate       float64 `json:"base_yield_rate" validate:"min=0,max=1"`
	ApplicantsChangePct float64 `json:"applicants_change_pct" validate:"min=-100,max=1000"`
	AdmitRateChange     float64 `json:"admit_rate_change" validate:"min=-1,max=1"`
	YieldRateChange     float64 `json:"yield_rate_change" validate:"min=-1,max=1"`
}

// SimulationResult is the projected funnel.
type SimulationResult struct {
	BaseApplicants   int64   `json:"base_applicants"`
	BaseAdmitRate    float64 `json:"base_admit_rate"`
	BaseYieldRate    float64 `json:"base_yield_rate"`
	BaseEnrolled     float64 `json:"base_enrolled"`
	ProjApplicants   float64 `json:"projected_applicants"`
	ProjAdmitted     float64 `json:"projected_admitted"`
	ProjAdmitRate    float64 `json:"projected_admit_rate"`
	ProjYieldRate    float64 `json:"projected_yield_rate"`
	ProjEnrolled     float64 `json:"projected_enrolled"`
	ProjConversion   Rate    `json:"projected_conversion"`
	DeltaEnrolled    float64 `json:"delta_enrolled"`
	DeltaEnrolledPct Rate    `json:"delta_enrolled_pct"`
}

// GoalInput asks what it takes to reach an enrollment target.
type GoalInput struct {
	BaseApplicants int64   `json:"base_applicants" validate:"min=1"`
	BaseAdmitRate  float64 `json:"base_admit_rate" validate:"gt=0,max=1"`
	BaseYieldRate  float64 `json:"base_yield_rate" validate:"gt=0,max=1"`
	EnrollmentGoal int64   `json:"enrollment_goal" validate:"min=1"`
}

// Lever is one funnel input a recommendation adjusts.
type Lever string

const (
	LeverYieldRate  Lever = "yield_rate"
	LeverAdmitRate  Lever = "admit_rate"
	LeverApplicants Lever = "applicants"
)

// Recommendation is a single suggested change. Rate levers change in rate
// units, the applicants lever in percent.
type Recommendation struct {
	Lever    Lever   `json:"lever"`
	Change   float64 `json:"change"`
	Unit     string  `json:"unit"`
	Priority int     `json:"priority"`
	Message  string  `json:"message"`
}

// GoalPlan is the outcome of a goal search.
type GoalPlan struct {
	GoalMet         bool             `json:"goal_met"`
	Gap             float64          `json:"gap"`
	Message         string           `json:"message"`
	Recommendations []Recommendation `json:"recommendations"`
}
