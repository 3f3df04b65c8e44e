// Package api contains API contract definitions for the enrollment analytics service.
// Version v1 represents the current stable API version.
package api

import (
	"ipedspulse/pkg/contracts/domain"
)

// PaginationRequest represents common pagination parameters
type PaginationRequest struct {
	Limit  int `json:"limit" query:"limit" validate:"min=0,max=5000"`
	Offset int `json:"offset" query:"offset" validate:"min=0"`
}

// TopRequest selects the leaderboard of the overview page
type TopRequest struct {
	Metric      string `json:"metric" query:"metric" validate:"required,oneof=applicants admissions enrolled admit_rate yield_rate"`
	Limit       int    `json:"limit" query:"limit" validate:"min=1,max=100"`
	MinEnrolled int64  `json:"min_enrolled" query:"min_enrolled" validate:"min=0"`
}

// InstitutionRequest addresses one institution for a given year
type InstitutionRequest struct {
	Name string `json:"name" param:"name" validate:"required,institution"`
	// Year defaults to the latest year the institution reported.
	Year int `json:"year" query:"year" validate:"omitempty,min=1900,max=2100"`
}

// PeerRequest configures a peer comparison
type PeerRequest struct {
	InstitutionRequest
	PeerType string `json:"peer_type" query:"peer_type" validate:"omitempty,oneof=national same_region same_state same_type same_size top_n_applicants similar"`
	N        int    `json:"n" query:"n" validate:"min=1,max=200"`
}

// SimilarRequest configures a nearest-neighbour search
type SimilarRequest struct {
	InstitutionRequest
	K int `json:"k" query:"k" validate:"min=1,max=100"`
}

// SimulationRequest projects the funnel. When Institution is set, the
// baseline is taken from the dataset and the Base* fields are ignored.
type SimulationRequest struct {
	Institution string `json:"institution,omitempty" validate:"omitempty,institution"`
	Year        int    `json:"year,omitempty" validate:"omitempty,min=1900,max=2100"`
	domain.SimulationInput
}

// GoalRequest asks for the changes needed to reach an enrollment goal.
// Baseline resolution follows SimulationRequest.
type GoalRequest struct {
	Institution    string  `json:"institution,omitempty"`
	Year           int     `json:"year,omitempty" validate:"omitempty,min=1900,max=2100"`
	BaseApplicants int64   `json:"base_applicants" validate:"min=0"`
	BaseAdmitRate  float64 `json:"base_admit_rate" validate:"min=0,max=1"`
	BaseYieldRate  float64 `json:"base_yield_rate" validate:"min=0,max=1"`
	EnrollmentGoal int64   `json:"enrollment_goal" validate:"required,min=1"`
}
