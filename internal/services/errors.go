package services

import "errors"

// Dataset service errors
var (
	// Selection errors
	ErrNoData = errors.New("no records match the selection")

	// Institution errors
	ErrInstitutionNotFound = errors.New("institution not found")

	// Input errors
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrInvalidMetric   = errors.New("invalid metric")
	ErrInvalidPeerType = errors.New("invalid peer type")
	ErrInvalidBaseline = errors.New("invalid simulation baseline")

	// General errors
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
