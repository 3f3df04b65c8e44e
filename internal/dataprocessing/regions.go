package dataprocessing

import "strings"

// Census regions used when the source file carries no region column.
const (
	RegionNortheast = "Northeast"
	RegionMidwest   = "Midwest"
	RegionSouth     = "South"
	RegionWest      = "West"
	RegionOther     = "Other"
)

// Size bands derived from mean first-time enrollment.
const (
	SizeSmall  = "Small"
	SizeMedium = "Medium"
	SizeLarge  = "Large"
)

var stateRegions = func() map[string]string {
	groups := map[string][]string{
		RegionNortheast: {"CT", "ME", "MA", "NH", "RI", "VT", "NJ", "NY", "PA"},
		RegionMidwest:   {"IL", "IN", "MI", "OH", "WI", "IA", "KS", "MN", "MO", "NE", "ND", "SD"},
		RegionSouth: {"DE", "FL", "GA", "MD", "NC", "SC", "VA", "DC", "WV",
			"AL", "KY", "MS", "TN", "AR", "LA", "OK", "TX"},
		RegionWest: {"AZ", "CO", "ID", "MT", "NV", "NM", "UT", "WY", "AK", "CA", "HI", "OR", "WA"},
	}
	m := make(map[string]string, 51)
	for region, states := range groups {
		for _, s := range states {
			m[s] = region
		}
	}
	return m
}()

// RegionForState maps a two-letter state code to its census region.
// Territories and unknown codes map to RegionOther.
func RegionForState(state string) string {
	if r, ok := stateRegions[strings.ToUpper(strings.TrimSpace(state))]; ok {
		return r
	}
	return RegionOther
}

// SizeForEnrollment buckets an institution by its mean enrolled count.
func SizeForEnrollment(meanEnrolled float64) string {
	switch {
	case meanEnrolled < 500:
		return SizeSmall
	case meanEnrolled < 2000:
		return SizeMedium
	default:
		return SizeLarge
	}
}
