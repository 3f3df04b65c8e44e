package domain

import (
	"sort"
	"strconv"
	"strings"
)

// Filter selects records from the dataset. Empty fields match everything;
// non-empty fields are combined with AND, values within a field with OR.
type Filter struct {
	Years        []int    `json:"years,omitempty" validate:"omitempty,dive,min=1900,max=2100"`
	Institutions []string `json:"institutions,omitempty" validate:"omitempty,dive,required"`
	States       []string `json:"states,omitempty" validate:"omitempty,dive,required"`
	Regions      []string `json:"regions,omitempty" validate:"omitempty,dive,required"`
	Types        []string `json:"types,omitempty" validate:"omitempty,dive,required"`
	Sizes        []string `json:"sizes,omitempty" validate:"omitempty,dive,required"`
}

// IsEmpty reports whether the filter selects the whole dataset.
func (f Filter) IsEmpty() bool {
	return len(f.Years) == 0 && len(f.Institutions) == 0 && len(f.States) == 0 &&
		len(f.Regions) == 0 && len(f.Types) == 0 && len(f.Sizes) == 0
}

// Normalize returns a copy with every field sorted and de-duplicated, so that
// filters selecting the same records compare and hash equal.
func (f Filter) Normalize() Filter {
	out := Filter{
		Institutions: uniqueStrings(f.Institutions),
		States:       uniqueStrings(f.States),
		Regions:      uniqueStrings(f.Regions),
		Types:        uniqueStrings(f.Types),
		Sizes:        uniqueStrings(f.Sizes),
	}
	if len(f.Years) > 0 {
		seen := make(map[int]struct{}, len(f.Years))
		for _, y := range f.Years {
			if _, ok := seen[y]; ok {
				continue
			}
			seen[y] = struct{}{}
			out.Years = append(out.Years, y)
		}
		sort.Ints(out.Years)
	}
	return out
}

// Key is the canonical cache key of the filter tuple. Values are quoted so
// that names containing separators cannot collide.
func (f Filter) Key() string {
	n := f.Normalize()
	years := make([]string, len(n.Years))
	for i, y := range n.Years {
		years[i] = strconv.Itoa(y)
	}
	parts := []string{
		"y=" + strings.Join(years, ","),
		"i=" + quoteJoin(n.Institutions),
		"s=" + quoteJoin(n.States),
		"r=" + quoteJoin(n.Regions),
		"t=" + quoteJoin(n.Types),
		"z=" + quoteJoin(n.Sizes),
	}
	return strings.Join(parts, ";")
}

func quoteJoin(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return strings.Join(quoted, ",")
}

// Matches reports whether a record satisfies every non-empty predicate.
func (f Filter) Matches(r EnrollmentRecord) bool {
	if len(f.Years) > 0 && !containsInt(f.Years, r.Year) {
		return false
	}
	if len(f.Institutions) > 0 && !containsString(f.Institutions, r.Name) {
		return false
	}
	if len(f.States) > 0 && !containsString(f.States, r.State) {
		return false
	}
	if len(f.Regions) > 0 && !containsString(f.Regions, r.Region) {
		return false
	}
	if len(f.Types) > 0 && !containsString(f.Types, r.Type) {
		return false
	}
	if len(f.Sizes) > 0 && !containsString(f.Sizes, r.Size) {
		return false
	}
	return true
}

// FilterOptions lists the values available to build a Filter.
type FilterOptions struct {
	Years          []int               `json:"years"`
	Institutions   []string            `json:"institutions"`
	States         []string            `json:"states"`
	Regions        []string            `json:"regions"`
	StatesByRegion map[string][]string `json:"states_by_region"`
	Types          []string            `json:"types"`
	Sizes          []string            `json:"sizes"`
}

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
