package dataset

import (
	"sort"

	"ipedspulse/pkg/contracts/domain"
)

// Table is a read-only collection of EnrollmentRecords sorted by institution
// name, then year. It is safe for concurrent use.
type Table struct {
	records []domain.EnrollmentRecord
	index   map[string]int

	years          []int
	institutions   []string
	states         []string
	regions        []string
	types          []string
	sizes          []string
	statesByRegion map[string][]string
}

// NewTable copies records into a new table.
func NewTable(records []domain.EnrollmentRecord) *Table {
	own := make([]domain.EnrollmentRecord, len(records))
	copy(own, records)
	sort.SliceStable(own, func(i, j int) bool {
		if own[i].Name != own[j].Name {
			return own[i].Name < own[j].Name
		}
		return own[i].Year < own[j].Year
	})
	return newTable(own)
}

// newTable indexes records that are already sorted and owned by the table.
func newTable(records []domain.EnrollmentRecord) *Table {
	t := &Table{
		records:        records,
		index:          make(map[string]int, len(records)),
		statesByRegion: make(map[string][]string),
	}

	years := make(map[int]struct{})
	institutions := make(map[string]struct{})
	states := make(map[string]struct{})
	regions := make(map[string]struct{})
	types := make(map[string]struct{})
	sizes := make(map[string]struct{})
	regionStates := make(map[string]map[string]struct{})

	for i, r := range records {
		t.index[r.Key()] = i
		years[r.Year] = struct{}{}
		institutions[r.Name] = struct{}{}
		addNonEmpty(states, r.State)
		addNonEmpty(regions, r.Region)
		addNonEmpty(types, r.Type)
		addNonEmpty(sizes, r.Size)
		if r.Region != "" && r.State != "" {
			if regionStates[r.Region] == nil {
				regionStates[r.Region] = make(map[string]struct{})
			}
			regionStates[r.Region][r.State] = struct{}{}
		}
	}

	for y := range years {
		t.years = append(t.years, y)
	}
	sort.Ints(t.years)
	t.institutions = sortedKeys(institutions)
	t.states = sortedKeys(states)
	t.regions = sortedKeys(regions)
	t.types = sortedKeys(types)
	t.sizes = sortedKeys(sizes)
	for region, set := range regionStates {
		t.statesByRegion[region] = sortedKeys(set)
	}
	return t
}

// Records returns a copy of the records.
func (t *Table) Records() []domain.EnrollmentRecord {
	out := make([]domain.EnrollmentRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.records) }

// Empty reports whether the table has no records.
func (t *Table) Empty() bool { return len(t.records) == 0 }

// ByYear keeps the records of one year.
func (t *Table) ByYear(year int) *Table {
	return t.Where(domain.Filter{Years: []int{year}})
}

// ByInstitutions keeps the records of the named institutions.
// No names keeps everything.
func (t *Table) ByInstitutions(names ...string) *Table {
	return t.Where(domain.Filter{Institutions: names})
}

// Where keeps the records matching every non-empty predicate of f.
func (t *Table) Where(f domain.Filter) *Table {
	if f.IsEmpty() {
		return t
	}
	out := make([]domain.EnrollmentRecord, 0, len(t.records))
	for _, r := range t.records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return newTable(out)
}

// Find returns the record of an institution in a year.
func (t *Table) Find(name string, year int) (domain.EnrollmentRecord, bool) {
	i, ok := t.index[domain.EnrollmentRecord{Identity: domain.Identity{Name: name}, Year: year}.Key()]
	if !ok {
		return domain.EnrollmentRecord{}, false
	}
	return t.records[i], true
}

// HasInstitution reports whether any record carries name.
func (t *Table) HasInstitution(name string) bool {
	i := sort.SearchStrings(t.institutions, name)
	return i < len(t.institutions) && t.institutions[i] == name
}

// Years returns the distinct years, ascending.
func (t *Table) Years() []int { return append([]int(nil), t.years...) }

// Institutions returns the distinct institution names, sorted.
func (t *Table) Institutions() []string { return append([]string(nil), t.institutions...) }

// States returns the distinct state codes, sorted.
func (t *Table) States() []string { return append([]string(nil), t.states...) }

// Regions returns the distinct regions, sorted.
func (t *Table) Regions() []string { return append([]string(nil), t.regions...) }

// Types returns the distinct institution types, sorted.
func (t *Table) Types() []string { return append([]string(nil), t.types...) }

// Sizes returns the distinct size bands, sorted.
func (t *Table) Sizes() []string { return append([]string(nil), t.sizes...) }

// StatesByRegion maps each region to its sorted state codes.
func (t *Table) StatesByRegion() map[string][]string {
	out := make(map[string][]string, len(t.statesByRegion))
	for k, v := range t.statesByRegion {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// FilterOptions lists the values a client can filter on.
func (t *Table) FilterOptions() domain.FilterOptions {
	return domain.FilterOptions{
		Years:          t.Years(),
		Institutions:   t.Institutions(),
		States:         t.States(),
		Regions:        t.Regions(),
		StatesByRegion: t.StatesByRegion(),
		Types:          t.Types(),
		Sizes:          t.Sizes(),
	}
}

func addNonEmpty(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
