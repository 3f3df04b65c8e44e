package dataset

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipedspulse/internal/dataprocessing"
	"ipedspulse/internal/shared/testutil"
	"ipedspulse/pkg/contracts/domain"
)

func standardTable(t *testing.T) *Table {
	t.Helper()
	raw, err := dataprocessing.NewParser(nil, "").ParseCSV(context.Background(), strings.NewReader(testutil.StandardCSV()), "standard.csv")
	require.NoError(t, err)
	records, _, err := dataprocessing.NewReshaper(nil, dataprocessing.DefaultReshapeConfig()).Reshape(context.Background(), raw.Records)
	require.NoError(t, err)
	return NewTable(records)
}

func TestTable_ByYear(t *testing.T) {
	tbl := standardTable(t)

	got := tbl.ByYear(2024)
	require.Equal(t, 2, got.Len())
	for _, r := range got.Records() {
		assert.Equal(t, 2024, r.Year)
	}
	assert.Equal(t, []int{2024}, got.Years())
	assert.True(t, tbl.ByYear(1999).Empty())
}

func TestTable_ByInstitutions(t *testing.T) {
	tbl := standardTable(t)

	got := tbl.ByInstitutions("Beta College", "Nowhere")
	require.Equal(t, 2, got.Len(), "Beta College lost its 2024 record")
	assert.Equal(t, []string{"Beta College"}, got.Institutions())

	assert.Same(t, tbl, tbl.ByInstitutions(), "no names selects everything")
}

func TestTable_FiltersCommute(t *testing.T) {
	tbl := standardTable(t)

	for _, year := range []int{2022, 2023, 2024, 2030} {
		for _, names := range [][]string{{"Alpha U"}, {"Beta College", "Gamma Institute"}, {"Nowhere"}} {
			a := tbl.ByYear(year).ByInstitutions(names...).Records()
			b := tbl.ByInstitutions(names...).ByYear(year).Records()
			if diff := cmp.Diff(a, b); diff != "" {
				t.Errorf("year %d names %v: order of filters matters (-year first +names first):\n%s", year, names, diff)
			}

			c := tbl.Where(domain.Filter{Years: []int{year}, Institutions: names}).Records()
			if diff := cmp.Diff(a, c); diff != "" {
				t.Errorf("year %d names %v: Where differs from chained filters:\n%s", year, names, diff)
			}
		}
	}
}

func TestTable_Where(t *testing.T) {
	tbl := standardTable(t)

	tests := []struct {
		name   string
		filter domain.Filter
		want   int
	}{
		{name: "empty", filter: domain.Filter{}, want: 8},
		{name: "state", filter: domain.Filter{States: []string{"TX"}}, want: 3},
		{name: "region and year", filter: domain.Filter{Regions: []string{"West", "South"}, Years: []int{2022}}, want: 2},
		{name: "type", filter: domain.Filter{Types: []string{"Private"}}, want: 2},
		{name: "size", filter: domain.Filter{Sizes: []string{"Medium"}}, want: 3},
		{name: "no match", filter: domain.Filter{States: []string{"ZZ"}}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tbl.Where(tt.filter)
			assert.Equal(t, tt.want, got.Len())
			for _, r := range got.Records() {
				assert.True(t, tt.filter.Matches(r))
			}
		})
	}
}

func TestTable_Find(t *testing.T) {
	tbl := standardTable(t)

	r, ok := tbl.Find("Alpha U", 2022)
	require.True(t, ok)
	assert.Equal(t, 0.7, r.AdmitRate.Value)

	_, ok = tbl.Find("Beta College", 2024)
	assert.False(t, ok)
	assert.True(t, tbl.HasInstitution("Gamma Institute"))
	assert.False(t, tbl.HasInstitution("Gamma"))
}

func TestTable_RecordsIsACopy(t *testing.T) {
	tbl := standardTable(t)

	records := tbl.Records()
	records[0].Name = "Mutated"

	r, ok := tbl.Find("Alpha U", 2022)
	require.True(t, ok)
	assert.Equal(t, "Alpha U", r.Name)
	assert.Equal(t, "Alpha U", tbl.Records()[0].Name)
}

func TestTable_FilterOptions(t *testing.T) {
	opts := standardTable(t).FilterOptions()

	assert.Equal(t, []int{2022, 2023, 2024}, opts.Years)
	assert.Equal(t, []string{"Alpha U", "Beta College", "Gamma Institute"}, opts.Institutions)
	assert.Equal(t, []string{"CA", "NY", "TX"}, opts.States)
	assert.Equal(t, []string{"Northeast", "South", "West"}, opts.Regions)
	assert.Equal(t, map[string][]string{"Northeast": {"NY"}, "South": {"TX"}, "West": {"CA"}}, opts.StatesByRegion)
	assert.Equal(t, []string{"Private", "Public"}, opts.Types)
	assert.Equal(t, []string{"Medium", "Small"}, opts.Sizes)
}

func TestNewTable_SortsAndCopies(t *testing.T) {
	in := []domain.EnrollmentRecord{
		{Identity: domain.Identity{Name: "B"}, Year: 2023},
		{Identity: domain.Identity{Name: "A"}, Year: 2024},
		{Identity: domain.Identity{Name: "A"}, Year: 2022},
	}
	tbl := NewTable(in)
	in[0].Name = "Z"

	var keys []string
	for _, r := range tbl.Records() {
		keys = append(keys, r.Key())
	}
	assert.Equal(t, []string{"A|2022", "A|2024", "B|2023"}, keys)
}
