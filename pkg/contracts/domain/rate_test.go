package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRate(t *testing.T) {
	tests := []struct {
		name      string
		num       float64
		den       float64
		wantValid bool
		wantValue float64
	}{
		{name: "regular ratio", num: 700, den: 1000, wantValid: true, wantValue: 0.7},
		{name: "zero numerator", num: 0, den: 50, wantValid: true, wantValue: 0},
		{name: "zero denominator", num: 10, den: 0, wantValid: false},
		{name: "zero over zero", num: 0, den: 0, wantValid: false},
		{name: "infinite denominator", num: 1, den: math.Inf(1), wantValid: true, wantValue: 0},
		{name: "nan numerator", num: math.NaN(), den: 3, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRate(tt.num, tt.den)
			assert.Equal(t, tt.wantValid, r.Valid)
			if tt.wantValid {
				assert.InDelta(t, tt.wantValue, r.Value, 1e-12)
			}
		})
	}
}

func TestRateJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Rate `json:"a"`
		B Rate `json:"b"`
	}{A: NewRate(1, 4), B: UndefinedRate})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":0.25,"b":null}`, string(data))

	var decoded struct {
		A Rate `json:"a"`
		B Rate `json:"b"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.A.Valid)
	assert.Equal(t, 0.25, decoded.A.Value)
	assert.False(t, decoded.B.Valid)
}

func TestRateArithmetic(t *testing.T) {
	a := DefinedRate(0.5)
	b := DefinedRate(0.2)

	assert.InDelta(t, 0.3, a.Sub(b).Value, 1e-12)
	assert.False(t, a.Sub(UndefinedRate).Valid)
	assert.False(t, UndefinedRate.Sub(a).Valid)
	assert.Equal(t, 50.0, a.Percent().Value)
	assert.False(t, UndefinedRate.Percent().Valid)
	assert.Equal(t, 0.214, NewRate(150, 700).Round(3).Value)
	assert.Equal(t, "undefined", UndefinedRate.String())
	assert.Equal(t, "0.5", a.String())
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "applicants_2022", ColumnName(MetricApplicants, 2022))
	assert.Equal(t, "pct_hispanic_2023", ColumnName(MetricPctHispanic, 2023))

	m, y, ok := ParseColumnName("pct_other_2024")
	require.True(t, ok)
	assert.Equal(t, MetricPctOther, m)
	assert.Equal(t, 2024, y)

	for _, bad := range []string{"name", "applicants_", "unknown_2022", "applicants_20x2", "_2022"} {
		_, _, ok := ParseColumnName(bad)
		assert.False(t, ok, bad)
	}
}
