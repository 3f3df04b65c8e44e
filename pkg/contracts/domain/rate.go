package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Rate is a ratio that may be undefined, e.g. yield for an institution that
// admitted nobody. The zero value is undefined. Undefined rates encode as JSON null.
type Rate struct {
	Value float64
	Valid bool
}

// UndefinedRate is the sentinel for a ratio with a zero denominator.
var UndefinedRate = Rate{}

// NewRate divides num by den, returning UndefinedRate when den is zero or
// the result is not finite.
func NewRate(num, den float64) Rate {
	if den == 0 {
		return UndefinedRate
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return UndefinedRate
	}
	return Rate{Value: v, Valid: true}
}

// DefinedRate wraps a known value.
func DefinedRate(v float64) Rate {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return UndefinedRate
	}
	return Rate{Value: v, Valid: true}
}

// Float64 returns the value and whether it is defined.
func (r Rate) Float64() (float64, bool) {
	return r.Value, r.Valid
}

// Percent returns the rate scaled to 0-100, keeping undefined as undefined.
func (r Rate) Percent() Rate {
	if !r.Valid {
		return r
	}
	return Rate{Value: r.Value * 100, Valid: true}
}

// Sub returns r - other; undefined if either side is.
func (r Rate) Sub(other Rate) Rate {
	if !r.Valid || !other.Valid {
		return UndefinedRate
	}
	return Rate{Value: r.Value - other.Value, Valid: true}
}

// Round returns the rate rounded to the given number of decimals.
func (r Rate) Round(decimals int) Rate {
	if !r.Valid {
		return r
	}
	p := math.Pow(10, float64(decimals))
	return Rate{Value: math.Round(r.Value*p) / p, Valid: true}
}

func (r Rate) String() string {
	if !r.Valid {
		return "undefined"
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

// MarshalJSON implements json.Marshaler.
func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Rate) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = UndefinedRate
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = DefinedRate(v)
	return nil
}
