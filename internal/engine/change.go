package engine

import (
	"encoding/json"
	"math"
	"strconv"
)

// Change is a percentage return that may be absent because a price was missing
type Change struct {
	Pct   float64
	Valid bool
}

// Present wraps a computed percentage
func Present(pct float64) Change {
	return Change{Pct: pct, Valid: true}
}

// Absent is the zero Change
var Absent = Change{}

// Sign is +1, -1 or 0. Absent values count as 0.
func (c Change) Sign() int {
	switch {
	case !c.Valid:
		return 0
	case c.Pct > 0:
		return 1
	case c.Pct < 0:
		return -1
	default:
		return 0
	}
}

func (c Change) String() string {
	if !c.Valid {
		return "-"
	}
	return strconv.FormatFloat(c.Pct, 'f', 2, 64)
}

// MarshalJSON encodes an absent value as null
func (c Change) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.Pct)
}

// UnmarshalJSON accepts a number or null
func (c *Change) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Absent
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Present(v)
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
