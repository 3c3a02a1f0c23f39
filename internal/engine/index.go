package engine

import (
	"math"
	"time"

	"eventedge/pkg/model"
)

// Day is a calendar date counted in days since 1970-01-01
type Day int32

const secondsPerDay = 24 * 60 * 60

// DayOf returns the calendar day of t, ignoring the clock
func DayOf(t time.Time) Day {
	return Day(model.CivilDate(t).Unix() / secondsPerDay)
}

// Add shifts the day by n calendar days
func (d Day) Add(n int) Day {
	return d + Day(n)
}

// Time returns midnight UTC of the day
func (d Day) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

func (d Day) String() string {
	return d.Time().Format(model.DateLayout)
}

// Field selects which price of a bar a lookup returns
type Field int

const (
	Close Field = iota
	Open
)

type quote struct {
	open  float64
	close float64
}

// PriceIndex is an exact-date lookup over daily bars. It is never mutated
// after Build and is safe to share between goroutines.
type PriceIndex struct {
	bars map[Day]quote
}

// BuildIndex indexes bars by calendar date. A later bar for the same date
// replaces an earlier one.
func BuildIndex(bars []model.PriceBar) *PriceIndex {
	idx := &PriceIndex{bars: make(map[Day]quote, len(bars))}
	for _, b := range bars {
		idx.bars[DayOf(b.Date)] = quote{open: b.Open, close: b.Close}
	}
	return idx
}

// Lookup returns the requested price on day d. Missing days are reported as
// absent; there is no interpolation. A zero, negative or non-finite price is
// a bad vendor row and is reported as absent too, so it never becomes a
// divisor.
func (p *PriceIndex) Lookup(d Day, f Field) (float64, bool) {
	q, ok := p.bars[d]
	if !ok {
		return 0, false
	}
	price := q.close
	if f == Open {
		price = q.open
	}
	if !usablePrice(price) {
		return 0, false
	}
	return price, true
}

func usablePrice(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// Len returns the number of indexed trading days
func (p *PriceIndex) Len() int {
	return len(p.bars)
}
