package engine

import "time"

// FixedOffsetRow holds the returns measured at each fixed offset around one anchor
type FixedOffsetRow struct {
	Anchor time.Time      `json:"anchor"`
	Values map[int]Change `json:"values"`
}

// FixedConfig configures the fixed-offset differ
type FixedConfig struct {
	Offsets []int
	// FallbackDays, when positive, retries a missing close for offsets at
	// least a week away by moving FallbackDays further from the anchor.
	// Zero keeps missing prices absent.
	FallbackDays int
}

// ComputeFixed measures, for every realized anchor with a close on the
// anchor date, the percentage change between the anchor and each offset.
//
// Offsets at or before the anchor measure the run-up into the event: the
// anchor close is the sell side. Offset 0 compares against the anchor's own
// open. Offsets after the anchor measure the move following it, relative to
// the later close.
func ComputeFixed(idx *PriceIndex, anchors []time.Time, cfg FixedConfig, today time.Time) []FixedOffsetRow {
	todayDay := DayOf(today)
	rows := make([]FixedOffsetRow, 0, len(anchors))

	for _, a := range anchors {
		day := DayOf(a)
		if day > todayDay {
			continue
		}

		base, ok := idx.Lookup(day, Close)
		if !ok {
			continue
		}

		row := FixedOffsetRow{
			Anchor: day.Time(),
			Values: make(map[int]Change, len(cfg.Offsets)),
		}
		for _, offset := range cfg.Offsets {
			price, ok := fixedComparison(idx, day, offset, cfg.FallbackDays)
			if !ok {
				row.Values[offset] = Absent
				continue
			}
			var pct float64
			if offset <= 0 {
				pct = (base - price) / base * 100
			} else {
				pct = (price - base) / price * 100
			}
			row.Values[offset] = Present(round2(pct))
		}
		rows = append(rows, row)
	}
	return rows
}

func fixedComparison(idx *PriceIndex, anchor Day, offset, fallbackDays int) (float64, bool) {
	if offset == 0 {
		return idx.Lookup(anchor, Open)
	}
	if price, ok := idx.Lookup(anchor.Add(offset), Close); ok {
		return price, true
	}
	if fallbackDays <= 0 {
		return 0, false
	}
	switch {
	case offset >= 7:
		return idx.Lookup(anchor.Add(offset+fallbackDays), Close)
	case offset <= -7:
		return idx.Lookup(anchor.Add(offset-fallbackDays), Close)
	}
	return 0, false
}

// HitPoint is the number of positive values minus the number of negative
// values in a row. Absent values are ignored.
func HitPoint(row FixedOffsetRow) int {
	hp := 0
	for _, v := range row.Values {
		hp += v.Sign()
	}
	return hp
}

// CumulativeHitPoint sums the sign of each offset's value over all rows.
// Every offset in the set is present in the result, even with no rows.
func CumulativeHitPoint(rows []FixedOffsetRow, offsets []int) map[int]int {
	out := make(map[int]int, len(offsets))
	for _, o := range offsets {
		out[o] = 0
	}
	for _, row := range rows {
		for _, o := range offsets {
			out[o] += row.Values[o].Sign()
		}
	}
	return out
}
