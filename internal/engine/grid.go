package engine

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// PairKey identifies a hypothetical trade: buy at the close Buy days from the
// anchor, sell at the close Sell days from the anchor.
type PairKey struct {
	Buy  int
	Sell int
}

// String formats the key as "(buy,sell)"
func (k PairKey) String() string {
	return "(" + strconv.Itoa(k.Buy) + "," + strconv.Itoa(k.Sell) + ")"
}

// HoldingTime is the number of calendar days the position is held
func (k PairKey) HoldingTime() int {
	return k.Sell - k.Buy
}

// ParsePairKey parses "(buy,sell)". Whitespace around the numbers is allowed.
func ParsePairKey(s string) (PairKey, error) {
	s = strings.TrimSpace(s)
	if len(s) < 5 || s[0] != '(' || s[len(s)-1] != ')' {
		return PairKey{}, fmt.Errorf("malformed pair key %q", s)
	}
	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != 2 {
		return PairKey{}, fmt.Errorf("malformed pair key %q", s)
	}
	buy, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return PairKey{}, fmt.Errorf("malformed pair key %q: %w", s, err)
	}
	sell, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return PairKey{}, fmt.Errorf("malformed pair key %q: %w", s, err)
	}
	return PairKey{Buy: buy, Sell: sell}, nil
}

// PairCell is one (buy, sell) return inside a CombinationRow
type PairCell struct {
	Key    PairKey
	Change Change
}

// CombinationRow holds every admissible (buy, sell) return for one anchor,
// ordered by buy offset then sell offset.
type CombinationRow struct {
	Anchor time.Time
	Cells  []PairCell
}

// Get returns the cell for key, if the row has one
func (r CombinationRow) Get(key PairKey) (Change, bool) {
	for _, c := range r.Cells {
		if c.Key == key {
			return c.Change, true
		}
	}
	return Absent, false
}

// GridConfig configures the combination grid
type GridConfig struct {
	Buy     Range
	Sell    Range
	Workers int // 0 uses runtime.NumCPU()
}

// Validate checks that both ranges are non-empty
func (c GridConfig) Validate() error {
	if c.Buy.Len() == 0 {
		return fmt.Errorf("%w: buy offsets [%d,%d]", ErrInvalidRange, c.Buy.From, c.Buy.To)
	}
	if c.Sell.Len() == 0 {
		return fmt.Errorf("%w: sell offsets [%d,%d]", ErrInvalidRange, c.Sell.From, c.Sell.To)
	}
	return nil
}

// ProgressCallback is called with progress updates
type ProgressCallback func(done, total int)

// Grid computes combination rows for many anchors in parallel
type Grid struct {
	config       GridConfig
	progressFunc ProgressCallback
}

// NewGrid creates a grid generator
func NewGrid(cfg GridConfig) *Grid {
	return &Grid{config: cfg}
}

// SetProgressCallback sets the progress callback function
func (g *Grid) SetProgressCallback(fn ProgressCallback) {
	g.progressFunc = fn
}

// Compute returns one row per realized anchor, in anchor input order. Each
// anchor is an independent job; the index is shared read-only.
func (g *Grid) Compute(idx *PriceIndex, anchors []time.Time, today time.Time) []CombinationRow {
	if len(anchors) == 0 {
		return []CombinationRow{}
	}

	workers := g.config.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > len(anchors) {
		workers = len(anchors)
	}

	todayDay := DayOf(today)
	rows := make([]CombinationRow, len(anchors))
	skipped := make([]bool, len(anchors))

	jobChan := make(chan int, len(anchors))
	for i := range anchors {
		jobChan <- i
	}
	close(jobChan)

	var done int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobChan {
				day := DayOf(anchors[i])
				if day > todayDay {
					skipped[i] = true
				} else {
					rows[i] = anchorRow(idx, day, g.config.Buy, g.config.Sell)
				}

				count := atomic.AddInt64(&done, 1)
				if g.progressFunc != nil {
					g.progressFunc(int(count), len(anchors))
				}
			}
		}()
	}
	wg.Wait()

	out := rows[:0]
	for i := range rows {
		if !skipped[i] {
			out = append(out, rows[i])
		}
	}
	return out
}

// ComputeGrid is a convenience wrapper around NewGrid(cfg).Compute
func ComputeGrid(idx *PriceIndex, anchors []time.Time, cfg GridConfig, today time.Time) []CombinationRow {
	return NewGrid(cfg).Compute(idx, anchors, today)
}

type memoPrice struct {
	price float64
	ok    bool
}

// anchorRow brute-forces every buy < sell pair for one anchor. The memo is
// local to this call.
func anchorRow(idx *PriceIndex, anchor Day, buyRange, sellRange Range) CombinationRow {
	memo := make(map[Day]memoPrice, buyRange.Len()+sellRange.Len())
	closeAt := func(offset int) (float64, bool) {
		d := anchor.Add(offset)
		if m, ok := memo[d]; ok {
			return m.price, m.ok
		}
		p, ok := idx.Lookup(d, Close)
		memo[d] = memoPrice{price: p, ok: ok}
		return p, ok
	}

	row := CombinationRow{Anchor: anchor.Time()}
	for x := buyRange.From; x <= buyRange.To; x++ {
		buy, ok := closeAt(x)
		if !ok {
			continue
		}
		for y := sellRange.From; y <= sellRange.To; y++ {
			if y <= x {
				continue
			}
			key := PairKey{Buy: x, Sell: y}
			sell, ok := closeAt(y)
			if !ok {
				row.Cells = append(row.Cells, PairCell{Key: key, Change: Absent})
				continue
			}
			row.Cells = append(row.Cells, PairCell{Key: key, Change: Present(round2((sell - buy) / buy * 100))})
		}
	}
	return row
}
