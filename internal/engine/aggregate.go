package engine

import (
	"math"
	"runtime"
	"sort"
	"sync"
)

// UnusableHoldingTime marks a statistic whose key could not be parsed. It is
// larger than any finite holding-time bound, so filters drop it.
const UnusableHoldingTime = math.MaxInt

// PairStatistic summarizes one (buy, sell) pair across all anchors
type PairStatistic struct {
	Key           string  `json:"key"`
	HitPoint      int     `json:"hit_point"`
	AverageReturn float64 `json:"average_return"`
	SampleCount   int     `json:"sample_count"`
	HoldingTime   int     `json:"holding_time"`
}

// NewPairStatistic builds a statistic from raw totals. The holding time is
// parsed from key; a malformed key gets UnusableHoldingTime.
func NewPairStatistic(key string, hitPoint int, sum float64, count int) PairStatistic {
	avg := 0.0
	if count > 0 {
		avg = sum / float64(count)
	}
	return PairStatistic{
		Key:           key,
		HitPoint:      hitPoint,
		AverageReturn: avg,
		SampleCount:   count,
		HoldingTime:   holdingTimeOf(key),
	}
}

func holdingTimeOf(key string) int {
	k, err := ParsePairKey(key)
	if err != nil {
		return UnusableHoldingTime
	}
	return k.HoldingTime()
}

// Accumulator is the running total for one pair. Sums are kept in
// hundredths of a percent so that merging is exact in any order.
type Accumulator struct {
	HitPoint int
	SumCents int64
	Count    int
}

// Add folds one cell into the accumulator. Absent values register nothing.
func (a *Accumulator) Add(c Change) {
	if !c.Valid {
		return
	}
	a.HitPoint += c.Sign()
	a.SumCents += int64(math.Round(c.Pct * 100))
	a.Count++
}

// Merge adds another accumulator's totals
func (a *Accumulator) Merge(b Accumulator) {
	a.HitPoint += b.HitPoint
	a.SumCents += b.SumCents
	a.Count += b.Count
}

// Partial is a per-pair reduction over some subset of rows
type Partial map[PairKey]*Accumulator

// Reduce accumulates rows into a fresh partial. A pair seen only with absent
// values still gets an (empty) entry.
func Reduce(rows []CombinationRow) Partial {
	p := make(Partial)
	for _, row := range rows {
		for _, cell := range row.Cells {
			acc, ok := p[cell.Key]
			if !ok {
				acc = &Accumulator{}
				p[cell.Key] = acc
			}
			acc.Add(cell.Change)
		}
	}
	return p
}

// Merge adds q into p key by key
func (p Partial) Merge(q Partial) {
	for k, b := range q {
		acc, ok := p[k]
		if !ok {
			acc = &Accumulator{}
			p[k] = acc
		}
		acc.Merge(*b)
	}
}

// Finalize turns the accumulators into statistics ordered by buy offset,
// then sell offset.
func (p Partial) Finalize() []PairStatistic {
	keys := make([]PairKey, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Buy != keys[j].Buy {
			return keys[i].Buy < keys[j].Buy
		}
		return keys[i].Sell < keys[j].Sell
	})

	stats := make([]PairStatistic, len(keys))
	for i, k := range keys {
		acc := p[k]
		stats[i] = NewPairStatistic(k.String(), acc.HitPoint, float64(acc.SumCents)/100, acc.Count)
	}
	return stats
}

// Aggregate reduces all rows in one pass
func Aggregate(rows []CombinationRow) []PairStatistic {
	return Reduce(rows).Finalize()
}

// AggregateParallel splits rows into chunks of chunkSize, reduces each chunk
// on a worker and merges the partials as they complete. The result equals
// Aggregate(rows) for any chunk size or worker count.
func AggregateParallel(rows []CombinationRow, chunkSize, workers int) []PairStatistic {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	var chunks [][]CombinationRow
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	if len(chunks) <= 1 || workers == 1 {
		return Aggregate(rows)
	}
	if workers > len(chunks) {
		workers = len(chunks)
	}

	jobChan := make(chan []CombinationRow, len(chunks))
	for _, c := range chunks {
		jobChan <- c
	}
	close(jobChan)

	resultChan := make(chan Partial, len(chunks))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range jobChan {
				resultChan <- Reduce(chunk)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	total := make(Partial)
	for partial := range resultChan {
		total.Merge(partial)
	}
	return total.Finalize()
}
