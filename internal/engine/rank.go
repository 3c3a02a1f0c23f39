package engine

import (
	"fmt"
	"sort"
	"strings"
)

// SortKey names a column the ranked table can be ordered by
type SortKey string

const (
	SortHitPoint      SortKey = "hit_point"
	SortAverageReturn SortKey = "average_return"
	SortHoldingTime   SortKey = "holding_time"
	SortScore         SortKey = "score"
)

// DefaultSortKeys orders by hit point, then average return
var DefaultSortKeys = []SortKey{SortHitPoint, SortAverageReturn}

// ParseSortKeys validates a list of sort key names. Unknown names are an
// error, not ignored.
func ParseSortKeys(names []string) ([]SortKey, error) {
	keys := make([]SortKey, 0, len(names))
	for _, n := range names {
		k := SortKey(strings.TrimSpace(n))
		switch k {
		case SortHitPoint, SortAverageReturn, SortHoldingTime, SortScore:
			keys = append(keys, k)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownSortKey, n)
		}
	}
	return keys, nil
}

// RankedEntry is a pair statistic with its composite score
type RankedEntry struct {
	PairStatistic
	Score float64 `json:"score"`
}

// RankConfig controls filtering, ordering and truncation
type RankConfig struct {
	HoldMin    int
	HoldMax    int
	SortKeys   []SortKey
	TopN       int
	SampleSize float64
}

// Validate checks the ranking parameters
func (c RankConfig) Validate() error {
	if c.HoldMin > c.HoldMax {
		return fmt.Errorf("%w: holding time min %d > max %d", ErrInvalidRange, c.HoldMin, c.HoldMax)
	}
	if c.SampleSize <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidSampleSize, c.SampleSize)
	}
	if _, err := ParseSortKeys(sortKeyNames(c.SortKeys)); err != nil {
		return err
	}
	return nil
}

func sortKeyNames(keys []SortKey) []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	return names
}

// Rank scores the statistics whose holding time lies in [HoldMin, HoldMax],
// stable-sorts them by the configured keys and keeps the first TopN. Every
// key sorts descending except holding time, which sorts ascending. Ties keep
// the input order. An invalid configuration returns no entries.
func Rank(stats []PairStatistic, cfg RankConfig) ([]RankedEntry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	entries := make([]RankedEntry, 0, len(stats))
	for _, s := range stats {
		// a zero or negative holding time cannot be scored
		if s.HoldingTime <= 0 || s.HoldingTime < cfg.HoldMin || s.HoldingTime > cfg.HoldMax {
			continue
		}
		entries = append(entries, RankedEntry{PairStatistic: s, Score: Score(s, cfg.SampleSize)})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return Less(entries[i], entries[j], cfg.SortKeys)
	})

	if cfg.TopN >= 0 && len(entries) > cfg.TopN {
		entries = entries[:cfg.TopN]
	}
	return entries, nil
}

// Less reports whether a ranks before b under keys
func Less(a, b RankedEntry, keys []SortKey) bool {
	for _, k := range keys {
		switch k {
		case SortHitPoint:
			if a.HitPoint != b.HitPoint {
				return a.HitPoint > b.HitPoint
			}
		case SortAverageReturn:
			if a.AverageReturn != b.AverageReturn {
				return a.AverageReturn > b.AverageReturn
			}
		case SortScore:
			if a.Score != b.Score {
				return a.Score > b.Score
			}
		case SortHoldingTime:
			if a.HoldingTime != b.HoldingTime {
				return a.HoldingTime < b.HoldingTime
			}
		}
	}
	return false
}
