package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnPoints(t *testing.T) {
	tests := []struct {
		name string
		ar   float64
		want float64
	}{
		{"moderate return", 10, 0.747},
		{"small return", 1, 0},
		{"large return", 20, 0.523564},
		{"flat", 0, -0.83},
		{"loss", -5, -0.415},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, returnPoints(tt.ar), 5e-4)
		})
	}
}

func TestScore(t *testing.T) {
	s := PairStatistic{Key: "(-7,0)", HitPoint: 2, AverageReturn: 10, SampleCount: 2, HoldingTime: 7}
	// 2/2*8.3 + 0.747 + (100/7/100)*0.83
	assert.InDelta(t, 9.1656, Score(s, 2), 5e-4)

	s = PairStatistic{Key: "(0,100)", HitPoint: -4, AverageReturn: -2, SampleCount: 8, HoldingTime: 100}
	// -4/8*8.3 + (0.166 - 0.83) + 0.0083
	assert.InDelta(t, -4.8057, Score(s, 8), 5e-4)
}

func TestParseSortKeys(t *testing.T) {
	keys, err := ParseSortKeys([]string{"score", " holding_time", "hit_point", "average_return"})
	require.NoError(t, err)
	assert.Equal(t, []SortKey{SortScore, SortHoldingTime, SortHitPoint, SortAverageReturn}, keys)

	_, err = ParseSortKeys([]string{"hit_point", "volume"})
	assert.ErrorIs(t, err, ErrUnknownSortKey)
}

func rankStats() []PairStatistic {
	return []PairStatistic{
		NewPairStatistic("(-10,0)", 3, 15, 5),  // ht 10, ar 3
		NewPairStatistic("(-5,0)", 3, 15, 5),   // ht 5, ar 3
		NewPairStatistic("(-40,0)", 5, 10, 5),  // ht 40, ar 2
		NewPairStatistic("(0,3)", 3, 25, 5),    // ht 3, ar 5
		NewPairStatistic("(0,200)", 5, 100, 5), // ht 200
		NewPairStatistic("garbage", 5, 100, 5),
	}
}

func TestRank_FilterAndSort(t *testing.T) {
	ranked, err := Rank(rankStats(), RankConfig{
		HoldMin:    1,
		HoldMax:    1 << 30,
		SortKeys:   []SortKey{SortHitPoint, SortHoldingTime},
		TopN:       10,
		SampleSize: 5,
	})
	require.NoError(t, err)

	var keys []string
	for _, e := range ranked {
		keys = append(keys, e.Key)
	}
	// malformed key never survives a finite filter
	assert.Equal(t, []string{"(-40,0)", "(0,200)", "(0,3)", "(-5,0)", "(-10,0)"}, keys)
}

func TestRank_HoldingWindow(t *testing.T) {
	ranked, err := Rank(rankStats(), RankConfig{
		HoldMin:    5,
		HoldMax:    10,
		SortKeys:   DefaultSortKeys,
		TopN:       10,
		SampleSize: 5,
	})
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	// equal hit point and return: input order is kept
	assert.Equal(t, "(-10,0)", ranked[0].Key)
	assert.Equal(t, "(-5,0)", ranked[1].Key)
}

func TestRank_ScoreOrder(t *testing.T) {
	ranked, err := Rank(rankStats(), RankConfig{
		HoldMin:    1,
		HoldMax:    180,
		SortKeys:   []SortKey{SortScore},
		TopN:       -1,
		SampleSize: 5,
	})
	require.NoError(t, err)
	require.Len(t, ranked, 4)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}
	for _, e := range ranked {
		assert.InDelta(t, Score(e.PairStatistic, 5), e.Score, 1e-12)
	}
}

func TestRank_TopN(t *testing.T) {
	base := RankConfig{HoldMin: 1, HoldMax: 180, SortKeys: DefaultSortKeys, SampleSize: 5}

	for _, n := range []int{0, 1, 3, 4, 10} {
		cfg := base
		cfg.TopN = n
		ranked, err := Rank(rankStats(), cfg)
		require.NoError(t, err)
		assert.Len(t, ranked, min(n, 4), "top %d", n)
	}
}

func TestRank_InvalidRange(t *testing.T) {
	ranked, err := Rank(rankStats(), RankConfig{HoldMin: 10, HoldMax: 5, SampleSize: 5, TopN: 10})
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Nil(t, ranked)
}

func TestRank_InvalidSampleSize(t *testing.T) {
	_, err := Rank(rankStats(), RankConfig{HoldMin: 1, HoldMax: 5, TopN: 10})
	assert.ErrorIs(t, err, ErrInvalidSampleSize)
}

func TestRank_Empty(t *testing.T) {
	ranked, err := Rank(nil, RankConfig{HoldMin: 1, HoldMax: 5, SampleSize: 1, TopN: 10})
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestRank_ZeroHoldingTimeSkipped(t *testing.T) {
	stats := []PairStatistic{NewPairStatistic("(3,3)", 1, 1, 1)}
	ranked, err := Rank(stats, RankConfig{HoldMin: -5, HoldMax: 5, SampleSize: 1, TopN: 10})
	require.NoError(t, err)
	assert.Empty(t, ranked)
}
