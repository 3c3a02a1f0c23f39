package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventedge/internal/engine"
	"eventedge/internal/scanner"
	"eventedge/pkg/model"
)

func sampleResult(t *testing.T) *engine.Result {
	t.Helper()
	var bars []model.PriceBar
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := start; d.Before(start.AddDate(0, 2, 0)); d = d.AddDate(0, 0, 1) {
		bar := model.PriceBar{Date: d, Open: 100, Close: 100}
		if d.Equal(time.Date(2020, 2, 3, 0, 0, 0, 0, time.UTC)) {
			bar.Close = 110
		}
		bars = append(bars, bar)
	}

	cfg := engine.DefaultConfig()
	cfg.Offsets = []int{-7, 0, 7}
	cfg.Rank.TopN = 5
	cfg.Today = time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	a, err := engine.NewAnalyzer(cfg, engine.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "TEST", bars, []time.Time{time.Date(2020, 2, 3, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	return res
}

func TestRenderFixed(t *testing.T) {
	var buf bytes.Buffer
	renderFixed(&buf, sampleResult(t))
	out := buf.String()

	assert.Contains(t, out, "2020-02-03")
	assert.Contains(t, out, "9.09")
	assert.Contains(t, out, "-10.00")
	assert.Contains(t, out, "Cumulative")
}

func TestRenderFixed_Empty(t *testing.T) {
	var buf bytes.Buffer
	renderFixed(&buf, &engine.Result{Symbol: "TEST", Mode: model.EventDividend})
	assert.Contains(t, buf.String(), "No dividend events")
}

func TestRenderRanked(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	renderRanked(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "Top 5 of")
	assert.Contains(t, out, "-33")
	assert.Contains(t, out, "+10.00%")
}

func TestSingleOutput_JSON(t *testing.T) {
	res := sampleResult(t)

	var buf bytes.Buffer
	require.NoError(t, outputJSON(&buf, singleOutput(res, false, true)))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "TEST", decoded["symbol"])
	assert.Equal(t, "2020-06-01", decoded["today"])
	assert.NotContains(t, decoded, "fixed")
	ranked, ok := decoded["ranked"].([]interface{})
	require.True(t, ok)
	assert.Len(t, ranked, 5)
	first := ranked[0].(map[string]interface{})
	assert.Equal(t, "(-33,0)", first["key"])
}

func TestRenderScan(t *testing.T) {
	best := engine.RankedEntry{
		PairStatistic: engine.PairStatistic{Key: "(-5,0)", HitPoint: 8, AverageReturn: 1.5, SampleCount: 10, HoldingTime: 5},
		Score:         2.1,
	}
	result := &scanner.ScanResult{
		TotalScanned: 2,
		Succeeded:    1,
		Results: []scanner.SymbolResult{
			{Stock: model.Stock{Symbol: "KO", Name: "Coca-Cola Company"}, Best: &best, Anchors: 10},
			{Stock: model.Stock{Symbol: "XYZ"}, Err: errors.New("fetching prices: no data")},
		},
	}

	var buf bytes.Buffer
	renderScan(&buf, result, engine.DefaultSortKeys)
	out := buf.String()
	assert.Contains(t, out, "KO")
	assert.Contains(t, out, "(-5,0)")
	assert.Contains(t, out, "XYZ: fetching prices: no data")
	assert.Contains(t, out, "Scanned 2 symbols (1 ok)")
}

func TestShortName(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"ascii", "International Business Machines Corporation"},
		{"accented", "Société Générale Société Anonyme"},
		{"wide", "トヨタ自動車株式会社トヨタ自動車株式会社"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shortName(tt.in)
			assert.True(t, utf8.ValidString(got), got)
			assert.LessOrEqual(t, runewidth.StringWidth(got), nameWidth)
			assert.True(t, len(got) < len(tt.in))
			assert.Contains(t, got, "...")
		})
	}

	assert.Equal(t, "Coca-Cola Company", shortName("Coca-Cola Company"))
}
