package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"

	"eventedge/internal/engine"
	"eventedge/internal/scanner"
	"eventedge/pkg/model"
)

// jsonResult is the machine-readable form of one analysis run
type jsonResult struct {
	RunID        string                  `json:"run_id"`
	Symbol       string                  `json:"symbol"`
	Mode         model.EventKind         `json:"mode"`
	Today        string                  `json:"today"`
	Offsets      []int                   `json:"offsets,omitempty"`
	Fixed        []engine.FixedOffsetRow `json:"fixed,omitempty"`
	RowHitPoints []int                   `json:"row_hit_points,omitempty"`
	Cumulative   map[int]int             `json:"cumulative,omitempty"`
	Events       int                     `json:"events"`
	Pairs        int                     `json:"pairs"`
	SampleSize   float64                 `json:"sample_size"`
	Ranked       []engine.RankedEntry    `json:"ranked,omitempty"`
	ElapsedMS    int64                   `json:"elapsed_ms"`
}

func singleOutput(res *engine.Result, showFixed, showRanked bool) jsonResult {
	out := jsonResult{
		RunID:      res.RunID,
		Symbol:     res.Symbol,
		Mode:       res.Mode,
		Today:      res.Today.Format(model.DateLayout),
		Events:     res.GridAnchors,
		Pairs:      res.PairCount,
		SampleSize: res.SampleSize,
		ElapsedMS:  res.Elapsed.Milliseconds(),
	}
	if showFixed {
		out.Offsets = res.Offsets
		out.Fixed = res.Fixed
		out.RowHitPoints = res.RowHitPoints
		out.Cumulative = res.Cumulative
	}
	if showRanked {
		out.Ranked = res.Ranked
	}
	return out
}

func outputJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// renderFixed prints one row per event with the return at each offset,
// the row's hit point, and a final cumulative row
func renderFixed(w io.Writer, res *engine.Result) {
	if len(res.Fixed) == 0 {
		fmt.Fprintf(w, "No %s events with price data for %s.\n", res.Mode, res.Symbol)
		return
	}

	header := []string{"Event"}
	for _, off := range res.Offsets {
		header = append(header, fmt.Sprintf("%+d", off))
	}
	header = append(header, "Hit")

	table := tablewriter.NewTable(w, tablewriter.WithHeader(header))
	for i, row := range res.Fixed {
		cells := []string{row.Anchor.Format(model.DateLayout)}
		for _, off := range res.Offsets {
			cells = append(cells, row.Values[off].String())
		}
		cells = append(cells, strconv.Itoa(res.RowHitPoints[i]))
		table.Append(cells)
	}

	cumulative := []string{"Cumulative"}
	total := 0
	for _, off := range res.Offsets {
		cumulative = append(cumulative, strconv.Itoa(res.Cumulative[off]))
		total += res.Cumulative[off]
	}
	cumulative = append(cumulative, strconv.Itoa(total))
	table.Append(cumulative)

	table.Render()
}

// renderRanked prints the ranked (buy, sell) pairs
func renderRanked(w io.Writer, res *engine.Result) {
	if len(res.Ranked) == 0 {
		fmt.Fprintf(w, "No offset pairs to rank for %s.\n", res.Symbol)
		return
	}

	fmt.Fprintf(w, "Top %d of %d pairs for %s (%s, %d events):\n\n",
		len(res.Ranked), res.PairCount, res.Symbol, res.Mode, res.GridAnchors)

	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"#", "Buy", "Sell", "Hold", "Hit", "Avg Return", "Samples", "Score"}),
	)
	for i, e := range res.Ranked {
		buy, sell := e.Key, ""
		if k, err := engine.ParsePairKey(e.Key); err == nil {
			buy, sell = fmt.Sprintf("%+d", k.Buy), fmt.Sprintf("%+d", k.Sell)
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			buy,
			sell,
			fmt.Sprintf("%dd", e.HoldingTime),
			strconv.Itoa(e.HitPoint),
			fmt.Sprintf("%+.2f%%", e.AverageReturn),
			strconv.Itoa(e.SampleCount),
			fmt.Sprintf("%.3f", e.Score),
		})
	}
	table.Render()
}

// renderScan prints the best pair per symbol, best symbols first, then
// the symbols that failed
func renderScan(w io.Writer, result *scanner.ScanResult, keys []engine.SortKey) {
	ranked := result.Ranked(keys)
	if len(ranked) == 0 {
		fmt.Fprintln(w, "No symbols produced a ranked pair.")
	} else {
		table := tablewriter.NewTable(w,
			tablewriter.WithHeader([]string{"Symbol", "Name", "Events", "Pair", "Hold", "Hit", "Avg Return", "Score"}),
		)
		for _, r := range ranked {
			name := shortName(r.Stock.Name)
			table.Append([]string{
				r.Stock.Symbol,
				name,
				strconv.Itoa(r.Anchors),
				r.Best.Key,
				fmt.Sprintf("%dd", r.Best.HoldingTime),
				strconv.Itoa(r.Best.HitPoint),
				fmt.Sprintf("%+.2f%%", r.Best.AverageReturn),
				fmt.Sprintf("%.3f", r.Best.Score),
			})
		}
		table.Render()
	}

	for _, r := range result.Results {
		if r.Err != nil {
			fmt.Fprintf(w, "  %s: %v\n", r.Stock.Symbol, r.Err)
		}
	}
	fmt.Fprintf(w, "\nScanned %d symbols (%d ok) in %s\n",
		result.TotalScanned, result.Succeeded, result.ScanTime.Round(time.Second))
}

// nameWidth is the display width of the scan table's Name column
const nameWidth = 21

// shortName truncates by display width so multi-byte and wide characters
// are never split
func shortName(name string) string {
	return runewidth.Truncate(name, nameWidth, "...")
}
