package engine

import (
	"time"

	"eventedge/pkg/model"
)

func date(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// flatBars returns one bar per calendar day in [from, to] with the given prices
func flatBars(from, to string, open, close float64) []model.PriceBar {
	var bars []model.PriceBar
	for d := date(from); !d.After(date(to)); d = d.AddDate(0, 0, 1) {
		bars = append(bars, model.PriceBar{Date: d, Open: open, Close: close})
	}
	return bars
}

// setBar replaces the bar on day s, appending it if missing
func setBar(bars []model.PriceBar, s string, open, close float64) []model.PriceBar {
	d := date(s)
	for i := range bars {
		if bars[i].Date.Equal(d) {
			bars[i].Open = open
			bars[i].Close = close
			return bars
		}
	}
	return append(bars, model.PriceBar{Date: d, Open: open, Close: close})
}

// dropBar removes the bar on day s
func dropBar(bars []model.PriceBar, s string) []model.PriceBar {
	d := date(s)
	out := bars[:0]
	for _, b := range bars {
		if !b.Date.Equal(d) {
			out = append(out, b)
		}
	}
	return out
}
