package provider

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventedge/pkg/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadBarsCSV(t *testing.T) {
	in := "Date,Open,High,Low,Close,Adj Close,Volume\n" +
		"2020-01-03,11,12,10,11.5,11.4,100\n" +
		"2020-01-02,10,11,9,10.5,10.4,100\n" +
		"2020-01-06,null,13,11,null,12,100\n"

	bars, err := ReadBarsCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []model.PriceBar{
		{Date: day("2020-01-03"), Open: 11, Close: 11.5},
		{Date: day("2020-01-02"), Open: 10, Close: 10.5},
	}, bars)
}

func TestReadBarsCSV_ColumnOrderAndCase(t *testing.T) {
	in := "close, open ,DATE\n12,11,2020-01-03T00:00:00Z\n"
	bars, err := ReadBarsCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []model.PriceBar{{Date: day("2020-01-03"), Open: 11, Close: 12}}, bars)
}

func TestReadBarsCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing close", "Date,Open\n2020-01-02,1\n"},
		{"bad date", "Date,Open,Close\n01/02/2020,1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadBarsCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestReadDatesCSV(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []time.Time
	}{
		{"no header", "2020-01-28\n2020-04-30\n", []time.Time{day("2020-01-28"), day("2020-04-30")}},
		{"header first column", "Date\n2020-01-28\n", []time.Time{day("2020-01-28")}},
		{"named column", "Symbol,Earnings Date,EPS\nAAPL,2020-01-28,1.25\nAAPL,,\n", []time.Time{day("2020-01-28")}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadDatesCSV(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ReadDatesCSV(strings.NewReader("Date\nsoon\n"))
	assert.Error(t, err)
}

func TestFileProvider(t *testing.T) {
	prices := writeFile(t, "prices.csv", "Date,Open,Close\n2020-01-06,12,13\n2020-01-02,10,11\n2020-01-03,11,12\n")
	anchors := writeFile(t, "anchors.csv", "date\n2020-01-03\n")

	p := NewFileProvider(prices, anchors)
	assert.True(t, p.IsAvailable())
	assert.Equal(t, "file", p.Name())

	bars, err := p.GetDailyBars(context.Background(), "ANY", day("2020-01-03"))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, day("2020-01-03"), bars[0].Date)
	assert.Equal(t, day("2020-01-06"), bars[1].Date)

	dates, err := p.GetAnchors(context.Background(), "ANY", model.EventEarnings)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2020-01-03")}, dates)
}

func TestFileProvider_Missing(t *testing.T) {
	p := NewFileProvider(filepath.Join(t.TempDir(), "nope.csv"), "")

	_, err := p.GetDailyBars(context.Background(), "ANY", HistoryStart)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = p.GetAnchors(context.Background(), "ANY", model.EventDividend)
	assert.ErrorIs(t, err, ErrNotSupported)
}
