package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"eventedge/pkg/model"
)

// FileProvider reads one symbol's prices and anchors from local CSV files.
// The symbol and event kind are not checked; the files are assumed to
// belong to the requested analysis.
type FileProvider struct {
	pricesPath  string
	anchorsPath string
}

// NewFileProvider creates a provider over a prices CSV (Date,Open,Close
// header, extra columns ignored) and an anchors CSV (one date column)
func NewFileProvider(pricesPath, anchorsPath string) *FileProvider {
	return &FileProvider{pricesPath: pricesPath, anchorsPath: anchorsPath}
}

// Name returns the provider name
func (p *FileProvider) Name() string {
	return "file"
}

// IsAvailable reports whether a prices file was given
func (p *FileProvider) IsAvailable() bool {
	return p.pricesPath != ""
}

// RateLimit returns 0; local files are not paced
func (p *FileProvider) RateLimit() int {
	return 0
}

// GetDailyBars reads bars dated on or after from
func (p *FileProvider) GetDailyBars(ctx context.Context, symbol string, from time.Time) ([]model.PriceBar, error) {
	f, err := os.Open(p.pricesPath)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	defer f.Close()

	bars, err := ReadBarsCSV(f)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s: %w", p.pricesPath, err)}
	}
	sortBars(bars)
	return trimBars(bars, from), nil
}

// GetAnchors reads every date in the anchors file
func (p *FileProvider) GetAnchors(ctx context.Context, symbol string, kind model.EventKind) ([]time.Time, error) {
	if p.anchorsPath == "" {
		return nil, notSupported(p.Name(), "no anchors file")
	}
	f, err := os.Open(p.anchorsPath)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	defer f.Close()

	dates, err := ReadDatesCSV(f)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s: %w", p.anchorsPath, err)}
	}
	return dates, nil
}

// ReadBarsCSV parses a header-driven price file. Rows with an empty or
// non-numeric open or close are skipped as missing sessions.
func ReadBarsCSV(r io.Reader) ([]model.PriceBar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty price file")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol, okD := cols["date"]
	openCol, okO := cols["open"]
	closeCol, okC := cols["close"]
	if !okD || !okO || !okC {
		return nil, fmt.Errorf("header must contain Date, Open and Close columns, got %v", header)
	}

	var bars []model.PriceBar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if dateCol >= len(rec) || openCol >= len(rec) || closeCol >= len(rec) {
			continue
		}
		d, err := model.ParseDate(strings.TrimSpace(rec[dateCol]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		open, errO := strconv.ParseFloat(strings.TrimSpace(rec[openCol]), 64)
		closePx, errC := strconv.ParseFloat(strings.TrimSpace(rec[closeCol]), 64)
		if errO != nil || errC != nil {
			continue
		}
		bars = append(bars, model.PriceBar{Date: d, Open: open, Close: closePx})
	}
	return bars, nil
}

// ReadDatesCSV parses an anchor file. The date column is the first header
// containing "date", or column 0; a header row is optional.
func ReadDatesCSV(r io.Reader) ([]time.Time, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading anchors: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := 0
	first := records[0]
	if len(first) > 0 {
		if _, err := model.ParseDate(strings.TrimSpace(first[0])); err != nil {
			for i, h := range first {
				if strings.Contains(strings.ToLower(h), "date") {
					col = i
					break
				}
			}
			records = records[1:]
		}
	}

	dates := make([]time.Time, 0, len(records))
	for i, rec := range records {
		if col >= len(rec) || strings.TrimSpace(rec[col]) == "" {
			continue
		}
		d, err := model.ParseDate(strings.TrimSpace(rec[col]))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		dates = append(dates, d)
	}
	return dates, nil
}
