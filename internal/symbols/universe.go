package symbols

import (
	"fmt"
	"sort"
)

// Universe represents a predefined stock universe
type Universe string

const (
	UniverseDividend Universe = "dividend" // long dividend histories
	UniverseMegacap  Universe = "megacap"
	UniverseTest     Universe = "test" // Small set for testing
)

// Universes lists the known universe names in sorted order
func Universes() []string {
	names := []string{string(UniverseDividend), string(UniverseMegacap), string(UniverseTest)}
	sort.Strings(names)
	return names
}

// GetUniverse returns the list of symbols for a given universe
func GetUniverse(u Universe) ([]string, error) {
	switch u {
	case UniverseDividend:
		return append([]string(nil), DividendSymbols...), nil
	case UniverseMegacap:
		return append([]string(nil), MegacapSymbols...), nil
	case UniverseTest:
		return append([]string(nil), TestSymbols...), nil
	default:
		return nil, fmt.Errorf("unknown universe %q (want one of %v)", u, Universes())
	}
}

// TestSymbols is a small set for quick testing
var TestSymbols = []string{"AAPL", "MSFT", "KO", "JNJ", "PG"}

// MegacapSymbols are large US companies with long earnings histories
var MegacapSymbols = []string{
	// Technology
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "AVGO", "ORCL", "CSCO", "ADBE",
	// Financials
	"JPM", "V", "MA", "BAC", "WFC", "GS",
	// Healthcare
	"UNH", "JNJ", "LLY", "PFE", "ABBV", "MRK", "TMO", "ABT",
	// Consumer
	"WMT", "PG", "KO", "PEP", "COST", "MCD", "HD", "NKE",
	// Industrials & Energy
	"CAT", "HON", "UNP", "XOM", "CVX",
	// Communications
	"NFLX", "DIS", "VZ", "T",
}

// DividendSymbols are long-running dividend payers whose ex-dividend
// history covers most of the supported window
var DividendSymbols = []string{
	// Consumer staples
	"KO", "PEP", "PG", "CL", "KMB", "GIS", "HRL", "SYY", "CLX", "MKC",
	// Healthcare
	"JNJ", "ABT", "MDT", "BDX",
	// Industrials
	"MMM", "EMR", "DOV", "ITW", "GWW", "SWK", "CAT",
	// Financials
	"AFL", "CB", "BEN", "TROW", "CINF",
	// Energy & Materials
	"XOM", "CVX", "APD", "ECL", "SHW", "LIN", "NUE", "PPG",
	// Retail
	"WMT", "TGT", "LOW", "MCD",
	// Utilities & Real Estate
	"ED", "O", "NEE", "SO", "DUK",
}
