package symbols

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"eventedge/pkg/model"
)

// Loader turns user input (flags, universes, files) into a clean symbol list
type Loader struct {
	names map[string]string
}

// NewLoader creates a new symbol loader
func NewLoader() *Loader {
	names := make(map[string]string, len(knownNames))
	for _, s := range knownNames {
		names[s.symbol] = s.name
	}
	return &Loader{names: names}
}

// LoadSymbols normalizes, validates and de-duplicates symbols, keeping the
// first occurrence's position
func (l *Loader) LoadSymbols(symbols []string) ([]model.Stock, error) {
	seen := make(map[string]bool, len(symbols))
	stocks := make([]model.Stock, 0, len(symbols))
	for _, raw := range symbols {
		sym := Normalize(raw)
		if sym == "" {
			continue
		}
		if !isValidSymbol(sym) {
			return nil, fmt.Errorf("invalid symbol %q", raw)
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true

		name := l.names[sym]
		if name == "" {
			name = sym
		}
		stocks = append(stocks, model.Stock{Symbol: sym, Name: name, Exchange: "US"})
	}
	return stocks, nil
}

// LoadUniverse loads a predefined universe
func (l *Loader) LoadUniverse(u Universe) ([]model.Stock, error) {
	syms, err := GetUniverse(u)
	if err != nil {
		return nil, err
	}
	return l.LoadSymbols(syms)
}

// LoadFile reads one symbol per line; blank lines and # comments are
// skipped, and comma-separated lines are accepted
func (l *Loader) LoadFile(path string) ([]model.Stock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening symbol file: %w", err)
	}
	defer f.Close()
	return l.LoadReader(f)
}

// LoadReader is LoadFile over an arbitrary reader
func (l *Loader) LoadReader(r io.Reader) ([]model.Stock, error) {
	var syms []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		syms = append(syms, strings.Split(line, ",")...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading symbols: %w", err)
	}
	return l.LoadSymbols(syms)
}

// Normalize upper-cases a ticker and maps share-class dashes to dots (BRK-B -> BRK.B)
func Normalize(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.ReplaceAll(s, "-", ".")
}

// isValidSymbol checks if a symbol is a standard ticker, optionally with a
// one or two letter class or exchange suffix
func isValidSymbol(symbol string) bool {
	base, suffix, hasSuffix := strings.Cut(symbol, ".")
	if len(base) == 0 || len(base) > 5 || !isLetters(base) {
		return false
	}
	if hasSuffix {
		return len(suffix) > 0 && len(suffix) <= 6 && isLetters(suffix)
	}
	return true
}

func isLetters(s string) bool {
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

var knownNames = []struct {
	symbol string
	name   string
}{
	{"AAPL", "Apple Inc."},
	{"MSFT", "Microsoft Corporation"},
	{"GOOGL", "Alphabet Inc."},
	{"AMZN", "Amazon.com Inc."},
	{"NVDA", "NVIDIA Corporation"},
	{"META", "Meta Platforms Inc."},
	{"AVGO", "Broadcom Inc."},
	{"ORCL", "Oracle Corporation"},
	{"CSCO", "Cisco Systems Inc."},
	{"ADBE", "Adobe Inc."},
	{"JPM", "JPMorgan Chase & Co."},
	{"V", "Visa Inc."},
	{"MA", "Mastercard Inc."},
	{"BAC", "Bank of America Corp"},
	{"WFC", "Wells Fargo & Company"},
	{"GS", "Goldman Sachs Group"},
	{"UNH", "UnitedHealth Group"},
	{"JNJ", "Johnson & Johnson"},
	{"LLY", "Eli Lilly and Company"},
	{"PFE", "Pfizer Inc."},
	{"ABBV", "AbbVie Inc."},
	{"MRK", "Merck & Co. Inc."},
	{"TMO", "Thermo Fisher Scientific"},
	{"ABT", "Abbott Laboratories"},
	{"WMT", "Walmart Inc."},
	{"PG", "Procter & Gamble Co."},
	{"KO", "Coca-Cola Company"},
	{"PEP", "PepsiCo Inc."},
	{"COST", "Costco Wholesale Corp"},
	{"MCD", "McDonald's Corporation"},
	{"HD", "Home Depot Inc."},
	{"NKE", "Nike Inc."},
	{"CAT", "Caterpillar Inc."},
	{"HON", "Honeywell International"},
	{"UNP", "Union Pacific Corp"},
	{"XOM", "Exxon Mobil Corporation"},
	{"CVX", "Chevron Corporation"},
	{"NFLX", "Netflix Inc."},
	{"DIS", "Walt Disney Company"},
	{"VZ", "Verizon Communications"},
	{"T", "AT&T Inc."},
	{"MMM", "3M Company"},
	{"CL", "Colgate-Palmolive Co."},
	{"TGT", "Target Corporation"},
	{"LOW", "Lowe's Companies"},
	{"NEE", "NextEra Energy Inc."},
	{"SO", "Southern Company"},
	{"DUK", "Duke Energy Corp"},
	{"O", "Realty Income Corp"},
}
