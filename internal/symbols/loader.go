package symbols

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Normalize upper-cases and trims a symbol
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// isValidSymbol accepts tickers and perpetual pairs (BTCUSDT, BRK-B, BRK.B)
func isValidSymbol(symbol string) bool {
	if len(symbol) == 0 || len(symbol) > 20 {
		return false
	}
	for _, c := range symbol {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '-') {
			return false
		}
	}
	return true
}

// ParseList splits a comma or whitespace separated list, dropping
// duplicates while keeping first-seen order.
func ParseList(raw string) ([]string, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	return dedupe(fields)
}

func dedupe(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		sym := Normalize(s)
		if sym == "" || seen[sym] {
			continue
		}
		if !isValidSymbol(sym) {
			return nil, fmt.Errorf("invalid symbol: %q", s)
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out, nil
}

// LoadFile reads one symbol per line; blank lines and # comments are skipped
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening watchlist: %w", err)
	}
	defer f.Close()

	var raw []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		raw = append(raw, strings.Fields(line)...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading watchlist: %w", err)
	}
	return dedupe(raw)
}

// Resolve picks explicit symbols when given, else the named universe
func Resolve(universe string, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return dedupe(explicit)
	}
	list := GetUniverse(Universe(universe))
	if list == nil {
		return nil, fmt.Errorf("unknown universe: %s (available: %v)", universe, Universes())
	}
	out := make([]string, len(list))
	copy(out, list)
	return out, nil
}
