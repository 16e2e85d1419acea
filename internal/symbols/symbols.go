// Package symbols canonicalizes user-facing asset names into the ticker
// format the quote provider expects.
package symbols

import (
	"sort"
	"strings"
	"unicode"
)

// aliases maps common Brazilian company and index names to their
// provider tickers. Keys are uppercase.
var aliases = map[string]string{
	"PETROBRAS":        "PETR4.SA",
	"VALE":             "VALE3.SA",
	"ITAU":             "ITUB4.SA",
	"BRADESCO":         "BBDC4.SA",
	"AMBEV":            "ABEV3.SA",
	"B3":               "B3SA3.SA",
	"WEG":              "WEGE3.SA",
	"MAGALU":           "MGLU3.SA",
	"AMERICANAS":       "AMER3.SA",
	"ELETROBRAS":       "ELET3.SA",
	"COSAN":            "CSAN3.SA",
	"RUMO S.A.":        "RAIL3.SA",
	"IBOVESPA":         "^BVSP",
	"BITCOIN":          "BTC-USD",
	"ETHEREUM":         "ETH-USD",
	"OURO_FUTURO":      "GC=F",
	"NASDAQ_COMPOSITE": "^IXIC",
	"DOW_JONES":        "^DJI",
}

// displayNames is the reverse of aliases, keyed both by the full ticker
// and by the ticker with its exchange suffix stripped, so PETR4 and
// PETR4.SA both resolve to PETROBRAS.
var displayNames = func() map[string]string {
	m := make(map[string]string, len(aliases)*2)
	for name, ticker := range aliases {
		m[ticker] = name
		if base, ok := stripSuffix(ticker); ok {
			m[base] = name
		}
	}
	return m
}()

// exchangeSuffixes are the suffixes recognized as already fully
// qualified tickers.
var exchangeSuffixes = []string{".SA", ".BA", ".TO", ".L", ".PA", ".AX", ".V", ".F"}

func stripSuffix(ticker string) (string, bool) {
	for _, suf := range exchangeSuffixes {
		if strings.HasSuffix(ticker, suf) {
			return strings.TrimSuffix(ticker, suf), true
		}
	}
	return ticker, false
}

func hasExchangeSuffix(s string) bool {
	_, ok := stripSuffix(s)
	return ok
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

// Canonicalize converts a user-supplied asset name into a provider
// ticker. Known aliases resolve through the table; inputs that already
// look like tickers pass through; bare alphanumeric codes of 4 to 6
// characters are assumed to be B3 tickers and get the .SA suffix.
// The result is always uppercase.
func Canonicalize(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return s
	}

	if ticker, ok := aliases[s]; ok {
		return ticker
	}

	if hasExchangeSuffix(s) {
		return s
	}

	// Index, pair and futures tickers are already fully qualified.
	if strings.ContainsAny(s, "^-=") {
		return s
	}

	if isAlphanumeric(s) && len(s) >= 4 && len(s) <= 6 {
		return s + ".SA"
	}

	return s
}

// DisplayName returns the human-readable name for a ticker when one is
// known, otherwise the ticker with its exchange suffix stripped.
func DisplayName(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if name, ok := displayNames[t]; ok {
		return name
	}
	base, _ := stripSuffix(t)
	if name, ok := displayNames[base]; ok {
		return name
	}
	return base
}

// Known returns the alias names the canonicalizer resolves, sorted.
func Known() []string {
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
