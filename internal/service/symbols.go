package service

import (
	"strings"
)

// symbolTable maps a currency symbol to its candidate ISO codes, most preferred first.
// The order is a product decision; do not sort.
var symbolTable = map[string][]string{
	"$":    {"USD", "AUD", "CAD", "NZD", "SGD", "HKD", "MXN"},
	"US$":  {"USD"},
	"A$":   {"AUD"},
	"C$":   {"CAD"},
	"NZ$":  {"NZD"},
	"S$":   {"SGD"},
	"HK$":  {"HKD"},
	"Mex$": {"MXN"},
	"R$":   {"BRL"},
	"€":    {"EUR"},
	"£":    {"GBP", "EGP"},
	"¥":    {"JPY", "CNY"},
	"元":    {"CNY"},
	"₹":    {"INR"},
	"₽":    {"RUB"},
	"₩":    {"KRW"},
	"₪":    {"ILS"},
	"₺":    {"TRY"},
	"₱":    {"PHP"},
	"฿":    {"THB"},
	"₴":    {"UAH"},
	"₦":    {"NGN"},
	"₫":    {"VND"},
	"Kč":   {"CZK"},
	"zł":   {"PLN"},
	"Ft":   {"HUF"},
	"lei":  {"RON"},
	"лв":   {"BGN"},
	"kn":   {"HRK"},
	"kr":   {"SEK", "NOK", "DKK", "ISK"},
	"Fr":   {"CHF"},
	"R":    {"ZAR"},
	"Rp":   {"IDR"},
	"RM":   {"MYR"},
}

// ResolveSymbol returns the candidate ISO codes for symbol. Input that is not a
// known symbol is returned unchanged as the only candidate.
func ResolveSymbol(symbol string) []string {
	if codes, ok := symbolTable[symbol]; ok {
		return append([]string(nil), codes...)
	}
	return []string{symbol}
}

// NormalizeCurrency trims raw, resolves it to its preferred ISO code and upper-cases the result.
func NormalizeCurrency(raw string) string {
	return strings.ToUpper(ResolveSymbol(strings.TrimSpace(raw))[0])
}

// NormalizeCurrencyList splits a comma separated list and normalizes every entry.
// Empty entries are dropped.
func NormalizeCurrencyList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		codes = append(codes, NormalizeCurrency(p))
	}
	return codes
}
