package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
)

const SatsPerBTC = 100_000_000

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// denominations maps a unit to its number of decimal places relative to sats.
var denominations = map[string]int{
	"btc":     8,
	"cbtc":    6,
	"mbtc":    5,
	"ubtc":    2,
	"bit":     2,
	"sat":     0,
	"sats":    0,
	"satoshi": 0,
}

// ParseAmount parses a bitcoin amount with an explicit denomination, such as
// "1.5 btc" or "1000 sat", into sats.
func ParseAmount(input string) (uint64, error) {
	value, unit, err := splitDenomination(input)
	if err != nil {
		return 0, err
	}
	places, ok := denominations[unit]
	if !ok {
		return 0, clierr.New(clierr.CodeUsage, fmt.Sprintf("unknown denomination %q", unit))
	}
	if !decimalPattern.MatchString(value) {
		return 0, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid amount %q", value))
	}
	base, err := decimalToBaseUnits(value, places)
	if err != nil {
		return 0, err
	}
	n, ok := new(big.Int).SetString(base, 10)
	if !ok || !n.IsUint64() {
		return 0, clierr.New(clierr.CodeUsage, "amount out of range")
	}
	return n.Uint64(), nil
}

// FormatBTC renders sats as a decimal BTC string.
func FormatBTC(sats uint64) string {
	return formatDecimal(new(big.Int).SetUint64(sats).String(), 8)
}

func splitDenomination(input string) (string, string, error) {
	norm := strings.ToLower(strings.TrimSpace(input))
	if norm == "" {
		return "", "", clierr.New(clierr.CodeUsage, "amount is required")
	}
	if fields := strings.Fields(norm); len(fields) == 2 {
		return fields[0], fields[1], nil
	}
	i := strings.IndexFunc(norm, func(r rune) bool { return r >= 'a' && r <= 'z' })
	if i <= 0 {
		return "", "", clierr.New(clierr.CodeUsage, fmt.Sprintf("amount %q is missing a denomination", input))
	}
	return norm[:i], norm[i:], nil
}

func formatDecimal(baseUnits string, decimals int) string {
	n := new(big.Int)
	n.SetString(baseUnits, 10)
	if decimals == 0 {
		return n.String()
	}

	s := n.String()
	if len(s) <= decimals {
		pad := strings.Repeat("0", decimals-len(s)+1)
		s = pad + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

func decimalToBaseUnits(decimal string, decimals int) (string, error) {
	parts := strings.SplitN(decimal, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("amount precision exceeds %d decimal places", decimals))
	}

	fracPart = fracPart + strings.Repeat("0", decimals-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return "0", nil
	}
	if _, ok := new(big.Int).SetString(combined, 10); !ok {
		return "", clierr.New(clierr.CodeUsage, "invalid decimal amount")
	}
	return combined, nil
}

// DecimalToBaseUnits converts a decimal rune amount using the rune's divisibility.
func DecimalToBaseUnits(decimal string, divisibility int) (string, error) {
	decimal = strings.TrimSpace(decimal)
	if !decimalPattern.MatchString(decimal) {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid amount %q", decimal))
	}
	return decimalToBaseUnits(decimal, divisibility)
}

// FormatUnits renders an integer amount of base units with divisibility
// decimal places, trimming trailing zeros.
func FormatUnits(baseUnits string, divisibility int) string {
	return formatDecimal(baseUnits, divisibility)
}
