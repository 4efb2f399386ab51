package ltcchain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// LitoshiPerCoin is the number of base units in one LTC.
const LitoshiPerCoin int64 = 1e8

// FormatAmount renders a litoshi amount as a decimal LTC string
// using integer math only, e.g. 1050000000 -> "10.5".
func FormatAmount(litoshi int64) string {
	sign := ""
	if litoshi < 0 {
		sign = "-"
		litoshi = -litoshi
	}
	whole := litoshi / LitoshiPerCoin
	frac := litoshi % LitoshiPerCoin
	if frac == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	s := strings.TrimRight(fmt.Sprintf("%08d", frac), "0")
	return fmt.Sprintf("%s%d.%s", sign, whole, s)
}

// ParseAmount parses a decimal LTC string into litoshi,
// rejecting more than 8 fractional digits. No floats involved.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	wholePart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		wholePart = s[:i]
		fracPart = s[i+1:]
	}
	if wholePart == "" && fracPart == "" {
		return 0, errors.New("malformed amount")
	}
	if len(fracPart) > 8 {
		return 0, fmt.Errorf("amount %q has more than 8 decimal places", s)
	}

	var whole int64
	for _, c := range wholePart {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("malformed amount %q", s)
		}
		whole = whole*10 + int64(c-'0')
		// bound by the litoshi range, not just int64: whole still has
		// to survive the *1e8 below
		if whole > math.MaxInt64/LitoshiPerCoin {
			return 0, fmt.Errorf("amount %q overflows", s)
		}
	}

	var frac int64
	for _, c := range fracPart {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("malformed amount %q", s)
		}
		frac = frac*10 + int64(c-'0')
	}
	for i := len(fracPart); i < 8; i++ {
		frac *= 10
	}

	total := whole * LitoshiPerCoin
	if total > math.MaxInt64-frac {
		return 0, fmt.Errorf("amount %q overflows", s)
	}
	total += frac
	if neg {
		total = -total
	}
	return total, nil
}
