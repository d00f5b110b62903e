package validate

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// up to two fractional digits, comma accepted as decimal separator
	rePrice = regexp.MustCompile(`^[0-9]+([.,][0-9]{1,2})?$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// Name validates an offer name: trims, rejects names that are empty after
// whitespace normalization, and enforces a display-friendly max length.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 120 {
		return "", false
	}
	if len(strings.Fields(s)) == 0 {
		return "", false
	}
	return s, true
}

// Qty parses a positive integer quantity bounded by max. The bound guards
// against concatenated-digit typos.
func Qty(s string, max int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, false
	}
	if max > 0 && n > max {
		return 0, false
	}
	return n, true
}

// Price parses a positive decimal with at most two fractional digits.
// "12,50" is accepted and read as "12.50".
func Price(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !rePrice.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// RunID validates a run handle path parameter.
func RunID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}
