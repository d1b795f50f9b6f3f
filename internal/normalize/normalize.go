// Package normalize coerces loosely typed API fields into numbers, dates and
// display strings. Nothing here returns an error or panics: unusable input
// becomes zero, nil, or a sentinel.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DayMillis is the number of milliseconds in a calendar day.
const DayMillis = 86_400_000

// ToNumber returns v as a finite float64. Numbers pass through; anything else
// is stringified, stripped of every character that is not a digit, '.' or '-',
// and parsed. The result is 0 when it is not finite.
func ToNumber(v any) float64 {
	if n, ok := asFloat(v); ok {
		if isFinite(n) {
			return n
		}
		return 0
	}
	n, ok := parseStripped(v)
	if !ok {
		return 0
	}
	return n
}

// ToNullableNumber is ToNumber with nil for absent or unparseable input.
func ToNullableNumber(v any) *float64 {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	if n, ok := asFloat(v); ok {
		if !isFinite(n) {
			return nil
		}
		return &n
	}
	n, ok := parseStripped(v)
	if !ok {
		return nil
	}
	return &n
}

// Money is ToNumber clamped to non-negative values.
func Money(v any) float64 {
	n := ToNumber(v)
	if n < 0 {
		return 0
	}
	return n
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func parseStripped(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case *string:
		if x == nil {
			return 0, false
		}
		s = *x
	default:
		s = fmt.Sprint(x)
	}

	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		// An empty string coerces to zero rather than "missing".
		return 0, strings.TrimSpace(s) == ""
	}

	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || !isFinite(n) {
		return 0, false
	}
	return n, true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
