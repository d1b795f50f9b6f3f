package normalize

import (
	"strconv"
	"strings"
)

// FormatMoney renders an amount as dollars with two decimals. Invalid input
// renders as $0.00.
func FormatMoney(v any) string {
	n := ToNumber(v)
	neg := n < 0
	if neg {
		n = -n
	}
	whole := strconv.FormatFloat(n, 'f', 2, 64)
	parts := strings.SplitN(whole, ".", 2)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	b.WriteString(groupThousands(parts[0]))
	b.WriteByte('.')
	b.WriteString(parts[1])
	return b.String()
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Truncate cuts s to max runes, appending "..." when anything was dropped.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
