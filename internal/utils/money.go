package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatRub renders an amount in roubles with space thousand separators.
// Kopecks are printed only when present.
func FormatRub(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	whole, frac := math.Modf(math.Round(amount*100) / 100)
	out := sign + formatThousand(int64(whole))
	if kop := int64(math.Round(frac * 100)); kop > 0 {
		out += fmt.Sprintf(",%02d", kop)
	}
	return out + " RUB"
}

// ParseRub parses "1 500", "1500,50" or "1 500 RUB" into an amount.
func ParseRub(s string) (float64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimSuffix(s, "rub")
	replacer := strings.NewReplacer(" ", "", "\u00a0", "", ",", ".")
	s = replacer.Replace(s)
	if s == "" {
		return 0, fmt.Errorf("invalid rouble amount")
	}
	return strconv.ParseFloat(s, 64)
}

func formatThousand(n int64) string {
	if n == 0 {
		return "0"
	}
	str := strconv.FormatInt(n, 10)
	var out strings.Builder
	for i, c := range str {
		if i != 0 && (len(str)-i)%3 == 0 {
			out.WriteByte(' ')
		}
		out.WriteRune(c)
	}
	return out.String()
}
