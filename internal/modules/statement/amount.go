package statement

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	amountRe = regexp.MustCompile(`^(\d{1,3}([.,]\d{3})+|\d+)([.,]\d{1,2})?$`)
	dateBR   = regexp.MustCompile(`\b(\d{2})/(\d{2})/(\d{4})\b`)
	dateISO  = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

type amount struct {
	value      decimal.Decimal
	negative   bool
	hasDecimal bool
}

// parseAmount reads Brazilian and international money notations:
// "R$ 1.234,56", "1,234.56", "-50.00", "(50,00)", "150,00 D", "150,00-".
func parseAmount(raw string) (amount, bool) {
	s := strings.NewReplacer("R$", "", "r$", "", " ", "", "\u00a0", "", "\t", "").Replace(strings.TrimSpace(raw))
	if s == "" {
		return amount{}, false
	}

	neg := false
	switch last := s[len(s)-1]; last {
	case 'D', 'd':
		neg = true
		s = s[:len(s)-1]
	case 'C', 'c':
		s = s[:len(s)-1]
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		neg = true
		s = s[:len(s)-1]
	}
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !amountRe.MatchString(s) {
		return amount{}, false
	}

	intPart, frac := s, ""
	if i := strings.LastIndexAny(s, ".,"); i >= 0 && len(s)-i-1 <= 2 {
		intPart, frac = s[:i], s[i+1:]
	}
	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	num := intPart
	if frac != "" {
		num += "." + frac
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return amount{}, false
	}
	return amount{value: d.Abs().Round(2), negative: neg, hasDecimal: frac != ""}, true
}

// parseDate finds a DD/MM/YYYY or YYYY-MM-DD calendar date in s and returns it as YYYY-MM-DD.
func parseDate(s string) (string, bool) {
	if m := dateBR.FindStringSubmatch(s); m != nil {
		return validDate(m[3], m[2], m[1])
	}
	if m := dateISO.FindStringSubmatch(s); m != nil {
		return validDate(m[1], m[2], m[3])
	}
	return "", false
}

func validDate(y, m, d string) (string, bool) {
	iso := y + "-" + m + "-" + d
	if _, err := time.Parse(dateLayout, iso); err != nil {
		return "", false
	}
	return iso, true
}
