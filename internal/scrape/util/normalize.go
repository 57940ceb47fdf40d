package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func CleanText(s string) string {
	s = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\u2009", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// Fold lower-cases s and strips diacritics so "Trois-Rivières" and
// "trois-rivieres" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, CleanText(s))
	if err != nil {
		out = CleanText(s)
	}
	return strings.ToLower(out)
}

var numberRe = regexp.MustCompile(`\d[\d\s\x{00a0}\x{202f}.,]*`)

// ParseAmount reads the first number in s, accepting French ("245 000 $",
// "1 234,50 $") and English ("$245,000.00") grouping.
func ParseAmount(s string) (float64, error) {
	raw := numberRe.FindString(s)
	if raw == "" {
		return 0, fmt.Errorf("no number in %q", s)
	}
	raw = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\u00a0' || r == '\u202f' {
			return -1
		}
		return r
	}, raw)
	raw = strings.TrimRight(raw, ".,")

	hasComma := strings.Contains(raw, ",")
	hasDot := strings.Contains(raw, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(raw, ",") > strings.LastIndex(raw, ".") {
			raw = strings.ReplaceAll(raw, ".", "")
			raw = strings.Replace(raw, ",", ".", 1)
		} else {
			raw = strings.ReplaceAll(raw, ",", "")
		}
	case hasComma:
		i := strings.LastIndex(raw, ",")
		if len(raw)-i-1 == 3 {
			raw = strings.ReplaceAll(raw, ",", "")
		} else {
			raw = strings.ReplaceAll(raw[:i], ",", "") + "." + raw[i+1:]
		}
	case hasDot && strings.Count(raw, ".") > 1:
		raw = strings.ReplaceAll(raw, ".", "")
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

var intRe = regexp.MustCompile(`\d+`)

// ParseCount reads the first integer in s ("3 chambres", "Résidentiel (2)").
func ParseCount(s string) (int, error) {
	m := intRe.FindString(s)
	if m == "" {
		return 0, fmt.Errorf("no integer in %q", s)
	}
	return strconv.Atoi(m)
}

var yearRe = regexp.MustCompile(`\b(1[5-9]\d\d|2\d\d\d)\b`)

func ParseYear(s string) (int, error) {
	m := yearRe.FindString(s)
	if m == "" {
		return 0, fmt.Errorf("no year in %q", s)
	}
	return strconv.Atoi(m)
}

func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func Truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
