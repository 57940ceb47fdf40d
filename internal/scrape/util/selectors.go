package util

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FirstText returns the cleaned text of the first selector that yields any.
func FirstText(root *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := CleanText(root.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// FirstAttr returns the first non-empty attr value across selectors.
func FirstAttr(root *goquery.Selection, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := root.Find(sel).First().Attr(attr); ok {
			if v = CleanText(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// LabeledValues collects label -> value pairs from repeated blocks, e.g.
// characteristic tiles or two-cell table rows. Labels are folded.
func LabeledValues(root *goquery.Selection, block, labelSel, valueSel string) map[string]string {
	out := map[string]string{}
	root.Find(block).Each(func(_ int, s *goquery.Selection) {
		label := Fold(s.Find(labelSel).First().Text())
		value := CleanText(s.Find(valueSel).Last().Text())
		if label == "" || value == "" {
			return
		}
		if _, dup := out[label]; !dup {
			out[label] = value
		}
	})
	return out
}

// Lookup finds the first value whose folded label starts with any of the
// given (already folded) prefixes.
func Lookup(values map[string]string, prefixes ...string) (string, bool) {
	for _, p := range prefixes {
		if v, ok := values[p]; ok {
			return v, true
		}
	}
	labels := make([]string, 0, len(values))
	for label := range values {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, p := range prefixes {
		for _, label := range labels {
			if strings.HasPrefix(label, p) {
				return values[label], true
			}
		}
	}
	return "", false
}
