package util

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// ResolveURL makes href absolute against base and strips tracking noise so
// the same listing always maps to the same URL.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if b, err := url.Parse(base); err == nil && !ref.IsAbs() {
		ref = b.ResolveReference(ref)
	}

	ref.Scheme = strings.ToLower(ref.Scheme)
	ref.Host = strings.ToLower(ref.Host)
	ref.Fragment = ""

	q := ref.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || lk == "gclid" || lk == "fbclid" || lk == "msclkid" {
			q.Del(k)
		}
	}
	// deterministic query
	for k := range q {
		vals := q[k]
		sort.Strings(vals)
		q[k] = vals
	}
	ref.RawQuery = q.Encode()
	return ref.String()
}

var trailingIDRe = regexp.MustCompile(`(\d{6,})/?$`)

// ListingIDFromURL returns the trailing numeric listing id of a detail URL.
func ListingIDFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	m := trailingIDRe.FindStringSubmatch(u.Path)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
