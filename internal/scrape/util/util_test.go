package util

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"245 000 $", 245000},
		{"245\u00a0000\u00a0$", 245000},
		{"$245,000.00", 245000},
		{"1 234,50 $", 1234.5},
		{"1.234.567", 1234567},
		{"12,5", 12.5},
		{"Prix : 389 900 $ (taxes en sus)", 389900},
	}
	for _, c := range cases {
		got, err := ParseAmount(c.in)
		if assert.NoError(t, err, c.in) {
			assert.Equal(t, c.want, got, c.in)
		}
	}

	_, err := ParseAmount("Prix sur demande")
	assert.Error(t, err)
}

func TestParseCountAndYear(t *testing.T) {
	n, err := ParseCount("Résidentiel (2)")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	y, err := ParseYear("Construit en 1975, rénové")
	require.NoError(t, err)
	assert.Equal(t, 1975, y)

	_, err = ParseYear("inconnue")
	assert.Error(t, err)
}

func TestFoldAndClean(t *testing.T) {
	assert.Equal(t, "trois-rivieres", Fold("Trois-Rivières"))
	assert.Equal(t, "saint-jean-sur-richelieu", Fold("  Saint-Jean-sur-Richelieu  "))
	assert.Equal(t, "a b c", CleanText(" a\n\tb c "))
	assert.Equal(t, "x", FirstNonEmpty("", "  ", "x", "y"))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "ab cd", Truncate("ab\ncd", 10))
}

func TestResolveURL(t *testing.T) {
	base := "https://www.example.ca"
	assert.Equal(t, "https://www.example.ca/fr/maison/12345678", ResolveURL(base, "/fr/maison/12345678?utm_source=mail#top"))
	assert.Equal(t, "https://www.example.ca/fr/maison/12345678?view=Summary", ResolveURL(base, "/fr/maison/12345678?view=Summary&gclid=x"))
	assert.Equal(t, "https://other.example/x", ResolveURL(base, "HTTPS://OTHER.EXAMPLE/x"))
	assert.Empty(t, ResolveURL(base, "  "))
}

func TestListingIDFromURL(t *testing.T) {
	assert.Equal(t, "12345001", ListingIDFromURL("https://www.example.ca/fr/maison~a-vendre~chambly/12345001?view=Summary"))
	assert.Equal(t, "12345001", ListingIDFromURL("/fr/duplex/12345001/"))
	assert.Empty(t, ListingIDFromURL("/fr/duplex/123"))
}

func TestLabeledValuesAndLookup(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
<div class="carac-container"><div class="carac-title">Année de construction</div><div class="carac-value"><span>1975</span></div></div>
<div class="carac-container"><div class="carac-title">Superficie du terrain</div><div class="carac-value"><span>6 200 pc</span></div></div>
<div class="carac-container"><div class="carac-title">Vide</div><div class="carac-value"></div></div>`))
	require.NoError(t, err)

	vals := LabeledValues(doc.Selection, "div.carac-container", ".carac-title", ".carac-value")
	assert.Len(t, vals, 2)
	assert.Equal(t, "1975", vals["annee de construction"])

	v, ok := Lookup(vals, "year built", "annee")
	assert.True(t, ok)
	assert.Equal(t, "1975", v)

	_, ok = Lookup(vals, "nombre d'unites")
	assert.False(t, ok)

	assert.Equal(t, "1975", FirstText(doc.Selection, ".missing", ".carac-value span"))
}

func TestHostLimiterPause(t *testing.T) {
	hl := NewHostLimiter(0, 1)
	hl.Pause("https://a.example/x", time.Hour)
	hl.Pause("https://a.example/y", time.Millisecond)

	assert.True(t, hl.PausedUntil("https://a.example/").After(time.Now().Add(59*time.Minute)))
	assert.True(t, hl.PausedUntil("https://b.example/").IsZero())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, hl.WaitURL(ctx, "https://a.example/z"), context.DeadlineExceeded)
	assert.NoError(t, hl.WaitURL(context.Background(), "https://b.example/z"))
}
