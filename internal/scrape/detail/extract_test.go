package detail

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realty-engine/internal/domain"
	"realty-engine/internal/session"
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}

var summary = domain.PropertySummary{
	ID:             "12345003",
	AddressSummary: "2345, Rue Bourgogne, Chambly",
	Price:          240000,
	PropertyType:   domain.Plex,
	Source:         "centris",
	ListingURL:     "https://www.example.ca/fr/duplex~a-vendre~chambly/12345003",
}

var chambly = domain.LocationConfig{Kind: domain.CityDistrict, Value: "Chambly", TypeID: "458"}

type stubDoer struct {
	body  string
	err   error
	calls atomic.Int32
	last  session.Request
}

func (s *stubDoer) Do(_ context.Context, r session.Request) ([]byte, error) {
	s.calls.Add(1)
	s.last = r
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.body), nil
}

func newTestExtractor(d Doer) *Extractor {
	e := NewExtractor(d)
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestFetchDetailFullPage(t *testing.T) {
	d := &stubDoer{body: fixture(t, "detail_page.html")}
	e := newTestExtractor(d)

	p, err := e.FetchDetail(context.Background(), summary, chambly)
	require.NoError(t, err)

	assert.Equal(t, "GET", d.last.Method)
	assert.Equal(t, summary.ListingURL, d.last.URL)

	assert.Equal(t, 245000.0, p.Price)
	assert.Equal(t, "12345003", p.ID)
	assert.Equal(t, domain.Plex, p.PropertyType)
	assert.Equal(t, chambly, p.Location)

	assert.Equal(t, "2345", p.Address.CivicNumber)
	assert.Equal(t, "Rue Bourgogne", p.Address.Street)
	assert.Equal(t, "Chambly", p.Address.City)
	assert.Equal(t, "Centre", p.Address.Neighbourhood)
	assert.Equal(t, "J3L 1Z5", p.Address.PostalCode)
	require.True(t, p.Address.HasCoordinates())
	assert.InDelta(t, 45.4481, *p.Address.Latitude, 1e-9)
	assert.InDelta(t, -73.2875, *p.Address.Longitude, 1e-9)

	require.NotNil(t, p.Financial.Revenue)
	assert.Equal(t, 24600.0, *p.Financial.Revenue)
	require.NotNil(t, p.Financial.MunicipalTax)
	assert.Equal(t, 3112.0, *p.Financial.MunicipalTax)
	require.NotNil(t, p.Financial.SchoolTax)
	assert.Equal(t, 248.0, *p.Financial.SchoolTax)
	require.NotNil(t, p.Financial.Assessment)
	assert.Equal(t, 231400.0, *p.Financial.Assessment)

	require.NotNil(t, p.Physical.Bedrooms)
	assert.Equal(t, 3, *p.Physical.Bedrooms)
	require.NotNil(t, p.Physical.Bathrooms)
	assert.Equal(t, 2, *p.Physical.Bathrooms)
	require.NotNil(t, p.Physical.YearBuilt)
	assert.Equal(t, 1975, *p.Physical.YearBuilt)
	require.NotNil(t, p.Physical.Units)
	assert.Equal(t, 2, *p.Physical.Units)
	require.NotNil(t, p.Physical.LivingArea)
	assert.Equal(t, 1850.0, *p.Physical.LivingArea)
	require.NotNil(t, p.Physical.LotArea)
	assert.Equal(t, 6200.0, *p.Physical.LotArea)

	assert.Equal(t, summary.ListingURL, p.Metadata.SourcePage)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), p.Metadata.Timestamp)
	for _, g := range []domain.FieldGroup{domain.GroupAddress, domain.GroupFinancial, domain.GroupPhysical} {
		assert.Equal(t, domain.FieldOK, p.Metadata.Fields[g].State, g)
	}
}

func TestMissingAddressFailsItem(t *testing.T) {
	e := newTestExtractor(&stubDoer{body: fixture(t, "detail_no_address.html")})

	p, err := e.FetchDetail(context.Background(), summary, chambly)
	assert.ErrorIs(t, err, domain.ErrDetailExtraction)
	assert.Equal(t, domain.FieldFailed, p.Metadata.Fields[domain.GroupAddress].State)
	assert.Equal(t, chambly, p.Location)
}

func TestFinancialFailureIsNotFatal(t *testing.T) {
	raw := `<html><body>
<h2 itemprop="address">10, Rue Martel, Chambly</h2>
<span id="BuyPrice">prix sur demande</span>
<div class="cac">2 chambres</div>
</body></html>`
	e := newTestExtractor(&stubDoer{})

	p, err := e.Parse(summary, chambly, raw)
	require.NoError(t, err)

	st := p.Metadata.Fields[domain.GroupFinancial]
	assert.Equal(t, domain.FieldFailed, st.State)
	assert.Contains(t, st.Error, "price")
	assert.Equal(t, summary.Price, p.Price, "card price kept when the page price is unreadable")
	assert.Nil(t, p.Financial.Revenue)

	assert.Equal(t, domain.FieldOK, p.Metadata.Fields[domain.GroupPhysical].State)
	assert.Equal(t, "Chambly", p.Address.City)
}

func TestEmptyOptionalGroups(t *testing.T) {
	e := newTestExtractor(&stubDoer{})

	p, err := e.Parse(summary, chambly, `<h2 itemprop="address">10, Rue Martel, Chambly</h2>`)
	require.NoError(t, err)
	assert.Equal(t, domain.FieldEmpty, p.Metadata.Fields[domain.GroupFinancial].State)
	assert.Equal(t, domain.FieldEmpty, p.Metadata.Fields[domain.GroupPhysical].State)
	assert.False(t, p.Address.HasCoordinates())
}

type panicky struct{}

func (panicky) Group() domain.FieldGroup              { return domain.GroupPhysical }
func (panicky) Mandatory() bool                       { return false }
func (panicky) Extract(*Page, *domain.Property) error { panic("boom") }

func TestPanickingExtractorIsIsolated(t *testing.T) {
	e := newTestExtractor(&stubDoer{})
	e.extractors = []FieldExtractor{AddressExtractor{}, panicky{}}

	p, err := e.Parse(summary, chambly, `<h2 itemprop="address">10, Rue Martel, Chambly</h2>`)
	require.NoError(t, err)
	assert.Equal(t, domain.FieldFailed, p.Metadata.Fields[domain.GroupPhysical].State)
	assert.Contains(t, p.Metadata.Fields[domain.GroupPhysical].Error, "boom")
}

func TestFetchErrorsPassThrough(t *testing.T) {
	boom := domain.NewHTTPError(404, summary.ListingURL, 1)
	e := newTestExtractor(&stubDoer{err: boom})

	_, err := e.FetchDetail(context.Background(), summary, chambly)
	assert.True(t, errors.Is(err, domain.ErrClientStatus))
}

func TestParseAddress(t *testing.T) {
	cases := []struct {
		in                                string
		civic, street, city, hood, postal string
	}{
		{"2345, Rue Bourgogne, Chambly", "2345", "Rue Bourgogne", "Chambly", "", ""},
		{"1200-1202, Boulevard des Forges, Trois-Rivières (Trois-Rivières-Ouest)", "1200-1202", "Boulevard des Forges", "Trois-Rivières", "Trois-Rivières-Ouest", ""},
		{"Rang Saint-Joseph, Saint-Mathias-sur-Richelieu, QC J3L 6A1", "", "Rang Saint-Joseph", "Saint-Mathias-sur-Richelieu", "", "J3L 6A1"},
		{"Chambly", "", "", "Chambly", "", ""},
		{"123, Rue Saint-Jean, Québec", "123", "Rue Saint-Jean", "Québec", "", ""},
		{"123, Rue Saint-Jean, Québec, Québec G1R 1A1", "123", "Rue Saint-Jean", "Québec", "", "G1R 1A1"},
		{"45, Rue Martel, Chambly, Québec", "45", "Rue Martel", "Chambly", "", ""},
		{"800, Grande Allée Ouest, Québec (La Cité-Limoilou), QC G1S 1C1", "800", "Grande Allée Ouest", "Québec", "La Cité-Limoilou", "G1S 1C1"},
	}
	for _, c := range cases {
		a := ParseAddress(c.in)
		assert.Equal(t, c.civic, a.CivicNumber, c.in)
		assert.Equal(t, c.street, a.Street, c.in)
		assert.Equal(t, c.city, a.City, c.in)
		assert.Equal(t, c.hood, a.Neighbourhood, c.in)
		assert.Equal(t, c.postal, a.PostalCode, c.in)
	}
}
