package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realty-engine/internal/domain"
)

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }

var chambly = domain.LocationConfig{Kind: domain.CityDistrict, Value: "Chambly", TypeID: "458"}

func query() domain.SearchQuery {
	return domain.SearchQuery{
		Locations: []domain.LocationConfig{chambly},
		PriceMin:  f(200000),
		PriceMax:  f(260000),
	}
}

func newValidator(cfg Config) *Validator {
	v := New(cfg, query())
	v.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return v
}

func goodProperty() domain.Property {
	return domain.Property{
		PropertySummary: domain.PropertySummary{ID: "12345003", Price: 245000, PropertyType: domain.Plex},
		Location:        chambly,
		Address: domain.Address{
			Full:      "2345, Rue Bourgogne, Chambly",
			City:      "Chambly",
			Latitude:  f(45.4481),
			Longitude: f(-73.2875),
		},
		Physical: domain.Physical{Bedrooms: i(3), Units: i(2), YearBuilt: i(1975)},
	}
}

func codes(issues []domain.Issue) []string {
	var out []string
	for _, is := range issues {
		out = append(out, is.Code)
	}
	return out
}

func TestValidPropertyAccepted(t *testing.T) {
	p, err := newValidator(DefaultConfig()).Validate(goodProperty())
	require.NoError(t, err)
	assert.True(t, p.Validated)
	assert.Empty(t, p.Issues)
}

func TestPriceRules(t *testing.T) {
	v := newValidator(DefaultConfig())

	for _, price := range []float64{-1, 0} {
		p := goodProperty()
		p.Price = price
		got, err := v.Validate(p)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Contains(t, codes(got.Issues), "price_not_positive")
		assert.False(t, got.Validated)
	}

	for _, price := range []float64{199999, 260001} {
		p := goodProperty()
		p.Price = price
		got, err := v.Validate(p)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, []string{"price_out_of_range"}, codes(got.Issues))
	}

	for _, price := range []float64{200000, 260000} {
		p := goodProperty()
		p.Price = price
		_, err := v.Validate(p)
		assert.NoError(t, err)
	}
}

func TestOutOfRegionCoordinates(t *testing.T) {
	p := goodProperty()
	p.Address.Latitude = f(48.8566)
	p.Address.Longitude = f(2.3522)

	got, err := newValidator(DefaultConfig()).Validate(p)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, []string{"out_of_region"}, codes(got.Issues))
}

func TestLocationMismatchBlocks(t *testing.T) {
	p := goodProperty()
	p.Address.Full = "1200, Boulevard des Forges, Trois-Rivières"
	p.Address.City = "Trois-Rivières"

	got, err := newValidator(DefaultConfig()).Validate(p)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, []string{"location_mismatch"}, codes(got.Issues))
	assert.Equal(t, domain.SeverityError, got.Issues[0].Severity)
}

func TestLocationMatchIgnoresAccentsAndNeighbourhood(t *testing.T) {
	loc := domain.LocationConfig{Kind: domain.CityDistrict, Value: "Trois-Rivières", TypeID: "1021"}
	p := goodProperty()
	p.Location = loc
	p.Address.City = "TROIS-RIVIERES"
	p.Address.Neighbourhood = "Trois-Rivières-Ouest"

	_, err := newValidator(DefaultConfig()).Validate(p)
	assert.NoError(t, err)
}

func TestLocationUnverifiedIsWarning(t *testing.T) {
	p := goodProperty()
	p.Address = domain.Address{Full: "Rang 4"}

	got, err := newValidator(DefaultConfig()).Validate(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"location_unverified"}, codes(got.Issues))
	assert.True(t, got.Validated)
}

func TestGeographicAreaMembership(t *testing.T) {
	area := domain.LocationConfig{Kind: domain.GeographicArea, Value: "Montérégie", TypeID: "RARA16"}
	cfg := DefaultConfig()
	cfg.AreaCities = map[string][]string{"RARA16": {"Chambly", "Longueuil"}}
	v := newValidator(cfg)

	p := goodProperty()
	p.Location = area
	_, err := v.Validate(p)
	assert.NoError(t, err)

	p.Address.City = "Trois-Rivières"
	got, err := v.Validate(p)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, []string{"location_mismatch"}, codes(got.Issues))
}

func TestGeographicAreaRegionWithoutMembership(t *testing.T) {
	area := domain.LocationConfig{Kind: domain.GeographicArea, Value: "Montérégie", TypeID: "RARA16"}
	v := newValidator(DefaultConfig())

	p := goodProperty()
	p.Location = area
	p.Address = domain.Address{
		Full:      "1200, Boulevard des Forges, Trois-Rivières",
		City:      "Trois-Rivières",
		Region:    "Mauricie",
		Latitude:  f(46.34),
		Longitude: f(-72.54),
	}
	got, err := v.Validate(p)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.False(t, got.Validated)
	assert.Equal(t, []string{"location_mismatch"}, codes(got.Issues))

	p.Address.City = "Chambly"
	p.Address.Region = "Montérégie (Rive-Sud)"
	got, err = v.Validate(p)
	require.NoError(t, err)
	assert.Empty(t, got.Issues)

	p.Address.Region = ""
	got, err = v.Validate(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"location_unverified"}, codes(got.Issues))
}

func TestClassificationMismatchIsWarning(t *testing.T) {
	p := goodProperty()
	p.PropertyType = domain.SingleFamilyHome
	p.Physical.Units = i(3)

	got, err := newValidator(DefaultConfig()).Validate(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"type_mismatch"}, codes(got.Issues))
	assert.Equal(t, domain.SeverityWarning, got.Issues[0].Severity)
	assert.True(t, got.Validated)
}

func TestPhysicalRangesAreWarnings(t *testing.T) {
	p := goodProperty()
	p.Physical.Bedrooms = i(120)
	p.Physical.LivingArea = f(-5)
	p.Physical.YearBuilt = i(2190)

	got, err := newValidator(DefaultConfig()).Validate(p)
	require.NoError(t, err)
	assert.Len(t, got.Issues, 3)
	var fields []string
	for _, is := range got.Issues {
		assert.Equal(t, domain.SeverityWarning, is.Severity)
		fields = append(fields, is.Field)
	}
	assert.ElementsMatch(t, []string{"physical.living_area", "physical.bedrooms", "physical.year_built"}, fields)
}
