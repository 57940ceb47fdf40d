package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"realty-engine/internal/domain"
	"realty-engine/internal/scrape/util"
)

type BBox struct {
	MinLat float64 `yaml:"min_lat" json:"min_lat"`
	MaxLat float64 `yaml:"max_lat" json:"max_lat"`
	MinLng float64 `yaml:"min_lng" json:"min_lng"`
	MaxLng float64 `yaml:"max_lng" json:"max_lng"`
}

func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

type Config struct {
	BBox BBox
	// MinYear and MaxYearAhead bound the construction year relative to now.
	MinYear      int
	MaxYearAhead int
	// AreaCities lists the member cities of a GeographicArea type_id. Areas
	// without an entry can only be matched by name.
	AreaCities map[string][]string
}

// DefaultConfig covers the province of Québec.
func DefaultConfig() Config {
	return Config{
		BBox:         BBox{MinLat: 44.9, MaxLat: 62.6, MinLng: -79.8, MaxLng: -57.1},
		MinYear:      1600,
		MaxYearAhead: 5,
	}
}

// WithDefaults fills unset bounds from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.BBox == (BBox{}) {
		c.BBox = d.BBox
	}
	if c.MinYear == 0 {
		c.MinYear = d.MinYear
	}
	if c.MaxYearAhead == 0 {
		c.MaxYearAhead = d.MaxYearAhead
	}
	return c
}

// Validator checks extracted properties against business rules and the
// query that produced them.
type Validator struct {
	cfg   Config
	query domain.SearchQuery
	check *validator.Validate
	now   func() time.Time
}

func New(cfg Config, q domain.SearchQuery) *Validator {
	check := validator.New(validator.WithRequiredStructEnabled())
	check.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{cfg: cfg.WithDefaults(), query: q, check: check, now: time.Now}
}

// Validate returns p with its issues attached. Warnings never block; any
// error-severity issue makes the result wrap ErrValidation and the property
// must not be persisted.
func (v *Validator) Validate(p domain.Property) (domain.Property, error) {
	var issues []domain.Issue
	add := func(sev domain.Severity, code, field, format string, args ...any) {
		issues = append(issues, domain.Issue{
			Stage:     domain.StageValidate,
			Kind:      "ValidationError",
			Severity:  sev,
			Code:      code,
			Field:     field,
			SummaryID: p.ID,
			Location:  p.Location.Value,
			Message:   fmt.Sprintf(format, args...),
		})
	}

	if p.Price <= 0 {
		add(domain.SeverityError, "price_not_positive", "price", "price %.2f is not positive", p.Price)
	} else if !v.query.PriceInRange(p.Price) {
		add(domain.SeverityError, "price_out_of_range", "price", "price %.0f outside %s", p.Price, priceRange(v.query))
	}

	if p.Address.HasCoordinates() {
		lat, lng := *p.Address.Latitude, *p.Address.Longitude
		if !v.cfg.BBox.Contains(lat, lng) {
			add(domain.SeverityError, "out_of_region", "address.coordinates", "coordinates %.5f,%.5f outside operating region", lat, lng)
		}
	}

	switch ok, verified := v.locationMatches(p); {
	case !verified:
		add(domain.SeverityWarning, "location_unverified", "location", "cannot confirm %q from address %q", p.Location.Value, p.Address.Full)
	case !ok:
		add(domain.SeverityError, "location_mismatch", "address.city", "city %q does not belong to %q", p.Address.City, p.Location.Value)
	}

	if p.Physical.Units != nil {
		units := *p.Physical.Units
		switch {
		case p.PropertyType.SingleUnit() && units > 1:
			add(domain.SeverityWarning, "type_mismatch", "property_type", "%s listed with %d units", p.PropertyType, units)
		case p.PropertyType.MultiUnit() && units < 2:
			add(domain.SeverityWarning, "type_mismatch", "property_type", "%s listed with %d unit", p.PropertyType, units)
		}
	}

	if err := v.check.Struct(p.Physical); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				add(domain.SeverityWarning, "physical_out_of_range", "physical."+fe.Field(), "%s=%v fails %s=%s", fe.Field(), fe.Value(), fe.Tag(), fe.Param())
			}
		} else {
			add(domain.SeverityWarning, "physical_out_of_range", "physical", "%v", err)
		}
	}
	if y := p.Physical.YearBuilt; y != nil {
		maxYear := v.now().Year() + v.cfg.MaxYearAhead
		if *y < v.cfg.MinYear || *y > maxYear {
			add(domain.SeverityWarning, "physical_out_of_range", "physical.year_built", "year_built=%d outside %d..%d", *y, v.cfg.MinYear, maxYear)
		}
	}

	p.Issues = append(p.Issues, issues...)
	var blocking []string
	for _, is := range issues {
		if is.Severity == domain.SeverityError {
			blocking = append(blocking, is.Message)
		}
	}
	if len(blocking) > 0 {
		p.Validated = false
		return p, fmt.Errorf("%w: %s: %s", domain.ErrValidation, p.ID, strings.Join(blocking, "; "))
	}
	p.Validated = true
	return p, nil
}

var parenRe = regexp.MustCompile(`\s*\([^)]*\)`)

func placeKey(s string) string {
	return util.Fold(parenRe.ReplaceAllString(s, ""))
}

// locationMatches reports whether p resolves to its originating location.
// verified is false when the address carries nothing to compare with.
func (v *Validator) locationMatches(p domain.Property) (ok, verified bool) {
	want := placeKey(p.Location.Value)
	if want == "" {
		return false, false
	}
	city := placeKey(p.Address.City)

	if p.Location.Kind == domain.GeographicArea {
		if members, known := v.cfg.AreaCities[p.Location.TypeID]; known && city != "" {
			for _, m := range members {
				if placeKey(m) == city {
					return true, true
				}
			}
			return false, true
		}
		// a known region settles it either way
		if region := placeKey(p.Address.Region); region != "" {
			return region == want, true
		}
		if strings.Contains(util.Fold(p.Address.Full), want) {
			return true, true
		}
		return false, false
	}

	if city != "" {
		return city == want || placeKey(p.Address.Neighbourhood) == want, true
	}
	if full := util.Fold(p.Address.Full); full != "" {
		if strings.Contains(full, want) {
			return true, true
		}
	}
	return false, false
}

func priceRange(q domain.SearchQuery) string {
	lo, hi := "0", "inf"
	if q.PriceMin != nil {
		lo = fmt.Sprintf("%.0f", *q.PriceMin)
	}
	if q.PriceMax != nil {
		hi = fmt.Sprintf("%.0f", *q.PriceMax)
	}
	return "[" + lo + ", " + hi + "]"
}
