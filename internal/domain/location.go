package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type LocationKind string

const (
	GeographicArea LocationKind = "GeographicArea"
	CityDistrict   LocationKind = "CityDistrict"
)

// LocationConfig scopes one search stream. TypeID is a string code for
// GeographicArea (e.g. "RARA16") and a numeric id for CityDistrict.
type LocationConfig struct {
	Kind   LocationKind `yaml:"kind" json:"kind" validate:"required,oneof=GeographicArea CityDistrict"`
	Value  string       `yaml:"value" json:"value" validate:"required"`
	TypeID string       `yaml:"type_id" json:"type_id" validate:"required"`
}

func (l LocationConfig) Key() string {
	return string(l.Kind) + ":" + l.TypeID
}

func (l LocationConfig) String() string {
	return fmt.Sprintf("%s(%s=%s)", l.Value, l.Kind, l.TypeID)
}

// WireValue returns TypeID in the shape the search endpoint expects for Kind.
func (l LocationConfig) WireValue() (any, error) {
	id := strings.TrimSpace(l.TypeID)
	switch l.Kind {
	case CityDistrict:
		n, err := strconv.Atoi(id)
		if err != nil {
			return nil, fmt.Errorf("%w: location %q: CityDistrict type_id must be numeric, got %q", ErrFatalConfig, l.Value, l.TypeID)
		}
		return n, nil
	case GeographicArea:
		if id == "" {
			return nil, fmt.Errorf("%w: location %q: empty GeographicArea type_id", ErrFatalConfig, l.Value)
		}
		if _, err := strconv.Atoi(id); err == nil {
			return nil, fmt.Errorf("%w: location %q: GeographicArea type_id must be a code, got numeric %q", ErrFatalConfig, l.Value, l.TypeID)
		}
		return id, nil
	default:
		return nil, fmt.Errorf("%w: location %q: unknown kind %q", ErrFatalConfig, l.Value, l.Kind)
	}
}

type PropertyType string

const (
	SingleFamilyHome PropertyType = "SingleFamilyHome"
	SellCondo        PropertyType = "SellCondo"
	Plex             PropertyType = "Plex"
	Cottage          PropertyType = "Cottage"
	Lot              PropertyType = "Lot"
	Farm             PropertyType = "Farm"
)

// MultiUnit reports whether the type is expected to hold several dwellings.
func (t PropertyType) MultiUnit() bool {
	return t == Plex
}

// SingleUnit reports whether the type is expected to hold exactly one dwelling.
func (t PropertyType) SingleUnit() bool {
	switch t {
	case SingleFamilyHome, SellCondo, Cottage:
		return true
	}
	return false
}

type SearchQuery struct {
	Locations     []LocationConfig `yaml:"locations" json:"locations"`
	PropertyTypes []PropertyType   `yaml:"property_types" json:"property_types"`
	PriceMin      *float64         `yaml:"price_min" json:"price_min,omitempty"`
	PriceMax      *float64         `yaml:"price_max" json:"price_max,omitempty"`
}

// Validate checks the query before any network call. Every failure wraps
// ErrFatalConfig.
func (q SearchQuery) Validate() error {
	var errs []error
	if len(q.Locations) == 0 {
		errs = append(errs, fmt.Errorf("%w: search query has no locations", ErrFatalConfig))
	}
	seen := map[string]bool{}
	for _, l := range q.Locations {
		if strings.TrimSpace(l.Value) == "" {
			errs = append(errs, fmt.Errorf("%w: location with type_id %q has no value", ErrFatalConfig, l.TypeID))
		}
		if _, err := l.WireValue(); err != nil {
			errs = append(errs, err)
		}
		if seen[l.Key()] {
			errs = append(errs, fmt.Errorf("%w: location %s listed twice", ErrFatalConfig, l.Key()))
		}
		seen[l.Key()] = true
	}
	for _, t := range q.PropertyTypes {
		if strings.TrimSpace(string(t)) == "" {
			errs = append(errs, fmt.Errorf("%w: empty property type", ErrFatalConfig))
		}
	}
	if q.PriceMin != nil && *q.PriceMin < 0 {
		errs = append(errs, fmt.Errorf("%w: price_min is negative", ErrFatalConfig))
	}
	if q.PriceMin != nil && q.PriceMax != nil && *q.PriceMin > *q.PriceMax {
		errs = append(errs, fmt.Errorf("%w: price_min %.0f > price_max %.0f", ErrFatalConfig, *q.PriceMin, *q.PriceMax))
	}
	return errors.Join(errs...)
}

// PriceInRange reports whether price satisfies the query's bounds.
func (q SearchQuery) PriceInRange(price float64) bool {
	if q.PriceMin != nil && price < *q.PriceMin {
		return false
	}
	if q.PriceMax != nil && price > *q.PriceMax {
		return false
	}
	return true
}
