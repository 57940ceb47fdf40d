package detail

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"realty-engine/internal/domain"
	"realty-engine/internal/scrape/util"
)

type AddressExtractor struct{}

func (AddressExtractor) Group() domain.FieldGroup { return domain.GroupAddress }
func (AddressExtractor) Mandatory() bool          { return true }

func (AddressExtractor) Extract(pg *Page, p *domain.Property) error {
	full := util.FirstText(pg.Doc, `h2[itemprop="address"]`, `[itemprop="address"]`)
	if full == "" {
		return errors.New("no address block")
	}
	a := ParseAddress(full)
	a.Region = util.FirstText(pg.Doc, `[itemprop="addressRegion"]`)
	a.Latitude = coordinate(pg, "latitude", "#PropertyLat")
	a.Longitude = coordinate(pg, "longitude", "#PropertyLng")
	p.Address = a
	return nil
}

var (
	postalRe = regexp.MustCompile(`(?i)\b([A-Z]\d[A-Z])\s?(\d[A-Z]\d)\b`)
	civicRe  = regexp.MustCompile(`^\d+[A-Za-z]?(\s?-\s?\d+[A-Za-z]?)?$`)
	hoodRe   = regexp.MustCompile(`\(([^)]*)\)`)
)


// ParseAddress splits a one-line listing address such as
// "2345, Rue Bourgogne, Chambly (Centre), QC J3L 1Z5".
func ParseAddress(full string) domain.Address {
	full = util.CleanText(full)
	a := domain.Address{Full: full}

	rest := full
	if m := postalRe.FindStringSubmatch(rest); m != nil {
		a.PostalCode = strings.ToUpper(m[1] + " " + m[2])
		rest = strings.Replace(rest, m[0], "", 1)
	}

	var parts []string
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		if part == "" || util.Fold(part) == "qc" {
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return a
	}

	if civicRe.MatchString(parts[0]) {
		a.CivicNumber = parts[0]
		parts = parts[1:]
	}

	// "Québec" is both the province and a city: a trailing one is the
	// province only while a street and a city still precede it.
	for len(parts) > 2 && util.Fold(parts[len(parts)-1]) == "quebec" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return a
	}

	city := parts[len(parts)-1]
	if m := hoodRe.FindStringSubmatch(city); m != nil {
		a.Neighbourhood = strings.TrimSpace(m[1])
		city = strings.TrimSpace(hoodRe.ReplaceAllString(city, ""))
	}
	a.City = city
	if len(parts) > 1 {
		a.Street = strings.Join(parts[:len(parts)-1], ", ")
	}
	return a
}

func coordinate(pg *Page, itemprop, fallback string) *float64 {
	raw := util.FirstNonEmpty(
		util.FirstAttr(pg.Doc, "content", `meta[itemprop="`+itemprop+`"]`),
		util.FirstText(pg.Doc, fallback),
	)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	return &v
}
