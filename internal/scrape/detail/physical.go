package detail

import (
	"errors"
	"fmt"

	"realty-engine/internal/domain"
	"realty-engine/internal/scrape/util"
)

// PhysicalExtractor reads surfaces, room counts, construction year and
// unit count from the characteristics tiles.
type PhysicalExtractor struct{}

func (PhysicalExtractor) Group() domain.FieldGroup { return domain.GroupPhysical }
func (PhysicalExtractor) Mandatory() bool          { return false }

func (PhysicalExtractor) Extract(pg *Page, p *domain.Property) error {
	var ph domain.Physical
	var errs []error
	found := false

	area := func(dst **float64, prefixes ...string) {
		raw, ok := util.Lookup(pg.Caracs, prefixes...)
		if !ok {
			return
		}
		v, err := util.ParseAmount(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prefixes[0], err))
			return
		}
		*dst = &v
		found = true
	}
	count := func(dst **int, raw, label string, parse func(string) (int, error)) {
		if raw == "" {
			return
		}
		v, err := parse(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
			return
		}
		*dst = &v
		found = true
	}
	carac := func(prefixes ...string) string {
		v, _ := util.Lookup(pg.Caracs, prefixes...)
		return v
	}

	area(&ph.LivingArea, "superficie habitable", "living area", "superficie nette", "net area", "superficie du batiment", "building area")
	area(&ph.LotArea, "superficie du terrain", "lot area")

	count(&ph.Bedrooms, util.FirstNonEmpty(
		util.FirstText(pg.Doc, "div.cac"),
		carac("chambres", "nombre de chambres", "bedrooms"),
	), "bedrooms", util.ParseCount)
	count(&ph.Bathrooms, util.FirstNonEmpty(
		util.FirstText(pg.Doc, "div.sdb"),
		carac("salles de bains", "salle de bain", "bathrooms"),
	), "bathrooms", util.ParseCount)
	count(&ph.YearBuilt, carac("annee de construction", "year built"), "year built", util.ParseYear)
	count(&ph.Units, carac("nombre d'unites", "nombre d’unites", "number of units", "unites", "units"), "units", util.ParseCount)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if !found {
		return errNoData
	}
	p.Physical = ph
	return nil
}
