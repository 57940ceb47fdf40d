package detail

import (
	"errors"
	"fmt"

	"realty-engine/internal/domain"
	"realty-engine/internal/scrape/util"
)

// FinancialExtractor reads the asking price and the financial details
// table. A parsed asking price replaces the card price.
type FinancialExtractor struct{}

func (FinancialExtractor) Group() domain.FieldGroup { return domain.GroupFinancial }
func (FinancialExtractor) Mandatory() bool          { return false }

var financialLabels = []struct {
	prefixes []string
	set      func(f *domain.Financial, v float64)
}{
	{[]string{"revenus bruts potentiels", "potential gross revenue", "revenus bruts", "gross revenue"}, func(f *domain.Financial, v float64) { f.Revenue = &v }},
	{[]string{"taxes municipales", "taxe municipale", "municipal taxes", "municipal tax"}, func(f *domain.Financial, v float64) { f.MunicipalTax = &v }},
	{[]string{"taxes scolaires", "taxe scolaire", "school taxes", "school tax"}, func(f *domain.Financial, v float64) { f.SchoolTax = &v }},
	{[]string{"evaluation municipale", "municipal assessment", "evaluation", "assessment"}, func(f *domain.Financial, v float64) { f.Assessment = &v }},
}

func (FinancialExtractor) Extract(pg *Page, p *domain.Property) error {
	found := false
	var errs []error

	priceText := util.FirstNonEmpty(
		util.FirstAttr(pg.Doc, "content", `#BuyPrice`, `meta[itemprop="price"]`),
		util.FirstText(pg.Doc, "#BuyPrice", ".price-container .price span", ".price span"),
	)
	if priceText != "" {
		v, err := util.ParseAmount(priceText)
		if err != nil {
			errs = append(errs, fmt.Errorf("price: %w", err))
		} else {
			p.Price = v
			found = true
		}
	}

	var fin domain.Financial
	for _, l := range financialLabels {
		raw, ok := util.Lookup(pg.Financial, l.prefixes...)
		if !ok {
			continue
		}
		v, err := util.ParseAmount(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.prefixes[0], err))
			continue
		}
		l.set(&fin, v)
		found = true
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if !found {
		return errNoData
	}
	p.Financial = fin
	return nil
}
