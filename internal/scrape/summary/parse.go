package summary

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"realty-engine/internal/domain"
	"realty-engine/internal/scrape/util"
)

const cardSelector = "div.property-thumbnail-item"

// Parser turns a raw result fragment into summaries.
type Parser struct {
	BaseURL string
	Source  string
}

func NewParser(baseURL, source string) *Parser {
	return &Parser{BaseURL: baseURL, Source: source}
}

// Result holds the recovered summaries in page order plus one issue per
// skipped card.
type Result struct {
	Summaries []domain.PropertySummary
	Issues    []domain.Issue
	Cards     int
}

// ParsePage skips malformed cards and records them. It fails with
// ErrParse only when a non-empty page yields no summary at all.
func (p *Parser) ParsePage(raw string) (Result, error) {
	var res Result
	if strings.TrimSpace(raw) == "" {
		return res, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return res, fmt.Errorf("%w: result page: %v", domain.ErrParse, err)
	}

	cards := doc.Find(cardSelector)
	res.Cards = cards.Length()
	cards.Each(func(i int, card *goquery.Selection) {
		s, err := p.parseCard(card)
		if err != nil {
			res.Issues = append(res.Issues, domain.Issue{
				Stage:     domain.StageSummary,
				Kind:      domain.Kind(err),
				Severity:  domain.SeverityError,
				SummaryID: s.ID,
				Message:   fmt.Sprintf("card %d: %v", i+1, err),
			})
			return
		}
		res.Summaries = append(res.Summaries, s)
	})

	if len(res.Summaries) == 0 && strings.TrimSpace(doc.Text()) != "" {
		return res, fmt.Errorf("%w: %d listing cards found, none recoverable", domain.ErrParse, res.Cards)
	}
	return res, nil
}

func (p *Parser) parseCard(card *goquery.Selection) (domain.PropertySummary, error) {
	s := domain.PropertySummary{Source: p.Source}

	href := util.FirstAttr(card, "href", "a.property-thumbnail-summary-link", "a.a-more-detail", "a[href]")
	s.ListingURL = util.ResolveURL(p.BaseURL, href)

	s.ID = util.FirstNonEmpty(
		util.FirstAttr(card, "content", `meta[itemprop="sku"]`),
		attrOf(card, "data-id"),
		util.FirstAttr(card, "data-id", "[data-id]"),
		util.ListingIDFromURL(s.ListingURL),
	)

	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("missing listing id"))
	}
	if s.ListingURL == "" {
		errs = append(errs, errors.New("missing listing url"))
	}

	priceText := util.FirstNonEmpty(
		util.FirstAttr(card, "content", `meta[itemprop="price"]`),
		util.FirstText(card, ".price span", ".price"),
	)
	if priceText == "" {
		errs = append(errs, errors.New("missing price"))
	} else if v, err := util.ParseAmount(priceText); err != nil {
		errs = append(errs, err)
	} else {
		s.Price = v
	}

	s.Category = util.FirstText(card, ".category", `[itemprop="category"]`)
	s.PropertyType = ClassifyCategory(s.Category)

	var lines []string
	card.Find(".address > div").Each(func(_ int, d *goquery.Selection) {
		if t := util.CleanText(d.Text()); t != "" {
			lines = append(lines, t)
		}
	})
	s.AddressSummary = strings.Join(lines, ", ")
	if s.AddressSummary == "" {
		s.AddressSummary = util.FirstText(card, ".address", `[itemprop="address"]`)
	}

	if len(errs) > 0 {
		return s, fmt.Errorf("%w: %v", domain.ErrParse, errors.Join(errs...))
	}
	return s, nil
}

func attrOf(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

// ClassifyCategory maps a listing category label ("Maison à vendre",
// "Duplex for sale") to a property type.
func ClassifyCategory(category string) domain.PropertyType {
	c := util.Fold(category)
	switch {
	case c == "":
		return ""
	case containsAny(c, "duplex", "triplex", "quadruplex", "quintuplex", "plex", "immeuble a revenus", "revenue property"):
		return domain.Plex
	case containsAny(c, "condo", "appartement", "apartment", "loft"):
		return domain.SellCondo
	case containsAny(c, "chalet", "cottage"):
		return domain.Cottage
	case containsAny(c, "terrain", "lot "):
		return domain.Lot
	case containsAny(c, "fermette", "ferme", "farm", "hobby"):
		return domain.Farm
	case containsAny(c, "maison", "house", "bungalow", "cottage", "jumele", "en rangee", "townhouse", "split"):
		return domain.SingleFamilyHome
	default:
		return ""
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
