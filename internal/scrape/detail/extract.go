package detail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/phuslu/log"

	"realty-engine/internal/domain"
	"realty-engine/internal/scrape/util"
	"realty-engine/internal/session"
)

// errNoData marks a field group the page simply does not carry.
var errNoData = errors.New("no data on page")

// Page is a parsed listing page plus the label/value blocks every
// extractor reads from.
type Page struct {
	URL       string
	Doc       *goquery.Selection
	Caracs    map[string]string
	Financial map[string]string
}

func newPage(url, raw string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: detail page %s: %v", domain.ErrParse, url, err)
	}
	root := doc.Selection
	return &Page{
		URL:       url,
		Doc:       root,
		Caracs:    util.LabeledValues(root, "div.carac-container", ".carac-title", ".carac-value"),
		Financial: util.LabeledValues(root, ".financial-details-table tr", "td, th", "td"),
	}, nil
}

// FieldExtractor fills one field group of a Property. Implementations only
// touch their own group.
type FieldExtractor interface {
	Group() domain.FieldGroup
	Mandatory() bool
	Extract(pg *Page, p *domain.Property) error
}

// Extractors returns the fixed set of field extractors in run order.
func Extractors() []FieldExtractor {
	return []FieldExtractor{AddressExtractor{}, FinancialExtractor{}, PhysicalExtractor{}}
}

type Doer interface {
	Do(ctx context.Context, r session.Request) ([]byte, error)
}

type Extractor struct {
	doer       Doer
	extractors []FieldExtractor
	now        func() time.Time
}

func NewExtractor(doer Doer) *Extractor {
	return &Extractor{doer: doer, extractors: Extractors(), now: time.Now}
}

// FetchDetail downloads the listing page of s and assembles a Property
// attributed to loc, the stream s was found in. Session expiry is renewed
// once by the doer before the item fails.
func (e *Extractor) FetchDetail(ctx context.Context, s domain.PropertySummary, loc domain.LocationConfig) (domain.Property, error) {
	if s.ListingURL == "" {
		return domain.Property{PropertySummary: s, Location: loc}, fmt.Errorf("%w: summary %s has no listing url", domain.ErrDetailExtraction, s.ID)
	}
	raw, err := e.doer.Do(ctx, session.Request{Method: http.MethodGet, URL: s.ListingURL})
	if err != nil {
		return domain.Property{PropertySummary: s, Location: loc}, err
	}
	return e.Parse(s, loc, string(raw))
}

// Parse runs every field extractor over raw. A failing optional group is
// left at its zero value and recorded in the metadata; a failing mandatory
// group fails the whole item with ErrDetailExtraction.
func (e *Extractor) Parse(s domain.PropertySummary, loc domain.LocationConfig, raw string) (domain.Property, error) {
	p := domain.Property{
		PropertySummary: s,
		Location:        loc,
		Metadata: domain.ExtractionMetadata{
			Timestamp:  e.now().UTC(),
			SourcePage: s.ListingURL,
			Fields:     make(map[domain.FieldGroup]domain.FieldStatus, len(e.extractors)),
		},
	}

	pg, err := newPage(s.ListingURL, raw)
	if err != nil {
		return p, err
	}

	for _, x := range e.extractors {
		scratch := p
		err := runExtractor(x, pg, &scratch)
		switch {
		case err == nil:
			p = scratch
			p.Metadata.Fields[x.Group()] = domain.FieldStatus{State: domain.FieldOK}
		case errors.Is(err, errNoData) && !x.Mandatory():
			p.Metadata.Fields[x.Group()] = domain.FieldStatus{State: domain.FieldEmpty}
		default:
			p.Metadata.Fields[x.Group()] = domain.FieldStatus{State: domain.FieldFailed, Error: err.Error()}
			if x.Mandatory() {
				return p, fmt.Errorf("%w: %s group of %s: %v", domain.ErrDetailExtraction, x.Group(), s.ID, err)
			}
			log.Debug().Str("summary_id", s.ID).Str("group", string(x.Group())).Err(err).Msg("field group failed")
		}
	}
	return p, nil
}

func runExtractor(x FieldExtractor, pg *Page, p *domain.Property) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return x.Extract(pg, p)
}
