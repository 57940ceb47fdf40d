package search

import (
	"fmt"
	"sort"

	"realty-engine/internal/domain"
)

const (
	noPriceMin = 0
	noPriceMax = 999999999999
)

type FieldValue struct {
	FieldID          string `json:"fieldId"`
	Value            any    `json:"value"`
	FieldConditionID string `json:"fieldConditionId"`
	ValueConditionID string `json:"valueConditionId"`
}

type Query struct {
	UseGeographyShapes int          `json:"UseGeographyShapes"`
	Filters            []any        `json:"Filters"`
	FieldsValues       []FieldValue `json:"FieldsValues"`
}

// Request is one page request of a (query, location) stream.
type Request struct {
	Query         Query `json:"query"`
	IsHomePage    bool  `json:"isHomePage"`
	StartPosition int   `json:"startPosition"`
}

// BuildRequest renders the wire payload for loc at cursor. The field
// order is fixed: location, category, selling type, property types
// (sorted), then the two price bounds.
func BuildRequest(q domain.SearchQuery, loc domain.LocationConfig, cursor int) (Request, error) {
	if cursor < 0 {
		return Request{}, fmt.Errorf("negative cursor %d", cursor)
	}
	locValue, err := loc.WireValue()
	if err != nil {
		return Request{}, err
	}

	fields := []FieldValue{
		{FieldID: string(loc.Kind), Value: locValue},
		{FieldID: "Category", Value: "Residential"},
		{FieldID: "SellingType", Value: "Sale"},
	}

	types := make([]string, 0, len(q.PropertyTypes))
	seen := map[string]bool{}
	for _, t := range q.PropertyTypes {
		if seen[string(t)] {
			continue
		}
		seen[string(t)] = true
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fields = append(fields, FieldValue{FieldID: "PropertyType", Value: t})
	}

	min, max := float64(noPriceMin), float64(noPriceMax)
	if q.PriceMin != nil {
		min = *q.PriceMin
	}
	if q.PriceMax != nil {
		max = *q.PriceMax
	}
	fields = append(fields,
		FieldValue{FieldID: "SalePrice", Value: int64(min)},
		FieldValue{FieldID: "SalePrice", Value: int64(max)},
	)

	return Request{
		Query: Query{
			UseGeographyShapes: 0,
			Filters:            []any{},
			FieldsValues:       fields,
		},
		IsHomePage:    true,
		StartPosition: cursor,
	}, nil
}
