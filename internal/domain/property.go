package domain

import "time"

// PropertySummary is one listing card from a search-results page.
type PropertySummary struct {
	ID             string       `json:"id"`
	AddressSummary string       `json:"address_summary"`
	Price          float64      `json:"price"`
	PropertyType   PropertyType `json:"property_type"`
	Category       string       `json:"category,omitempty"`
	Source         string       `json:"source"`
	ListingURL     string       `json:"listing_url"`
}

type Address struct {
	Full          string   `json:"full"`
	CivicNumber   string   `json:"civic_number,omitempty"`
	Street        string   `json:"street,omitempty"`
	City          string   `json:"city,omitempty"`
	Neighbourhood string   `json:"neighbourhood,omitempty"`
	Region        string   `json:"region,omitempty"`
	PostalCode    string   `json:"postal_code,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
}

func (a Address) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

type Financial struct {
	Revenue      *float64 `json:"revenue,omitempty"`
	MunicipalTax *float64 `json:"municipal_tax,omitempty"`
	SchoolTax    *float64 `json:"school_tax,omitempty"`
	Assessment   *float64 `json:"assessment,omitempty"`
}

type Physical struct {
	LivingArea *float64 `json:"living_area,omitempty" validate:"omitempty,gt=0,lte=100000"`
	LotArea    *float64 `json:"lot_area,omitempty" validate:"omitempty,gt=0,lte=100000000"`
	Bedrooms   *int     `json:"bedrooms,omitempty" validate:"omitempty,gte=0,lte=50"`
	Bathrooms  *int     `json:"bathrooms,omitempty" validate:"omitempty,gte=0,lte=30"`
	YearBuilt  *int     `json:"year_built,omitempty"`
	Units      *int     `json:"units,omitempty" validate:"omitempty,gte=1,lte=500"`
}

type FieldGroup string

const (
	GroupAddress   FieldGroup = "address"
	GroupFinancial FieldGroup = "financial"
	GroupPhysical  FieldGroup = "physical"
)

type FieldState string

const (
	FieldOK     FieldState = "ok"
	FieldEmpty  FieldState = "empty"
	FieldFailed FieldState = "failed"
)

type FieldStatus struct {
	State FieldState `json:"state"`
	Error string     `json:"error,omitempty"`
}

type ExtractionMetadata struct {
	Timestamp  time.Time                  `json:"timestamp"`
	SourcePage string                     `json:"source_page"`
	Fields     map[FieldGroup]FieldStatus `json:"fields"`
}

// Property is the fully extracted record. Only the validator mutates it
// (Issues, Validated); after validation it is treated as read-only.
type Property struct {
	PropertySummary
	Location  LocationConfig     `json:"location"`
	Address   Address            `json:"address"`
	Financial Financial          `json:"financial"`
	Physical  Physical           `json:"physical"`
	Metadata  ExtractionMetadata `json:"extraction_metadata"`
	Issues    []Issue            `json:"issues,omitempty"`
	Validated bool               `json:"validated"`
}

type SaveStatus string

const (
	SaveAccepted  SaveStatus = "accepted"
	SaveDuplicate SaveStatus = "duplicate"
	SaveRejected  SaveStatus = "rejected"
)

// SaveOutcome is what a Store reports for one property.
type SaveOutcome struct {
	Status SaveStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}
