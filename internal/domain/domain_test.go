package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireValue(t *testing.T) {
	v, err := LocationConfig{Kind: CityDistrict, Value: "Chambly", TypeID: " 458 "}.WireValue()
	require.NoError(t, err)
	assert.Equal(t, 458, v)

	v, err = LocationConfig{Kind: GeographicArea, Value: "Montérégie", TypeID: "RARA16"}.WireValue()
	require.NoError(t, err)
	assert.Equal(t, "RARA16", v)

	bad := []LocationConfig{
		{Kind: CityDistrict, Value: "Chambly", TypeID: "RARA16"},
		{Kind: GeographicArea, Value: "Montérégie", TypeID: "16"},
		{Kind: GeographicArea, Value: "Montérégie", TypeID: ""},
		{Kind: "Borough", Value: "Plateau", TypeID: "1"},
	}
	for _, l := range bad {
		_, err := l.WireValue()
		assert.ErrorIs(t, err, ErrFatalConfig, l.String())
	}
}

func TestSearchQueryValidate(t *testing.T) {
	chambly := LocationConfig{Kind: CityDistrict, Value: "Chambly", TypeID: "458"}
	lo, hi := 200000.0, 300000.0

	assert.ErrorIs(t, SearchQuery{}.Validate(), ErrFatalConfig)
	assert.ErrorIs(t, SearchQuery{Locations: []LocationConfig{chambly, chambly}}.Validate(), ErrFatalConfig)
	assert.ErrorIs(t, SearchQuery{Locations: []LocationConfig{chambly}, PriceMin: &hi, PriceMax: &lo}.Validate(), ErrFatalConfig)
	assert.NoError(t, SearchQuery{Locations: []LocationConfig{chambly}, PropertyTypes: []PropertyType{Plex}, PriceMin: &lo, PriceMax: &hi}.Validate())
}

func TestPriceInRange(t *testing.T) {
	lo, hi := 200000.0, 260000.0
	q := SearchQuery{PriceMin: &lo, PriceMax: &hi}
	assert.True(t, q.PriceInRange(200000))
	assert.True(t, q.PriceInRange(260000))
	assert.False(t, q.PriceInRange(199999))
	assert.False(t, q.PriceInRange(260001))
	assert.True(t, SearchQuery{}.PriceInRange(1))
}

func TestClassifyStatusAndKind(t *testing.T) {
	cases := []struct {
		status    int
		kind      string
		retryable bool
	}{
		{401, "SessionExpiredError", false},
		{403, "SessionExpiredError", false},
		{404, "ClientError", false},
		{408, "TransientNetworkError", true},
		{410, "ClientError", false},
		{429, "RateLimitError", true},
		{500, "TransientNetworkError", true},
		{503, "TransientNetworkError", true},
	}
	for _, c := range cases {
		err := fmt.Errorf("fetch: %w", NewHTTPError(c.status, "https://example.test/x", 2))
		assert.Equal(t, c.kind, Kind(err), c.status)
		assert.Equal(t, c.retryable, Retryable(err), c.status)

		var he *HTTPError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, uint64(2), he.Generation)
	}

	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "Cancelled", Kind(context.Canceled))
	assert.Equal(t, "DetailExtractionError", Kind(fmt.Errorf("%w: address", ErrDetailExtraction)))
	assert.Equal(t, "Error", Kind(errors.New("other")))
}

func TestPropertyTypeUnits(t *testing.T) {
	assert.True(t, Plex.MultiUnit())
	assert.False(t, Plex.SingleUnit())
	assert.True(t, SellCondo.SingleUnit())
	assert.False(t, Lot.SingleUnit())
	assert.False(t, Lot.MultiUnit())
}
