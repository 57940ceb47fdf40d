package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"realty-engine/internal/domain"
	"realty-engine/internal/scrape/util"
	"realty-engine/internal/session"
)

// Page is one raw result page.
type Page struct {
	Raw           string
	Number        int
	StartPosition int
	NextPosition  int
	Total         int
	HasNext       bool
}

type pageResponse struct {
	D struct {
		Succeeded bool `json:"Succeeded"`
		Result    struct {
			HTML    string `json:"html"`
			Count   int    `json:"count"`
			PerPage int    `json:"inscNumberPerPage"`
		} `json:"Result"`
	} `json:"d"`
}

// Doer is the slice of session.Manager the client needs.
type Doer interface {
	Do(ctx context.Context, r session.Request) ([]byte, error)
}

type Client struct {
	doer     Doer
	endpoint string
}

func NewClient(doer Doer, baseURL, searchPath string) *Client {
	return &Client{doer: doer, endpoint: strings.TrimRight(baseURL, "/") + searchPath}
}

// FetchPage posts req and decodes the result fragment.
func (c *Client) FetchPage(ctx context.Context, req Request) (Page, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Page{}, err
	}

	data, err := c.doer.Do(ctx, session.Request{
		Method:      "POST",
		URL:         c.endpoint,
		Body:        payload,
		ContentType: "application/json; charset=UTF-8",
		Accept:      "application/json, text/javascript, */*; q=0.01",
	})
	if err != nil {
		return Page{}, err
	}

	var pr pageResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return Page{}, fmt.Errorf("%w: search response: %v body=%s", domain.ErrParse, err, util.Truncate(string(data), 240))
	}

	res := pr.D.Result
	page := Page{
		Raw:           res.HTML,
		StartPosition: req.StartPosition,
		Total:         res.Count,
	}
	perPage := res.PerPage
	if perPage <= 0 {
		perPage = strings.Count(res.HTML, "property-thumbnail-item")
	}
	page.NextPosition = req.StartPosition + perPage
	page.HasNext = perPage > 0 &&
		strings.TrimSpace(res.HTML) != "" &&
		page.NextPosition < res.Count
	return page, nil
}
