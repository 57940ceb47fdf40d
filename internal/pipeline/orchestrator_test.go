package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realty-engine/internal/domain"
	"realty-engine/internal/retry"
	"realty-engine/internal/scrape/search"
	"realty-engine/internal/session"
)

const searchPath = "/Property/GetInscriptions"

type listing struct {
	id        string
	city      string
	price     float64
	noAddress bool
}

// fakeSite serves a bootstrap page, the paged search endpoint and listing
// pages. Streams are keyed by the location wire value.
type fakeSite struct {
	perPage int
	streams map[string][]listing
	// detailStatus, when set, overrides the status of detail attempt n (1-based).
	detailStatus func(id string, n int) int
	detailDelay  time.Duration

	requests    atomic.Int32
	searchCalls atomic.Int32

	mu      sync.Mutex
	details map[string]int
}

func (s *fakeSite) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc"})
		_, _ = w.Write([]byte("<html><body>home</body></html>"))
	})
	mux.HandleFunc("POST "+searchPath, func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.searchCalls.Add(1)
		var req search.Request
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		all := s.streams[fmt.Sprint(req.Query.FieldsValues[0].Value)]
		end := min(req.StartPosition+s.perPage, len(all))
		var b strings.Builder
		for _, l := range all[min(req.StartPosition, end):end] {
			fmt.Fprintf(&b, `<div class="property-thumbnail-item"><meta itemprop="sku" content="%s">`+
				`<a class="property-thumbnail-summary-link" href="/fr/listing/%s"></a>`+
				`<div class="price"><meta itemprop="price" content="%.0f"></div>`+
				`<div class="category">Maison à vendre</div>`+
				`<div class="address"><div>1, Rue Test</div><div>%s</div></div></div>`,
				l.id, l.id, l.price, l.city)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"d": map[string]any{
				"Succeeded": true,
				"Result":    map[string]any{"html": b.String(), "count": len(all), "inscNumberPerPage": s.perPage},
			},
		})
	})
	mux.HandleFunc("GET /fr/listing/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		id := r.PathValue("id")
		s.mu.Lock()
		s.details[id]++
		n := s.details[id]
		s.mu.Unlock()

		if s.detailDelay > 0 {
			time.Sleep(s.detailDelay)
		}
		if s.detailStatus != nil {
			if code := s.detailStatus(id, n); code != http.StatusOK {
				w.WriteHeader(code)
				return
			}
		}
		l, ok := s.find(id)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(detailHTML(l)))
	})
	return mux
}

func (s *fakeSite) find(id string) (listing, bool) {
	for _, ls := range s.streams {
		for _, l := range ls {
			if l.id == id {
				return l, true
			}
		}
	}
	return listing{}, false
}

func (s *fakeSite) detailCalls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.details[id]
}

func detailHTML(l listing) string {
	addr := ""
	if !l.noAddress {
		addr = fmt.Sprintf(`<h2 itemprop="address">1, Rue Test, %s</h2>`, l.city)
	}
	return fmt.Sprintf(`<html><body>%s
<meta itemprop="latitude" content="45.45"><meta itemprop="longitude" content="-73.28">
<span id="BuyPrice">%s $</span>
<div class="cac">3 chambres</div>
</body></html>`, addr, groupThousands(l.price))
}

// groupThousands renders 245000 as "245 000".
func groupThousands(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	return strings.Join(append([]string{s}, parts...), " ")
}

type memStore struct {
	mu    sync.Mutex
	saved map[string]domain.Property
}

func newMemStore() *memStore { return &memStore{saved: map[string]domain.Property{}} }

func (m *memStore) Save(_ context.Context, p domain.Property) (domain.SaveOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.saved[p.ID]; ok {
		return domain.SaveOutcome{Status: domain.SaveDuplicate}, nil
	}
	m.saved[p.ID] = p
	return domain.SaveOutcome{Status: domain.SaveAccepted}, nil
}

func (m *memStore) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id := range m.saved {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(evt string) {
	var e struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal([]byte(evt), &e)
	r.mu.Lock()
	r.events = append(r.events, e.Type)
	r.mu.Unlock()
}

func testRetry(maxRetries int) retry.Policy {
	return retry.Policy{
		MaxRetries:        maxRetries,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

var (
	chambly = domain.LocationConfig{Kind: domain.CityDistrict, Value: "Chambly", TypeID: "458"}
	trois   = domain.LocationConfig{Kind: domain.CityDistrict, Value: "Trois-Rivières", TypeID: "1021"}
)

func bounds(lo, hi float64) (*float64, *float64) { return &lo, &hi }

func newHarness(t *testing.T, site *fakeSite, cfg Config) (*Orchestrator, *session.Manager, *memStore, *recorder) {
	t.Helper()
	if site.details == nil {
		site.details = map[string]int{}
	}
	srv := httptest.NewServer(site.handler(t))
	t.Cleanup(srv.Close)

	m := session.NewManager(session.Config{BaseURL: srv.URL, BootstrapPath: "/", Timeout: 5 * time.Second}, nil)
	cfg.SearchPath = searchPath
	store := newMemStore()
	rec := &recorder{}
	return New(cfg, m, store, rec), m, store, rec
}

func issueCodes(rep domain.RunReport) []string {
	var out []string
	for _, is := range rep.Issues {
		out = append(out, is.Code)
	}
	return out
}

func TestRunEndToEnd(t *testing.T) {
	site := &fakeSite{
		perPage: 2,
		streams: map[string][]listing{
			"458": {
				{id: "100001", city: "Chambly", price: 210000},
				{id: "100002", city: "Chambly", price: 230000},
				{id: "100003", city: "Trois-Rivières", price: 240000},
				{id: "100001", city: "Chambly", price: 210000},
				{id: "100004", city: "Chambly", price: 300000},
				{id: "100005", city: "Chambly", price: 220000, noAddress: true},
			},
			"1021": {
				{id: "200001", city: "Trois-Rivières", price: 245000},
			},
		},
	}
	orch, _, store, rec := newHarness(t, site, Config{Retry: testRetry(1), FetchConcurrency: 3})

	q := domain.SearchQuery{Locations: []domain.LocationConfig{chambly, trois}, PropertyTypes: []domain.PropertyType{domain.SingleFamilyHome}}
	q.PriceMin, q.PriceMax = bounds(200000, 260000)

	rep, err := orch.Run(context.Background(), q)
	require.NoError(t, err)

	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 7, rep.Discovered)
	assert.Equal(t, 1, rep.Duplicates)
	assert.Equal(t, 5, rep.Extracted)
	assert.Equal(t, 3, rep.Validated)
	assert.Equal(t, 3, rep.Persisted)
	assert.Equal(t, 3, rep.Failed)
	assert.False(t, rep.Partial)
	assert.EqualValues(t, 4, site.searchCalls.Load())

	assert.Equal(t, []string{"100001", "100002", "200001"}, store.ids())
	for _, p := range store.saved {
		assert.True(t, p.Validated)
		assert.GreaterOrEqual(t, p.Price, 200000.0)
		assert.LessOrEqual(t, p.Price, 260000.0)
		assert.Equal(t, p.Location.Value, p.Address.City, p.ID)
	}
	assert.Equal(t, 1, site.detailCalls("100001"))

	require.Len(t, rep.Streams, 2)
	assert.Equal(t, domain.StreamReport{Location: "Chambly", State: domain.StreamExhausted, Pages: 3}, rep.Streams[0])
	assert.Equal(t, domain.StreamReport{Location: "Trois-Rivières", State: domain.StreamExhausted, Pages: 1}, rep.Streams[1])

	codes := issueCodes(rep)
	assert.Contains(t, codes, "location_mismatch")
	assert.Contains(t, codes, "price_out_of_range")
	var kinds []string
	for _, is := range rep.Issues {
		kinds = append(kinds, is.Kind)
	}
	assert.Contains(t, kinds, "DetailExtractionError")

	assert.Equal(t, "run_started", rec.events[0])
	assert.Equal(t, "run_finished", rec.events[len(rec.events)-1])
	assert.Len(t, rec.events, 5)

	again, err := orch.Run(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Persisted)
	assert.Equal(t, 3, again.AlreadyStored)
	assert.NotEqual(t, rep.RunID, again.RunID)
}

func TestRunRejectsInvalidQueryBeforeNetwork(t *testing.T) {
	site := &fakeSite{perPage: 2}
	orch, _, _, _ := newHarness(t, site, Config{Retry: testRetry(1)})

	bad := domain.LocationConfig{Kind: domain.CityDistrict, Value: "Chambly", TypeID: "not-a-number"}
	_, err := orch.Run(context.Background(), domain.SearchQuery{Locations: []domain.LocationConfig{bad}})
	assert.ErrorIs(t, err, domain.ErrFatalConfig)

	_, err = orch.Run(context.Background(), domain.SearchQuery{})
	assert.ErrorIs(t, err, domain.ErrFatalConfig)

	assert.EqualValues(t, 0, site.requests.Load())
}

func TestRunRetryBoundOnDetail(t *testing.T) {
	site := &fakeSite{
		perPage: 5,
		streams: map[string][]listing{"458": {
			{id: "100001", city: "Chambly", price: 210000},
			{id: "100002", city: "Chambly", price: 220000},
		}},
		detailStatus: func(string, int) int { return http.StatusServiceUnavailable },
	}
	orch, _, store, _ := newHarness(t, site, Config{Retry: testRetry(2)})

	rep, err := orch.Run(context.Background(), domain.SearchQuery{Locations: []domain.LocationConfig{chambly}})
	require.NoError(t, err)

	assert.Equal(t, 3, site.detailCalls("100001"))
	assert.Equal(t, 3, site.detailCalls("100002"))
	assert.Equal(t, 2, rep.Failed)
	assert.Empty(t, store.ids())
	for _, is := range rep.Issues {
		assert.Equal(t, "TransientNetworkError", is.Kind)
		assert.Equal(t, domain.StageDetail, is.Stage)
	}
}

func TestRunClientErrorIsNotRetried(t *testing.T) {
	site := &fakeSite{
		perPage:      5,
		streams:      map[string][]listing{"458": {{id: "100001", city: "Chambly", price: 210000}}},
		detailStatus: func(string, int) int { return http.StatusGone },
	}
	orch, _, _, _ := newHarness(t, site, Config{Retry: testRetry(3)})

	rep, err := orch.Run(context.Background(), domain.SearchQuery{Locations: []domain.LocationConfig{chambly}})
	require.NoError(t, err)
	assert.Equal(t, 1, site.detailCalls("100001"))
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, "ClientError", rep.Issues[0].Kind)
}

func TestRunRateLimitRenewsSession(t *testing.T) {
	site := &fakeSite{
		perPage: 5,
		streams: map[string][]listing{"458": {{id: "100001", city: "Chambly", price: 210000}}},
		detailStatus: func(_ string, n int) int {
			if n == 1 {
				return http.StatusTooManyRequests
			}
			return http.StatusOK
		},
	}
	orch, m, store, _ := newHarness(t, site, Config{Retry: testRetry(2)})

	rep, err := orch.Run(context.Background(), domain.SearchQuery{Locations: []domain.LocationConfig{chambly}})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Persisted)
	assert.Equal(t, []string{"100001"}, store.ids())
	assert.EqualValues(t, 2, m.Bootstraps())
	assert.Equal(t, 2, site.detailCalls("100001"))
}

func TestRunBudgetMarksReportPartial(t *testing.T) {
	site := &fakeSite{
		perPage: 2,
		streams: map[string][]listing{"458": {
			{id: "100001", city: "Chambly", price: 210000},
			{id: "100002", city: "Chambly", price: 220000},
			{id: "100003", city: "Chambly", price: 230000},
			{id: "100004", city: "Chambly", price: 240000},
		}},
		detailDelay: 200 * time.Millisecond,
	}
	orch, _, store, _ := newHarness(t, site, Config{
		Retry:            testRetry(0),
		FetchConcurrency: 1,
		RunTimeout:       50 * time.Millisecond,
		RequestTimeout:   2 * time.Second,
	})

	start := time.Now()
	rep, err := orch.Run(context.Background(), domain.SearchQuery{Locations: []domain.LocationConfig{chambly}})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, rep.Partial)
	assert.Equal(t, domain.StreamExhausted, rep.Streams[0].State)
	assert.Equal(t, 1, rep.Streams[0].Pages)
	assert.Equal(t, 1, rep.Persisted, "in-flight fetch drains")
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, []string{"100001"}, store.ids())
	assert.EqualValues(t, 1, site.searchCalls.Load())
}
