package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kitbuilder587/abn-search/internal/domain"
	"github.com/kitbuilder587/abn-search/internal/metrics"
	"github.com/kitbuilder587/abn-search/internal/query"
	"github.com/kitbuilder587/abn-search/internal/ratelimit"
	"github.com/kitbuilder587/abn-search/internal/repository"
	"github.com/kitbuilder587/abn-search/internal/search/abr"
	"github.com/kitbuilder587/abn-search/internal/search/mock"
	"github.com/kitbuilder587/abn-search/internal/service"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

type panicService struct{}

func (panicService) Search(context.Context, string) (*domain.SearchResponse, error) {
	panic("boom")
}

func (panicService) Lookup(context.Context, string) (*domain.ABNEntity, error) {
	panic("boom")
}

func testEntities() []domain.ABNEntity {
	return []domain.ABNEntity{
		{
			ABN:              "51824753556",
			Name:             "Example Pty Ltd",
			EntityType:       "Australian Private Company",
			Status:           domain.StatusActive,
			RegistrationDate: "2000-01-02",
			GST:              &domain.GSTRegistration{Registered: true, RegistrationDate: "2000-07-01"},
			Address:          &domain.Address{State: "NSW", Postcode: "2000"},
		},
		{
			ABN:              "53004085616",
			Name:             "Example Holdings Limited",
			EntityType:       "Australian Public Company",
			Status:           domain.StatusCancelled,
			RegistrationDate: "1999-03-15",
		},
	}
}

type testEnv struct {
	router  http.Handler
	repo    *repository.MockABNRepository
	web     *mock.Client
	metrics *metrics.Metrics
	reg     *prometheus.Registry
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()

	repo := repository.NewMockABNRepository(testEntities()...)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	webClient := mock.New().WithEntities(testEntities()...)

	deps := Deps{
		Search: service.NewSearchService(service.SearchServiceDeps{
			Repo:   repo,
			Logger: zap.NewNop(),
		}),
		DB:       fakePinger{},
		Web:      query.New(webClient, query.Options{}),
		Logger:   zap.NewNop(),
		Metrics:  m,
		Gatherer: reg,
	}
	for _, o := range opts {
		o(&deps)
	}

	return &testEnv{
		router:  NewRouter(New(deps)),
		repo:    repo,
		web:     webClient,
		metrics: m,
		reg:     reg,
	}
}

func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) domain.APIError {
	t.Helper()
	var env domain.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestSearchAPI(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCount  int
		wantCode   string
	}{
		{name: "name search", target: "/api/search?q=example", wantStatus: 200, wantCount: 2},
		{name: "abn search", target: "/api/search?q=51+824+753+556", wantStatus: 200, wantCount: 1},
		{name: "no results", target: "/api/search?q=nonexistent+business+xyz", wantStatus: 200, wantCount: 0},
		{name: "missing q", target: "/api/search", wantStatus: 400, wantCode: domain.CodeBadRequest},
		{name: "blank q", target: "/api/search?q=%20%20", wantStatus: 400, wantCode: domain.CodeBadRequest},
		{name: "too long", target: "/api/search?q=" + strings.Repeat("a", domain.MaxQueryLength+1), wantStatus: 400, wantCode: domain.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(http.MethodGet, tt.target)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			if tt.wantCode != "" {
				e := decodeEnvelope(t, rec)
				assert.Equal(t, tt.wantCode, e.Code)
				assert.Equal(t, tt.wantStatus, e.StatusCode)
				assert.NotEmpty(t, e.Message)
				return
			}

			var resp domain.SearchResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCount, resp.Count)
			assert.Len(t, resp.Results, tt.wantCount)
			assert.NotNil(t, resp.Results)
		})
	}
}

func TestSearchAPI_EmptyResultsEncodeAsArray(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/search?q=zzz")

	assert.Contains(t, rec.Body.String(), `"results":[]`)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestSearchAPI_RepositoryFailure(t *testing.T) {
	env := newTestEnv(t)
	env.repo.SearchErr = errors.New("pq: connection refused")

	rec := env.do(http.MethodGet, "/api/search?q=example")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	e := decodeEnvelope(t, rec)
	assert.Equal(t, domain.CodeInternal, e.Code)
	assert.Equal(t, "An unexpected error occurred while searching.", e.Message)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestLookupAPI(t *testing.T) {
	tests := []struct {
		name       string
		abn        string
		wantStatus int
		wantCode   string
	}{
		{name: "found", abn: "51824753556", wantStatus: 200},
		{name: "not found", abn: "99999999999", wantStatus: 404, wantCode: domain.CodeNotFound},
		{name: "not an abn", abn: "acme", wantStatus: 400, wantCode: domain.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(http.MethodGet, "/api/abn/"+tt.abn)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeEnvelope(t, rec).Code)
				return
			}

			var e domain.ABNEntity
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.Equal(t, "Example Pty Ltd", e.Name)
			require.NotNil(t, e.GST)
			assert.True(t, e.GST.Registered)
		})
	}
}

func TestLookupAPI_NotFoundEnvelope(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/abn/99999999999")

	assert.JSONEq(t, `{"error":"not_found","message":"No match","statusCode":404}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	env = newTestEnv(t, func(d *Deps) { d.DB = fakePinger{err: errors.New("down")} })
	rec = env.do(http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, domain.CodeUnavailable, decodeEnvelope(t, rec).Code)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: 2})
	t.Cleanup(limiter.Stop)
	env := newTestEnv(t, func(d *Deps) { d.Limiter = limiter })

	for i, remaining := range []string{"1", "0"} {
		rec := env.do(http.MethodGet, "/api/search?q=example")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, remaining, rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := env.do(http.MethodGet, "/api/search?q=example")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, domain.CodeRateLimited, decodeEnvelope(t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// health и metrics не лимитируются
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health").Code)
}

func TestRateLimit_LoopbackExempt(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: 1})
	t.Cleanup(limiter.Stop)
	env := newTestEnv(t, func(d *Deps) { d.Limiter = limiter })

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/search?q=example", nil)
		req.RemoteAddr = "127.0.0.1:40000"
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "loopback request %d", i+1)
	}

	// подделанный X-Real-IP не снимает лимит
	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/api/search?q=example", nil)
		req.Header.Set("X-Real-IP", "127.0.0.1")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "spoofed request %d", i+1)
	}
}

func TestRecoverer(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Search = panicService{} })

	rec := env.do(http.MethodGet, "/api/search?q=example")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, domain.CodeInternal, decodeEnvelope(t, rec).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/api/abn/51824753556")

	rec := env.do(http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `abn_search_http_requests_total{route="/api/abn/{abn}",status="200"} 1`)
}

func TestNotFoundRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/nope")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.CodeNotFound, decodeEnvelope(t, rec).Code)
}

func parseHTML(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	return doc
}

func TestWeb_Index(t *testing.T) {
	env := newTestEnv(t)
	doc := parseHTML(t, env.do(http.MethodGet, "/"))

	assert.Equal(t, "Australian Business Number Search", doc.Find("h1").Text())
	assert.Equal(t, 0, doc.Find(".search-results").Length())
	assert.Equal(t, 0, env.web.Calls())
}

func TestWeb_BlankSearchStaysIdle(t *testing.T) {
	env := newTestEnv(t)
	doc := parseHTML(t, env.do(http.MethodGet, "/search?q=%20%20"))

	assert.Equal(t, 0, doc.Find(".search-results").Length())
	assert.Equal(t, 0, env.web.Calls())
}

func TestWeb_SearchResults(t *testing.T) {
	env := newTestEnv(t)
	doc := parseHTML(t, env.do(http.MethodGet, "/search?q=51+824+753+556"))

	cards := doc.Find(".result-card")
	require.Equal(t, 1, cards.Length())
	assert.Equal(t, "51 824 753 556", cards.Find(".abn .value").Text())
	assert.Equal(t, "NSW 2000", cards.Find(".location").Text())
	assert.Equal(t, "GST Registered", cards.Find(".gst").Text())
	assert.Equal(t, 1, env.web.Calls())

	// повторный заход берет свежий результат из кеша хука
	parseHTML(t, env.do(http.MethodGet, "/search?q=51+824+753+556"))
	assert.Equal(t, 1, env.web.Calls())
}

func TestWeb_EmptyResults(t *testing.T) {
	env := newTestEnv(t)
	doc := parseHTML(t, env.do(http.MethodGet, "/search?q=nonexistent+business+xyz"))

	assert.Equal(t, 1, doc.Find(".empty-state").Length())
	assert.Equal(t, 0, doc.Find(".error-state").Length())
}

func TestWeb_NotFoundErrorNoRetry(t *testing.T) {
	env := newTestEnv(t)
	env.web.WithError(domain.NewAPIError(domain.CodeNotFound, "No match", 404))

	doc := parseHTML(t, env.do(http.MethodGet, "/search?q=acme"))

	assert.Equal(t, "No match", doc.Find(".error-message").Text())
	assert.Equal(t, 1, env.web.Calls(), "4xx must not be retried")
	assert.Equal(t, "/search/retry?q=acme", doc.Find(".error-state form").AttrOr("action", ""))
}

func TestWeb_RetryReissuesQuery(t *testing.T) {
	env := newTestEnv(t)
	env.web.WithSteps(
		mock.Step{Err: domain.NewAPIError(domain.CodeRateLimited, "Too many requests.", 429)},
		mock.Step{Data: domain.NewSearchResponse("example", testEntities())},
	)

	doc := parseHTML(t, env.do(http.MethodGet, "/search?q=example"))
	require.Equal(t, 1, doc.Find(".error-state").Length())

	doc = parseHTML(t, env.do(http.MethodPost, "/search/retry?q=example"))
	assert.Equal(t, 2, doc.Find(".result-card").Length())
	assert.Equal(t, `Found 2 results for "example"`, doc.Find(".summary").Text())
	assert.Equal(t, []string{"example", "example"}, env.web.Queries)
}

// Полный круг: страница -> хук -> HTTP клиент -> JSON API -> сервис.
func TestWeb_EndToEndOverHTTPClient(t *testing.T) {
	api := newTestEnv(t, func(d *Deps) { d.Web = nil })
	apiServer := httptest.NewServer(api.router)
	t.Cleanup(apiServer.Close)

	client := abr.New(abr.Config{BaseURL: apiServer.URL, Timeout: 5 * time.Second}, zap.NewNop(), nil)
	web := newTestEnv(t, func(d *Deps) {
		d.Web = query.New(client, query.Options{RetryDelay: time.Millisecond})
	})

	doc := parseHTML(t, web.do(http.MethodGet, "/search?q=example"))
	assert.Equal(t, 2, doc.Find(".result-card").Length())
	assert.True(t, doc.Find(".result-card").First().Find(".status").HasClass("status-active"))

	doc = parseHTML(t, web.do(http.MethodGet, "/search?q=zzz"))
	assert.Equal(t, 1, doc.Find(".empty-state").Length())
}
