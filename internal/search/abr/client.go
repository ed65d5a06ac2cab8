package abr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kitbuilder587/abn-search/internal/domain"
	"github.com/kitbuilder587/abn-search/internal/metrics"
)

const maxBodySize = 4 << 20

type Config struct {
	BaseURL string
	Timeout time.Duration
	// RatePerSecond ограничивает исходящие запросы, 0 - без ограничения
	RatePerSecond float64
}

// Client ходит в GET /api/search. Сам ничего не повторяет, retry решает query.Client.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		metrics: m,
	}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return c
}

type errorEnvelope struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

func (c *Client) Search(ctx context.Context, query string) (*domain.SearchResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.record("network_error")
			return nil, domain.NetworkError(err)
		}
	}

	endpoint := c.baseURL + "/api/search?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NetworkError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("search request failed", zap.Error(err))
		c.record("network_error")
		return nil, domain.NetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.record("network_error")
		return nil, domain.NetworkError(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := errorFromResponse(resp.StatusCode, body)
		c.record(apiErr.Code)
		return nil, apiErr
	}

	var out domain.SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		c.record(domain.CodeInvalidResponse)
		return nil, domain.DecodeError(resp.StatusCode, err)
	}
	if out.Results == nil {
		out.Results = []domain.ABNEntity{}
	}
	if !out.Consistent() {
		c.logger.Warn("search response count mismatch",
			zap.Int("count", out.Count),
			zap.Int("results", len(out.Results)),
		)
	}

	c.record("success")
	return &out, nil
}

// errorFromResponse собирает APIError из конверта; если конверта нет - из статуса.
func errorFromResponse(status int, body []byte) *domain.APIError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		env = errorEnvelope{}
	}

	code := env.Error
	if code == "" {
		code = codeForStatus(status)
	}
	message := env.Message
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = fmt.Sprintf("Unexpected status %d", status)
	}

	return domain.NewAPIError(code, message, status)
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return domain.CodeNotFound
	case status == http.StatusTooManyRequests:
		return domain.CodeRateLimited
	case status == http.StatusServiceUnavailable:
		return domain.CodeUnavailable
	case status >= 500:
		return domain.CodeInternal
	default:
		return domain.CodeBadRequest
	}
}

func (c *Client) record(status string) {
	if c.metrics != nil {
		c.metrics.RecordClientRequest(status)
	}
}
