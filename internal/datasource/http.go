package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/detective/core/internal/models"
)

// Endpoint paths relative to the service base URL.
const (
	PathAvailable          = "/root-cause-analysis/available/"
	PathAvailableHourlyAll = "/root-cause-analysis/available_hourly_all/"
	PathMetric             = "/root-cause-analysis/metric/"
	PathMetricHourlyAll    = "/root-cause-analysis/metric_hourly_all/"
	PathDynamic            = "/root-cause-analysis/dynamic/"
	PathDynamicHourly      = "/root-cause-analysis/dynamic_hourly/"
	PathHistory            = "/root-cause-analysis/history/"
	PathRCA                = "/root-cause-analysis/rca/"
)

const (
	DefaultAvailableTimeout = 60 * time.Second
	DefaultDataTimeout      = 180 * time.Second
)

type HTTPConfig struct {
	BaseURL          string
	AvailableTimeout time.Duration
	DataTimeout      time.Duration
	// Retries is the number of extra attempts after a network error or 5xx.
	Retries       int
	RetryInterval time.Duration
	CacheTTL      time.Duration
}

// HTTPClient talks to the analysis service over HTTP GET with query
// parameters. Available lookups are cached for CacheTTL.
type HTTPClient struct {
	cfg   HTTPConfig
	http  *http.Client
	log   *zap.Logger
	cache *cache.Cache
}

var _ Source = (*HTTPClient)(nil)

func NewHTTPClient(cfg HTTPConfig, log *zap.Logger) *HTTPClient {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.AvailableTimeout <= 0 {
		cfg.AvailableTimeout = DefaultAvailableTimeout
	}
	if cfg.DataTimeout <= 0 {
		cfg.DataTimeout = DefaultDataTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &HTTPClient{cfg: cfg, http: &http.Client{}, log: log}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return c
}

func (c *HTTPClient) GetAvailable(ctx context.Context, req AvailableRequest) (*models.AvailableResponse, error) {
	path := PathAvailable
	if req.Hourly {
		path = PathAvailableHourlyAll
	}
	params := mergeParams(req.params())
	key := path + "?" + params.Encode()

	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			resp := cached.(models.AvailableResponse)
			return &resp, nil
		}
	}

	var resp models.AvailableResponse
	if err := c.get(ctx, OpAvailable, path, params, c.cfg.AvailableTimeout, &resp); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.SetDefault(key, resp)
	}
	return &resp, nil
}

func (c *HTTPClient) GetMetric(ctx context.Context, req MetricRequest) (*models.MetricSnapshot, error) {
	path := PathMetric
	if req.Hourly {
		path = PathMetricHourlyAll
	}
	var snap models.MetricSnapshot
	if err := c.get(ctx, OpMetric, path, mergeParams(req.params()), c.cfg.DataTimeout, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *HTTPClient) GetDynamic(ctx context.Context, req DynamicRequest) (*models.MetricSnapshot, error) {
	path := PathDynamic
	if req.Hourly {
		path = PathDynamicHourly
	}
	var snap models.MetricSnapshot
	if err := c.get(ctx, OpDynamic, path, mergeParams(req.params()), c.cfg.DataTimeout, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *HTTPClient) GetHistory(ctx context.Context, req HistoryRequest) ([]models.HistoryPoint, error) {
	var points []models.HistoryPoint
	if err := c.get(ctx, OpHistory, PathHistory, mergeParams(req.params()), c.cfg.DataTimeout, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func (c *HTTPClient) RunRCA(ctx context.Context, req RCARequest) ([]models.RCACandidate, error) {
	var candidates []models.RCACandidate
	if err := c.get(ctx, OpRCA, PathRCA, mergeParams(req.params()), c.cfg.DataTimeout, &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// get issues one GET with retries and decodes the JSON body into out. Every
// failure comes back as a *FetchError.
func (c *HTTPClient) get(ctx context.Context, op, path string, params url.Values, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.cfg.BaseURL + path + "?" + params.Encode()
	log := c.log.With(zap.String("op", op), zap.String("path", path))
	log.Debug("data request", zap.String("query", params.Encode()))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.Retries)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := c.do(ctx, op, target, out)
		if err == nil {
			return nil
		}
		var fe *FetchError
		if errors.As(err, &fe) && (fe.Timeout || (fe.Status != 0 && fe.Status < 500)) {
			return backoff.Permanent(err)
		}
		log.Warn("data request failed", zap.Int("attempt", attempt), zap.Error(err))
		return err
	}, policy)
	if err == nil {
		return nil
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Op: op, Timeout: errors.Is(err, context.DeadlineExceeded), Err: err}
}

func (c *HTTPClient) do(ctx context.Context, op, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &FetchError{Op: op, Timeout: errors.Is(err, context.DeadlineExceeded), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Op: op, Status: resp.StatusCode, Timeout: errors.Is(err, context.DeadlineExceeded), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{Op: op, Status: resp.StatusCode, Err: errors.New(errorMessage(resp, body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorMessage prefers the service's {"message": ...} body over the status
// text.
func errorMessage(resp *http.Response, body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return resp.Status
}
