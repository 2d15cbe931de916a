package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/PaesslerAG/jsonpath"
	"github.com/rs/zerolog"

	"github.com/StrathCole/ocw-bridge/pkg/metrics"
	"github.com/StrathCole/ocw-bridge/pkg/version"
)

// maxBodySize caps how much of a response is read.
const maxBodySize = 1 << 20

// RawPrice is the decoded price string, before conversion.
type RawPrice struct {
	PriceUSD string
}

// Client fetches the current price.
type Client interface {
	FetchPrice(ctx context.Context) (RawPrice, error)
}

// ClientConfig configures an HTTPClient.
type ClientConfig struct {
	Endpoint string
	JSONPath string // e.g. $.data.priceUsd
	Timeout  time.Duration
}

// HTTPClient implements Client with one GET per fetch, bounded by Timeout.
type HTTPClient struct {
	endpoint string
	jsonPath string
	timeout  time.Duration
	client   *http.Client
	extract  func(context.Context, interface{}) (interface{}, error)
	logger   zerolog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP price client
func NewHTTPClient(cfg ClientConfig, logger zerolog.Logger) (*HTTPClient, error) {
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("fetch timeout must be positive, got %s", cfg.Timeout)
	}
	extract, err := jsonpath.New(cfg.JSONPath)
	if err != nil {
		return nil, fmt.Errorf("invalid json path %q: %w", cfg.JSONPath, err)
	}

	return &HTTPClient{
		endpoint: cfg.Endpoint,
		jsonPath: cfg.JSONPath,
		timeout:  cfg.Timeout,
		client:   &http.Client{},
		extract:  extract,
		logger:   logger.With().Str("component", "price_client").Logger(),
	}, nil
}

// Endpoint returns the configured URL.
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

// FetchPrice fetches and decodes the price. The whole call, including reading
// the body, returns within the configured timeout.
func (c *HTTPClient) FetchPrice(ctx context.Context) (RawPrice, error) {
	start := time.Now()
	body, err := c.fetch(ctx)

	var reason string
	var fe *FetchError
	if errors.As(err, &fe) {
		reason = string(fe.Reason)
	}
	metrics.RecordFetch(time.Since(start), reason)

	if err != nil {
		return RawPrice{}, err
	}
	return c.Decode(ctx, body)
}

func (c *HTTPClient) fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, &FetchError{Reason: ReasonSend, Endpoint: c.endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.failure(ctx, ReasonSend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{
			Reason:     ReasonWrongResponseCode,
			Endpoint:   c.endpoint,
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.failure(ctx, ReasonWait, err)
	}

	c.logger.Debug().Str("endpoint", c.endpoint).Int("bytes", len(body)).Msg("price fetched")
	return body, nil
}

// failure classifies a transport error, reporting deadline expiry as a timeout
// whichever stage it interrupted.
func (c *HTTPClient) failure(ctx context.Context, stage FetchReason, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		stage = ReasonTimedOut
	}
	return &FetchError{Reason: stage, Endpoint: c.endpoint, Err: err}
}

// Decode extracts the price string from a response body.
func (c *HTTPClient) Decode(ctx context.Context, body []byte) (RawPrice, error) {
	if !utf8.Valid(body) {
		return RawPrice{}, fmt.Errorf("%w: response body is not valid UTF-8", ErrDecode)
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return RawPrice{}, fmt.Errorf("%w: response is not JSON: %v", ErrParse, err)
	}

	v, err := c.extract(ctx, doc)
	if err != nil {
		return RawPrice{}, fmt.Errorf("%w: %s: %v", ErrDecode, c.jsonPath, err)
	}
	s, ok := v.(string)
	if !ok {
		return RawPrice{}, fmt.Errorf("%w: %s is %T, want string", ErrDecode, c.jsonPath, v)
	}

	return RawPrice{PriceUSD: s}, nil
}
