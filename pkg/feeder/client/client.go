package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/StrathCole/ocw-bridge/pkg/ledger"
	"github.com/StrathCole/ocw-bridge/pkg/metrics"
	"github.com/StrathCole/ocw-bridge/pkg/server/api"
	"github.com/StrathCole/ocw-bridge/pkg/version"
)

// defaultTimeout bounds every request to a node.
const defaultTimeout = 5 * time.Second

// RemoteError is a rejection returned by a node. It unwraps to the matching
// ledger error when the node reported one.
type RemoteError struct {
	Endpoint   string
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("node %s: %d %s: %s", e.Endpoint, e.StatusCode, e.Code, e.Message)
}

// Unwrap returns the ledger error for Code, if any.
func (e *RemoteError) Unwrap() error {
	return api.ErrorForCode(e.Code)
}

// retryable reports whether another endpoint might answer differently.
func retryable(err error) bool {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}

// Client is an HTTP client for the node API.
type Client struct {
	logger    zerolog.Logger
	endpoints []string
	current   int
	mu        sync.RWMutex
	http      *http.Client
}

// ClientConfig holds configuration for creating a new Client.
type ClientConfig struct {
	Endpoints []string // node base URLs, tried in order
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// NewClient creates a client with failover across cfg.Endpoints.
func NewClient(cfg ClientConfig) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, ErrNoEndpointsRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	endpoints := make([]string, len(cfg.Endpoints))
	for i, ep := range cfg.Endpoints {
		endpoints[i] = strings.TrimRight(ep, "/")
	}

	return &Client{
		logger:    cfg.Logger.With().Str("component", "node-client").Logger(),
		endpoints: endpoints,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

// Failover rotates to the next endpoint.
func (c *Client) Failover() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.endpoints) < 2 {
		return
	}

	oldIndex := c.current
	c.current = (c.current + 1) % len(c.endpoints)
	metrics.RecordNodeFailover()

	c.logger.Warn().
		Str("from", c.endpoints[oldIndex]).
		Str("to", c.endpoints[c.current]).
		Msg("failing over to next node endpoint")
}

// CurrentEndpoint returns the currently active endpoint.
func (c *Client) CurrentEndpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoints[c.current]
}

// WithFailover runs call against the current endpoint and, on a transport
// failure or server error, against each remaining endpoint once. Rejections
// (4xx) are returned immediately.
func WithFailover[T any](c *Client, call func(endpoint string) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < len(c.endpoints); attempt++ {
		endpoint := c.CurrentEndpoint()
		resp, err := call(endpoint)
		if err == nil {
			return resp, nil
		}
		if !retryable(err) {
			return zero, err
		}

		lastErr = err
		c.logger.Debug().
			Err(err).
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Msg("node request failed")

		if attempt < len(c.endpoints)-1 {
			c.Failover()
		}
	}

	return zero, fmt.Errorf("%w: %w", ErrAllAttemptsFailed, lastErr)
}

// SubmitTransaction posts tx to the current node. It makes a single attempt:
// on a transport failure the client rotates so the next round uses another
// endpoint, but this call does not retry.
func (c *Client) SubmitTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Hash, error) {
	args, err := json.Marshal(tx.Call)
	if err != nil {
		return ledger.Hash{}, fmt.Errorf("encode call: %w", err)
	}
	body, err := json.Marshal(api.SubmitRequest{Call: tx.Call.CallName(), Args: args})
	if err != nil {
		return ledger.Hash{}, fmt.Errorf("encode request: %w", err)
	}

	endpoint := c.CurrentEndpoint()
	var out api.SubmitResponse
	if err := c.do(ctx, http.MethodPost, endpoint, "/v1/transactions", body, &out); err != nil {
		if retryable(err) {
			c.Failover()
		}
		return ledger.Hash{}, err
	}

	c.logger.Debug().Str("endpoint", endpoint).Str("tx_hash", out.Hash.String()).Msg("transaction accepted by node")
	return out.Hash, nil
}

// Prices returns the node's price window.
func (c *Client) Prices(ctx context.Context) (*api.PricesResponse, error) {
	resp, err := WithFailover(c, func(endpoint string) (*api.PricesResponse, error) {
		var out api.PricesResponse
		if err := c.do(ctx, http.MethodGet, endpoint, "/v1/prices", nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	return resp, nil
}

// Status returns the node's head and pool status.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	resp, err := WithFailover(c, func(endpoint string) (*api.StatusResponse, error) {
		var out api.StatusResponse
		if err := c.do(ctx, http.MethodGet, endpoint, "/v1/status", nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query status: %w", err)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", version.AgentString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("node %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("node %s: read body: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		var e api.ErrorResponse
		_ = json.Unmarshal(data, &e)
		return &RemoteError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Code:       e.Code,
			Message:    e.Error,
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("node %s: decode response: %w", endpoint, err)
	}
	return nil
}
