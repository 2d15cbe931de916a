// Package api provides the node's HTTP and WebSocket endpoints: window and
// chain status, remote transaction submission and a block/price feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/StrathCole/ocw-bridge/pkg/feeder/price"
	"github.com/StrathCole/ocw-bridge/pkg/ledger"
	"github.com/StrathCole/ocw-bridge/pkg/logging"
	"github.com/StrathCole/ocw-bridge/pkg/metrics"
	"github.com/StrathCole/ocw-bridge/pkg/oracle"
	"github.com/StrathCole/ocw-bridge/pkg/version"
)

// maxBodySize bounds submitted transaction bodies.
const maxBodySize = 64 << 10

// Node is the ledger surface the API serves. *ledger.Chain implements it.
type Node interface {
	Submit(ctx context.Context, source ledger.TransactionSource, tx ledger.Transaction) (ledger.Hash, error)
	Best() ledger.Block
	Pending() int
}

// PriceReader exposes the on-ledger window. *oracle.Module implements it.
type PriceReader interface {
	Prices() []uint64
	Params() oracle.Params
}

// Config holds HTTP server settings.
type Config struct {
	Addr            string
	SubmitRateLimit float64 // submissions per second, 0 disables limiting
	SubmitBurst     int
	Scale           uint64
}

// Server represents the HTTP API server.
type Server struct {
	addr      string
	node      Node
	prices    PriceReader
	converter price.Converter
	limiter   *rate.Limiter
	mu        sync.Mutex
	server    *http.Server
	stopped   bool
	logger    *logging.Logger
	wsServer  *WebSocketServer // Optional WebSocket server for streaming
}

// NewServer creates a new HTTP API server.
func NewServer(cfg Config, node Node, prices PriceReader, logger *logging.Logger) *Server {
	var limiter *rate.Limiter
	if cfg.SubmitRateLimit > 0 {
		burst := cfg.SubmitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRateLimit), burst)
	}

	return &Server{
		addr:      cfg.Addr,
		node:      node,
		prices:    prices,
		converter: price.NewConverter(cfg.Scale),
		limiter:   limiter,
		logger:    logger,
	}
}

// SetWebSocketServer mounts ws at /ws.
func (s *Server) SetWebSocketServer(ws *WebSocketServer) {
	s.wsServer = ws
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/prices", s.handlePrices)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/transactions", s.handleSubmit)
	if s.wsServer != nil {
		mux.HandleFunc("/ws", s.wsServer.HandleWebSocket)
	}
	return mux
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("Starting HTTP server", "addr", s.addr, "websocket", s.wsServer != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.stopped = true
	s.mu.Unlock()

	if srv != nil {
		s.logger.Info("Stopping HTTP server")
		return srv.Shutdown(ctx)
	}
	return nil
}

// handleHealth handles /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePrices serves the on-ledger window, oldest first.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest(r.URL.Path, strconv.Itoa(status), time.Since(start))
	}()

	if r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		s.sendError(w, status, CodeMethodNotAllowed, "method not allowed")
		return
	}

	values := s.prices.Prices()
	resp := PricesResponse{
		Prices:   values,
		Decimals: make([]string, len(values)),
		Capacity: s.prices.Params().WindowCapacity,
		Scale:    s.converter.Scale(),
	}
	for i, v := range values {
		resp.Decimals[i] = s.converter.ToDecimal(v).String()
	}
	if n := len(values); n > 0 {
		latest := values[n-1]
		resp.Latest = &latest
	}

	s.sendJSON(w, status, resp)
}

// handleStatus serves the head block and pool size.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest(r.URL.Path, strconv.Itoa(status), time.Since(start))
	}()

	best := s.node.Best()
	s.sendJSON(w, status, StatusResponse{
		Version: version.Version,
		Height:  best.Height,
		Hash:    best.Hash,
		Pending: s.node.Pending(),
		Window:  len(s.prices.Prices()),
	})
}

// handleSubmit admits a transaction from a remote submitter. The runtime's
// admission rule decides; this handler only decodes and rate limits.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest(r.URL.Path, strconv.Itoa(status), time.Since(start))
	}()

	if r.Method != http.MethodPost {
		status = http.StatusMethodNotAllowed
		s.sendError(w, status, CodeMethodNotAllowed, "method not allowed")
		return
	}

	if s.limiter != nil && !s.limiter.Allow() {
		status = http.StatusTooManyRequests
		s.sendError(w, status, CodeRateLimited, "submission rate exceeded")
		return
	}

	var req SubmitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		status = http.StatusBadRequest
		s.sendError(w, status, CodeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	call, err := DecodeCall(req)
	if err != nil {
		status = http.StatusBadRequest
		s.sendError(w, status, CodeInvalidRequest, err.Error())
		return
	}

	hash, err := s.node.Submit(r.Context(), ledger.SourceExternal, ledger.NewUnsignedTransaction(call))
	if err != nil {
		var code string
		status, code = Classify(err)
		s.logger.Debug("Rejected remote transaction", "call", req.Call, "code", code, "error", err)
		s.sendError(w, status, code, err.Error())
		return
	}

	s.logger.Info("Accepted remote transaction", "call", req.Call, "hash", hash.String(), "remote", r.RemoteAddr)
	s.sendJSON(w, status, SubmitResponse{Hash: hash})
}

func (s *Server) sendError(w http.ResponseWriter, status int, code, msg string) {
	s.sendJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}
