package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/ocw-bridge/pkg/feeder/tx"
	"github.com/StrathCole/ocw-bridge/pkg/ledger"
	"github.com/StrathCole/ocw-bridge/pkg/logging"
	"github.com/StrathCole/ocw-bridge/pkg/oracle"
	"github.com/StrathCole/ocw-bridge/pkg/signing"
)

type testNode struct {
	module *oracle.Module
	chain  *ledger.Chain
	signer signing.Signer
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()

	module, err := oracle.NewModule(oracle.DefaultParams(), zerolog.Nop())
	require.NoError(t, err)

	chain := ledger.NewChain(module, ledger.ChainConfig{
		BlockTime:   6 * time.Second,
		MaxBlockTxs: 8,
		MaxPoolSize: 8,
	}, clock.NewMock(), zerolog.Nop())

	signer, err := signing.NewSigner(signing.Ed25519, bytes.Repeat([]byte{7}, signing.SecretSize))
	require.NoError(t, err)

	return &testNode{module: module, chain: chain, signer: signer}
}

func newTestServer(t *testing.T, n *testNode, cfg Config) *httptest.Server {
	t.Helper()
	s := NewServer(cfg, n.chain, n.module, logging.NewNoopLogger())
	s.SetWebSocketServer(NewWebSocketServer(cfg.Scale, logging.NewNoopLogger()))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func submitBody(t *testing.T, call *oracle.SubmitPriceCall) []byte {
	t.Helper()
	args, err := json.Marshal(call)
	require.NoError(t, err)
	body, err := json.Marshal(SubmitRequest{Call: call.CallName(), Args: args})
	require.NoError(t, err)
	return body
}

func post(t *testing.T, url string, body []byte) (*http.Response, ErrorResponse) {
	t.Helper()
	resp, err := http.Post(url+"/v1/transactions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var e ErrorResponse
	if resp.StatusCode != http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	}
	return resp, e
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, newTestNode(t), Config{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSubmit_AcceptsSignedPrice(t *testing.T) {
	n := newTestNode(t)
	srv := newTestServer(t, n, Config{})

	call, err := tx.SignPrice(n.signer, 420000)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/v1/transactions", "application/json", bytes.NewReader(submitBody(t, call)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out SubmitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, ledger.NewUnsignedTransaction(call).Hash(), out.Hash)

	pending, ok := n.chain.Pool().Get(out.Hash)
	require.True(t, ok)
	assert.Equal(t, ledger.SourceExternal, pending.Source)

	_, err = n.chain.ProduceBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{420000}, n.module.Prices())
}

func TestSubmit_Rejections(t *testing.T) {
	n := newTestNode(t)
	srv := newTestServer(t, n, Config{})

	good, err := tx.SignPrice(n.signer, 1)
	require.NoError(t, err)

	tampered, err := tx.SignPrice(n.signer, 2)
	require.NoError(t, err)
	tampered.Payload.Price = 3

	// accepted first so the duplicate below hits the pool
	resp, _ := post(t, srv.URL, submitBody(t, good))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tests := []struct {
		name   string
		body   []byte
		status int
		code   string
	}{
		{"duplicate", submitBody(t, good), http.StatusConflict, CodeAlreadyImported},
		{"bad proof", submitBody(t, tampered), http.StatusBadRequest, CodeBadProof},
		{"unsupported call", []byte(`{"call":"transfer","args":{}}`), http.StatusBadRequest, CodeUnsupportedCall},
		{"missing call", []byte(`{"args":{}}`), http.StatusBadRequest, CodeInvalidRequest},
		{"malformed body", []byte(`{"call":`), http.StatusBadRequest, CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, e := post(t, srv.URL, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, e.Code)
		})
	}

	assert.Equal(t, 1, n.chain.Pending())
}

func TestSubmit_RateLimited(t *testing.T) {
	n := newTestNode(t)
	srv := newTestServer(t, n, Config{SubmitRateLimit: 0.001, SubmitBurst: 1})

	body := []byte(`{"call":"transfer","args":{}}`)
	resp, _ := post(t, srv.URL, body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, e := post(t, srv.URL, body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, CodeRateLimited, e.Code)
}

func TestSubmit_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, newTestNode(t), Config{})

	resp, err := http.Get(srv.URL + "/v1/transactions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPricesAndStatus(t *testing.T) {
	n := newTestNode(t)
	srv := newTestServer(t, n, Config{Scale: 10000})

	var prices PricesResponse
	getJSON(t, srv.URL+"/v1/prices", &prices)
	assert.Empty(t, prices.Prices)
	assert.Nil(t, prices.Latest)
	assert.Equal(t, 10, prices.Capacity)

	call, err := tx.SignPrice(n.signer, 419234)
	require.NoError(t, err)
	_, err = n.chain.SubmitTransaction(context.Background(), ledger.NewUnsignedTransaction(call))
	require.NoError(t, err)
	block, err := n.chain.ProduceBlock(context.Background())
	require.NoError(t, err)

	getJSON(t, srv.URL+"/v1/prices", &prices)
	assert.Equal(t, []uint64{419234}, prices.Prices)
	assert.Equal(t, []string{"41.9234"}, prices.Decimals)
	require.NotNil(t, prices.Latest)
	assert.Equal(t, uint64(419234), *prices.Latest)
	assert.Equal(t, uint64(10000), prices.Scale)

	var status StatusResponse
	getJSON(t, srv.URL+"/v1/status", &status)
	assert.Equal(t, uint64(1), status.Height)
	assert.Equal(t, block.Hash, status.Hash)
	assert.Zero(t, status.Pending)
	assert.Equal(t, 1, status.Window)
}

func getJSON(t *testing.T, url string, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestClassify(t *testing.T) {
	status, code := Classify(oracle.ErrBadProof)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, CodeBadProof, code)

	status, code = Classify(ledger.ErrPoolFull)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, CodePoolFull, code)

	status, code = Classify(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeInternal, code)

	assert.ErrorIs(t, ErrorForCode(CodeTooLowPriority), ledger.ErrTooLowPriority)
	assert.Nil(t, ErrorForCode(CodeRateLimited))
}

func TestClassify_CodesRoundTrip(t *testing.T) {
	for _, ce := range codeErrors {
		status, code := Classify(fmt.Errorf("pool: %w", ce.err))
		assert.Equal(t, ce.status, status, ce.code)
		assert.Equal(t, ce.code, code)
		assert.ErrorIs(t, ErrorForCode(code), ce.err)
	}
	assert.Nil(t, ErrorForCode("stale"))
}

func newHTTPTestServer(t *testing.T, s *Server) string {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}
