package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/StrathCole/ocw-bridge/pkg/ledger"
	"github.com/StrathCole/ocw-bridge/pkg/oracle"
)

// SubmitRequest is the body of POST /v1/transactions.
type SubmitRequest struct {
	Call string          `json:"call"`
	Args json.RawMessage `json:"args"`
}

// SubmitResponse is returned when the pool accepts a transaction.
type SubmitResponse struct {
	Hash ledger.Hash `json:"hash"`
}

// ErrorResponse carries a rejection reason.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// PricesResponse is the body of GET /v1/prices.
type PricesResponse struct {
	Prices   []uint64 `json:"prices"`
	Decimals []string `json:"decimals"`
	Latest   *uint64  `json:"latest,omitempty"`
	Capacity int      `json:"capacity"`
	Scale    uint64   `json:"scale"`
}

// StatusResponse is the body of GET /v1/status.
type StatusResponse struct {
	Version string      `json:"version"`
	Height  uint64      `json:"height"`
	Hash    ledger.Hash `json:"hash"`
	Pending int         `json:"pending"`
	Window  int         `json:"window"`
}

// Error codes returned to remote submitters.
const (
	CodeInvalidRequest   = "invalid_request"
	CodeUnsupportedCall  = "unsupported_call"
	CodeBadProof         = "bad_proof"
	CodeAlreadyImported  = "already_imported"
	CodeTooLowPriority   = "too_low_priority"
	CodePoolFull         = "pool_full"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal"
	CodeMethodNotAllowed = "method_not_allowed"
)

var codeErrors = []struct {
	err    error
	code   string
	status int
}{
	{ledger.ErrInvalidCall, CodeUnsupportedCall, http.StatusBadRequest},
	{ledger.ErrBadProof, CodeBadProof, http.StatusBadRequest},
	{ledger.ErrAlreadyImported, CodeAlreadyImported, http.StatusConflict},
	{ledger.ErrTooLowPriority, CodeTooLowPriority, http.StatusConflict},
	{ledger.ErrPoolFull, CodePoolFull, http.StatusServiceUnavailable},
}

// Classify maps a pool rejection to its HTTP status and error code.
func Classify(err error) (int, string) {
	for _, c := range codeErrors {
		if errors.Is(err, c.err) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

// ErrorForCode returns the ledger error a remote error code stands for, or
// nil when the code has no ledger counterpart.
func ErrorForCode(code string) error {
	for _, c := range codeErrors {
		if c.code == code {
			return c.err
		}
	}
	return nil
}

// opaqueCall stands in for a call this node cannot decode, so the runtime's
// admission rule rejects it.
type opaqueCall struct {
	name string
	args []byte
}

func (c opaqueCall) CallName() string { return c.name }
func (c opaqueCall) Encode() []byte   { return c.args }

// DecodeCall turns a submit request into a ledger call.
func DecodeCall(req SubmitRequest) (ledger.Call, error) {
	switch req.Call {
	case oracle.CallSubmitPrice:
		var call oracle.SubmitPriceCall
		if err := json.Unmarshal(req.Args, &call); err != nil {
			return nil, err
		}
		return &call, nil
	case "":
		return nil, errors.New("call name is required")
	}
	return opaqueCall{name: req.Call, args: req.Args}, nil
}
