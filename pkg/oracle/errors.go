package oracle

import (
	"errors"
	"fmt"

	"github.com/StrathCole/ocw-bridge/pkg/ledger"
)

var (
	// ErrUnsupportedCall indicates a call other than the price submission.
	ErrUnsupportedCall = fmt.Errorf("%w: unsupported call", ledger.ErrInvalidCall)
	// ErrBadProof indicates that the payload signature does not verify.
	ErrBadProof = fmt.Errorf("%w: payload signature", ledger.ErrBadProof)
	// ErrBadOrigin indicates a price submission dispatched with a signed origin.
	ErrBadOrigin = fmt.Errorf("%w: price submissions must be unsigned", ledger.ErrBadOrigin)
	// ErrInvalidParams indicates invalid module parameters.
	ErrInvalidParams = errors.New("invalid oracle params")
)
