package ledger

import "errors"

// Transaction validity errors. Runtimes wrap these so callers can classify a
// rejection without knowing the runtime.
var (
	// ErrInvalidCall indicates that the call is not accepted as an unsigned transaction.
	ErrInvalidCall = errors.New("invalid transaction: call")
	// ErrBadProof indicates that a proof of origin failed to verify.
	ErrBadProof = errors.New("invalid transaction: bad proof")
	// ErrBadOrigin indicates that a call was dispatched with the wrong origin.
	ErrBadOrigin = errors.New("bad origin")
)

// Pool errors.
var (
	// ErrAlreadyImported indicates that the same transaction is already pending.
	ErrAlreadyImported = errors.New("transaction already imported")
	// ErrTooLowPriority indicates that a pending transaction already provides
	// one of the tags with equal or higher priority.
	ErrTooLowPriority = errors.New("priority too low to replace pending transaction")
	// ErrPoolFull indicates that the pool is at its size limit.
	ErrPoolFull = errors.New("transaction pool full")
)
