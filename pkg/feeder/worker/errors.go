// Package worker runs the per-block price round: fetch, convert, sign and submit.
package worker

import "errors"

// Worker errors.
var (
	ErrMissingPriceClient = errors.New("price client is required")
	ErrMissingSubmitter   = errors.New("submitter is required")
	ErrRoundAlreadyRun    = errors.New("round already ran for this height")
	ErrLocked             = errors.New("round lock held")
	ErrNoEventStream      = errors.New("worker has no event stream")
)
