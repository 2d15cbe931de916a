// Package price fetches the external price and converts it to fixed point.
package price

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch indicates that the price endpoint could not be read.
	ErrFetch = errors.New("fetch error")
	// ErrDecode indicates that the response is not text or lacks the price field.
	ErrDecode = errors.New("decode error")
	// ErrParse indicates that text does not parse as JSON or as a number.
	ErrParse = errors.New("parse error")
)

// FetchReason says which stage of a fetch failed.
type FetchReason string

const (
	// ReasonSend means the request could not be sent or no response arrived.
	ReasonSend FetchReason = "send"
	// ReasonWait means the response started but its body could not be read.
	ReasonWait FetchReason = "wait"
	// ReasonTimedOut means the fetch deadline expired.
	ReasonTimedOut FetchReason = "timed_out"
	// ReasonWrongResponseCode means the endpoint answered with a non-200 status.
	ReasonWrongResponseCode FetchReason = "wrong_response_code"
)

// FetchError describes a failed fetch. It matches ErrFetch with errors.Is.
type FetchError struct {
	Reason     FetchReason
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Reason == ReasonWrongResponseCode:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.Endpoint, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.Endpoint, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Endpoint, e.Reason)
}

// Is reports whether target is ErrFetch.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
