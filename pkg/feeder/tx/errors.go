// Package tx builds signed price payloads and submits them to a transaction pool.
package tx

import "errors"

var (
	// ErrNoSigningIdentity indicates that no local identity can sign the payload.
	ErrNoSigningIdentity = errors.New("no local identity available for signing")
	// ErrSubmission indicates that signing failed or the pool rejected the transaction.
	ErrSubmission = errors.New("submission failed")
)
