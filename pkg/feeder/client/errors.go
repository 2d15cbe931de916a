// Package client talks to a remote bridge node over HTTP with endpoint failover.
package client

import "errors"

var (
	// ErrNoEndpointsRequired indicates that at least one node endpoint is required.
	ErrNoEndpointsRequired = errors.New("at least one node endpoint is required")
	// ErrAllAttemptsFailed indicates that all attempts failed across node endpoints.
	ErrAllAttemptsFailed = errors.New("all attempts failed across node endpoints")
)
