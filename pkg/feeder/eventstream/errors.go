// Package eventstream delivers new block announcements to the worker, either
// from an in-process chain or from a remote node's websocket feed.
package eventstream

import "errors"

var (
	// ErrNoNodeEndpoint indicates that at least one node endpoint is required.
	ErrNoNodeEndpoint = errors.New("at least one node endpoint required")
	// ErrNoConnection indicates that there is no active websocket connection.
	ErrNoConnection = errors.New("no connection")
	// ErrNotBlockMessage indicates a feed message that is not a block announcement.
	ErrNotBlockMessage = errors.New("not a block message")
)
