package eventstream

import "time"

// NewBlock announces a block the worker should run a round for.
type NewBlock struct {
	Height uint64
	Hash   string
	Time   time.Time
}

// EventStream defines the interface for receiving block announcements
type EventStream interface {
	// NewBlocks returns a channel that receives every new block
	NewBlocks() <-chan NewBlock

	// Close shuts down the event stream
	Close()
}
