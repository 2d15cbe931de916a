package worker

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Lock keeps overlapping rounds on one node from fetching and submitting
// twice. A held lock expires once its deadline passes or the chain reaches its
// expiry height, whichever comes first.
type Lock struct {
	clock   clock.Clock
	timeout time.Duration
	blocks  uint64

	mu       sync.Mutex
	held     bool
	deadline time.Time
	expiry   uint64
}

// NewLock creates a lock. clk may be nil for the wall clock.
func NewLock(timeout time.Duration, blocks uint64, clk clock.Clock) *Lock {
	if clk == nil {
		clk = clock.New()
	}
	return &Lock{clock: clk, timeout: timeout, blocks: blocks}
}

// TryAcquire takes the lock for a round at height. It fails while another
// holder's lock is unexpired.
func (l *Lock) TryAcquire(height uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if l.held && now.Before(l.deadline) && height < l.expiry {
		return false
	}

	l.held = true
	l.deadline = now.Add(l.timeout)
	l.expiry = height + l.blocks
	return true
}

// Release frees the lock.
func (l *Lock) Release() {
	l.mu.Lock()
	l.held = false
	l.mu.Unlock()
}
