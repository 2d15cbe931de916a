package ledger

import (
	"errors"
	"sync"
)

type testCall struct {
	id       string
	tag      string
	priority uint64
}

func (c testCall) CallName() string { return "test_call" }
func (c testCall) Encode() []byte   { return []byte(c.id) }

type testEvent struct{ id string }

func (e testEvent) EventName() string { return "Tested" }

var errDispatch = errors.New("dispatch failed")

// testRuntime accepts every testCall with the call's priority and tag.
type testRuntime struct {
	mu         sync.Mutex
	longevity  uint64
	revoked    map[string]bool
	failing    map[string]bool
	dispatched []string
}

func newTestRuntime(longevity uint64) *testRuntime {
	return &testRuntime{
		longevity: longevity,
		revoked:   make(map[string]bool),
		failing:   make(map[string]bool),
	}
}

func (r *testRuntime) ValidateUnsigned(_ TransactionSource, call Call) (ValidTransaction, error) {
	c, ok := call.(testCall)
	if !ok {
		return ValidTransaction{}, ErrInvalidCall
	}
	r.mu.Lock()
	revoked := r.revoked[c.id]
	r.mu.Unlock()
	if revoked {
		return ValidTransaction{}, ErrBadProof
	}
	return ValidTransactionWithTagPrefix("test").
		Priority(c.priority).
		AndProvides(c.tag).
		Longevity(r.longevity).
		Propagate(true).
		Build(), nil
}

func (r *testRuntime) Dispatch(origin Origin, call Call) ([]Event, error) {
	if !origin.IsNone() {
		return nil, ErrBadOrigin
	}
	c := call.(testCall)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing[c.id] {
		return nil, errDispatch
	}
	r.dispatched = append(r.dispatched, c.id)
	return []Event{testEvent{id: c.id}}, nil
}

func (r *testRuntime) revoke(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[id] = true
}

func (r *testRuntime) fail(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing[id] = true
}

func (r *testRuntime) executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dispatched...)
}
