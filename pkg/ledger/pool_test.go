package ledger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(longevity uint64, size int) (*TxPool, *testRuntime) {
	rt := newTestRuntime(longevity)
	return NewTxPool(rt, size, zerolog.Nop()), rt
}

func tx(id, tag string, priority uint64) Transaction {
	return NewUnsignedTransaction(testCall{id: id, tag: tag, priority: priority})
}

func TestTxPool_SubmitAndReady(t *testing.T) {
	pool, _ := newTestPool(3, 10)

	h1, err := pool.Submit(SourceLocal, tx("a", "a", 10))
	require.NoError(t, err)
	h2, err := pool.Submit(SourceExternal, tx("b", "b", 100))
	require.NoError(t, err)
	h3, err := pool.Submit(SourceLocal, tx("c", "c", 10))
	require.NoError(t, err)

	ready := pool.Ready(1, 0)
	require.Len(t, ready, 3)
	assert.Equal(t, h2, ready[0].Hash, "highest priority first")
	assert.Equal(t, h1, ready[1].Hash, "oldest first within a priority")
	assert.Equal(t, h3, ready[2].Hash)

	assert.Len(t, pool.Ready(1, 2), 2)
}

func TestTxPool_RejectsDuplicate(t *testing.T) {
	pool, _ := newTestPool(3, 10)

	_, err := pool.Submit(SourceLocal, tx("a", "a", 10))
	require.NoError(t, err)
	_, err = pool.Submit(SourceExternal, tx("a", "a", 10))
	assert.ErrorIs(t, err, ErrAlreadyImported)
	assert.Equal(t, 1, pool.Len())
}

func TestTxPool_TagSlot(t *testing.T) {
	pool, _ := newTestPool(3, 10)

	first, err := pool.Submit(SourceLocal, tx("first", "price", 100))
	require.NoError(t, err)

	// Structurally different transaction, same tag, same priority.
	_, err = pool.Submit(SourceExternal, tx("second", "price", 100))
	require.ErrorIs(t, err, ErrTooLowPriority)
	assert.Equal(t, 1, pool.Len())

	_, ok := pool.Get(first)
	assert.True(t, ok, "occupant keeps the slot")

	// A strictly higher priority replaces the occupant.
	third, err := pool.Submit(SourceExternal, tx("third", "price", 101))
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Len())
	_, ok = pool.Get(first)
	assert.False(t, ok)
	_, ok = pool.Get(third)
	assert.True(t, ok)
}

func TestTxPool_RejectionFromValidator(t *testing.T) {
	pool, rt := newTestPool(3, 10)
	rt.revoke("bad")

	_, err := pool.Submit(SourceExternal, tx("bad", "bad", 1))
	assert.ErrorIs(t, err, ErrBadProof)
	assert.Equal(t, 0, pool.Len())
}

func TestTxPool_Full(t *testing.T) {
	pool, _ := newTestPool(3, 1)

	_, err := pool.Submit(SourceLocal, tx("a", "a", 1))
	require.NoError(t, err)
	_, err = pool.Submit(SourceLocal, tx("b", "b", 1))
	assert.ErrorIs(t, err, ErrPoolFull)
}

func TestTxPool_LongevityExpiry(t *testing.T) {
	pool, _ := newTestPool(3, 10)

	// Admitted at best height 0: eligible for blocks 1, 2 and 3.
	h, err := pool.Submit(SourceLocal, tx("a", "a", 100))
	require.NoError(t, err)

	for height := uint64(1); height <= 3; height++ {
		ready := pool.Ready(height, 0)
		require.Len(t, ready, 1, "height %d", height)
		assert.Equal(t, h, ready[0].Hash)
		if height < 3 {
			assert.Equal(t, 0, pool.Maintain(height))
		}
	}

	assert.Equal(t, 1, pool.Maintain(3))
	assert.Empty(t, pool.Ready(4, 0))
	assert.Equal(t, 0, pool.Len())

	// The tag slot is free again.
	_, err = pool.Submit(SourceLocal, tx("b", "a", 100))
	require.NoError(t, err)
}

func TestTxPool_MaintainRevalidates(t *testing.T) {
	pool, rt := newTestPool(3, 10)

	_, err := pool.Submit(SourceLocal, tx("a", "a", 100))
	require.NoError(t, err)
	rt.revoke("a")

	assert.Equal(t, 1, pool.Maintain(1))
	assert.Equal(t, 0, pool.Len())
}
