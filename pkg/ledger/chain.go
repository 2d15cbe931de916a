package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	"github.com/StrathCole/ocw-bridge/pkg/metrics"
)

// ChainConfig configures block production.
type ChainConfig struct {
	BlockTime   time.Duration
	MaxBlockTxs int
	MaxPoolSize int
}

// Chain produces blocks on a fixed interval, executing pending transactions
// through the runtime. Execution is serialized: only one block is built at a time.
type Chain struct {
	cfg     ChainConfig
	runtime Runtime
	pool    *TxPool
	clock   clock.Clock
	logger  zerolog.Logger

	mu   sync.Mutex // held while building a block
	head Block
	hmu  sync.RWMutex

	subMu   sync.Mutex
	subs    map[int]chan Block
	nextSub int
}

// NewChain creates a chain at genesis. clk may be nil for the wall clock.
func NewChain(runtime Runtime, cfg ChainConfig, clk clock.Clock, logger zerolog.Logger) *Chain {
	if clk == nil {
		clk = clock.New()
	}
	genesis := Block{Time: clk.Now()}
	genesis.Hash = blockHash(genesis)

	return &Chain{
		cfg:     cfg,
		runtime: runtime,
		pool:    NewTxPool(runtime, cfg.MaxPoolSize, logger),
		clock:   clk,
		logger:  logger.With().Str("component", "chain").Logger(),
		head:    genesis,
		subs:    make(map[int]chan Block),
	}
}

// Pool returns the transaction pool.
func (c *Chain) Pool() *TxPool {
	return c.pool
}

// Pending returns the number of pending transactions.
func (c *Chain) Pending() int {
	return c.pool.Len()
}

// Best returns the head block.
func (c *Chain) Best() Block {
	c.hmu.RLock()
	defer c.hmu.RUnlock()
	return c.head
}

// SubmitTransaction submits a transaction from this node's own worker.
func (c *Chain) SubmitTransaction(ctx context.Context, tx Transaction) (Hash, error) {
	return c.Submit(ctx, SourceLocal, tx)
}

// Submit admits a transaction from source into the pool.
func (c *Chain) Submit(ctx context.Context, source TransactionSource, tx Transaction) (Hash, error) {
	if err := ctx.Err(); err != nil {
		return Hash{}, err
	}
	return c.pool.Submit(source, tx)
}

// Run produces a block every BlockTime until ctx is cancelled.
func (c *Chain) Run(ctx context.Context) error {
	ticker := c.clock.Ticker(c.cfg.BlockTime)
	defer ticker.Stop()

	c.logger.Info().Dur("block_time", c.cfg.BlockTime).Msg("block production started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("block production stopped")
			return nil
		case <-ticker.C:
			if _, err := c.ProduceBlock(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error().Err(err).Msg("failed to produce block")
			}
		}
	}
}

// ProduceBlock builds the next block from ready pool transactions. Each
// transaction is revalidated, then dispatched with a none origin; failures are
// dropped from the pool and left out of the block.
func (c *Chain) ProduceBlock(ctx context.Context) (Block, error) {
	if err := ctx.Err(); err != nil {
		return Block{}, err
	}

	c.mu.Lock()
	parent := c.Best()
	height := parent.Height + 1
	block := Block{
		Height: height,
		Parent: parent.Hash,
		Time:   c.clock.Now(),
	}

	var done []Hash
	for _, ptx := range c.pool.Ready(height, c.cfg.MaxBlockTxs) {
		done = append(done, ptx.Hash)

		if _, err := c.runtime.ValidateUnsigned(SourceInBlock, ptx.Tx.Call); err != nil {
			c.logger.Warn().Err(err).Str("tx", ptx.Hash.String()).Msg("dropping invalid transaction")
			continue
		}
		events, err := c.runtime.Dispatch(NoneOrigin(), ptx.Tx.Call)
		if err != nil {
			c.logger.Warn().
				Err(err).
				Str("tx", ptx.Hash.String()).
				Str("call", ptx.Tx.Call.CallName()).
				Msg("dispatch failed")
			continue
		}
		block.Extrinsics = append(block.Extrinsics, ptx.Hash)
		block.Events = append(block.Events, events...)
	}
	block.Hash = blockHash(block)

	c.hmu.Lock()
	c.head = block
	c.hmu.Unlock()

	c.pool.Remove(done...)
	expired := c.pool.Maintain(height)
	c.mu.Unlock()

	metrics.RecordBlock(height)
	c.logger.Info().
		Uint64("height", height).
		Str("hash", block.Hash.String()).
		Int("extrinsics", len(block.Extrinsics)).
		Int("events", len(block.Events)).
		Int("expired", expired).
		Int("pending", c.pool.Len()).
		Msg("block produced")

	c.publish(block)
	return block, nil
}

// Subscribe returns a channel receiving every new block. Slow subscribers miss
// blocks rather than stall production. Call the returned func to unsubscribe.
func (c *Chain) Subscribe(buffer int) (<-chan Block, func()) {
	ch := make(chan Block, buffer)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
}

func (c *Chain) publish(b Block) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for id, ch := range c.subs {
		select {
		case ch <- b:
		default:
			c.logger.Warn().Int("subscriber", id).Uint64("height", b.Height).Msg("subscriber buffer full, dropping block")
		}
	}
}

func blockHash(b Block) Hash {
	h, _ := blake2b.New256(nil)
	h.Write(b.Parent[:])

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], b.Height)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(b.Time.UnixNano()))
	h.Write(buf[:])
	for _, x := range b.Extrinsics {
		h.Write(x[:])
	}

	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
