package eventstream

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/StrathCole/ocw-bridge/pkg/ledger"
)

// BlockSource is implemented by *ledger.Chain.
type BlockSource interface {
	Subscribe(buffer int) (<-chan ledger.Block, func())
}

// Local streams blocks from an in-process chain.
type Local struct {
	source  BlockSource
	logger  zerolog.Logger
	blocks  chan NewBlock
	closeCh chan struct{}
	once    sync.Once
}

var _ EventStream = (*Local)(nil)

// NewLocal creates a stream over source.
func NewLocal(source BlockSource, logger zerolog.Logger) *Local {
	return &Local{
		source:  source,
		logger:  logger.With().Str("component", "eventstream").Logger(),
		blocks:  make(chan NewBlock, 10),
		closeCh: make(chan struct{}),
	}
}

// Start subscribes to the chain and forwards blocks until ctx is done or
// Close is called.
func (l *Local) Start(ctx context.Context) error {
	in, unsubscribe := l.source.Subscribe(10)

	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.closeCh:
				return
			case b, ok := <-in:
				if !ok {
					return
				}
				nb := NewBlock{Height: b.Height, Hash: b.Hash.String(), Time: b.Time}
				select {
				case l.blocks <- nb:
				default:
					l.logger.Warn().Uint64("height", b.Height).Msg("worker busy, skipping block")
				}
			}
		}
	}()

	l.logger.Info().Msg("local event stream started")
	return nil
}

// NewBlocks returns the block channel.
func (l *Local) NewBlocks() <-chan NewBlock {
	return l.blocks
}

// Close stops forwarding.
func (l *Local) Close() {
	l.once.Do(func() { close(l.closeCh) })
}
