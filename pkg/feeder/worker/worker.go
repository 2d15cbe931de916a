package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/StrathCole/ocw-bridge/pkg/feeder/eventstream"
	"github.com/StrathCole/ocw-bridge/pkg/feeder/price"
	"github.com/StrathCole/ocw-bridge/pkg/feeder/tx"
	"github.com/StrathCole/ocw-bridge/pkg/metrics"
	"github.com/StrathCole/ocw-bridge/pkg/oracle"
)

// State represents the current state of the round loop
type State string

const (
	StateIdle   State = "idle"
	StateFetch  State = "fetch"
	StateSubmit State = "submit"
	StateError  State = "error"
)

// Error kinds attached to failed rounds.
const (
	KindFetch             = "fetch"
	KindDecode            = "decode"
	KindParse             = "parse"
	KindNoSigningIdentity = "no_signing_identity"
	KindSubmission        = "submission"
	KindUnknown           = "unknown"
)

// Submitter signs a price and submits it once.
type Submitter interface {
	SubmitPrice(ctx context.Context, price uint64) (*tx.Receipt, error)
}

// Config contains worker configuration
type Config struct {
	PriceClient    price.Client
	Converter      price.Converter
	Submitter      Submitter
	Stream         eventstream.EventStream
	Lock           *Lock // nil disables locking
	WindowCapacity int
	Logger         zerolog.Logger
}

// Worker runs one price round per block.
type Worker struct {
	priceClient price.Client
	converter   price.Converter
	submitter   Submitter
	stream      eventstream.EventStream
	lock        *Lock
	logger      zerolog.Logger

	mu         sync.Mutex
	lastHeight uint64
	state      State
	window     *oracle.PriceWindow // advisory copy, never authoritative
}

// New creates a worker.
func New(cfg Config) (*Worker, error) {
	if cfg.PriceClient == nil {
		return nil, ErrMissingPriceClient
	}
	if cfg.Submitter == nil {
		return nil, ErrMissingSubmitter
	}
	if cfg.Converter.Scale() == 0 {
		cfg.Converter = price.NewConverter(price.DefaultScale)
	}

	return &Worker{
		priceClient: cfg.PriceClient,
		converter:   cfg.Converter,
		submitter:   cfg.Submitter,
		stream:      cfg.Stream,
		lock:        cfg.Lock,
		logger:      cfg.Logger.With().Str("component", "worker").Logger(),
		state:       StateIdle,
		window:      oracle.NewPriceWindow(cfg.WindowCapacity),
	}, nil
}

// Start runs a round for every block from the event stream until ctx is
// cancelled. Round failures are logged and never stop the loop.
func (w *Worker) Start(ctx context.Context) error {
	if w.stream == nil {
		return ErrNoEventStream
	}

	w.logger.Info().Msg("starting price worker")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("price worker stopped")
			return ctx.Err()
		case b := <-w.stream.NewBlocks():
			w.followChain(b.Height)
			if err := w.RunRound(ctx, b.Height); err != nil {
				w.logger.Debug().Err(err).Uint64("height", b.Height).Msg("round ended without submission")
			}
		}
	}
}

// followChain forgets the last round height when the stream reports a lower
// block, which happens after a switch to another node or a node restart.
func (w *Worker) followChain(height uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if height >= w.lastHeight {
		return
	}
	w.logger.Warn().
		Uint64("height", height).
		Uint64("last_height", w.lastHeight).
		Msg("block height regressed, following the new chain")
	w.lastHeight = 0
}

// RunRound fetches the price, converts it and submits it, at most once per
// height. A failed round is logged with its error kind and leaves nothing
// behind. The returned error is informational only.
func (w *Worker) RunRound(ctx context.Context, height uint64) error {
	w.mu.Lock()
	if height <= w.lastHeight {
		w.mu.Unlock()
		metrics.RecordRound("skipped")
		return ErrRoundAlreadyRun
	}
	if w.lock != nil && !w.lock.TryAcquire(height) {
		w.mu.Unlock()
		metrics.RecordRound("locked")
		w.logger.Debug().Uint64("height", height).Msg("round lock held, skipping")
		return ErrLocked
	}
	w.lastHeight = height
	w.mu.Unlock()

	if w.lock != nil {
		defer w.lock.Release()
	}

	w.setState(StateFetch)
	raw, err := w.priceClient.FetchPrice(ctx)
	if err != nil {
		return w.fail(height, err)
	}

	value, err := w.converter.Convert(raw)
	if err != nil {
		return w.fail(height, err)
	}

	w.setState(StateSubmit)
	receipt, err := w.submitter.SubmitPrice(ctx, value)
	if err != nil {
		return w.fail(height, err)
	}

	w.mu.Lock()
	if !receipt.DryRun {
		w.window.AppendOrEvict(value)
	}
	w.state = StateIdle
	w.mu.Unlock()

	metrics.RecordRound("ok")
	w.logger.Info().
		Uint64("height", height).
		Uint64("price", value).
		Str("decimal", w.converter.ToDecimal(value).String()).
		Str("tx_hash", receipt.Hash.String()).
		Bool("dry_run", receipt.DryRun).
		Msg("round completed")

	return nil
}

// fail logs the round failure and records its kind.
func (w *Worker) fail(height uint64, err error) error {
	kind := ErrorKind(err)
	w.setState(StateError)
	metrics.RecordRound(kind)

	log := w.logger.Warn().
		Err(err).
		Str("error_kind", kind).
		Uint64("height", height)

	var fetchErr *price.FetchError
	if errors.As(err, &fetchErr) {
		log = log.
			Str("endpoint", fetchErr.Endpoint).
			Str("reason", string(fetchErr.Reason))
		if fetchErr.StatusCode != 0 {
			log = log.Int("status_code", fetchErr.StatusCode)
		}
	}
	log.Msg("price round failed")

	return fmt.Errorf("round %d: %w", height, err)
}

// ErrorKind classifies a round error.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, price.ErrFetch):
		return KindFetch
	case errors.Is(err, price.ErrDecode):
		return KindDecode
	case errors.Is(err, price.ErrParse):
		return KindParse
	case errors.Is(err, tx.ErrNoSigningIdentity):
		return KindNoSigningIdentity
	case errors.Is(err, tx.ErrSubmission):
		return KindSubmission
	}
	return KindUnknown
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// State returns the current round state
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LastHeight returns the last height a round started for
func (w *Worker) LastHeight() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHeight
}

// Window returns the advisory copy of submitted prices, oldest first.
func (w *Worker) Window() []uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.window.Values()
}
