package oracle

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/StrathCole/ocw-bridge/pkg/ledger"
	"github.com/StrathCole/ocw-bridge/pkg/metrics"
)

var _ ledger.Runtime = (*Module)(nil)

// Module owns the price window and implements the ledger runtime for price
// submissions.
type Module struct {
	params Params
	logger zerolog.Logger

	mu     sync.RWMutex // guards window for readers outside block execution
	window *PriceWindow
}

// NewModule creates a module with an empty window.
func NewModule(params Params, logger zerolog.Logger) (*Module, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Module{
		params: params,
		logger: logger.With().Str("component", "oracle").Logger(),
		window: NewPriceWindow(params.WindowCapacity),
	}, nil
}

// Params returns the module parameters.
func (m *Module) Params() Params {
	return m.params
}

// Prices returns the on-ledger window, oldest first.
func (m *Module) Prices() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.window.Values()
}

// ValidateUnsigned decides whether an unsigned transaction carrying call may
// enter the pool. It reads only the immutable params, so concurrent callers
// need no coordination.
func (m *Module) ValidateUnsigned(source ledger.TransactionSource, call ledger.Call) (ledger.ValidTransaction, error) {
	submit, ok := call.(*SubmitPriceCall)
	if !ok {
		return ledger.ValidTransaction{}, ErrUnsupportedCall
	}

	if !submit.Verify() {
		m.logger.Debug().
			Str("source", source.String()).
			Str("public", submit.Payload.Public.String()).
			Uint64("price", submit.Payload.Price).
			Msg("rejecting price payload with bad signature")
		return ledger.ValidTransaction{}, ErrBadProof
	}

	return ledger.ValidTransactionWithTagPrefix(m.params.TagPrefix).
		Priority(m.params.Priority).
		AndProvides(CallSubmitPrice).
		Longevity(m.params.Longevity).
		Propagate(true).
		Build(), nil
}

// Dispatch executes a price submission: the signature is checked again, then
// the price is appended and NewPrice emitted. Nothing changes on error.
func (m *Module) Dispatch(origin ledger.Origin, call ledger.Call) ([]ledger.Event, error) {
	submit, ok := call.(*SubmitPriceCall)
	if !ok {
		return nil, ErrUnsupportedCall
	}
	if !origin.IsNone() {
		return nil, ErrBadOrigin
	}
	if !submit.Verify() {
		return nil, ErrBadProof
	}

	price := submit.Payload.Price
	public := submit.Payload.Public

	m.mu.Lock()
	evicted, didEvict := m.window.AppendOrEvict(price)
	length := m.window.Len()
	m.mu.Unlock()

	metrics.RecordWindow(length, price)

	log := m.logger.Info().
		Uint64("price", price).
		Str("origin", public.String()).
		Int("window_len", length)
	if didEvict {
		log = log.Uint64("evicted", evicted)
	}
	log.Msg("price appended")

	return []ledger.Event{NewPrice{Origin: &public, Price: price}}, nil
}
