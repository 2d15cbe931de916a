package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/StrathCole/ocw-bridge/pkg/metrics"
)

// PendingTx is a transaction admitted to the pool.
type PendingTx struct {
	Tx        Transaction
	Hash      Hash
	Source    TransactionSource
	Valid     ValidTransaction
	ValidTill uint64 // last block height the transaction may be included in
	seq       uint64
}

// TxPool holds admitted transactions until they are included or expire.
//
// Admission runs the Validator outside the pool lock. Each tag is a slot that
// one pending transaction can occupy; a newcomer only displaces the occupant
// with a strictly higher priority.
type TxPool struct {
	mu        sync.Mutex
	validator Validator
	maxSize   int
	byHash    map[Hash]*PendingTx
	byTag     map[Tag]Hash
	best      uint64
	seq       uint64
	logger    zerolog.Logger
}

// NewTxPool creates a pool admitting transactions through validator.
func NewTxPool(validator Validator, maxSize int, logger zerolog.Logger) *TxPool {
	return &TxPool{
		validator: validator,
		maxSize:   maxSize,
		byHash:    make(map[Hash]*PendingTx),
		byTag:     make(map[Tag]Hash),
		logger:    logger.With().Str("component", "txpool").Logger(),
	}
}

// Submit validates tx and admits it. The returned error is the rejection
// reason; nothing is stored when it is non-nil.
func (p *TxPool) Submit(source TransactionSource, tx Transaction) (Hash, error) {
	hash := tx.Hash()

	p.mu.Lock()
	_, dup := p.byHash[hash]
	p.mu.Unlock()
	if dup {
		metrics.RecordAdmission(source.String(), "duplicate")
		return hash, ErrAlreadyImported
	}

	valid, err := p.validator.ValidateUnsigned(source, tx.Call)
	if err != nil {
		metrics.RecordAdmission(source.String(), "rejected")
		p.logger.Debug().
			Err(err).
			Str("tx", hash.String()).
			Str("source", source.String()).
			Msg("transaction rejected")
		return hash, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byHash[hash]; ok {
		metrics.RecordAdmission(source.String(), "duplicate")
		return hash, ErrAlreadyImported
	}

	var replaced []Hash
	for _, tag := range valid.Provides {
		owner, ok := p.byTag[tag]
		if !ok {
			continue
		}
		if p.byHash[owner].Valid.Priority >= valid.Priority {
			metrics.RecordAdmission(source.String(), "too_low_priority")
			return hash, fmt.Errorf("%w: tag %q held by %s", ErrTooLowPriority, tag, owner)
		}
		replaced = append(replaced, owner)
	}

	if len(replaced) == 0 && len(p.byHash) >= p.maxSize {
		metrics.RecordAdmission(source.String(), "pool_full")
		return hash, ErrPoolFull
	}

	for _, h := range replaced {
		p.logger.Debug().
			Str("replaced", h.String()).
			Str("by", hash.String()).
			Msg("pending transaction replaced by higher priority")
		p.removeLocked(h)
	}

	p.seq++
	p.byHash[hash] = &PendingTx{
		Tx:        tx,
		Hash:      hash,
		Source:    source,
		Valid:     valid,
		ValidTill: p.best + valid.Longevity,
		seq:       p.seq,
	}
	for _, tag := range valid.Provides {
		p.byTag[tag] = hash
	}

	metrics.RecordAdmission(source.String(), "accepted")
	metrics.RecordPoolSize(len(p.byHash))

	p.logger.Debug().
		Str("tx", hash.String()).
		Str("source", source.String()).
		Uint64("priority", valid.Priority).
		Uint64("valid_till", p.best+valid.Longevity).
		Msg("transaction admitted")

	return hash, nil
}

// Ready returns up to limit transactions that may be included in a block at
// height, highest priority first and oldest first within a priority.
func (p *TxPool) Ready(height uint64, limit int) []PendingTx {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]PendingTx, 0, len(p.byHash))
	for _, ptx := range p.byHash {
		if ptx.ValidTill >= height {
			out = append(out, *ptx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Valid.Priority != out[j].Valid.Priority {
			return out[i].Valid.Priority > out[j].Valid.Priority
		}
		return out[i].seq < out[j].seq
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Remove drops transactions, typically after inclusion.
func (p *TxPool) Remove(hashes ...Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, h := range hashes {
		p.removeLocked(h)
	}
	metrics.RecordPoolSize(len(p.byHash))
}

// Maintain advances the pool to a new best height: transactions that can no
// longer be included are dropped and the rest are revalidated. Returns the
// number of dropped transactions.
func (p *TxPool) Maintain(best uint64) int {
	p.mu.Lock()
	p.best = best
	var (
		dropped int
		keep    []*PendingTx
	)
	for h, ptx := range p.byHash {
		if ptx.ValidTill <= best {
			p.logger.Debug().
				Str("tx", h.String()).
				Uint64("valid_till", ptx.ValidTill).
				Uint64("best", best).
				Msg("transaction expired")
			p.removeLocked(h)
			dropped++
			continue
		}
		keep = append(keep, ptx)
	}
	p.mu.Unlock()

	var invalid []Hash
	for _, ptx := range keep {
		if _, err := p.validator.ValidateUnsigned(ptx.Source, ptx.Tx.Call); err != nil {
			p.logger.Debug().Err(err).Str("tx", ptx.Hash.String()).Msg("transaction no longer valid")
			invalid = append(invalid, ptx.Hash)
		}
	}

	p.Remove(invalid...)
	return dropped + len(invalid)
}

// Get returns a pending transaction by hash.
func (p *TxPool) Get(hash Hash) (PendingTx, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ptx, ok := p.byHash[hash]
	if !ok {
		return PendingTx{}, false
	}
	return *ptx, true
}

// Len returns the number of pending transactions.
func (p *TxPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byHash)
}

func (p *TxPool) removeLocked(h Hash) {
	ptx, ok := p.byHash[h]
	if !ok {
		return
	}
	for _, tag := range ptx.Valid.Provides {
		if p.byTag[tag] == h {
			delete(p.byTag, tag)
		}
	}
	delete(p.byHash, h)
}
