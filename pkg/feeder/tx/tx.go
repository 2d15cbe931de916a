package tx

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/StrathCole/ocw-bridge/pkg/ledger"
	"github.com/StrathCole/ocw-bridge/pkg/metrics"
	"github.com/StrathCole/ocw-bridge/pkg/oracle"
	"github.com/StrathCole/ocw-bridge/pkg/signing"
)

// Pool accepts transactions into a node's pending pool.
type Pool interface {
	SubmitTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Hash, error)
}

// Identities provides the local signing identities.
type Identities interface {
	AnyAccount() (signing.Signer, bool)
}

// Submitter signs price payloads and hands them to the pool.
type Submitter struct {
	keys   Identities
	pool   Pool
	dryRun bool
	logger zerolog.Logger
}

// SubmitterConfig holds configuration for creating a Submitter.
type SubmitterConfig struct {
	Keys   Identities
	Pool   Pool
	DryRun bool // sign and log, but never submit
	Logger zerolog.Logger
}

// NewSubmitter creates a new Submitter.
func NewSubmitter(cfg SubmitterConfig) *Submitter {
	return &Submitter{
		keys:   cfg.Keys,
		pool:   cfg.Pool,
		dryRun: cfg.DryRun,
		logger: cfg.Logger.With().Str("component", "submitter").Logger(),
	}
}

// Receipt reports local pool acceptance of a submission. It says nothing about
// inclusion in a block.
type Receipt struct {
	Hash    ledger.Hash
	Payload oracle.PricePayload
	DryRun  bool
}

// SubmitPrice signs price with any available identity and submits it once as
// an unsigned transaction carrying the signed payload. There is no retry.
//
// Returns an error if:
// - no identity is available (ErrNoSigningIdentity, nothing submitted)
// - signing fails or yields a signature that does not verify (ErrSubmission)
// - the pool rejects the transaction (ErrSubmission wrapping the pool reason)
func (s *Submitter) SubmitPrice(ctx context.Context, price uint64) (*Receipt, error) {
	signer, ok := s.keys.AnyAccount()
	if !ok {
		metrics.RecordSubmission("no_identity")
		return nil, ErrNoSigningIdentity
	}

	call, err := SignPrice(signer, price)
	if err != nil {
		metrics.RecordSubmission("sign_failed")
		return nil, err
	}
	tx := ledger.NewUnsignedTransaction(call)

	receipt := &Receipt{Hash: tx.Hash(), Payload: call.Payload, DryRun: s.dryRun}
	if s.dryRun {
		s.logger.Info().
			Str("tx_hash", receipt.Hash.String()).
			Uint64("price", price).
			Str("public", call.Payload.Public.String()).
			Msg("dry run: transaction signed but not submitted")
		metrics.RecordSubmission("dry_run")
		return receipt, nil
	}

	hash, err := s.pool.SubmitTransaction(ctx, tx)
	if err != nil {
		metrics.RecordSubmission("rejected")
		return nil, fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	receipt.Hash = hash

	metrics.RecordSubmission("accepted")
	s.logger.Info().
		Str("tx_hash", hash.String()).
		Uint64("price", price).
		Str("address", call.Payload.Public.Address()).
		Msg("price submitted to pool")

	return receipt, nil
}

// SignPrice builds the price payload for signer's identity and signs it.
func SignPrice(signer signing.Signer, price uint64) (*oracle.SubmitPriceCall, error) {
	payload := oracle.PricePayload{Price: price, Public: signer.Public()}

	sig, err := signer.Sign(payload.SigningBytes())
	if err != nil {
		return nil, fmt.Errorf("%w: sign payload: %w", ErrSubmission, err)
	}

	call := &oracle.SubmitPriceCall{Payload: payload, Signature: sig}
	if !call.Verify() {
		return nil, fmt.Errorf("%w: signature by %s does not verify", ErrSubmission, payload.Public)
	}
	return call, nil
}
