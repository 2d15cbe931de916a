package tx

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/ocw-bridge/pkg/feeder/keystore"
	"github.com/StrathCole/ocw-bridge/pkg/ledger"
	"github.com/StrathCole/ocw-bridge/pkg/oracle"
	"github.com/StrathCole/ocw-bridge/pkg/signing"
)

// MockPool mocks the transaction pool.
type MockPool struct {
	mock.Mock
}

func (m *MockPool) SubmitTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Hash, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(ledger.Hash), args.Error(1)
}

// brokenSigner returns garbage signatures.
type brokenSigner struct {
	signing.Signer
	err error
}

func (b brokenSigner) Sign([]byte) ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return []byte("not a signature"), nil
}

func testSigner(t *testing.T) signing.Signer {
	t.Helper()
	s, err := signing.NewSigner(signing.Secp256k1, bytes.Repeat([]byte{0x11}, signing.SecretSize))
	require.NoError(t, err)
	return s
}

func TestSubmitPrice_Accepted(t *testing.T) {
	signer := testSigner(t)
	pool := new(MockPool)
	want := ledger.Hash{1, 2, 3}

	pool.On("SubmitTransaction", mock.Anything, mock.MatchedBy(func(tx ledger.Transaction) bool {
		call, ok := tx.Call.(*oracle.SubmitPriceCall)
		return ok &&
			call.Payload.Price == 420000 &&
			call.Payload.Public.Equal(signer.Public()) &&
			call.Verify()
	})).Return(want, nil).Once()

	s := NewSubmitter(SubmitterConfig{Keys: keystore.New(signer), Pool: pool, Logger: zerolog.Nop()})

	receipt, err := s.SubmitPrice(context.Background(), 420000)
	require.NoError(t, err)
	assert.Equal(t, want, receipt.Hash)
	assert.Equal(t, uint64(420000), receipt.Payload.Price)
	assert.False(t, receipt.DryRun)
	pool.AssertExpectations(t)
}

func TestSubmitPrice_NoIdentity(t *testing.T) {
	pool := new(MockPool)
	s := NewSubmitter(SubmitterConfig{Keys: keystore.New(), Pool: pool, Logger: zerolog.Nop()})

	_, err := s.SubmitPrice(context.Background(), 1)
	require.ErrorIs(t, err, ErrNoSigningIdentity)
	pool.AssertNotCalled(t, "SubmitTransaction", mock.Anything, mock.Anything)
}

func TestSubmitPrice_PoolRejects(t *testing.T) {
	pool := new(MockPool)
	pool.On("SubmitTransaction", mock.Anything, mock.Anything).
		Return(ledger.Hash{}, ledger.ErrTooLowPriority).Once()

	s := NewSubmitter(SubmitterConfig{Keys: keystore.New(testSigner(t)), Pool: pool, Logger: zerolog.Nop()})

	_, err := s.SubmitPrice(context.Background(), 1)
	require.ErrorIs(t, err, ErrSubmission)
	assert.ErrorIs(t, err, ledger.ErrTooLowPriority)
	pool.AssertNumberOfCalls(t, "SubmitTransaction", 1)
}

func TestSubmitPrice_BadSignature(t *testing.T) {
	signer := testSigner(t)

	tests := []struct {
		name   string
		signer signing.Signer
	}{
		{"signer error", brokenSigner{Signer: signer, err: errors.New("hsm offline")}},
		{"signature does not verify", brokenSigner{Signer: signer}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := new(MockPool)
			s := NewSubmitter(SubmitterConfig{Keys: keystore.New(tt.signer), Pool: pool, Logger: zerolog.Nop()})

			_, err := s.SubmitPrice(context.Background(), 1)
			require.ErrorIs(t, err, ErrSubmission)
			pool.AssertNotCalled(t, "SubmitTransaction", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmitPrice_DryRun(t *testing.T) {
	pool := new(MockPool)
	s := NewSubmitter(SubmitterConfig{Keys: keystore.New(testSigner(t)), Pool: pool, DryRun: true, Logger: zerolog.Nop()})

	receipt, err := s.SubmitPrice(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, receipt.DryRun)
	assert.NotEqual(t, ledger.Hash{}, receipt.Hash)
	pool.AssertNotCalled(t, "SubmitTransaction", mock.Anything, mock.Anything)
}
