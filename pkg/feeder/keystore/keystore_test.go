package keystore

import (
	"testing"

	"github.com/cosmos/go-bip39"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/ocw-bridge/pkg/signing"
)

// Test mnemonic (DO NOT use in production).
const testMnemonic = "notice oak worry limit wrap speak medal online prefer cluster roof addict wrist behave treat actual wasp year salad speed social layer crew genius"

const cosmosPath = "m/44'/118'/0'/0/0"

func TestGetAuth_DeterministicKeys(t *testing.T) {
	for _, scheme := range []signing.Scheme{signing.Secp256k1, signing.Ed25519, signing.ECDSA} {
		t.Run(string(scheme), func(t *testing.T) {
			s1, err := GetAuth(testMnemonic, cosmosPath, scheme)
			require.NoError(t, err)
			s2, err := GetAuth(testMnemonic, cosmosPath, scheme)
			require.NoError(t, err)

			assert.True(t, s1.Public().Equal(s2.Public()),
				"Same mnemonic should produce same identity")

			msg := []byte("test message to sign")
			sig, err := s1.Sign(msg)
			require.NoError(t, err)
			assert.True(t, signing.Verify(s2.Public(), msg, sig), "Signature should be valid")
		})
	}
}

func TestGetAuth_DifferentMnemonics(t *testing.T) {
	mnemonic2, err := generateTestMnemonic()
	require.NoError(t, err)

	s1, err := GetAuth(testMnemonic, cosmosPath, signing.Secp256k1)
	require.NoError(t, err)
	s2, err := GetAuth(mnemonic2, cosmosPath, signing.Secp256k1)
	require.NoError(t, err)

	assert.False(t, s1.Public().Equal(s2.Public()),
		"Different mnemonics should produce different identities")
}

func TestGetAuth_HDPath(t *testing.T) {
	terra, err := GetAuth(testMnemonic, "m/44'/330'/0'/0/0", signing.Secp256k1)
	require.NoError(t, err)
	cosmos, err := GetAuth(testMnemonic, cosmosPath, signing.Secp256k1)
	require.NoError(t, err)

	assert.NotEqual(t, terra.Public().Address(), cosmos.Public().Address(),
		"Different HD paths should produce different addresses")
}

func TestGetAuth_Errors(t *testing.T) {
	_, err := GetAuth("not a mnemonic", cosmosPath, signing.Secp256k1)
	require.ErrorIs(t, err, ErrInvalidMnemonic)

	_, err = GetAuth(testMnemonic, "m/44'/x", signing.Secp256k1)
	require.ErrorIs(t, err, ErrInvalidHDPath)
}

func TestFromMnemonic(t *testing.T) {
	ks, err := FromMnemonic(testMnemonic, cosmosPath, signing.Ed25519, 3)
	require.NoError(t, err)
	require.Equal(t, 3, ks.Len())

	accounts := ks.Accounts()
	assert.False(t, accounts[0].Equal(accounts[1]))
	assert.False(t, accounts[1].Equal(accounts[2]))

	first, err := GetAuth(testMnemonic, cosmosPath, signing.Ed25519)
	require.NoError(t, err)

	signer, ok := ks.AnyAccount()
	require.True(t, ok)
	assert.True(t, signer.Public().Equal(first.Public()), "AnyAccount should return the first derived identity")
}

func TestFromMnemonic_InvalidPath(t *testing.T) {
	_, err := FromMnemonic(testMnemonic, "44/118", signing.Secp256k1, 1)
	require.ErrorIs(t, err, ErrInvalidHDPath)
}

func TestAnyAccount_Empty(t *testing.T) {
	ks := New()
	_, ok := ks.AnyAccount()
	assert.False(t, ok)
	assert.Empty(t, ks.Accounts())
}

// Helper function to generate a random test mnemonic.
func generateTestMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

func BenchmarkGetAuth(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetAuth(testMnemonic, cosmosPath, signing.Secp256k1)
	}
}
