// Package signing abstracts the signature schemes a worker identity may use.
//
// A Signer holds private key material and produces signatures; Verify checks a
// signature against a Public identity using the scheme recorded in the
// identity itself, so validators need no key material and no configuration.
package signing

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/keys/ed25519"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Scheme names a signature scheme.
type Scheme string

// Supported schemes.
const (
	Secp256k1 Scheme = "secp256k1"
	Ed25519   Scheme = "ed25519"
	// ECDSA is secp256k1 over keccak256 digests with recoverable signatures.
	ECDSA Scheme = "ecdsa"
)

// SecretSize is the length of the secret a Signer is built from.
const SecretSize = 32

// ParseScheme maps a configuration string to a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(s)) {
	case Secp256k1:
		return Secp256k1, nil
	case Ed25519:
		return Ed25519, nil
	case ECDSA:
		return ECDSA, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScheme, s)
}

// Public is a public-key identity tagged with its scheme.
type Public struct {
	Scheme Scheme `json:"scheme"`
	Key    []byte `json:"key"`
}

// String renders the identity as scheme:hex.
func (p Public) String() string {
	return string(p.Scheme) + ":" + hex.EncodeToString(p.Key)
}

// Equal reports whether both identities use the same scheme and key.
func (p Public) Equal(o Public) bool {
	return p.Scheme == o.Scheme && bytes.Equal(p.Key, o.Key)
}

// IsZero reports whether the identity is empty.
func (p Public) IsZero() bool {
	return p.Scheme == "" && len(p.Key) == 0
}

// Address renders the identity the way its home ecosystem does: bech32
// account addresses for the Cosmos schemes, checksummed hex for ecdsa.
// Returns an empty string for malformed keys.
func (p Public) Address() string {
	switch p.Scheme {
	case Secp256k1:
		if len(p.Key) != secp256k1.PubKeySize {
			return ""
		}
		return sdk.AccAddress((&secp256k1.PubKey{Key: p.Key}).Address()).String()
	case Ed25519:
		if len(p.Key) != ed25519.PubKeySize {
			return ""
		}
		return sdk.AccAddress((&ed25519.PubKey{Key: p.Key}).Address()).String()
	case ECDSA:
		pub, err := ethcrypto.DecompressPubkey(p.Key)
		if err != nil {
			return ""
		}
		return ethcrypto.PubkeyToAddress(*pub).Hex()
	}
	return ""
}

// Signer produces signatures for one identity.
type Signer interface {
	Public() Public
	Sign(msg []byte) ([]byte, error)
}

// NewSigner builds a Signer for scheme from a 32 byte secret.
func NewSigner(scheme Scheme, secret []byte) (Signer, error) {
	if len(secret) != SecretSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSecret, len(secret))
	}

	switch scheme {
	case Secp256k1:
		key := make([]byte, SecretSize)
		copy(key, secret)
		return &cosmosSigner{scheme: Secp256k1, key: &secp256k1.PrivKey{Key: key}}, nil
	case Ed25519:
		return &cosmosSigner{scheme: Ed25519, key: ed25519.GenPrivKeyFromSecret(secret)}, nil
	case ECDSA:
		priv, err := ethcrypto.ToECDSA(secret)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
		}
		return &ecdsaSigner{priv: priv}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
}

// Verify reports whether sig is a valid signature of msg by pub.
// Malformed keys and signatures verify as false.
func Verify(pub Public, msg, sig []byte) bool {
	switch pub.Scheme {
	case Secp256k1:
		if len(pub.Key) != secp256k1.PubKeySize {
			return false
		}
		return (&secp256k1.PubKey{Key: pub.Key}).VerifySignature(msg, sig)
	case Ed25519:
		if len(pub.Key) != ed25519.PubKeySize {
			return false
		}
		return (&ed25519.PubKey{Key: pub.Key}).VerifySignature(msg, sig)
	case ECDSA:
		return verifyECDSA(pub.Key, msg, sig)
	}
	return false
}
