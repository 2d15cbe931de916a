// Package keystore derives and holds the signing identities of a worker.
package keystore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/go-bip39"

	"github.com/StrathCole/ocw-bridge/pkg/signing"
)

var (
	// ErrInvalidMnemonic indicates that the mnemonic fails the BIP39 checksum.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	// ErrInvalidHDPath indicates that the derivation path is not a BIP44 path.
	ErrInvalidHDPath = errors.New("invalid hd path")
)

// Keystore holds the signing identities available locally.
type Keystore struct {
	mu      sync.RWMutex
	signers []signing.Signer
}

// New creates a keystore holding the given signers, in order.
func New(signers ...signing.Signer) *Keystore {
	return &Keystore{signers: append([]signing.Signer(nil), signers...)}
}

// Add appends a signer.
func (k *Keystore) Add(s signing.Signer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.signers = append(k.signers, s)
}

// Len returns the number of identities.
func (k *Keystore) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.signers)
}

// Accounts returns the public identities, in insertion order.
func (k *Keystore) Accounts() []signing.Public {
	k.mu.RLock()
	defer k.mu.RUnlock()

	out := make([]signing.Public, 0, len(k.signers))
	for _, s := range k.signers {
		out = append(out, s.Public())
	}
	return out
}

// AnyAccount returns the first available identity.
func (k *Keystore) AnyAccount() (signing.Signer, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if len(k.signers) == 0 {
		return nil, false
	}
	return k.signers[0], true
}

// GetAuth derives a signer from a BIP39 mnemonic using a BIP44 derivation path.
// The HD derivation path should be in format: m/44'/cointype'/account'/change/index
func GetAuth(mnemonic, hdPath string, scheme signing.Scheme) (signing.Signer, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(mnemonic, "")
	master, ch := hd.ComputeMastersFromSeed(seed)

	priv, err := hd.DerivePrivateKeyForPath(master, ch, hdPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidHDPath, hdPath, err)
	}

	return signing.NewSigner(scheme, priv[:])
}

// FromMnemonic derives n identities from one mnemonic by advancing the address
// index of hdPath.
func FromMnemonic(mnemonic, hdPath string, scheme signing.Scheme, n int) (*Keystore, error) {
	params, err := hd.NewParamsFromPath(hdPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidHDPath, hdPath, err)
	}

	ks := New()
	base := params.AddressIndex
	for i := 0; i < n; i++ {
		params.AddressIndex = base + uint32(i)

		signer, err := GetAuth(mnemonic, params.String(), scheme)
		if err != nil {
			return nil, fmt.Errorf("derive account %d: %w", i, err)
		}
		ks.Add(signer)
	}
	return ks, nil
}
