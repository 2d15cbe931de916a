package signing

import (
	"crypto/ecdsa"
	"fmt"

	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// cosmosSigner signs with a cosmos-sdk private key (secp256k1 or ed25519).
type cosmosSigner struct {
	scheme Scheme
	key    cryptotypes.PrivKey
}

func (s *cosmosSigner) Public() Public {
	return Public{Scheme: s.scheme, Key: s.key.PubKey().Bytes()}
}

func (s *cosmosSigner) Sign(msg []byte) ([]byte, error) {
	sig, err := s.key.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("%s sign: %w", s.scheme, err)
	}
	return sig, nil
}

// ecdsaSigner signs keccak256(msg) and returns a 65 byte [R || S || V] signature.
type ecdsaSigner struct {
	priv *ecdsa.PrivateKey
}

func (s *ecdsaSigner) Public() Public {
	return Public{Scheme: ECDSA, Key: ethcrypto.CompressPubkey(&s.priv.PublicKey)}
}

func (s *ecdsaSigner) Sign(msg []byte) ([]byte, error) {
	sig, err := ethcrypto.Sign(ethcrypto.Keccak256(msg), s.priv)
	if err != nil {
		return nil, fmt.Errorf("ecdsa sign: %w", err)
	}
	return sig, nil
}

func verifyECDSA(key, msg, sig []byte) bool {
	if len(key) != 33 {
		return false
	}
	switch len(sig) {
	case 65:
		sig = sig[:64]
	case 64:
	default:
		return false
	}
	return ethcrypto.VerifySignature(key, ethcrypto.Keccak256(msg), sig)
}
