// Package sign provides the recoverable-ECDSA signature primitive the
// install protocol signs and verifies commitments with. It is a thin,
// install-protocol-scoped cousin of the teacher's general-purpose
// blockchain-agnostic signer package: where that package abstracts over
// multiple chains' signature schemes, this one commits to the one scheme an
// account-based EVM-style chain actually uses, because that's all the core
// needs to produce a `bytes65` per the middleware contract (spec §6).
package sign

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signature is a 65-byte recoverable ECDSA signature: 32 bytes r, 32 bytes s,
// 1 byte v. This is the OP_SIGN response type (bytes65) in the middleware
// contract.
type Signature [65]byte

// String renders the signature as 0x-prefixed lowercase hex.
func (s Signature) String() string { return hexutil.Encode(s[:]) }

// MarshalText implements encoding.TextMarshaler so a Signature round-trips
// through JSON as 0x-hex like every other binary field on the wire.
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Signature) UnmarshalText(text []byte) error {
	b, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("sign: invalid signature hex: %w", err)
	}
	if len(b) != 65 {
		return fmt.Errorf("sign: signature must be 65 bytes, got %d", len(b))
	}
	copy(s[:], b)
	return nil
}

// Sign produces a recoverable signature over hash using priv. hash must
// already be the final 32-byte digest a verifier will recompute and compare
// against — Sign performs no further hashing.
func Sign(hash common.Hash, priv *ecdsa.PrivateKey) (Signature, error) {
	sigBytes, err := crypto.Sign(hash.Bytes(), priv)
	if err != nil {
		return Signature{}, fmt.Errorf("sign: %w", err)
	}
	var sig Signature
	copy(sig[:], sigBytes)
	return sig, nil
}

// Recover returns the address whose private key produced sig over hash.
func Recover(hash common.Hash, sig Signature) (common.Address, error) {
	pub, err := crypto.SigToPub(hash.Bytes(), sig[:])
	if err != nil {
		return common.Address{}, fmt.Errorf("sign: recover: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify reports whether sig recovers to expected over hash.
func Verify(hash common.Hash, sig Signature, expected common.Address) (bool, error) {
	recovered, err := Recover(hash, sig)
	if err != nil {
		return false, err
	}
	return recovered == expected, nil
}
