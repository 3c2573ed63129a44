// Package signer provides the reference host.Signer: an in-process ECDSA
// signer over go-ethereum/crypto, grounded in the teacher's pkg/sign and
// nitrolite.Sign/Verify.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chanlattice/installproto/sign"
)

// ECDSASigner signs with a single held private key — the channel's
// free-balance key, which per spec §4.4 step 6 may differ from either
// multisig owner key.
type ECDSASigner struct {
	priv *ecdsa.PrivateKey
	addr common.Address
}

// NewFromHex loads a signer from a hex-encoded private key (with or without
// 0x prefix), the same convention the teacher's NewSigner(privateKeyHex) uses.
func NewFromHex(hexKey string) (*ECDSASigner, error) {
	priv, err := crypto.HexToECDSA(trim0x(hexKey))
	if err != nil {
		return nil, fmt.Errorf("signer: invalid private key: %w", err)
	}
	return &ECDSASigner{priv: priv, addr: crypto.PubkeyToAddress(priv.PublicKey)}, nil
}

func trim0x(s string) string {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// Address returns the signer's address.
func (s *ECDSASigner) Address() common.Address { return s.addr }

// Sign implements host.Signer.
func (s *ECDSASigner) Sign(_ context.Context, hash common.Hash) (sign.Signature, error) {
	return sign.Sign(hash, s.priv)
}
