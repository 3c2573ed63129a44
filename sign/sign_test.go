package sign

import (
	"crypto/ecdsa"
	"crypto/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	require.NoError(t, err)
	return priv, crypto.PubkeyToAddress(priv.PublicKey)
}

func TestSignRecoverVerify_RoundTrip(t *testing.T) {
	priv, addr := genKey(t)
	hash := common.HexToHash("0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")

	sig, err := Sign(hash, priv)
	require.NoError(t, err)

	recovered, err := Recover(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, addr, recovered)

	ok, err := Verify(hash, sig, addr)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_RejectsWrongSigner(t *testing.T) {
	priv, _ := genKey(t)
	_, otherAddr := genKey(t)
	hash := common.HexToHash("0xaa")

	sig, err := Sign(hash, priv)
	require.NoError(t, err)

	ok, err := Verify(hash, sig, otherAddr)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_RejectsWrongHash(t *testing.T) {
	priv, addr := genKey(t)
	sig, err := Sign(common.HexToHash("0x01"), priv)
	require.NoError(t, err)

	ok, err := Verify(common.HexToHash("0x02"), sig, addr)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignature_TextRoundTrip(t *testing.T) {
	priv, _ := genKey(t)
	sig, err := Sign(common.HexToHash("0x03"), priv)
	require.NoError(t, err)

	text, err := sig.MarshalText()
	require.NoError(t, err)

	var roundTripped Signature
	require.NoError(t, roundTripped.UnmarshalText(text))
	assert.Equal(t, sig, roundTripped)
}

func TestSignature_UnmarshalText_RejectsWrongLength(t *testing.T) {
	var sig Signature
	err := sig.UnmarshalText([]byte("0x1234"))
	assert.Error(t, err)
}
