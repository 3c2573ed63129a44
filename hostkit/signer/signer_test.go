package signer

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanlattice/installproto/sign"
)

const testPrivateKeyHex = "0x4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1"

func TestNewFromHex_AcceptsWithAndWithout0xPrefix(t *testing.T) {
	withPrefix, err := NewFromHex(testPrivateKeyHex)
	require.NoError(t, err)

	withoutPrefix, err := NewFromHex(testPrivateKeyHex[2:])
	require.NoError(t, err)

	assert.Equal(t, withPrefix.Address(), withoutPrefix.Address())
}

func TestNewFromHex_RejectsGarbage(t *testing.T) {
	_, err := NewFromHex("not-a-key")
	assert.Error(t, err)
}

func TestSign_RecoversToSignerAddress(t *testing.T) {
	s, err := NewFromHex(testPrivateKeyHex)
	require.NoError(t, err)

	hash := common.HexToHash("0xdeadbeef")
	sig, err := s.Sign(context.Background(), hash)
	require.NoError(t, err)

	ok, err := sign.Verify(hash, sig, s.Address())
	require.NoError(t, err)
	assert.True(t, ok)
}
