package statechannel

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanlattice/installproto/protoerr"
)

var (
	ownerA = NewChannelOwner(common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	ownerB = NewChannelOwner(common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"))
	eth    = common.HexToAddress("0x1111111111111111111111111111111111111e")
	dai    = common.HexToAddress("0x1111111111111111111111111111111111111d")
	appDef = common.HexToAddress("0x2222222222222222222222222222222222222a")
)

func newChannel(t *testing.T, fb FreeBalanceState) Channel {
	t.Helper()
	return Channel{
		MultisigAddress: common.HexToAddress("0x3333333333333333333333333333333333333c"),
		MultisigOwners:  [2]ChannelOwner{ownerA, ownerB},
		FreeBalance: AppInstance{
			LatestState:         fb,
			LatestVersionNumber: 0,
		},
		AppInstances:         map[common.Hash]AppInstance{},
		ProposedAppInstances: map[common.Hash]AppInstance{},
	}
}

func proposeApp(t *testing.T, ch Channel, initiator, responder ChannelOwner, initiatorDeposit, responderDeposit *big.Int, asset, responderAsset common.Address) AppInstance {
	t.Helper()
	initiatorParty := NewAppParty(initiator.Address())
	responderParty := NewAppParty(responder.Address())
	identity, err := ComputeIdentityHash(initiatorParty, responderParty, appDef, 100, ch.MonotonicNumProposedApps+1)
	require.NoError(t, err)

	app := AppInstance{
		IdentityHash:            identity,
		InitiatorIdentifier:     initiatorParty,
		ResponderIdentifier:     responderParty,
		AppInterface:            AppInterface{Addr: appDef},
		DefaultTimeout:          100,
		LatestState:             RawAppState{0x01},
		LatestVersionNumber:     0,
		OutcomeType:             OutcomeTwoPartyFixed,
		InitiatorDeposit:        initiatorDeposit,
		ResponderDeposit:        responderDeposit,
		InitiatorDepositAssetID: asset,
		ResponderDepositAssetID: responderAsset,
	}
	ch.ProposedAppInstances[identity] = app
	return app
}

func TestInstall_S1_DistinctAssets(t *testing.T) {
	fb := NewFreeBalanceState()
	fb.Set(eth, ownerA.Address(), big.NewInt(100))
	fb.Set(eth, ownerB.Address(), big.NewInt(0))
	fb.Set(dai, ownerA.Address(), big.NewInt(0))
	fb.Set(dai, ownerB.Address(), big.NewInt(50))
	ch := newChannel(t, fb)

	proposal := proposeApp(t, ch, ownerA, ownerB, big.NewInt(30), big.NewInt(20), eth, dai)

	next, decrement, err := ch.Install(proposal)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(30), decrement.Get(eth, ownerA.Address()))
	assert.Equal(t, big.NewInt(20), decrement.Get(dai, ownerB.Address()))

	nextFB := next.FreeBalanceState()
	assert.Equal(t, big.NewInt(70), nextFB.Get(eth, ownerA.Address()))
	assert.Equal(t, big.NewInt(0), nextFB.Get(eth, ownerB.Address()))
	assert.Equal(t, big.NewInt(0), nextFB.Get(dai, ownerA.Address()))
	assert.Equal(t, big.NewInt(30), nextFB.Get(dai, ownerB.Address()))

	assert.Equal(t, uint64(1), next.FreeBalance.LatestVersionNumber)
	_, installed := next.AppInstances[proposal.IdentityHash]
	assert.True(t, installed)
	_, stillProposed := next.ProposedAppInstances[proposal.IdentityHash]
	assert.False(t, stillProposed)
}

func TestInstall_S2_SameAssetMatchingOrder(t *testing.T) {
	fb := NewFreeBalanceState()
	fb.Set(eth, ownerA.Address(), big.NewInt(100))
	fb.Set(eth, ownerB.Address(), big.NewInt(100))
	ch := newChannel(t, fb)

	proposal := proposeApp(t, ch, ownerA, ownerB, big.NewInt(30), big.NewInt(40), eth, eth)

	next, _, err := ch.Install(proposal)
	require.NoError(t, err)

	nextFB := next.FreeBalanceState()
	assert.Equal(t, big.NewInt(70), nextFB.Get(eth, ownerA.Address()))
	assert.Equal(t, big.NewInt(60), nextFB.Get(eth, ownerB.Address()))
}

func TestInstall_S3_SameAssetReversedOrder(t *testing.T) {
	fb := NewFreeBalanceState()
	fb.Set(eth, ownerA.Address(), big.NewInt(100))
	fb.Set(eth, ownerB.Address(), big.NewInt(100))
	ch := newChannel(t, fb)

	// App-level initiator is channel owner B; deposits swapped accordingly.
	proposal := proposeApp(t, ch, ownerB, ownerA, big.NewInt(40), big.NewInt(30), eth, eth)

	next, _, err := ch.Install(proposal)
	require.NoError(t, err)

	nextFB := next.FreeBalanceState()
	assert.Equal(t, big.NewInt(70), nextFB.Get(eth, ownerA.Address()))
	assert.Equal(t, big.NewInt(60), nextFB.Get(eth, ownerB.Address()))
}

func TestInstall_S4_InsufficientFunds(t *testing.T) {
	fb := NewFreeBalanceState()
	fb.Set(eth, ownerA.Address(), big.NewInt(10))
	ch := newChannel(t, fb)

	proposal := proposeApp(t, ch, ownerA, ownerB, big.NewInt(30), big.NewInt(0), eth, eth)

	_, _, err := ch.Install(proposal)
	require.Error(t, err)

	var insufficient *protoerr.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, ownerA.Address().Hex(), insufficient.Party)
	assert.Equal(t, "10", insufficient.Have)
	assert.Equal(t, "30", insufficient.Need)
}

func TestCheckSufficiency_ReturnsPartyAssetHaveNeed(t *testing.T) {
	fb := NewFreeBalanceState()
	fb.Set(eth, ownerA.Address(), big.NewInt(10))
	ch := newChannel(t, fb)

	decrement := NewFreeBalanceState()
	decrement.Set(eth, ownerA.Address(), big.NewInt(30))

	err := ch.CheckSufficiency(decrement)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ownerA.Address().Hex())
}

func TestInstall_RejectsUnproposedApp(t *testing.T) {
	fb := NewFreeBalanceState()
	fb.Set(eth, ownerA.Address(), big.NewInt(100))
	ch := newChannel(t, fb)

	// Built via proposeApp but never actually recorded in ch.ProposedAppInstances.
	initiatorParty := NewAppParty(ownerA.Address())
	responderParty := NewAppParty(ownerB.Address())
	identity, err := ComputeIdentityHash(initiatorParty, responderParty, appDef, 100, 1)
	require.NoError(t, err)
	unproposed := AppInstance{
		IdentityHash:            identity,
		InitiatorIdentifier:     initiatorParty,
		ResponderIdentifier:     responderParty,
		InitiatorDeposit:        big.NewInt(10),
		ResponderDeposit:        big.NewInt(0),
		InitiatorDepositAssetID: eth,
		ResponderDepositAssetID: eth,
	}

	_, _, err = ch.Install(unproposed)
	require.Error(t, err)
}

func TestLatestAppSequenceNumber_EmptyIsTypedError(t *testing.T) {
	ch := newChannel(t, NewFreeBalanceState())
	_, err := ch.LatestAppSequenceNumber()
	require.Error(t, err)
}

func TestLatestAppSequenceNumber_ReturnsMax(t *testing.T) {
	ch := newChannel(t, NewFreeBalanceState())
	ch.AppInstances[common.HexToHash("0x01")] = AppInstance{SequenceNumber: 3}
	ch.AppInstances[common.HexToHash("0x02")] = AppInstance{SequenceNumber: 7}
	ch.AppInstances[common.HexToHash("0x03")] = AppInstance{SequenceNumber: 5}

	max, err := ch.LatestAppSequenceNumber()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), max)
}

func TestInstall_PreservesTotalBalance(t *testing.T) {
	splits := []struct{ a, b int64 }{
		{30, 40}, {0, 100}, {100, 0}, {17, 83}, {50, 50},
	}
	for _, split := range splits {
		fb := NewFreeBalanceState()
		fb.Set(eth, ownerA.Address(), big.NewInt(100))
		fb.Set(eth, ownerB.Address(), big.NewInt(100))
		ch := newChannel(t, fb)
		before := ch.TotalAsset(eth)

		proposal := proposeApp(t, ch, ownerA, ownerB, big.NewInt(split.a), big.NewInt(split.b), eth, eth)
		next, _, err := ch.Install(proposal)
		require.NoError(t, err)

		// Free balance after the install plus the app's deposits.
		after := new(big.Int).Add(next.TotalAsset(eth), big.NewInt(split.a+split.b))
		assert.Equal(t, before, after, "total balance must be preserved across an install")
	}
}
