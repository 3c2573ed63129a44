package statechannel

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chanlattice/installproto/protoerr"
)

// ComputeDecrement builds the TokenIndexedCoinTransferMap (here:
// FreeBalanceState) to subtract from the channel's free balance for the given
// proposal. Spec §4.2 steps 1-3.
func ComputeDecrement(ch Channel, proposal AppInstance) FreeBalanceState {
	appInitiatorFb := proposal.InitiatorIdentifier.AsChannelOwner()
	appResponderFb := proposal.ResponderIdentifier.AsChannelOwner()

	decrement := NewFreeBalanceState()

	if proposal.InitiatorDepositAssetID != proposal.ResponderDepositAssetID {
		// Different assets: two independent single-owner entries.
		decrement.Set(proposal.InitiatorDepositAssetID, appInitiatorFb.Address(), proposal.InitiatorDeposit)
		decrement.Set(proposal.ResponderDepositAssetID, appResponderFb.Address(), proposal.ResponderDeposit)
		return decrement
	}

	// Same asset: a single entry, both channel owners listed, tie-broken by
	// whether the app's initiator aligns with the channel's canonical owner
	// 0. This prevents a single-key map write from silently overwriting one
	// side's deposit.
	asset := proposal.InitiatorDepositAssetID
	if appInitiatorFb.Equals(ch.MultisigOwners[0]) {
		decrement.Set(asset, ch.MultisigOwners[0].Address(), proposal.InitiatorDeposit)
		decrement.Set(asset, ch.MultisigOwners[1].Address(), proposal.ResponderDeposit)
	} else {
		decrement.Set(asset, ch.MultisigOwners[0].Address(), proposal.ResponderDeposit)
		decrement.Set(asset, ch.MultisigOwners[1].Address(), proposal.InitiatorDeposit)
	}
	return decrement
}

// CheckSufficiency verifies that, for every (asset, owner) entry in
// decrement, the channel's current free balance holds at least that amount.
// Spec §4.3: deliberately checkable independent of the transition itself so
// an engine can fail fast before any signing.
func (ch Channel) CheckSufficiency(decrement FreeBalanceState) error {
	fb := ch.FreeBalanceState()
	for _, token := range decrement.SortedTokens() {
		for owner, need := range decrement.Balances[token] {
			have := fb.Get(token, owner)
			if have.Cmp(need) < 0 {
				return &protoerr.InsufficientFundsError{
					Party: owner.Hex(),
					Asset: token.Hex(),
					Have:  have.String(),
					Need:  need.String(),
				}
			}
		}
	}
	return nil
}

// Install performs computeInstallStateChannelTransition (spec §4.2): it
// resolves the decrement, re-verifies sufficiency, and calls installApp. It
// returns the new channel and the decrement actually applied.
func (ch Channel) Install(proposal AppInstance) (Channel, FreeBalanceState, error) {
	decrement := ComputeDecrement(ch, proposal)
	if err := ch.CheckSufficiency(decrement); err != nil {
		return Channel{}, FreeBalanceState{}, err
	}
	next, err := ch.installApp(proposal, decrement)
	if err != nil {
		return Channel{}, FreeBalanceState{}, err
	}
	return next, decrement, nil
}

// installApp moves proposal from ProposedAppInstances into AppInstances and
// applies decrement to the free balance, incrementing its version number by
// exactly one (invariant 1).
func (ch Channel) installApp(proposal AppInstance, decrement FreeBalanceState) (Channel, error) {
	if _, proposed := ch.ProposedAppInstances[proposal.IdentityHash]; !proposed {
		return Channel{}, protoerr.ErrAppNotProposed
	}
	if err := ch.CheckSufficiency(decrement); err != nil {
		return Channel{}, err
	}

	next := ch.clone()
	delete(next.ProposedAppInstances, proposal.IdentityHash)
	next.AppInstances[proposal.IdentityHash] = proposal

	fb := next.FreeBalanceState().Clone()
	for _, token := range decrement.SortedTokens() {
		for owner, amt := range decrement.Balances[token] {
			cur := fb.Get(token, owner)
			fb.Set(token, owner, new(big.Int).Sub(cur, amt))
		}
	}
	next.FreeBalance.LatestState = fb
	next.FreeBalance.LatestVersionNumber = ch.FreeBalance.LatestVersionNumber + 1

	return next, nil
}

// LatestAppSequenceNumber returns the highest SequenceNumber among
// installed (non-free-balance) app instances. Spec §9 Open Question: the
// original implementation swallowed a specific error string from this lookup
// and silently treated it as sequence number 0; here an empty AppInstances
// map is a typed, matchable condition instead.
func (ch Channel) LatestAppSequenceNumber() (uint64, error) {
	if len(ch.AppInstances) == 0 {
		return 0, protoerr.ErrNoInstalledApps
	}
	var max uint64
	for _, app := range ch.AppInstances {
		if app.SequenceNumber > max {
			max = app.SequenceNumber
		}
	}
	return max, nil
}

// TotalAsset sums every owner's balance of token across the free balance,
// used by tests asserting total-balance preservation.
func (ch Channel) TotalAsset(token common.Address) *big.Int {
	fb := ch.FreeBalanceState()
	total := big.NewInt(0)
	for _, amt := range fb.Balances[token] {
		total.Add(total, amt)
	}
	return total
}
