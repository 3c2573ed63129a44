// Package statechannel implements the pure state-channel data model and the
// free-balance debit algebra that the install protocol drives. Every
// transition here is a pure function: (Channel, ...) -> Channel, never
// mutating its receiver, so two independently-computed transitions by honest
// counterparties are byte-for-byte comparable.
package statechannel

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ChannelOwner identifies one of the two signers of the channel's on-chain
// multisig, in canonical order (MultisigOwners[0], MultisigOwners[1]).
// AppParty identifies a participant inside a single app instance's own
// initiator/responder ordering. The two orderings are independent — an app's
// initiator is not necessarily MultisigOwners[0] — so they are distinct Go
// types. The only sanctioned conversion is AsChannelOwner, called at the
// install transition's signer-resolution boundary (spec §4.2 step 1, §9).
type ChannelOwner struct{ addr common.Address }

func NewChannelOwner(addr common.Address) ChannelOwner { return ChannelOwner{addr} }
func (o ChannelOwner) Address() common.Address         { return o.addr }
func (o ChannelOwner) Equals(other ChannelOwner) bool  { return o.addr == other.addr }
func (o ChannelOwner) String() string                  { return o.addr.Hex() }

type AppParty struct{ addr common.Address }

func NewAppParty(addr common.Address) AppParty { return AppParty{addr} }
func (p AppParty) Address() common.Address     { return p.addr }
func (p AppParty) Equals(other AppParty) bool  { return p.addr == other.addr }
func (p AppParty) String() string              { return p.addr.Hex() }

// AsChannelOwner converts an app-level party identifier into a channel-owner
// identifier. Only the install transition's signer-resolution step should
// call this; elsewhere the two types must not be conflated.
func (p AppParty) AsChannelOwner() ChannelOwner { return ChannelOwner{p.addr} }

// OutcomeType enumerates how an app instance's final state redistributes
// channel funds.
type OutcomeType uint8

const (
	OutcomeTwoPartyFixed OutcomeType = iota
	OutcomeSingleAssetTwoPartyCoinTransfer
	OutcomeMultiAssetMultiPartyCoinTransfer
	OutcomeRefund
)

func (t OutcomeType) String() string {
	switch t {
	case OutcomeTwoPartyFixed:
		return "TWO_PARTY_FIXED_OUTCOME"
	case OutcomeSingleAssetTwoPartyCoinTransfer:
		return "SINGLE_ASSET_TWO_PARTY_COIN_TRANSFER"
	case OutcomeMultiAssetMultiPartyCoinTransfer:
		return "MULTI_ASSET_MULTI_PARTY_COIN_TRANSFER"
	case OutcomeRefund:
		return "REFUND_OUTCOME_TYPE"
	default:
		return "UNKNOWN_OUTCOME_TYPE"
	}
}

// AppInterface names the app definition contract and the ABI-ish encodings it
// uses for state/action/outcome. The install protocol never decodes these; it
// only needs AppInterface.Addr to derive an identity hash.
type AppInterface struct {
	Addr            common.Address
	StateEncoding   string
	ActionEncoding  string
	OutcomeEncoding string
}

// AppState is any value an app instance's latestState can hold. Hash must be
// a deterministic function of the value's content.
type AppState interface {
	Hash() (common.Hash, error)
}

// RawAppState is an opaque, already-encoded app state for app types the
// install protocol does not interpret (tic-tac-toe, swap, etc. — anything
// that is not the free balance). Its hash is a plain content hash.
type RawAppState []byte

func (s RawAppState) Hash() (common.Hash, error) {
	return crypto.Keccak256Hash(s), nil
}

// FreeBalanceState is the free balance's latestState: a token-indexed mapping
// from channel owner to that owner's spendable balance of that asset. It
// doubles as the TokenIndexedCoinTransferMap used to describe deltas applied
// by an install (spec §3).
type FreeBalanceState struct {
	// Balances maps token address -> owner address -> amount.
	Balances map[common.Address]map[common.Address]*big.Int
}

// NewFreeBalanceState builds an empty free balance state.
func NewFreeBalanceState() FreeBalanceState {
	return FreeBalanceState{Balances: map[common.Address]map[common.Address]*big.Int{}}
}

// Clone deep-copies the state so callers never share *big.Int pointers across
// channel versions.
func (s FreeBalanceState) Clone() FreeBalanceState {
	out := NewFreeBalanceState()
	for token, owners := range s.Balances {
		m := make(map[common.Address]*big.Int, len(owners))
		for owner, amt := range owners {
			m[owner] = new(big.Int).Set(amt)
		}
		out.Balances[token] = m
	}
	return out
}

// Get returns the balance of owner in token, defaulting to zero.
func (s FreeBalanceState) Get(token, owner common.Address) *big.Int {
	owners, ok := s.Balances[token]
	if !ok {
		return big.NewInt(0)
	}
	amt, ok := owners[owner]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(amt)
}

// Set assigns owner's balance of token in place. Used only while building a
// fresh, not-yet-shared state.
func (s FreeBalanceState) Set(token, owner common.Address, amount *big.Int) {
	owners, ok := s.Balances[token]
	if !ok {
		owners = map[common.Address]*big.Int{}
		s.Balances[token] = owners
	}
	owners[owner] = new(big.Int).Set(amount)
}

// SortedTokens returns the token addresses present, in a deterministic order,
// for hashing and iteration.
func (s FreeBalanceState) SortedTokens() []common.Address {
	out := make([]common.Address, 0, len(s.Balances))
	for t := range s.Balances {
		out = append(out, t)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && bytesLess(out[j].Bytes(), out[j-1].Bytes()); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// HashWithOwners ABI-encodes the free balance deterministically — tokens in sorted
// order, each with the two owners' balances in the channel's canonical owner
// order — then keccak256s the result. owners fixes the canonical order used
// for encoding so two honest parties, hashing the same state, always agree.
func (s FreeBalanceState) HashWithOwners(owners [2]ChannelOwner) (common.Hash, error) {
	addressT, _ := abi.NewType("address", "", nil)
	uintT, _ := abi.NewType("uint256", "", nil)

	var args abi.Arguments
	var vals []any
	for _, token := range s.SortedTokens() {
		args = append(args, abi.Argument{Type: addressT})
		vals = append(vals, token)
		for _, owner := range owners {
			args = append(args, abi.Argument{Type: addressT}, abi.Argument{Type: uintT})
			vals = append(vals, owner.Address(), s.Get(token, owner.Address()))
		}
	}
	packed, err := args.Pack(vals...)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// Hash implements AppState using an arbitrary-but-deterministic owner order
// (sorted token/owner bytes). Code that needs the canonical channel-owner
// encoding for a commitment must call HashWithOwners directly instead.
func (s FreeBalanceState) Hash() (common.Hash, error) {
	tokens := s.SortedTokens()
	addressT, _ := abi.NewType("address", "", nil)
	uintT, _ := abi.NewType("uint256", "", nil)
	var args abi.Arguments
	var vals []any
	for _, token := range tokens {
		owners := make([]common.Address, 0, len(s.Balances[token]))
		for o := range s.Balances[token] {
			owners = append(owners, o)
		}
		for i := 1; i < len(owners); i++ {
			for j := i; j > 0 && bytesLess(owners[j].Bytes(), owners[j-1].Bytes()); j-- {
				owners[j], owners[j-1] = owners[j-1], owners[j]
			}
		}
		args = append(args, abi.Argument{Type: addressT})
		vals = append(vals, token)
		for _, owner := range owners {
			args = append(args, abi.Argument{Type: addressT}, abi.Argument{Type: uintT})
			vals = append(vals, owner, s.Get(token, owner))
		}
	}
	packed, err := args.Pack(vals...)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// AppInstance is a deterministic state machine hosted inside a channel.
type AppInstance struct {
	IdentityHash            common.Hash
	InitiatorIdentifier     AppParty
	ResponderIdentifier     AppParty
	AppInterface            AppInterface
	DefaultTimeout          uint64
	LatestState             AppState
	LatestVersionNumber     uint64
	LatestAction            []byte // optional; nil if none
	StateTimeout            uint64
	OutcomeType             OutcomeType
	InitiatorDeposit        *big.Int
	ResponderDeposit        *big.Int
	InitiatorDepositAssetID common.Address
	ResponderDepositAssetID common.Address
	SequenceNumber          uint64
}

// ComputeIdentityHash derives an app instance's content-addressed identifier
// from its immutable parameters: the two participants, the app definition
// address, the default timeout, and the channel's running proposal sequence
// number. Mirrors the ABI-pack-then-keccak256 discipline the teacher's
// nitrolite.GetChannelID uses for on-chain channel identifiers.
func ComputeIdentityHash(initiator, responder AppParty, appDefinition common.Address, defaultTimeout, seq uint64) (common.Hash, error) {
	addressT, _ := abi.NewType("address", "", nil)
	uintT, _ := abi.NewType("uint256", "", nil)
	args := abi.Arguments{
		{Type: addressT}, {Type: addressT}, {Type: addressT}, {Type: uintT}, {Type: uintT},
	}
	packed, err := args.Pack(
		initiator.Address(), responder.Address(), appDefinition,
		new(big.Int).SetUint64(defaultTimeout), new(big.Int).SetUint64(seq),
	)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// Channel is an immutable value object; every transition below returns a new
// Channel rather than mutating the receiver.
type Channel struct {
	MultisigAddress          common.Address
	MultisigOwners           [2]ChannelOwner
	FreeBalance              AppInstance
	AppInstances             map[common.Hash]AppInstance
	ProposedAppInstances     map[common.Hash]AppInstance
	MonotonicNumProposedApps uint64
	SchemaVersion            uint32
}

// clone deep-copies the channel's maps so a transition never aliases the
// receiver's storage.
func (ch Channel) clone() Channel {
	out := ch
	out.AppInstances = make(map[common.Hash]AppInstance, len(ch.AppInstances))
	for k, v := range ch.AppInstances {
		out.AppInstances[k] = v
	}
	out.ProposedAppInstances = make(map[common.Hash]AppInstance, len(ch.ProposedAppInstances))
	for k, v := range ch.ProposedAppInstances {
		out.ProposedAppInstances[k] = v
	}
	return out
}

// FreeBalanceState asserts the free balance's latest state into its concrete
// type. Panics if the channel's free balance does not hold one — a channel
// invariant violation, not a recoverable protocol error.
func (ch Channel) FreeBalanceState() FreeBalanceState {
	fb, ok := ch.FreeBalance.LatestState.(FreeBalanceState)
	if !ok {
		panic("statechannel: channel free balance does not hold a FreeBalanceState")
	}
	return fb
}
