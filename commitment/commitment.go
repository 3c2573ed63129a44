// Package commitment builds the canonical byte-strings and hashes that
// authorize on-chain dispute resolution, and aggregates the two channel
// owners' signatures over them. Grounded in the teacher's
// nitrolite.GetChannelID/PackState ABI-pack-then-keccak256 discipline.
package commitment

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chanlattice/installproto/sign"
	"github.com/chanlattice/installproto/statechannel"
)

// SetStateCommitment is a signed claim that (AppIdentityHash, StateHash,
// VersionNumber, Timeout) is an app's latest state. Signatures are stored
// indexed by canonical channel-owner order: Signatures[0] is always
// MultisigOwners[0]'s signature, regardless of which party was protocol
// initiator (invariant 5).
type SetStateCommitment struct {
	MultisigAddress common.Address
	ChainID         uint32
	AppIdentityHash common.Hash
	StateHash       common.Hash
	VersionNumber   uint64
	Timeout         uint64

	Signatures [2]*sign.Signature
}

// NewSetStateCommitment builds an unsigned commitment for ch's free balance
// at its current version.
func NewSetStateCommitment(ch statechannel.Channel, chainID uint32) (*SetStateCommitment, error) {
	stateHash, err := ch.FreeBalanceState().HashWithOwners(ch.MultisigOwners)
	if err != nil {
		return nil, err
	}
	return &SetStateCommitment{
		MultisigAddress: ch.MultisigAddress,
		ChainID:         chainID,
		AppIdentityHash: ch.FreeBalance.IdentityHash,
		StateHash:       stateHash,
		VersionNumber:   ch.FreeBalance.LatestVersionNumber,
		Timeout:         ch.FreeBalance.StateTimeout,
	}, nil
}

// HashToSign returns the deterministic digest both honest parties must
// independently compute identically: a static ABI encoding of
// (multisigAddress, appIdentityHash, stateHash, versionNumber, timeout,
// chainId), each field one left-padded 32-byte word with no length prefix,
// concatenated in that order and keccak256-hashed. This is the byte layout the spec requires be
// documented and covered by an interoperability test vector (§4.1, §8).
func (c *SetStateCommitment) HashToSign() (common.Hash, error) {
	addressT, _ := abi.NewType("address", "", nil)
	bytes32T, _ := abi.NewType("bytes32", "", nil)
	uint256T, _ := abi.NewType("uint256", "", nil)

	args := abi.Arguments{
		{Type: addressT}, // multisigAddress
		{Type: bytes32T}, // appIdentityHash
		{Type: bytes32T}, // stateHash
		{Type: uint256T}, // versionNumber
		{Type: uint256T}, // timeout
		{Type: uint256T}, // chainId
	}
	packed, err := args.Pack(
		c.MultisigAddress,
		c.AppIdentityHash,
		c.StateHash,
		new(big.Int).SetUint64(c.VersionNumber),
		new(big.Int).SetUint64(c.Timeout),
		new(big.Int).SetUint64(uint64(c.ChainID)),
	)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// AddSignatures stores sigA and sigB indexed by canonical owner order,
// reordering them if given out of order, and rejects any signature that does
// not recover to one of owners[0]/owners[1] over hash.
func (c *SetStateCommitment) AddSignatures(hash common.Hash, owners [2]common.Address, sigA, sigB sign.Signature) error {
	addrA, err := sign.Recover(hash, sigA)
	if err != nil {
		return err
	}
	addrB, err := sign.Recover(hash, sigB)
	if err != nil {
		return err
	}

	slotOf := func(addr common.Address) (int, bool) {
		switch addr {
		case owners[0]:
			return 0, true
		case owners[1]:
			return 1, true
		default:
			return 0, false
		}
	}

	slotA, okA := slotOf(addrA)
	slotB, okB := slotOf(addrB)
	if !okA || !okB || slotA == slotB {
		return errInvalidSignature
	}

	sa, sb := sigA, sigB
	c.Signatures[slotA] = &sa
	c.Signatures[slotB] = &sb
	return nil
}

// FullySigned reports whether both canonical-order signature slots are set.
func (c *SetStateCommitment) FullySigned() bool {
	return c.Signatures[0] != nil && c.Signatures[1] != nil
}

// ConditionalTransactionCommitment is a signed claim that, on dispute, a
// conditional transfer for an app instance's outcome should execute.
// Structurally parallel to SetStateCommitment for signing purposes. The
// install engine does not build one; it only exchanges signatures over the
// free-balance SetStateCommitment (spec §4.1).
type ConditionalTransactionCommitment struct {
	MultisigAddress common.Address
	ChainID         uint32
	AppIdentityHash common.Hash
	OutcomeHash     common.Hash

	Signatures [2]*sign.Signature
}

// NewConditionalTransactionCommitment builds an unsigned commitment for app's
// outcome.
func NewConditionalTransactionCommitment(ch statechannel.Channel, app statechannel.AppInstance, chainID uint32) (*ConditionalTransactionCommitment, error) {
	outcomeHash, err := app.LatestState.Hash()
	if err != nil {
		return nil, err
	}
	return &ConditionalTransactionCommitment{
		MultisigAddress: ch.MultisigAddress,
		ChainID:         chainID,
		AppIdentityHash: app.IdentityHash,
		OutcomeHash:     outcomeHash,
	}, nil
}

// HashToSign mirrors SetStateCommitment.HashToSign's layout, substituting the
// outcome hash for the state hash and omitting version/timeout (a conditional
// transaction is conditioned on the app's outcome, not its version history).
func (c *ConditionalTransactionCommitment) HashToSign() (common.Hash, error) {
	addressT, _ := abi.NewType("address", "", nil)
	bytes32T, _ := abi.NewType("bytes32", "", nil)
	uint256T, _ := abi.NewType("uint256", "", nil)

	args := abi.Arguments{
		{Type: addressT},
		{Type: bytes32T},
		{Type: bytes32T},
		{Type: uint256T},
	}
	packed, err := args.Pack(c.MultisigAddress, c.AppIdentityHash, c.OutcomeHash, new(big.Int).SetUint64(uint64(c.ChainID)))
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// AddSignatures stores sigA/sigB indexed by canonical owner order; see
// SetStateCommitment.AddSignatures.
func (c *ConditionalTransactionCommitment) AddSignatures(hash common.Hash, owners [2]common.Address, sigA, sigB sign.Signature) error {
	tmp := SetStateCommitment{}
	if err := tmp.AddSignatures(hash, owners, sigA, sigB); err != nil {
		return err
	}
	c.Signatures = tmp.Signatures
	return nil
}

var errInvalidSignature = invalidSignatureError{}

type invalidSignatureError struct{}

func (invalidSignatureError) Error() string { return "commitment: invalid signature" }
