package statechannel

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/chanlattice/installproto/protoerr"
)

// InstallParams is ProtocolParams.Install: the parameters a propose flow
// hands the install orchestrator to start a run.
type InstallParams struct {
	InitiatorIdentifier AppParty
	ResponderIdentifier AppParty
	MultisigAddress     common.Address
	Proposal            AppInstance
	AppIdentityHash     common.Hash
}

// Validate checks the one cross-field invariant the spec calls out:
// AppIdentityHash must equal Proposal.IdentityHash.
func (p InstallParams) Validate() error {
	if p.AppIdentityHash != p.Proposal.IdentityHash {
		return protoerr.ErrAppNotProposed
	}
	return nil
}
