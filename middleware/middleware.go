// Package middleware defines the typed requests the Protocol Engine emits and
// the typed responses the host must supply — the contract described in spec
// §6. The engine never calls a host method directly; it only produces these
// values, so a host implementation (and a test double) only ever has to
// satisfy this package's shapes.
package middleware

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/chanlattice/installproto/commitment"
	"github.com/chanlattice/installproto/sign"
	"github.com/chanlattice/installproto/statechannel"
	"github.com/chanlattice/installproto/wire"
)

// Role identifies which side of the install exchange an engine instance is
// playing.
type Role uint8

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleResponder {
		return "responder"
	}
	return "initiator"
}

// ValidateContext is the payload of an OP_VALIDATE request.
type ValidateContext struct {
	Params       statechannel.InstallParams
	StateChannel statechannel.Channel
	AppInstance  statechannel.AppInstance
	Role         Role
}

// ValidateRequest is OP_VALIDATE: the host returns "" to accept, or a
// non-empty reason to reject.
type ValidateRequest struct {
	Protocol wire.Protocol
	Context  ValidateContext
}

// SignRequest is OP_SIGN: sign HashToSign and return a recoverable signature.
type SignRequest struct {
	HashToSign common.Hash
}

// PersistAppType enumerates the kinds of persistence request the engine can
// emit. The install engine only ever uses CreateInstance; the others exist so
// the same Store interface serves the sibling protocols (update, uninstall,
// propose-rejection) that this core does not implement.
type PersistAppType uint8

const (
	PersistCreateInstance PersistAppType = iota
	PersistUpdateInstance
	PersistRemoveInstance
	PersistReject
)

// PersistRequest is PERSIST_APP_INSTANCE.
type PersistRequest struct {
	Type        PersistAppType
	Channel     statechannel.Channel
	AppInstance statechannel.AppInstance
	Commitment  *commitment.SetStateCommitment
}

// SignResponse is the host's answer to a SignRequest.
type SignResponse struct {
	Signature sign.Signature
}
