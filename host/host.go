// Package host declares the interfaces the install protocol's external
// collaborators must satisfy: signing, host-side validation, messaging, and
// persistence. The engine and orchestrator depend only on these interfaces
// (spec §1's "external collaborators, referenced only through their
// interfaces"); concrete implementations live under hostkit/.
package host

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chanlattice/installproto/middleware"
	"github.com/chanlattice/installproto/sign"
	"github.com/chanlattice/installproto/wire"
)

// Signer answers OP_SIGN: produce a recoverable signature over a commitment
// hash. The signing key is the free-balance key, which may differ from the
// multisig owner key for this channel (spec §4.4 step 6).
type Signer interface {
	Sign(ctx context.Context, hash common.Hash) (sign.Signature, error)
}

// Validator answers OP_VALIDATE: accept (empty string) or reject (non-empty
// reason) a proposed install in the given role.
type Validator interface {
	ValidateInstall(ctx context.Context, vctx middleware.ValidateContext) (reason string, err error)
}

// Messenger answers IO_SEND and IO_SEND_AND_WAIT.
type Messenger interface {
	Send(ctx context.Context, env wire.Envelope) error
	SendAndWait(ctx context.Context, env wire.Envelope) (wire.Envelope, error)
}

// Store answers PERSIST_APP_INSTANCE.
type Store interface {
	PersistAppInstance(ctx context.Context, req middleware.PersistRequest) error
}
