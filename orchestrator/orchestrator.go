// Package orchestrator dispatches an incoming install protocol message (or a
// local initiation request) to the correct role at the correct sequence
// number, and drives the engine to completion by answering each Step with
// the configured host collaborators (spec §2, §4.4-§4.6). One run owns one
// goroutine; blocking host calls (notably Messenger.SendAndWait) realize the
// engine's conceptual suspension points without any cross-call resume state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chanlattice/installproto/engine"
	"github.com/chanlattice/installproto/host"
	"github.com/chanlattice/installproto/protoerr"
	"github.com/chanlattice/installproto/statechannel"
	"github.com/chanlattice/installproto/wire"
)

// Logger is the minimal structured-logging surface the orchestrator needs.
// hostkit/logging's concrete Logger satisfies this.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// Orchestrator owns the host collaborators and the per-channel serialization
// required by spec §5: "exactly one active protocol per multisigAddress".
type Orchestrator struct {
	Signer    host.Signer
	Validator host.Validator
	Messenger host.Messenger
	Store     host.Store
	ChainID   uint32
	Logger    Logger

	mu     sync.Mutex
	locks  map[common.Address]*sync.Mutex
}

// New builds an Orchestrator. logger may be nil, in which case log output is
// discarded.
func New(signer host.Signer, validator host.Validator, messenger host.Messenger, store host.Store, chainID uint32, logger Logger) *Orchestrator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Orchestrator{
		Signer:    signer,
		Validator: validator,
		Messenger: messenger,
		Store:     store,
		ChainID:   chainID,
		Logger:    logger,
		locks:     make(map[common.Address]*sync.Mutex),
	}
}

func (o *Orchestrator) lockFor(multisig common.Address) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	mu, ok := o.locks[multisig]
	if !ok {
		mu = &sync.Mutex{}
		o.locks[multisig] = mu
	}
	return mu
}

// Initiate starts a role-0 (initiator) run for a locally-originated install
// request. This is the entry point an upper-layer propose flow calls after
// producing params and preChannel.
func (o *Orchestrator) Initiate(ctx context.Context, processID string, params statechannel.InstallParams, preChannel statechannel.Channel) error {
	mu := o.lockFor(params.MultisigAddress)
	mu.Lock()
	defer mu.Unlock()

	o.Logger.Info("install: initiating", "processId", processID, "multisig", params.MultisigAddress.Hex())
	m := engine.NewInitiator(processID, o.ChainID, params, preChannel, true)
	return o.run(ctx, m)
}

// Dispatch routes an inbound install protocol envelope to a fresh role-1
// (responder) machine. Only sequence 1 — the initiator's opening message —
// triggers a new responder run in this protocol.
func (o *Orchestrator) Dispatch(ctx context.Context, env wire.Envelope, params statechannel.InstallParams, preChannel statechannel.Channel) error {
	if env.Protocol != wire.ProtocolInstall {
		return fmt.Errorf("orchestrator: not an install message: protocol=%s", env.Protocol)
	}
	if env.Seq != 1 {
		return fmt.Errorf("orchestrator: unexpected sequence %d for install responder dispatch", env.Seq)
	}

	mu := o.lockFor(params.MultisigAddress)
	mu.Lock()
	defer mu.Unlock()

	o.Logger.Info("install: responding", "processId", env.ProcessID, "multisig", params.MultisigAddress.Hex())
	m := engine.NewResponder(env.ProcessID, o.ChainID, params, preChannel, true, env.Custom.Signature)
	return o.run(ctx, m)
}

// run drives m from Start to a terminal StepDone, answering each suspension
// point with the configured host collaborators.
func (o *Orchestrator) run(ctx context.Context, m *engine.Machine) error {
	step, err := m.Start()
	for err == nil {
		switch step.Kind {
		case engine.StepDone:
			if step.Err != nil {
				o.Logger.Warn("install: run failed", "state", m.State().String(), "error", step.Err)
			}
			return step.Err

		case engine.StepValidate:
			reason, verr := o.Validator.ValidateInstall(ctx, step.Validate.Context)
			if verr != nil {
				return fmt.Errorf("orchestrator: validate: %w", verr)
			}
			step, err = m.Advance(engine.Input{Kind: engine.StepValidate, ValidateReason: reason})

		case engine.StepSign:
			sig, serr := o.Signer.Sign(ctx, step.Sign.HashToSign)
			if serr != nil {
				return fmt.Errorf("orchestrator: sign: %w", serr)
			}
			step, err = m.Advance(engine.Input{Kind: engine.StepSign, Signature: sig})

		case engine.StepSend:
			if serr := o.Messenger.Send(ctx, step.Envelope); serr != nil {
				return fmt.Errorf("orchestrator: send: %w", serr)
			}
			step, err = m.Advance(engine.Input{Kind: engine.StepSend})

		case engine.StepSendAndWait:
			reply, serr := o.Messenger.SendAndWait(ctx, step.Envelope)
			if serr != nil {
				if errors.Is(serr, context.DeadlineExceeded) {
					return protoerr.ErrProtocolTimeout
				}
				return fmt.Errorf("orchestrator: send-and-wait: %w", serr)
			}
			step, err = m.Advance(engine.Input{Kind: engine.StepSendAndWait, Reply: reply})

		case engine.StepPersist:
			perr := o.Store.PersistAppInstance(ctx, step.Persist)
			step, err = m.Advance(engine.Input{Kind: engine.StepPersist, PersistErr: perr})
		}
	}
	return err
}
