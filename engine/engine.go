// Package engine implements the Install Protocol's suspendable, role-
// parameterized state machine (spec §4.4-§4.6). Rather than a generator
// yielding opcode tuples (the TypeScript source's shape), it is an explicit
// state machine: Advance(Input) returns the next Step to hand to a host, per
// the design note in spec §9(a). The engine never calls a host method or
// touches the network/store itself — its entire observable behavior is its
// stream of Steps and its terminal error, if any.
package engine

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chanlattice/installproto/commitment"
	"github.com/chanlattice/installproto/middleware"
	"github.com/chanlattice/installproto/protoerr"
	"github.com/chanlattice/installproto/sign"
	"github.com/chanlattice/installproto/statechannel"
	"github.com/chanlattice/installproto/wire"
)

// State names the engine's last fully-completed milestone. The two roles
// traverse different paths through these names (spec §4.6):
//
//	initiator: Init -> Validated -> Signed -> Waiting -> Verified -> Persisted -> Done
//	responder: Init -> Validated -> Verified -> Signed -> Persisted -> Sent    -> Done
type State uint8

const (
	StateInit State = iota
	StateValidated
	StateVerified
	StateSigned
	StateWaiting
	StatePersisted
	StateSent
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateValidated:
		return "Validated"
	case StateVerified:
		return "Verified"
	case StateSigned:
		return "Signed"
	case StateWaiting:
		return "Waiting"
	case StatePersisted:
		return "Persisted"
	case StateSent:
		return "Sent"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// StepKind tags which middleware opcode a Step carries.
type StepKind uint8

const (
	StepValidate StepKind = iota
	StepSign
	StepSend
	StepSendAndWait
	StepPersist
	StepDone
)

// Step is the engine's suspension point: exactly one of its fields is
// meaningful, selected by Kind.
type Step struct {
	Kind     StepKind
	Validate middleware.ValidateRequest
	Sign     middleware.SignRequest
	Envelope wire.Envelope
	Persist  middleware.PersistRequest
	Err      error // set only when Kind == StepDone and the run failed
}

// Input resumes the engine after a host answers the Step most recently
// returned. Only the field matching Kind is read.
type Input struct {
	Kind StepKind

	// ValidateReason is the OP_VALIDATE response: "" to accept, else the
	// rejection reason.
	ValidateReason string
	// Signature is the OP_SIGN response.
	Signature sign.Signature
	// Reply is the inbound message IO_SEND_AND_WAIT resumes with.
	Reply wire.Envelope
	// PersistErr is non-nil if PERSIST_APP_INSTANCE failed.
	PersistErr error
}

// Machine is one install protocol run for one role.
type Machine struct {
	role      middleware.Role
	processID string
	chainID   uint32
	params    statechannel.InstallParams

	haveChannel bool
	preChannel  statechannel.Channel

	// counterpartySig is the signature the responder received on the
	// inbound seq=1 message before this Machine was ever constructed (the
	// orchestrator extracts it from the envelope that spawned the engine).
	// nil for an initiator machine.
	counterpartySig *sign.Signature

	milestone State
	pending   StepKind

	postChannel statechannel.Channel
	newApp      statechannel.AppInstance
	sc          *commitment.SetStateCommitment
	hash        common.Hash
	mySig       sign.Signature
}

// NewInitiator constructs a role-0 machine. preChannel must be the
// pre-protocol state channel; its absence is represented by passing
// haveChannel=false, which fails fast with protoerr.ErrNoStateChannel.
func NewInitiator(processID string, chainID uint32, params statechannel.InstallParams, preChannel statechannel.Channel, haveChannel bool) *Machine {
	return &Machine{
		role:        middleware.RoleInitiator,
		processID:   processID,
		chainID:     chainID,
		params:      params,
		haveChannel: haveChannel,
		preChannel:  preChannel,
		milestone:   StateInit,
	}
}

// NewResponder constructs a role-1 machine. counterpartySig is the
// initiator's signature, already extracted from the inbound seq=1 envelope.
func NewResponder(processID string, chainID uint32, params statechannel.InstallParams, preChannel statechannel.Channel, haveChannel bool, counterpartySig sign.Signature) *Machine {
	return &Machine{
		role:            middleware.RoleResponder,
		processID:       processID,
		chainID:         chainID,
		params:          params,
		haveChannel:     haveChannel,
		preChannel:      preChannel,
		counterpartySig: &counterpartySig,
		milestone:       StateInit,
	}
}

// State returns the engine's last completed milestone.
func (m *Machine) State() State { return m.milestone }

func doneErr(err error) Step { return Step{Kind: StepDone, Err: err} }

// Start runs the engine's pure pre-flight (spec §4.4/§4.5 steps 1-3) and
// returns the first suspension point: OP_VALIDATE. Errors surfaced here
// (NoStateChannel, InsufficientFunds, AppNotProposed) are local and never
// mutate preChannel, nor do they emit any signature or persistence.
func (m *Machine) Start() (Step, error) {
	if !m.haveChannel {
		return doneErr(protoerr.ErrNoStateChannel), protoerr.ErrNoStateChannel
	}
	if err := m.params.Validate(); err != nil {
		return doneErr(err), err
	}

	decrement := statechannel.ComputeDecrement(m.preChannel, m.params.Proposal)
	if err := m.preChannel.CheckSufficiency(decrement); err != nil {
		return doneErr(err), err
	}

	post, _, err := m.preChannel.Install(m.params.Proposal)
	if err != nil {
		return doneErr(err), err
	}
	m.postChannel = post
	m.newApp = post.AppInstances[m.params.Proposal.IdentityHash]

	m.pending = StepValidate
	return Step{
		Kind: StepValidate,
		Validate: middleware.ValidateRequest{
			Protocol: wire.ProtocolInstall,
			Context: middleware.ValidateContext{
				Params:       m.params,
				StateChannel: m.preChannel,
				AppInstance:  m.newApp,
				Role:         m.role,
			},
		},
	}, nil
}

// Advance resumes the engine with the host's answer to the Step it most
// recently returned. in.Kind must match the pending step.
func (m *Machine) Advance(in Input) (Step, error) {
	if m.pending != in.Kind {
		err := fmt.Errorf("engine: expected input for step %d, got %d", m.pending, in.Kind)
		return doneErr(err), err
	}

	switch in.Kind {
	case StepValidate:
		return m.resumeValidate(in)
	case StepSign:
		return m.resumeSign(in)
	case StepSendAndWait:
		return m.resumeSendAndWait(in)
	case StepPersist:
		return m.resumePersist(in)
	case StepSend:
		return m.resumeSend()
	default:
		err := errors.New("engine: run already terminated")
		return doneErr(err), err
	}
}

func (m *Machine) resumeValidate(in Input) (Step, error) {
	if in.ValidateReason != "" {
		err := &protoerr.HostRejectedError{Reason: in.ValidateReason}
		m.pending = StepDone
		return doneErr(err), err
	}
	m.milestone = StateValidated

	sc, err := commitment.NewSetStateCommitment(m.postChannel, m.chainID)
	if err != nil {
		m.pending = StepDone
		return doneErr(err), err
	}
	hash, err := sc.HashToSign()
	if err != nil {
		m.pending = StepDone
		return doneErr(err), err
	}
	m.sc, m.hash = sc, hash

	if m.role == middleware.RoleResponder {
		// Verify the initiator's signature before ever signing ourselves
		// (spec §4.5 step 6) — we must not countersign a commitment the
		// counterparty did not sign first.
		ok, err := sign.Verify(hash, *m.counterpartySig, m.params.InitiatorIdentifier.Address())
		if err != nil || !ok {
			m.pending = StepDone
			return doneErr(protoerr.ErrInvalidCounterpartySignature), protoerr.ErrInvalidCounterpartySignature
		}
		m.milestone = StateVerified
	}

	m.pending = StepSign
	return Step{Kind: StepSign, Sign: middleware.SignRequest{HashToSign: hash}}, nil
}

func (m *Machine) resumeSign(in Input) (Step, error) {
	m.mySig = in.Signature
	m.milestone = StateSigned

	if m.role == middleware.RoleInitiator {
		m.milestone = StateWaiting
		m.pending = StepSendAndWait
		env := wire.Envelope{
			ProcessID: m.processID,
			Protocol:  wire.ProtocolInstall,
			To:        m.params.ResponderIdentifier.String(),
			Seq:       1,
			Custom:    wire.CustomData{Signature: m.mySig},
		}
		return Step{Kind: StepSendAndWait, Envelope: env}, nil
	}

	// Responder: counterparty signature already verified in resumeValidate;
	// aggregate now and persist.
	owners := [2]common.Address{m.preChannel.MultisigOwners[0].Address(), m.preChannel.MultisigOwners[1].Address()}
	if err := m.sc.AddSignatures(m.hash, owners, *m.counterpartySig, m.mySig); err != nil {
		m.pending = StepDone
		return doneErr(protoerr.ErrInvalidCounterpartySignature), protoerr.ErrInvalidCounterpartySignature
	}
	m.pending = StepPersist
	return Step{Kind: StepPersist, Persist: m.persistRequest()}, nil
}

func (m *Machine) resumeSendAndWait(in Input) (Step, error) {
	theirSig := in.Reply.Custom.Signature
	ok, err := sign.Verify(m.hash, theirSig, m.params.ResponderIdentifier.Address())
	if err != nil || !ok {
		m.pending = StepDone
		return doneErr(protoerr.ErrInvalidCounterpartySignature), protoerr.ErrInvalidCounterpartySignature
	}
	m.milestone = StateVerified

	owners := [2]common.Address{m.preChannel.MultisigOwners[0].Address(), m.preChannel.MultisigOwners[1].Address()}
	if err := m.sc.AddSignatures(m.hash, owners, m.mySig, theirSig); err != nil {
		m.pending = StepDone
		return doneErr(protoerr.ErrInvalidCounterpartySignature), protoerr.ErrInvalidCounterpartySignature
	}

	m.pending = StepPersist
	return Step{Kind: StepPersist, Persist: m.persistRequest()}, nil
}

func (m *Machine) resumePersist(in Input) (Step, error) {
	if in.PersistErr != nil {
		m.pending = StepDone
		return doneErr(protoerr.ErrPersistenceFailed), protoerr.ErrPersistenceFailed
	}
	m.milestone = StatePersisted

	if m.role == middleware.RoleInitiator {
		m.milestone = StateDone
		m.pending = StepDone
		return Step{Kind: StepDone}, nil
	}

	m.pending = StepSend
	env := wire.Envelope{
		ProcessID: m.processID,
		Protocol:  wire.ProtocolInstall,
		To:        m.params.InitiatorIdentifier.String(),
		Seq:       wire.UnassignedSeqNo,
		Custom:    wire.CustomData{Signature: m.mySig},
	}
	return Step{Kind: StepSend, Envelope: env}, nil
}

func (m *Machine) resumeSend() (Step, error) {
	m.milestone = StateSent
	m.milestone = StateDone
	m.pending = StepDone
	return Step{Kind: StepDone}, nil
}

func (m *Machine) persistRequest() middleware.PersistRequest {
	return middleware.PersistRequest{
		Type:        middleware.PersistCreateInstance,
		Channel:     m.postChannel,
		AppInstance: m.newApp,
		Commitment:  m.sc,
	}
}
