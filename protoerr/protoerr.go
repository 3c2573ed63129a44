// Package protoerr defines the typed error taxonomy shared by the install
// protocol's state channel algebra, engine, and host boundary. Errors here are
// compared with errors.Is/errors.As, never by matching message prose.
package protoerr

import (
	"errors"
	"fmt"
)

// Sentinel errors identifying a class of failure. Wrap with errors.As to reach
// the structured detail (e.g. *InsufficientFundsError) where one exists.
var (
	// ErrNoStateChannel means the pre-protocol channel required to run the
	// install protocol was not supplied. Fatal for the run.
	ErrNoStateChannel = errors.New("install: no pre-protocol state channel")

	// ErrInsufficientFunds means a depositing owner's free balance is below
	// the deposit it must fund. See InsufficientFundsError for detail.
	ErrInsufficientFunds = errors.New("install: insufficient free balance funds")

	// ErrHostRejected means OP_VALIDATE returned a non-empty reason. See
	// HostRejectedError for the reason string.
	ErrHostRejected = errors.New("install: host rejected proposed install")

	// ErrInvalidCounterpartySignature means a countersignature did not
	// recover to the expected signer for the claimed hash.
	ErrInvalidCounterpartySignature = errors.New("install: invalid counterparty signature")

	// ErrAppNotProposed means proposal.IdentityHash was not present in
	// proposedAppInstances at the time installApp ran.
	ErrAppNotProposed = errors.New("install: app not in proposedAppInstances")

	// ErrProtocolTimeout means the host's wall-clock deadline on
	// IO_SEND_AND_WAIT elapsed before a reply arrived. Not fatal to the
	// channel; the orchestrator may retry with a fresh process ID.
	ErrProtocolTimeout = errors.New("install: protocol timed out waiting for reply")

	// ErrPersistenceFailed means PERSIST_APP_INSTANCE reported a store
	// failure. The post-channel was never committed.
	ErrPersistenceFailed = errors.New("install: persistence of app instance failed")

	// ErrNoInstalledApps replaces the string-matched
	// "There are no installed AppInstances in this StateChannel" case from
	// the original implementation with a typed variant (see spec Open
	// Question). Callers that previously treated that error as sequence
	// number 0 should match this sentinel instead.
	ErrNoInstalledApps = errors.New("statechannel: no installed app instances")
)

// InsufficientFundsError carries the detail behind ErrInsufficientFunds.
type InsufficientFundsError struct {
	Party string
	Asset string
	Have  string
	Need  string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: party %s asset %s have %s need %s", e.Party, e.Asset, e.Have, e.Need)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// HostRejectedError carries the reason string a host gave when rejecting an
// OP_VALIDATE request.
type HostRejectedError struct {
	Reason string
}

func (e *HostRejectedError) Error() string {
	return fmt.Sprintf("host rejected install: %s", e.Reason)
}

func (e *HostRejectedError) Unwrap() error { return ErrHostRejected }
