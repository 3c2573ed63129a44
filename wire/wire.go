// Package wire defines the install protocol's on-the-wire message shape: a
// fielded envelope carrying a process id, routing info, and protocol-specific
// custom data. Binary fields (signatures, hashes) are 0x-prefixed lowercase
// hex, following go-ethereum's hexutil convention, the same one the teacher
// clearnode uses for every hex-encoded field in its RPC payloads.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/chanlattice/installproto/sign"
)

// Protocol tags the kind of run an Envelope belongs to. The install engine
// only ever emits/consumes ProtocolInstall, but the tag lets a host's router
// dispatch other protocols (update, uninstall, take-action, propose) through
// the same transport without this package knowing about them.
type Protocol string

const ProtocolInstall Protocol = "install"

// UnassignedSeqNo is the sentinel sequence number for a message that has not
// yet been assigned a position in the protocol's exchange (e.g. the
// responder's single reply, which needs no further response).
const UnassignedSeqNo int64 = -1

// Envelope is the wire format for a single protocol message: ProtocolMessageData
// in the spec.
type Envelope struct {
	ProcessID string `json:"processId"`
	Protocol  Protocol `json:"protocol"`
	// Params is protocol-specific and may be omitted after sequence 0; it is
	// carried as raw JSON so that a router can dispatch on Protocol before
	// deciding how to decode it.
	Params json.RawMessage `json:"params,omitempty"`
	To     string          `json:"to"`
	Seq    int64           `json:"seq"`
	Custom CustomData      `json:"customData"`
}

// CustomData is the install protocol's payload: a single signature over the
// free-balance commitment hash. Fields this version of the protocol does not
// know about are preserved verbatim across decode/encode so that a newer peer
// extending the protocol does not lose data talking to an older one.
type CustomData struct {
	Signature sign.Signature `json:"signature"`

	extra map[string]json.RawMessage
}

func (c CustomData) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.extra)+1)
	for k, v := range c.extra {
		out[k] = v
	}
	sigJSON, err := json.Marshal(c.Signature)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal signature: %w", err)
	}
	out["signature"] = sigJSON
	return json.Marshal(out)
}

func (c *CustomData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("wire: customData is not an object: %w", err)
	}
	if sigRaw, ok := raw["signature"]; ok {
		if err := json.Unmarshal(sigRaw, &c.Signature); err != nil {
			return fmt.Errorf("wire: invalid signature field: %w", err)
		}
		delete(raw, "signature")
	}
	c.extra = raw
	return nil
}
