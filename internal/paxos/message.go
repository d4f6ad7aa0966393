// Package paxos implements the core of a multi-decree Paxos protocol:
// the message codec and the four role state machines (client, proposer,
// acceptor, learner). The package is transport-free; roles consume
// decoded messages and return the envelopes they want broadcast.
package paxos

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Phase identifies the protocol step a message belongs to. The values
// are the wire tags.
type Phase string

const (
	PhaseRequest  Phase = "REQUEST"
	Phase1A       Phase = "PHASE_1A"
	Phase1B       Phase = "PHASE_1B"
	Phase2A       Phase = "PHASE_2A"
	Phase2B       Phase = "PHASE_2B"
	PhaseDecision Phase = "DECISION"
)

// Group names a role's multicast group.
type Group string

const (
	GroupClients   Group = "clients"
	GroupProposers Group = "proposers"
	GroupAcceptors Group = "acceptors"
	GroupLearners  Group = "learners"
)

// Per-phase payloads. A v_rnd of 0 means no value has been accepted;
// v_val is only meaningful when v_rnd > 0. 1B and 2B carry the sending
// acceptor's id so proposers can count one vote per acceptor.

type Request struct {
	V string `json:"v"`
}

type Prepare struct {
	CRnd uint64 `json:"c_rnd"`
}

type Promise struct {
	Rnd      uint64 `json:"rnd"`
	VRnd     uint64 `json:"v_rnd"`
	VVal     string `json:"v_val"`
	Acceptor int    `json:"acceptor"`
}

type Accept struct {
	CRnd uint64 `json:"c_rnd"`
	CVal string `json:"c_val"`
}

type Accepted struct {
	VRnd     uint64 `json:"v_rnd"`
	VVal     string `json:"v_val"`
	Acceptor int    `json:"acceptor"`
}

type Decision struct {
	VVal string `json:"v_val"`
}

// PhaseData is the tagged payload of a Message.
type PhaseData interface {
	Phase() Phase
}

func (Request) Phase() Phase  { return PhaseRequest }
func (Prepare) Phase() Phase  { return Phase1A }
func (Promise) Phase() Phase  { return Phase1B }
func (Accept) Phase() Phase   { return Phase2A }
func (Accepted) Phase() Phase { return Phase2B }
func (Decision) Phase() Phase { return PhaseDecision }

// Message is one protocol frame: the instance it concerns, the phase,
// and the phase's payload.
type Message struct {
	Instance uint64
	Data     PhaseData
}

// Envelope pairs an outbound message with the group it is addressed to.
type Envelope struct {
	Group Group
	Msg   Message
}

// Handler is implemented by each role: it consumes one decoded message
// and returns the envelopes to broadcast in response. Messages a role
// does not expect are dropped by returning nil.
type Handler interface {
	Handle(m Message) []Envelope
}

// ErrUnknownPhase is returned by Decode for frames whose phase this
// implementation does not speak. Callers drop such frames.
var ErrUnknownPhase = errors.New("paxos: unknown phase")

type wireMessage struct {
	Instance uint64          `json:"instance"`
	Phase    Phase           `json:"phase"`
	Data     json.RawMessage `json:"data"`
}

// Encode serializes m as a single JSON frame.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m.Data)
	if err != nil {
		return nil, errors.Wrap(err, "encoding payload")
	}
	b, err := json.Marshal(wireMessage{
		Instance: m.Instance,
		Phase:    m.Data.Phase(),
		Data:     data,
	})
	return b, errors.Wrap(err, "encoding message")
}

// Decode parses a frame produced by Encode. Unknown phases yield
// ErrUnknownPhase.
func Decode(b []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return Message{}, errors.Wrap(err, "decoding message")
	}

	var data PhaseData
	switch w.Phase {
	case PhaseRequest:
		data = &Request{}
	case Phase1A:
		data = &Prepare{}
	case Phase1B:
		data = &Promise{}
	case Phase2A:
		data = &Accept{}
	case Phase2B:
		data = &Accepted{}
	case PhaseDecision:
		data = &Decision{}
	default:
		return Message{}, errors.Wrapf(ErrUnknownPhase, "%q", w.Phase)
	}
	if err := json.Unmarshal(w.Data, data); err != nil {
		return Message{}, errors.Wrapf(err, "decoding %s payload", w.Phase)
	}

	m := Message{Instance: w.Instance}
	switch d := data.(type) {
	case *Request:
		m.Data = *d
	case *Prepare:
		m.Data = *d
	case *Promise:
		m.Data = *d
	case *Accept:
		m.Data = *d
	case *Accepted:
		m.Data = *d
	case *Decision:
		m.Data = *d
	}
	return m, nil
}
