package matchmaking

import "encoding/json"

// SignalKind is one of the three negotiation message kinds the relay forwards.
type SignalKind string

const (
	KindOffer        SignalKind = "offer"
	KindAnswer       SignalKind = "answer"
	KindICECandidate SignalKind = "ice-candidate"
)

// Relay forwards body from id to its current peer, stamped with id as the
// sender. The body is never inspected.
//
// A sender that is not paired gets ErrPreconditionFailed and nothing is
// forwarded; callers decide how loudly to report it.
func (r *Registry) Relay(id string, kind SignalKind, body json.RawMessage) ([]Outbound, error) {
	op := "relay " + string(kind)

	c, ok := r.clients[id]
	if !ok {
		return nil, newError(op, id, ErrNotFound, "")
	}
	if c.State != StatePaired || c.Peer == "" {
		return nil, newError(op, id, ErrPreconditionFailed, "sender is "+c.State.String())
	}
	if _, ok := r.clients[c.Peer]; !ok {
		return nil, newError(op, id, ErrNotFound, "peer "+c.Peer+" is gone")
	}

	msg := Outbound{To: c.Peer}
	switch kind {
	case KindOffer, KindAnswer:
		msg.Type = string(kind)
		msg.Payload = RelayedDescription{Sender: id, SDP: body}
	case KindICECandidate:
		msg.Type = EventICECandidate
		msg.Payload = RelayedCandidate{Sender: id, Candidate: body}
	default:
		return nil, newError(op, id, ErrInvalidRequest, "unknown signal kind")
	}
	return []Outbound{msg}, nil
}
