package matchmaking

import "encoding/json"

// Inbound is the closed set of requests a client can make.
type Inbound interface {
	inbound()
}

type RequestMatch struct {
	Tags []string
}

type CancelMatch struct{}

type SendOffer struct {
	SDP json.RawMessage
}

type SendAnswer struct {
	SDP json.RawMessage
}

type SendICECandidate struct {
	Candidate json.RawMessage
}

type EndCall struct{}

// CreateRoom asks for a fresh room token (room mode only).
type CreateRoom struct{}

// Disconnect is the transport going away.
type Disconnect struct{}

func (RequestMatch) inbound()     {}
func (CancelMatch) inbound()      {}
func (SendOffer) inbound()        {}
func (SendAnswer) inbound()       {}
func (SendICECandidate) inbound() {}
func (EndCall) inbound()          {}
func (CreateRoom) inbound()       {}
func (Disconnect) inbound()       {}

// Dispatch applies one inbound request from sender and returns the messages
// to deliver. A returned error never leaves the registry half-updated.
func (r *Registry) Dispatch(sender string, in Inbound) ([]Outbound, error) {
	switch m := in.(type) {
	case RequestMatch:
		return r.FindMatch(sender, m.Tags)
	case CancelMatch:
		return nil, r.CancelSearch(sender)
	case SendOffer:
		return r.Relay(sender, KindOffer, m.SDP)
	case SendAnswer:
		return r.Relay(sender, KindAnswer, m.SDP)
	case SendICECandidate:
		return r.Relay(sender, KindICECandidate, m.Candidate)
	case EndCall:
		return r.HandleTermination(sender, true), nil
	case CreateRoom:
		return r.CreateRoom(sender)
	case Disconnect:
		out := r.HandleTermination(sender, false)
		return append(out, r.Unregister(sender)...), nil
	}
	return nil, newError("dispatch", sender, ErrInvalidRequest, "unsupported request")
}
