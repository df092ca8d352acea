package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/BioHazard786/warpmatch/internal/matchmaking"
)

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound message types. Outbound types are the matchmaking Event constants.
const (
	TypeRequestMatch = "request-match"
	TypeCancelMatch  = "cancel-match"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeEndCall      = "end-call"
	TypeCreateRoom   = "create-room"
)

// frame is one raw websocket message and the client that sent it.
type frame struct {
	client *Client
	data   []byte
}

type requestMatchPayload struct {
	Tags []string `json:"tags"`
}

type descriptionPayload struct {
	SDP json.RawMessage `json:"sdp"`
}

type candidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
}

// decodeInbound parses a client frame into a matchmaking request. Every
// failure wraps matchmaking.ErrInvalidRequest.
func decodeInbound(data []byte) (matchmaking.Inbound, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: malformed message: %v", matchmaking.ErrInvalidRequest, err)
	}

	switch msg.Type {
	case TypeRequestMatch:
		var p requestMatchPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		return matchmaking.RequestMatch{Tags: p.Tags}, nil

	case TypeCancelMatch:
		return matchmaking.CancelMatch{}, nil

	case TypeOffer, TypeAnswer:
		var p descriptionPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		if msg.Type == TypeOffer {
			return matchmaking.SendOffer{SDP: p.SDP}, nil
		}
		return matchmaking.SendAnswer{SDP: p.SDP}, nil

	case TypeICECandidate:
		var p candidatePayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		return matchmaking.SendICECandidate{Candidate: p.Candidate}, nil

	case TypeEndCall:
		return matchmaking.EndCall{}, nil

	case TypeCreateRoom:
		return matchmaking.CreateRoom{}, nil

	case "":
		return nil, fmt.Errorf("%w: missing message type", matchmaking.ErrInvalidRequest)
	}
	return nil, fmt.Errorf("%w: unknown message type %q", matchmaking.ErrInvalidRequest, msg.Type)
}

func decodePayload(msg Message, v any) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%w: bad %s payload: %v", matchmaking.ErrInvalidRequest, msg.Type, err)
	}
	return nil
}

// encodeOutbound turns a registry message into a wire message.
func encodeOutbound(o matchmaking.Outbound) (*Message, error) {
	msg := &Message{Type: o.Type}
	if o.Payload != nil {
		payload, err := json.Marshal(o.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", o.Type, err)
		}
		msg.Payload = payload
	}
	return msg, nil
}
