package matchmaking

import "encoding/json"

// Outbound event types.
const (
	EventMatchFound       = "match-found"
	EventOffer            = "offer"
	EventAnswer           = "answer"
	EventICECandidate     = "ice-candidate"
	EventPeerDisconnected = "peer-disconnected"
	EventRoomCreated      = "room-created"
	EventError            = "error"
)

// Outbound is one message the registry wants delivered to client To.
type Outbound struct {
	To      string
	Type    string
	Payload any
}

type MatchFound struct {
	PeerID   string   `json:"peerId"`
	Caller   bool     `json:"caller"`
	PeerTags []string `json:"peerTags"`
}

// RelayedDescription carries an offer or answer. SDP is forwarded verbatim.
type RelayedDescription struct {
	Sender string          `json:"sender"`
	SDP    json.RawMessage `json:"sdp"`
}

// RelayedCandidate carries an ICE candidate, forwarded verbatim.
type RelayedCandidate struct {
	Sender    string          `json:"sender"`
	Candidate json.RawMessage `json:"candidate"`
}

type PeerDisconnected struct {
	PeerID string `json:"peerId"`
}

type RoomCreated struct {
	RoomID string `json:"roomId"`
}

// ErrorNotice reports a rejected request back to its sender.
type ErrorNotice struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
