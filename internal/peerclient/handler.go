package peerclient

import (
	"encoding/json"
	"fmt"

	"github.com/BioHazard786/warpmatch/internal/matchmaking"
	"github.com/BioHazard786/warpmatch/internal/signaling"
)

// Handler routes incoming signaling messages to typed channels.
type Handler struct {
	client *Client

	MatchFound       chan matchmaking.MatchFound
	Offer            chan matchmaking.RelayedDescription
	Answer           chan matchmaking.RelayedDescription
	ICECandidate     chan matchmaking.RelayedCandidate
	PeerDisconnected chan matchmaking.PeerDisconnected
	RoomCreated      chan string
	Error            chan matchmaking.ErrorNotice
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:           client,
		MatchFound:       make(chan matchmaking.MatchFound, 1),
		Offer:            make(chan matchmaking.RelayedDescription, 1),
		Answer:           make(chan matchmaking.RelayedDescription, 1),
		ICECandidate:     make(chan matchmaking.RelayedCandidate, 32),
		PeerDisconnected: make(chan matchmaking.PeerDisconnected, 1),
		RoomCreated:      make(chan string, 1),
		Error:            make(chan matchmaking.ErrorNotice, 4),
	}
}

// Start routes messages until the connection ends, then closes every
// channel. Run it in its own goroutine.
func (h *Handler) Start() {
	defer h.close()

	for msg := range h.client.Incoming() {
		var ok bool
		switch msg.Type {
		case matchmaking.EventMatchFound:
			ok = route(h, msg, h.MatchFound)

		case matchmaking.EventOffer:
			ok = route(h, msg, h.Offer)

		case matchmaking.EventAnswer:
			ok = route(h, msg, h.Answer)

		case matchmaking.EventICECandidate:
			ok = route(h, msg, h.ICECandidate)

		case matchmaking.EventPeerDisconnected:
			ok = route(h, msg, h.PeerDisconnected)

		case matchmaking.EventRoomCreated:
			var p matchmaking.RoomCreated
			if err := decode(msg, &p); err != nil {
				ok = h.emit(err)
				break
			}
			ok = deliver(h, h.RoomCreated, p.RoomID)

		case matchmaking.EventError:
			ok = route(h, msg, h.Error)

		default:
			ok = true
		}
		if !ok {
			return
		}
	}
}

func route[T any](h *Handler, msg *signaling.Message, ch chan T) bool {
	var v T
	if err := decode(msg, &v); err != nil {
		return h.emit(err)
	}
	return deliver(h, ch, v)
}

func deliver[T any](h *Handler, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-h.client.Done():
		return false
	}
}

// emit reports a local decode failure on the Error channel.
func (h *Handler) emit(err error) bool {
	return deliver(h, h.Error, matchmaking.ErrorNotice{
		Code:  matchmaking.CodeInternal,
		Error: err.Error(),
	})
}

func decode(msg *signaling.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("failed to parse %s payload: %w", msg.Type, err)
	}
	return nil
}

func (h *Handler) close() {
	close(h.MatchFound)
	close(h.Offer)
	close(h.Answer)
	close(h.ICECandidate)
	close(h.PeerDisconnected)
	close(h.RoomCreated)
	close(h.Error)
}
