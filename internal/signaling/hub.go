package signaling

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BioHazard786/warpmatch/internal/matchmaking"
	"github.com/BioHazard786/warpmatch/internal/metrics"
)

// ErrHubStopped is returned by hub calls made after Run has returned.
var ErrHubStopped = errors.New("signaling hub stopped")

// Hub is the central brain of the signaling server.
//
// Run is the single goroutine that owns the matchmaking registry and the
// connection table; every registration, request and disconnect is applied
// there one at a time.
type Hub struct {
	registry *matchmaking.Registry
	metrics  *metrics.Collector
	logger   *slog.Logger

	// clients maps connection ids to live connections.
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan frame
	stats      chan chan matchmaking.Stats

	// done is closed when Run returns.
	done chan struct{}
}

// NewHub creates a Hub around registry. A nil logger uses slog.Default()
// and a nil collector gets a private one.
func NewHub(registry *matchmaking.Registry, collector *metrics.Collector, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.New()
	}
	return &Hub{
		registry:   registry,
		metrics:    collector,
		logger:     logger,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan frame, 64),
		stats:      make(chan chan matchmaking.Stats),
		done:       make(chan struct{}),
	}
}

// Register hands a new connection to the hub. It reports false once the hub
// has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister tells the hub the connection is gone. Safe to call more than
// once and after the hub stopped.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) submit(f frame) bool {
	select {
	case h.inbound <- f:
		return true
	case <-h.done:
		return false
	}
}

// Stats returns a registry snapshot taken on the hub goroutine.
func (h *Hub) Stats(ctx context.Context) (matchmaking.Stats, error) {
	reply := make(chan matchmaking.Stats, 1)
	select {
	case h.stats <- reply:
	case <-h.done:
		return matchmaking.Stats{}, ErrHubStopped
	case <-ctx.Done():
		return matchmaking.Stats{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return matchmaking.Stats{}, ctx.Err()
	}
}

// Run processes hub events until ctx is cancelled, then closes every
// connection's send queue.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case f := <-h.inbound:
			h.handleFrame(f)

		case reply := <-h.stats:
			reply <- h.registry.Stats()
		}

		h.observe()
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	h.logger.Info("signaling hub stopped")
}

func (h *Hub) handleRegister(c *Client) {
	if err := h.registry.Register(c.ID); err != nil {
		h.logger.Error("client registration failed", append(c.logAttrs(), "error", err)...)
		close(c.send)
		return
	}
	h.clients[c.ID] = c
	h.metrics.Connected()
	h.logger.Info("client connected", c.logAttrs()...)
}

func (h *Hub) handleUnregister(c *Client) {
	if h.clients[c.ID] != c {
		return
	}
	h.logger.Info("client disconnected", c.logAttrs()...)
	if h.paired(c.ID) {
		h.metrics.Terminated(false)
	}

	out, _ := h.registry.Dispatch(c.ID, matchmaking.Disconnect{})
	h.remove(c)
	h.deliver(out)
}

func (h *Hub) handleFrame(f frame) {
	c := f.client
	if h.clients[c.ID] != c {
		// evicted while the frame was queued
		return
	}

	in, err := decodeInbound(f.data)
	if err != nil {
		h.reject(c, err)
		return
	}
	if _, ok := in.(matchmaking.EndCall); ok && h.paired(c.ID) {
		h.metrics.Terminated(true)
	}

	out, err := h.registry.Dispatch(c.ID, in)
	if err != nil {
		h.handleDispatchError(c, in, err)
	}
	h.deliver(out)
}

func (h *Hub) handleDispatchError(c *Client, in matchmaking.Inbound, err error) {
	switch {
	case errors.Is(err, matchmaking.ErrInvalidRequest):
		h.reject(c, err)

	case errors.Is(err, matchmaking.ErrPreconditionFailed):
		switch in.(type) {
		case matchmaking.SendICECandidate:
			// candidates trickling in after the peer left are routine
			h.metrics.Dropped(metrics.DropNotPaired)
			h.logger.Debug("ice candidate dropped", "client", c.ID, "error", err)
		case matchmaking.SendOffer, matchmaking.SendAnswer:
			h.metrics.Dropped(metrics.DropNotPaired)
			h.logger.Warn("signal dropped", "client", c.ID, "error", err)
		default:
			h.notify(c, err)
		}

	default:
		h.logger.Debug("request ignored", "client", c.ID, "error", err)
	}
}

// reject reports an invalid request to its sender.
func (h *Hub) reject(c *Client, err error) {
	h.metrics.InvalidRequest()
	h.logger.Warn("invalid request", "client", c.ID, "error", err)
	h.notify(c, err)
}

func (h *Hub) notify(c *Client, err error) {
	h.deliver([]matchmaking.Outbound{{
		To:   c.ID,
		Type: matchmaking.EventError,
		Payload: matchmaking.ErrorNotice{
			Code:  matchmaking.Code(err),
			Error: err.Error(),
		},
	}})
}

// deliver enqueues each message on its recipient's send queue. A recipient
// whose queue is full is evicted, and the notices that produces are
// delivered in turn.
func (h *Hub) deliver(out []matchmaking.Outbound) {
	queue := out
	for len(queue) > 0 {
		o := queue[0]
		queue = queue[1:]

		c, ok := h.clients[o.To]
		if !ok {
			h.metrics.Dropped(metrics.DropNoRecipient)
			continue
		}

		msg, err := encodeOutbound(o)
		if err != nil {
			h.metrics.Dropped(metrics.DropEncodeFailure)
			h.logger.Error("outbound encode failed", "client", o.To, "error", err)
			continue
		}

		select {
		case c.send <- msg:
			h.count(o)
		default:
			queue = append(queue, h.evict(c)...)
		}
	}
}

func (h *Hub) count(o matchmaking.Outbound) {
	switch o.Type {
	case matchmaking.EventMatchFound:
		if mf, ok := o.Payload.(matchmaking.MatchFound); ok && mf.Caller {
			h.metrics.Matched()
		}
	case matchmaking.EventOffer, matchmaking.EventAnswer, matchmaking.EventICECandidate:
		h.metrics.Relayed(o.Type)
	}
}

// evict drops a connection whose send queue is full. It counts as an
// unintentional disconnect.
func (h *Hub) evict(c *Client) []matchmaking.Outbound {
	h.logger.Warn("evicting slow client", c.logAttrs()...)
	h.metrics.Dropped(metrics.DropSlowConsumer)
	h.metrics.Evicted()
	if h.paired(c.ID) {
		h.metrics.Terminated(false)
	}

	out, _ := h.registry.Dispatch(c.ID, matchmaking.Disconnect{})
	h.remove(c)
	return out
}

// paired reports whether id is in a session, i.e. whether terminating it
// now ends one.
func (h *Hub) paired(id string) bool {
	c, err := h.registry.Get(id)
	return err == nil && c.State == matchmaking.StatePaired
}

func (h *Hub) remove(c *Client) {
	delete(h.clients, c.ID)
	close(c.send)
}

func (h *Hub) observe() {
	counts := h.registry.Counts()
	h.metrics.SetClients(counts.Idle, counts.Waiting, counts.Paired)
}
