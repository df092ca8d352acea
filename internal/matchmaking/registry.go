package matchmaking

import (
	"fmt"
	"log/slog"
)

// Mode selects the matching key scheme.
type Mode string

const (
	// ModeInterest pairs clients sharing any interest tag.
	ModeInterest Mode = "interest"

	// ModeRoom pairs the two clients that request the same room token.
	ModeRoom Mode = "room"
)

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeInterest, ModeRoom:
		return Mode(s), nil
	case "":
		return ModeInterest, nil
	}
	return "", fmt.Errorf("unknown match mode %q (want %q or %q)", s, ModeInterest, ModeRoom)
}

const (
	DefaultMaxTags      = 16
	DefaultMaxTagLength = 64
)

// Options configures a Registry.
type Options struct {
	Mode         Mode
	MaxTags      int
	MaxTagLength int

	// Logger receives lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Registry is the single source of truth for client existence and pairing
// state. It owns the client table and the waiting index.
//
// A Registry is not safe for concurrent use. It is meant to be owned by one
// goroutine (the signaling hub) which serializes every operation, so each
// method call is one atomic step.
type Registry struct {
	opts    Options
	logger  *slog.Logger
	clients map[string]*Client
	waiting waitingIndex
	counts  [3]int

	// rooms counts live pairs per room token. Room mode only.
	rooms map[string]int

	// roomToken generates candidate room tokens; replaced in tests.
	roomToken func() string
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Mode == "" {
		opts.Mode = ModeInterest
	}
	if opts.MaxTags <= 0 {
		opts.MaxTags = DefaultMaxTags
	}
	if opts.MaxTagLength <= 0 {
		opts.MaxTagLength = DefaultMaxTagLength
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		opts:      opts,
		logger:    logger,
		clients:   make(map[string]*Client),
		waiting:   make(waitingIndex),
		rooms:     make(map[string]int),
		roomToken: generateRoomToken,
	}
}

// Mode returns the matching key scheme in use.
func (r *Registry) Mode() Mode {
	return r.opts.Mode
}

// Register creates an idle client with no tags and no peer.
func (r *Registry) Register(id string) error {
	if id == "" {
		return newError("register", id, ErrInvalidRequest, "empty client id")
	}
	if _, ok := r.clients[id]; ok {
		return newError("register", id, ErrInvalidRequest, "client id already registered")
	}
	r.clients[id] = &Client{ID: id, State: StateIdle}
	r.counts[StateIdle]++
	return nil
}

// Unregister removes the client and every waiting index entry referencing
// it. A client that is still waiting or paired is terminated first, so the
// returned messages may include a peer-disconnected notice. Unregistering
// an unknown id is a no-op.
func (r *Registry) Unregister(id string) []Outbound {
	c, ok := r.clients[id]
	if !ok {
		return nil
	}
	out := r.terminate(c, false)
	r.counts[c.State]--
	delete(r.clients, id)
	return out
}

// Get returns a copy of the client record.
func (r *Registry) Get(id string) (Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return Client{}, newError("get", id, ErrNotFound, "")
	}
	return c.snapshot(), nil
}

// Len reports the number of registered clients.
func (r *Registry) Len() int {
	return len(r.clients)
}

func (r *Registry) setState(c *Client, s State) {
	r.counts[c.State]--
	r.counts[s]++
	c.State = s
}

func (r *Registry) enqueue(c *Client) {
	for _, tag := range c.Tags {
		r.waiting.add(tag, c.ID)
	}
}

func (r *Registry) dequeue(c *Client) {
	for _, tag := range c.Tags {
		r.waiting.remove(tag, c.ID)
	}
}
