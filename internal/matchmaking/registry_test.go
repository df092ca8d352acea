package matchmaking

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, mode Mode) *Registry {
	t.Helper()
	return NewRegistry(Options{
		Mode:   mode,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func register(t *testing.T, r *Registry, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, r.Register(id))
	}
}

// checkInvariants asserts pairing symmetry, waiting-index consistency and
// the cached counts against a full walk of the table.
func checkInvariants(t *testing.T, r *Registry) {
	t.Helper()

	var counts [3]int
	rooms := make(map[string]int)
	for id, c := range r.clients {
		require.Equal(t, id, c.ID)
		counts[c.State]++

		switch c.State {
		case StatePaired:
			peer, ok := r.clients[c.Peer]
			require.True(t, ok, "%s paired with unregistered %s", id, c.Peer)
			require.Equal(t, id, peer.Peer, "pairing not symmetric for %s", id)
			require.Equal(t, StatePaired, peer.State)
			if r.opts.Mode == ModeRoom && id < c.Peer {
				rooms[c.Tags[0]]++
			}
		default:
			require.Empty(t, c.Peer, "%s is %s but has peer %s", id, c.State, c.Peer)
		}

		for _, tag := range c.Tags {
			require.Equal(t, c.State == StateWaiting, r.waiting.contains(tag, id),
				"%s (%s) index membership under %q", id, c.State, tag)
		}
	}

	for key, q := range r.waiting {
		require.NotZero(t, q.order.Len(), "empty key %q kept", key)
		require.Equal(t, q.order.Len(), len(q.elems))
		for _, id := range r.waiting.ids(key) {
			c, ok := r.clients[id]
			require.True(t, ok, "unregistered %s under %q", id, key)
			require.Equal(t, StateWaiting, c.State)
			require.Contains(t, c.Tags, key)
		}
	}

	require.Equal(t, counts, r.counts)
	require.Equal(t, rooms, r.rooms, "live pairs per room token")
}

// seedWaiting queues id under tags without trying to pair it, which lets a
// test build index states FindMatch never leaves behind.
func seedWaiting(r *Registry, id string, tags ...string) {
	c := r.clients[id]
	c.Tags = tags
	r.setState(c, StateWaiting)
	r.enqueue(c)
}

func matchFound(t *testing.T, out []Outbound, to string) MatchFound {
	t.Helper()
	for _, o := range out {
		if o.To == to && o.Type == EventMatchFound {
			return o.Payload.(MatchFound)
		}
	}
	t.Fatalf("no match-found for %s in %+v", to, out)
	return MatchFound{}
}

func TestRegistry_RegisterGetUnregister(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)

	require.NoError(t, r.Register("a"))
	c, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, c.State)
	assert.Empty(t, c.Tags)
	assert.Empty(t, c.Peer)

	assert.ErrorIs(t, r.Register("a"), ErrInvalidRequest)
	assert.ErrorIs(t, r.Register(""), ErrInvalidRequest)

	assert.Empty(t, r.Unregister("a"))
	_, err = r.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, r.Unregister("a"), "second unregister is a no-op")
	assert.Zero(t, r.Len())
	checkInvariants(t, r)
}

func TestFindMatch_EnqueuesWhenAlone(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "a")

	out, err := r.FindMatch("a", []string{"chess"})
	require.NoError(t, err)
	assert.Empty(t, out)

	c, _ := r.Get("a")
	assert.Equal(t, StateWaiting, c.State)
	assert.Equal(t, []string{"a"}, r.waiting.ids("chess"))
	checkInvariants(t, r)
}

func TestFindMatch_PairsOnSharedTag(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "a", "b")

	_, err := r.FindMatch("a", []string{"chess"})
	require.NoError(t, err)

	out, err := r.FindMatch("b", []string{"chess", "tennis"})
	require.NoError(t, err)
	require.Len(t, out, 2)

	toA := matchFound(t, out, "a")
	toB := matchFound(t, out, "b")
	assert.Equal(t, "b", toA.PeerID)
	assert.Equal(t, "a", toB.PeerID)
	assert.NotEqual(t, toA.Caller, toB.Caller)
	assert.True(t, toB.Caller, "requester is the caller")

	a, _ := r.Get("a")
	b, _ := r.Get("b")
	assert.Equal(t, StatePaired, a.State)
	assert.Equal(t, StatePaired, b.State)
	assert.Equal(t, "b", a.Peer)
	assert.Equal(t, "a", b.Peer)

	assert.Zero(t, r.waiting.size("chess"))
	assert.Zero(t, r.waiting.size("tennis"), "b paired before insertion")
	assert.Empty(t, r.waiting)
	checkInvariants(t, r)
}

func TestFindMatch_EchoesTagsVerbatim(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "a", "b")

	aTags := []string{"jazz", "chess", "jazz"}
	bTags := []string{"tennis", "chess"}
	_, err := r.FindMatch("a", aTags)
	require.NoError(t, err)
	out, err := r.FindMatch("b", bTags)
	require.NoError(t, err)

	assert.Equal(t, aTags, matchFound(t, out, "b").PeerTags)
	assert.Equal(t, bTags, matchFound(t, out, "a").PeerTags)

	aTags[0] = "mutated"
	a, _ := r.Get("a")
	assert.Equal(t, "jazz", a.Tags[0], "registry keeps its own copy")
}

func TestFindMatch_NoSelfPairing(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "a")

	_, err := r.FindMatch("a", []string{"go", "go", "rust"})
	require.NoError(t, err)
	out, err := r.FindMatch("a", []string{"rust", "go"})
	require.NoError(t, err)
	assert.Empty(t, out)

	a, _ := r.Get("a")
	assert.Equal(t, StateWaiting, a.State)
	assert.Empty(t, a.Peer)
	assert.Equal(t, []string{"a"}, r.waiting.ids("go"))
	assert.Equal(t, []string{"a"}, r.waiting.ids("rust"))
	checkInvariants(t, r)
}

func TestFindMatch_RequeueReplacesTags(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "a", "b")

	_, err := r.FindMatch("a", []string{"old"})
	require.NoError(t, err)
	_, err = r.FindMatch("a", []string{"new"})
	require.NoError(t, err)
	assert.Zero(t, r.waiting.size("old"))

	out, err := r.FindMatch("b", []string{"old"})
	require.NoError(t, err)
	assert.Empty(t, out, "a no longer advertises old")
	checkInvariants(t, r)
}

func TestFindMatch_FIFOPerTag(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "first", "second", "third", "req")

	// FindMatch pairs as soon as two clients share a tag, so a key holds
	// at most one waiter in steady state. Seed a longer queue by hand.
	for _, id := range []string{"first", "second", "third"} {
		seedWaiting(r, id, "music")
	}
	require.Equal(t, []string{"first", "second", "third"}, r.waiting.ids("music"))
	checkInvariants(t, r)

	req := r.clients["req"]
	req.Tags = []string{"music"}
	candidate, ok := r.scan(req)
	require.True(t, ok)
	assert.Equal(t, "first", candidate)
	req.Tags = nil

	out, err := r.FindMatch("req", []string{"music"})
	require.NoError(t, err)
	assert.Equal(t, "first", matchFound(t, out, "req").PeerID)
	assert.Equal(t, []string{"second", "third"}, r.waiting.ids("music"))
	checkInvariants(t, r)
}

func TestFindMatch_TagOrderDecides(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "x", "y", "req")

	_, err := r.FindMatch("x", []string{"art"})
	require.NoError(t, err)
	_, err = r.FindMatch("y", []string{"books"})
	require.NoError(t, err)

	out, err := r.FindMatch("req", []string{"books", "art"})
	require.NoError(t, err)
	assert.Equal(t, "y", matchFound(t, out, "req").PeerID)
	checkInvariants(t, r)
}

func TestFindMatch_SkipsStaleCandidate(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "a", "b", "c")

	_, err := r.FindMatch("a", []string{"chess"})
	require.NoError(t, err)
	_, err = r.FindMatch("b", []string{"chess"})
	require.NoError(t, err)

	// c races in after a and b already paired: it must wait, not fail.
	out, err := r.FindMatch("c", []string{"chess"})
	require.NoError(t, err)
	assert.Empty(t, out)
	c, _ := r.Get("c")
	assert.Equal(t, StateWaiting, c.State)
	checkInvariants(t, r)
}

func TestFindMatch_InvalidTags(t *testing.T) {
	r := NewRegistry(Options{
		Mode:         ModeInterest,
		MaxTags:      2,
		MaxTagLength: 4,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	register(t, r, "a")
	_, err := r.FindMatch("a", []string{"ok"})
	require.NoError(t, err)

	cases := map[string][]string{
		"nil":      nil,
		"empty":    {},
		"blank":    {"ok", ""},
		"too many": {"a", "b", "c"},
		"too long": {"toolong"},
	}
	for name, tags := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := r.FindMatch("a", tags)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Empty(t, out)

			c, _ := r.Get("a")
			assert.Equal(t, StateWaiting, c.State, "no state change")
			assert.Equal(t, []string{"ok"}, c.Tags)
			checkInvariants(t, r)
		})
	}
}

func TestFindMatch_UnknownClient(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	_, err := r.FindMatch("ghost", []string{"x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindMatch_WhilePairedLeavesOldPair(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "a", "b")
	_, _ = r.FindMatch("a", []string{"chess"})
	_, _ = r.FindMatch("b", []string{"chess"})

	out, err := r.FindMatch("a", []string{"chess"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Outbound{To: "b", Type: EventPeerDisconnected, Payload: PeerDisconnected{PeerID: "a"}}, out[0])

	b, _ := r.Get("b")
	assert.Equal(t, StateIdle, b.State)
	checkInvariants(t, r)
}

func TestCancelSearch(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "a", "b")

	_, err := r.FindMatch("a", []string{"music"})
	require.NoError(t, err)
	require.NoError(t, r.CancelSearch("a"))

	a, _ := r.Get("a")
	assert.Equal(t, StateIdle, a.State)
	assert.Zero(t, r.waiting.size("music"))

	out, err := r.FindMatch("b", []string{"music"})
	require.NoError(t, err)
	assert.Empty(t, out, "cancelled client is never matched")
	checkInvariants(t, r)

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, r.CancelSearch("a"))
		require.NoError(t, r.CancelSearch("a"))
		a, _ := r.Get("a")
		assert.Equal(t, StateIdle, a.State)
		checkInvariants(t, r)
	})

	t.Run("paired client unaffected", func(t *testing.T) {
		register(t, r, "c")
		_, _ = r.FindMatch("c", []string{"music"})
		require.NoError(t, r.CancelSearch("c"))
		c, _ := r.Get("c")
		assert.Equal(t, StatePaired, c.State)
		checkInvariants(t, r)
	})

	t.Run("unknown", func(t *testing.T) {
		assert.ErrorIs(t, r.CancelSearch("ghost"), ErrNotFound)
	})
}

func TestRelay(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "a", "b", "c")
	_, _ = r.FindMatch("a", []string{"chess"})
	_, _ = r.FindMatch("b", []string{"chess"})

	sdp := json.RawMessage(`"X"`)
	out, err := r.Relay("a", KindOffer, sdp)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Outbound{To: "b", Type: EventOffer, Payload: RelayedDescription{Sender: "a", SDP: sdp}}, out[0])

	out, err = r.Relay("b", KindAnswer, sdp)
	require.NoError(t, err)
	assert.Equal(t, Outbound{To: "a", Type: EventAnswer, Payload: RelayedDescription{Sender: "b", SDP: sdp}}, out[0])

	cand := json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 9 typ host","sdpMid":"0"}`)
	out, err = r.Relay("a", KindICECandidate, cand)
	require.NoError(t, err)
	assert.Equal(t, Outbound{To: "b", Type: EventICECandidate, Payload: RelayedCandidate{Sender: "a", Candidate: cand}}, out[0])

	t.Run("not paired", func(t *testing.T) {
		for _, kind := range []SignalKind{KindOffer, KindAnswer, KindICECandidate} {
			out, err := r.Relay("c", kind, sdp)
			assert.ErrorIs(t, err, ErrPreconditionFailed)
			assert.Empty(t, out)
		}
	})

	t.Run("unknown sender", func(t *testing.T) {
		_, err := r.Relay("ghost", KindOffer, sdp)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("after peer left", func(t *testing.T) {
		r.Dispatch("b", Disconnect{})
		out, err := r.Relay("a", KindICECandidate, cand)
		assert.ErrorIs(t, err, ErrPreconditionFailed)
		assert.Empty(t, out)
	})
	checkInvariants(t, r)
}

func TestHandleTermination(t *testing.T) {
	t.Run("waiting", func(t *testing.T) {
		r := newTestRegistry(t, ModeInterest)
		register(t, r, "a")
		_, _ = r.FindMatch("a", []string{"x", "y"})

		assert.Empty(t, r.HandleTermination("a", false))
		a, _ := r.Get("a")
		assert.Equal(t, StateIdle, a.State)
		assert.Empty(t, r.waiting)
		checkInvariants(t, r)
	})

	t.Run("paired", func(t *testing.T) {
		r := newTestRegistry(t, ModeInterest)
		register(t, r, "a", "b")
		_, _ = r.FindMatch("a", []string{"x"})
		_, _ = r.FindMatch("b", []string{"x"})

		out := r.HandleTermination("a", true)
		require.Len(t, out, 1)
		assert.Equal(t, Outbound{To: "b", Type: EventPeerDisconnected, Payload: PeerDisconnected{PeerID: "a"}}, out[0])

		for _, id := range []string{"a", "b"} {
			c, err := r.Get(id)
			require.NoError(t, err, "termination keeps the client registered")
			assert.Equal(t, StateIdle, c.State)
			assert.Empty(t, c.Peer)
		}
		assert.Empty(t, r.HandleTermination("a", true), "second termination is a no-op")
		assert.Empty(t, r.HandleTermination("b", true))
		checkInvariants(t, r)
	})

	t.Run("idle and unknown", func(t *testing.T) {
		r := newTestRegistry(t, ModeInterest)
		register(t, r, "a")
		assert.Empty(t, r.HandleTermination("a", false))
		assert.Empty(t, r.HandleTermination("ghost", false))
		checkInvariants(t, r)
	})
}

func TestDispatch_DisconnectWhilePaired(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "a", "b")
	_, _ = r.Dispatch("a", RequestMatch{Tags: []string{"chess"}})
	_, _ = r.Dispatch("b", RequestMatch{Tags: []string{"chess"}})

	out, err := r.Dispatch("a", Disconnect{})
	require.NoError(t, err)
	require.Len(t, out, 1, "exactly one peer-disconnected")
	assert.Equal(t, Outbound{To: "b", Type: EventPeerDisconnected, Payload: PeerDisconnected{PeerID: "a"}}, out[0])

	_, err = r.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)
	b, _ := r.Get("b")
	assert.Equal(t, StateIdle, b.State)
	checkInvariants(t, r)

	register(t, r, "c")
	_, err = r.Dispatch("c", RequestMatch{Tags: []string{"chess"}})
	require.NoError(t, err)
	out, err = r.Dispatch("b", RequestMatch{Tags: []string{"chess"}})
	require.NoError(t, err)
	assert.Equal(t, "c", matchFound(t, out, "b").PeerID)
	checkInvariants(t, r)
}

func TestDispatch_UnregisterWithoutTermination(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "a", "b")
	_, _ = r.FindMatch("a", []string{"chess"})
	_, _ = r.FindMatch("b", []string{"chess"})

	out := r.Unregister("b")
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].To)
	checkInvariants(t, r)
}

func TestDispatch_Unsupported(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "a")
	_, err := r.Dispatch("a", nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRoomMode(t *testing.T) {
	r := newTestRegistry(t, ModeRoom)
	tokens := []string{"teal-harp-mesa-wren", "teal-harp-mesa-wren", "plum-oboe-reef-lark"}
	r.roomToken = func() string {
		tok := tokens[0]
		tokens = tokens[1:]
		return tok
	}
	register(t, r, "host", "guest", "late", "other")

	out, err := r.CreateRoom("host")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Outbound{To: "host", Type: EventRoomCreated, Payload: RoomCreated{RoomID: "teal-harp-mesa-wren"}}, out[0])

	_, err = r.FindMatch("guest", []string{"teal-harp-mesa-wren", "extra"})
	assert.ErrorIs(t, err, ErrInvalidRequest, "exactly one token in room mode")

	out, err = r.FindMatch("guest", []string{"teal-harp-mesa-wren"})
	require.NoError(t, err)
	assert.Equal(t, "host", matchFound(t, out, "guest").PeerID)
	assert.True(t, matchFound(t, out, "guest").Caller)

	out, err = r.FindMatch("late", []string{"teal-harp-mesa-wren"})
	require.NoError(t, err)
	assert.Empty(t, out, "a full room does not pair a third client")
	checkInvariants(t, r)

	// the in-use token is skipped
	out, err = r.CreateRoom("other")
	require.NoError(t, err)
	assert.Equal(t, RoomCreated{RoomID: "plum-oboe-reef-lark"}, out[len(out)-1].Payload)
	checkInvariants(t, r)

	stats := r.Stats()
	assert.Equal(t, ModeRoom, stats.Mode)
	assert.Equal(t, 2, stats.OpenKeys)
	assert.Nil(t, stats.Keys)
}

func TestRoomMode_TokenReleasedWhenPairEnds(t *testing.T) {
	r := newTestRegistry(t, ModeRoom)
	r.roomToken = func() string { return "teal-harp-mesa-wren" }
	register(t, r, "host", "guest", "late", "fourth")

	_, err := r.CreateRoom("host")
	require.NoError(t, err)
	_, err = r.FindMatch("guest", []string{"teal-harp-mesa-wren"})
	require.NoError(t, err)
	assert.True(t, r.tokenInUse("teal-harp-mesa-wren"), "paired room")
	checkInvariants(t, r)

	// a second pair forms on the same token
	_, err = r.FindMatch("late", []string{"teal-harp-mesa-wren"})
	require.NoError(t, err)
	_, err = r.FindMatch("fourth", []string{"teal-harp-mesa-wren"})
	require.NoError(t, err)
	assert.Equal(t, 2, r.rooms["teal-harp-mesa-wren"])
	checkInvariants(t, r)

	r.HandleTermination("host", true)
	assert.True(t, r.tokenInUse("teal-harp-mesa-wren"), "second pair still live")
	checkInvariants(t, r)

	r.Unregister("fourth")
	assert.False(t, r.tokenInUse("teal-harp-mesa-wren"))
	assert.Empty(t, r.rooms)
	checkInvariants(t, r)
}

func TestCreateRoom_InterestMode(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "a")
	_, err := r.CreateRoom("a")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	a, _ := r.Get("a")
	assert.Equal(t, StateIdle, a.State)
}

func TestGenerateRoomToken(t *testing.T) {
	for range 50 {
		words := strings.Split(generateRoomToken(), "-")
		require.Len(t, words, roomTokenWords)
		for _, w := range words {
			assert.NotEmpty(t, w)
		}
	}
}

func TestStats(t *testing.T) {
	r := newTestRegistry(t, ModeInterest)
	register(t, r, "a", "b", "c", "d")
	_, _ = r.FindMatch("a", []string{"chess", "art"})
	_, _ = r.FindMatch("b", []string{"zen"})
	_, _ = r.FindMatch("c", []string{"zen"})

	s := r.Stats()
	assert.Equal(t, Counts{Clients: 4, Idle: 1, Waiting: 1, Paired: 2}, s.Counts)
	assert.Equal(t, 2, s.OpenKeys)
	assert.Equal(t, []KeyStat{{Key: "art", Waiting: 1}, {Key: "chess", Waiting: 1}}, s.Keys)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeInterest, m)

	m, err = ParseMode("room")
	require.NoError(t, err)
	assert.Equal(t, ModeRoom, m)

	_, err = ParseMode("lobby")
	assert.Error(t, err)
}

func TestCode(t *testing.T) {
	assert.Equal(t, CodeInvalidRequest, Code(newError("x", "a", ErrInvalidRequest, "")))
	assert.Equal(t, CodeNotFound, Code(newError("x", "a", ErrNotFound, "")))
	assert.Equal(t, CodePreconditionFailed, Code(newError("x", "a", ErrPreconditionFailed, "")))
	assert.Equal(t, CodeInternal, Code(fmt.Errorf("boom")))
	assert.Equal(t, "find match a: invalid request (bad)", newError("find match", "a", ErrInvalidRequest, "bad").Error())
}
