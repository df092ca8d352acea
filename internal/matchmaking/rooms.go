package matchmaking

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// roomTokenWords is the number of words in a generated room token.
const roomTokenWords = 4

// maxTokenAttempts bounds the search for an unused token.
const maxTokenAttempts = 64

var tokenWordLists = [][]string{
	{
		"amber", "azure", "cobalt", "coral", "indigo", "ivory", "jade", "lilac", "ochre", "olive",
		"plum", "rust", "saffron", "scarlet", "sepia", "teal", "umber", "violet", "cerise", "mauve",
	},
	{
		"banjo", "cello", "cymbal", "fiddle", "flute", "gong", "harp", "kazoo", "lute", "oboe",
		"piano", "sitar", "tabla", "tuba", "ukulele", "viola", "zither", "bugle", "piccolo", "organ",
	},
	{
		"atoll", "bayou", "butte", "cove", "delta", "dune", "fjord", "glade", "gulch", "isthmus",
		"lagoon", "mesa", "moor", "oasis", "prairie", "reef", "steppe", "tundra", "valley", "grotto",
	},
	{
		"breeze", "cloud", "drizzle", "frost", "gale", "hail", "haze", "mist", "monsoon", "rainbow",
		"sleet", "squall", "storm", "sunny", "thunder", "tornado", "zephyr", "flurry", "dew", "aurora",
	},
	{
		"apricot", "banana", "cherry", "damson", "fig", "guava", "kiwi", "lemon", "lychee", "mango",
		"melon", "papaya", "peach", "pear", "quince", "raisin", "tamarind", "yuzu", "durian", "lime",
	},
	{
		"avocet", "bittern", "curlew", "egret", "finch", "heron", "ibis", "jay", "kestrel", "lark",
		"magpie", "osprey", "plover", "puffin", "raven", "swift", "tern", "wren", "gannet", "kite",
	},
}

// CreateRoom generates an unused room token, puts id in the waiting state
// under it and returns a room-created notice for id. Only valid in room mode.
func (r *Registry) CreateRoom(id string) ([]Outbound, error) {
	if _, ok := r.clients[id]; !ok {
		return nil, newError("create room", id, ErrNotFound, "")
	}
	if r.opts.Mode != ModeRoom {
		return nil, newError("create room", id, ErrInvalidRequest, "rooms are disabled in "+string(r.opts.Mode)+" mode")
	}

	token, ok := r.unusedRoomToken()
	if !ok {
		return nil, newError("create room", id, ErrPreconditionFailed, "no unused room token found")
	}

	out, err := r.FindMatch(id, []string{token})
	if err != nil {
		return nil, err
	}
	r.logger.Info("room created", "client", id, "room", token)
	return append(out, Outbound{
		To:      id,
		Type:    EventRoomCreated,
		Payload: RoomCreated{RoomID: token},
	}), nil
}

func (r *Registry) unusedRoomToken() (string, bool) {
	for range maxTokenAttempts {
		token := r.roomToken()
		if !r.tokenInUse(token) {
			return token, true
		}
	}
	return "", false
}

func (r *Registry) tokenInUse(token string) bool {
	return r.waiting.size(token) > 0 || r.rooms[token] > 0
}

// roomOf returns the room token c joined with, if rooms are in use.
func (r *Registry) roomOf(c *Client) (string, bool) {
	if r.opts.Mode != ModeRoom || len(c.Tags) != 1 {
		return "", false
	}
	return c.Tags[0], true
}

func (r *Registry) releaseRoom(token string) {
	if r.rooms[token] <= 1 {
		delete(r.rooms, token)
		return
	}
	r.rooms[token]--
}

// generateRoomToken joins one random word from each of roomTokenWords
// distinct word lists, e.g. "teal-harp-mesa-wren".
func generateRoomToken() string {
	lists := make([]int, len(tokenWordLists))
	for i := range lists {
		lists[i] = i
	}
	// partial Fisher-Yates to pick distinct lists
	for i := 0; i < roomTokenWords; i++ {
		j := i + randomIndex(len(lists)-i)
		lists[i], lists[j] = lists[j], lists[i]
	}

	words := make([]string, roomTokenWords)
	for i := range words {
		list := tokenWordLists[lists[i]]
		words[i] = list[randomIndex(len(list))]
	}
	return strings.Join(words, "-")
}

// randomIndex returns a uniform index in [0, n) from crypto/rand.
func randomIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("matchmaking: crypto/rand failed: " + err.Error())
	}
	return int(v.Int64())
}
