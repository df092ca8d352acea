package matchmaking

// State is the pairing state of a registered client.
type State int

const (
	StateIdle State = iota
	StateWaiting
	StatePaired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StatePaired:
		return "paired"
	default:
		return "unknown"
	}
}

// Client is the registry record for one live connection.
//
// Peer holds the id of the paired client, never a pointer: the registry
// keeps every record in one table keyed by id and the pairing is just two
// id fields pointing at each other.
type Client struct {
	ID    string
	Tags  []string
	State State
	Peer  string
}

func (c *Client) snapshot() Client {
	cp := *c
	cp.Tags = cloneTags(c.Tags)
	return cp
}

func cloneTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
