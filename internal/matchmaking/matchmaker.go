package matchmaking

import "fmt"

// FindMatch puts the client in the waiting state under tags and pairs it with
// the first compatible waiting client, or enqueues it when there is none.
//
// Tags are scanned in the order supplied; under each tag waiters are tried
// oldest first, and any single shared tag is enough for a match. The
// requester becomes the caller of the new pair.
//
// A client that is still paired when it asks for a new match leaves its
// current pair first, and its old peer is notified.
func (r *Registry) FindMatch(id string, tags []string) ([]Outbound, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, newError("find match", id, ErrNotFound, "")
	}
	if err := r.validateTags(tags); err != nil {
		return nil, newError("find match", id, ErrInvalidRequest, err.Error())
	}

	var out []Outbound
	switch c.State {
	case StatePaired:
		out = r.terminate(c, true)
	case StateWaiting:
		r.dequeue(c)
	}

	c.Tags = cloneTags(tags)
	c.Peer = ""
	r.setState(c, StateWaiting)

	candidate, found := r.scan(c)
	if !found || !r.stillWaiting(candidate, id) {
		r.enqueue(c)
		r.logger.Debug("client waiting", "client", id, "tags", c.Tags)
		return out, nil
	}

	return append(out, r.pair(c, r.clients[candidate])...), nil
}

// CancelSearch takes a waiting client out of the waiting index and back to
// idle. It is a no-op for a client that is not waiting.
func (r *Registry) CancelSearch(id string) error {
	c, ok := r.clients[id]
	if !ok {
		return newError("cancel search", id, ErrNotFound, "")
	}
	if c.State != StateWaiting {
		return nil
	}
	r.dequeue(c)
	r.setState(c, StateIdle)
	r.logger.Debug("search cancelled", "client", id)
	return nil
}

func (r *Registry) validateTags(tags []string) error {
	if len(tags) == 0 {
		return fmt.Errorf("tags must be a non-empty list")
	}
	if r.opts.Mode == ModeRoom && len(tags) != 1 {
		return fmt.Errorf("room mode takes exactly one room token, got %d", len(tags))
	}
	if len(tags) > r.opts.MaxTags {
		return fmt.Errorf("at most %d tags allowed, got %d", r.opts.MaxTags, len(tags))
	}
	for i, tag := range tags {
		if tag == "" {
			return fmt.Errorf("tag %d is empty", i)
		}
		if len(tag) > r.opts.MaxTagLength {
			return fmt.Errorf("tag %d exceeds %d bytes", i, r.opts.MaxTagLength)
		}
	}
	return nil
}

// scan finds the first other waiting client sharing one of c's tags.
func (r *Registry) scan(c *Client) (string, bool) {
	seen := make(map[string]struct{}, len(c.Tags))
	for _, tag := range c.Tags {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}

		id, ok := r.waiting.first(tag, func(candidate string) bool {
			return r.stillWaiting(candidate, c.ID)
		})
		if ok {
			return id, true
		}
	}
	return "", false
}

// stillWaiting reports whether candidate is a registered, waiting client
// other than requester.
func (r *Registry) stillWaiting(candidate, requester string) bool {
	if candidate == requester {
		return false
	}
	peer, ok := r.clients[candidate]
	return ok && peer.State == StateWaiting
}

// pair links caller and callee in both directions and builds the two
// match notifications.
func (r *Registry) pair(caller, callee *Client) []Outbound {
	r.dequeue(caller)
	r.dequeue(callee)

	caller.Peer = callee.ID
	callee.Peer = caller.ID
	r.setState(caller, StatePaired)
	r.setState(callee, StatePaired)
	if token, ok := r.roomOf(caller); ok {
		r.rooms[token]++
	}

	r.logger.Info("clients matched", "caller", caller.ID, "callee", callee.ID)

	return []Outbound{
		{
			To:   caller.ID,
			Type: EventMatchFound,
			Payload: MatchFound{
				PeerID:   callee.ID,
				Caller:   true,
				PeerTags: cloneTags(callee.Tags),
			},
		},
		{
			To:   callee.ID,
			Type: EventMatchFound,
			Payload: MatchFound{
				PeerID:   caller.ID,
				Caller:   false,
				PeerTags: cloneTags(caller.Tags),
			},
		},
	}
}
