package matchmaking

// HandleTermination resets id after a disconnect, cancel or end-call.
//
// A waiting client leaves the waiting index. A paired client is unlinked
// from its peer in both directions and the peer, if still registered, gets
// the only peer-disconnected notice it will ever see for this pair. An idle
// or unknown client is left alone. The peer is not requeued.
//
// The client stays registered; Unregister is a separate step.
func (r *Registry) HandleTermination(id string, intentional bool) []Outbound {
	c, ok := r.clients[id]
	if !ok {
		return nil
	}
	return r.terminate(c, intentional)
}

func (r *Registry) terminate(c *Client, intentional bool) []Outbound {
	switch c.State {
	case StateWaiting:
		r.dequeue(c)
		r.setState(c, StateIdle)
		r.logger.Debug("waiting client terminated", "client", c.ID, "intentional", intentional)
		return nil

	case StatePaired:
		peerID := c.Peer
		c.Peer = ""
		r.setState(c, StateIdle)
		if token, ok := r.roomOf(c); ok {
			r.releaseRoom(token)
		}

		peer, ok := r.clients[peerID]
		if !ok {
			return nil
		}
		peer.Peer = ""
		r.setState(peer, StateIdle)

		r.logger.Info("session ended", "client", c.ID, "peer", peerID, "intentional", intentional)
		return []Outbound{{
			To:      peerID,
			Type:    EventPeerDisconnected,
			Payload: PeerDisconnected{PeerID: c.ID},
		}}
	}
	return nil
}
