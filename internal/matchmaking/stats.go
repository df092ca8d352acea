package matchmaking

import "sort"

// Counts is the number of registered clients by state.
type Counts struct {
	Clients int `json:"clients"`
	Idle    int `json:"idle"`
	Waiting int `json:"waiting"`
	Paired  int `json:"paired"`
}

// KeyStat is the number of clients waiting under one key.
type KeyStat struct {
	Key     string `json:"key"`
	Waiting int    `json:"waiting"`
}

// Stats is a point-in-time view of the registry.
//
// Keys is only filled in interest mode; room tokens act as join secrets
// and are reported as a count only.
type Stats struct {
	Mode Mode `json:"mode"`
	Counts
	OpenKeys int       `json:"open_keys"`
	Keys     []KeyStat `json:"keys,omitempty"`
}

// Counts returns the client counts without walking the table.
func (r *Registry) Counts() Counts {
	return Counts{
		Clients: len(r.clients),
		Idle:    r.counts[StateIdle],
		Waiting: r.counts[StateWaiting],
		Paired:  r.counts[StatePaired],
	}
}

// Stats returns a snapshot of counts and waiting keys, sorted by key.
func (r *Registry) Stats() Stats {
	s := Stats{
		Mode:     r.opts.Mode,
		Counts:   r.Counts(),
		OpenKeys: len(r.waiting),
	}
	if r.opts.Mode == ModeRoom {
		return s
	}
	s.Keys = make([]KeyStat, 0, len(r.waiting))
	for key := range r.waiting {
		s.Keys = append(s.Keys, KeyStat{Key: key, Waiting: r.waiting.size(key)})
	}
	sort.Slice(s.Keys, func(i, j int) bool { return s.Keys[i].Key < s.Keys[j].Key })
	return s
}
