package matchmaking

import "container/list"

// waitQueue is the insertion-ordered set of client ids waiting under one key.
type waitQueue struct {
	order *list.List
	elems map[string]*list.Element
}

func newWaitQueue() *waitQueue {
	return &waitQueue{
		order: list.New(),
		elems: make(map[string]*list.Element),
	}
}

// waitingIndex maps a matching key to the clients currently advertising it.
// A key is deleted as soon as its queue empties.
type waitingIndex map[string]*waitQueue

func (w waitingIndex) add(key, id string) {
	q, ok := w[key]
	if !ok {
		q = newWaitQueue()
		w[key] = q
	}
	if _, dup := q.elems[id]; dup {
		return
	}
	q.elems[id] = q.order.PushBack(id)
}

func (w waitingIndex) remove(key, id string) {
	q, ok := w[key]
	if !ok {
		return
	}
	if e, ok := q.elems[id]; ok {
		q.order.Remove(e)
		delete(q.elems, id)
	}
	if q.order.Len() == 0 {
		delete(w, key)
	}
}

func (w waitingIndex) contains(key, id string) bool {
	q, ok := w[key]
	if !ok {
		return false
	}
	_, ok = q.elems[id]
	return ok
}

func (w waitingIndex) size(key string) int {
	if q, ok := w[key]; ok {
		return q.order.Len()
	}
	return 0
}

// first returns the oldest id under key accepted by ok.
func (w waitingIndex) first(key string, ok func(id string) bool) (string, bool) {
	q, found := w[key]
	if !found {
		return "", false
	}
	for e := q.order.Front(); e != nil; e = e.Next() {
		id := e.Value.(string)
		if ok(id) {
			return id, true
		}
	}
	return "", false
}

// ids returns the waiters under key, oldest first.
func (w waitingIndex) ids(key string) []string {
	q, ok := w[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, q.order.Len())
	for e := q.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(string))
	}
	return out
}
