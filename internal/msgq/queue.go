package msgq

// Inbound is a request waiting in a service's queue.
type Inbound struct {
	ID      RequestID
	From    ServiceID // zero when posted from outside any service
	To      ServiceID
	Payload any
}

// requestQueue is a FIFO: push at the tail, pop from the head.
type requestQueue struct {
	items []Inbound
}

func (q *requestQueue) push(in Inbound) {
	q.items = append(q.items, in)
}

func (q *requestQueue) pop() (Inbound, bool) {
	if len(q.items) == 0 {
		return Inbound{}, false
	}
	in := q.items[0]
	q.items[0] = Inbound{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return in, true
}

// remove drops a still-queued request, preserving the order of the rest.
func (q *requestQueue) remove(id RequestID) bool {
	for i := range q.items {
		if q.items[i].ID == id {
			copy(q.items[i:], q.items[i+1:])
			q.items[len(q.items)-1] = Inbound{}
			q.items = q.items[:len(q.items)-1]
			return true
		}
	}
	return false
}

func (q *requestQueue) len() int {
	return len(q.items)
}
