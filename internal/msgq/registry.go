package msgq

import (
	"fmt"
	"msgqueue/internal/logger"
	"slices"
	"sync"
	"weak"

	"github.com/google/uuid"
)

var log = logger.NewLogger("msgq", logger.LevelFromEnv("MSGQ_LOG_LEVEL", logger.ERROR))

// response is the recorded outcome of a request. handled=false is the
// explicit "not recognized" marker; a missing entry means not yet answered.
type response struct {
	payload any
	handled bool
}

type waiter struct {
	to   ServiceID
	wake chan struct{}
}

// service owns one state map and one request queue.
type service struct {
	id     ServiceID
	state  stateMap
	queue  requestQueue
	notify chan struct{}
}

// Registry is the message queue shared by all services. The zero value is not
// usable; call New.
type Registry struct {
	mu          sync.Mutex
	id          uuid.UUID
	services    map[ServiceID]*service
	inflight    map[RequestID]ServiceID
	responses   map[RequestID]response
	waiters     map[RequestID]waiter
	nextService counter
	nextRequest counter
	closed      bool
	log         *logger.Logger
}

func New() *Registry {
	id := uuid.New()
	return &Registry{
		id:          id,
		services:    make(map[ServiceID]*service),
		inflight:    make(map[RequestID]ServiceID),
		responses:   make(map[RequestID]response),
		waiters:     make(map[RequestID]waiter),
		nextService: newCounter(),
		nextRequest: newCounter(),
		log:         log.With("registry", id.String()),
	}
}

// ID returns the registry instance id used to correlate log records.
func (r *Registry) ID() uuid.UUID { return r.id }

func (r *Registry) register() (ServiceID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrRegistryClosed
	}
	id := ServiceID(r.nextService.take())
	r.services[id] = &service{
		id:     id,
		state:  make(stateMap),
		notify: make(chan struct{}, 1),
	}
	r.log.Debug("service registered", "service", id)
	return id, nil
}

// unregister drops the service with its state and queued requests, and wakes
// every waiter of a request addressed to it so the future observes it is gone.
func (r *Registry) unregister(id ServiceID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[id]
	if !ok {
		return false
	}
	delete(r.services, id)
	close(s.notify)

	dropped := 0
	for rid, to := range r.inflight {
		if to != id {
			continue
		}
		if _, answered := r.responses[rid]; !answered {
			delete(r.inflight, rid)
			dropped++
		}
	}
	for rid, w := range r.waiters {
		if w.to == id {
			close(w.wake)
			delete(r.waiters, rid)
		}
	}
	r.log.Debug("service unregistered", "service", id, "queued", s.queue.len(), "unanswered", dropped)
	return true
}

// Close tears the registry down. Every service is dropped, every waiter is
// woken, and all later operations fail as not found.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, s := range r.services {
		close(s.notify)
	}
	for _, w := range r.waiters {
		close(w.wake)
	}
	clear(r.services)
	clear(r.inflight)
	clear(r.responses)
	clear(r.waiters)
	r.log.Debug("registry closed")
}

// withService runs fn against a live service under the lock.
func (r *Registry) withService(id ServiceID, fn func(*service) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	s, ok := r.services[id]
	if !ok {
		return false
	}
	return fn(s)
}

// Contains reports whether the service is currently registered.
func (r *Registry) Contains(id ServiceID) bool {
	return r.withService(id, func(*service) bool { return true })
}

// Services returns the live service identities in ascending order.
func (r *Registry) Services() []ServiceID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]ServiceID, 0, len(r.services))
	for id := range r.services {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// QueueLen returns the number of requests still queued for a service.
func (r *Registry) QueueLen(id ServiceID) (n int, ok bool) {
	ok = r.withService(id, func(s *service) bool {
		n = s.queue.len()
		return true
	})
	return n, ok
}

// Post queues payload for service to on behalf of from (zero for none) and
// returns the future of its response. If the destination does not exist the
// returned request fails on its first poll without suspending.
func (r *Registry) Post(from, to ServiceID, payload any) *Request {
	id, err := r.post(from, to, payload)
	if err != nil {
		r.log.Warn("E_NO_SUCH: request not accepted", "from", from, "to", to, "payload", payloadType(payload), "error", err)
		return rejectedRequest(r, to)
	}
	return newRequest(r, to, id)
}

func (r *Registry) post(from, to ServiceID, payload any) (RequestID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrRegistryClosed
	}
	s, ok := r.services[to]
	if !ok {
		return 0, ErrNoSuchService
	}
	id := RequestID(r.nextRequest.take())
	s.queue.push(Inbound{ID: id, From: from, To: to, Payload: payload})
	r.inflight[id] = to
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return id, nil
}

// Take removes and returns the oldest request queued for a service.
func (r *Registry) Take(id ServiceID) (in Inbound, ok bool) {
	ok = r.withService(id, func(s *service) bool {
		in, ok = s.queue.pop()
		return ok
	})
	return in, ok
}

// Respond records payload as the answer to request id.
func (r *Registry) Respond(id RequestID, payload any) bool {
	return r.Resolve(id, payload, true)
}

// Reject records that the destination did not recognize request id.
func (r *Registry) Reject(id RequestID) bool {
	return r.Resolve(id, nil, false)
}

// Resolve records the outcome of a request and wakes its waiter if any.
// It returns false, doing nothing, when the request is unknown, was already
// consumed or cancelled, or its destination has been unregistered.
// Resolving an answered but not yet consumed request overwrites the answer.
func (r *Registry) Resolve(id RequestID, payload any, handled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	to, ok := r.inflight[id]
	if !ok {
		return false
	}
	if _, alive := r.services[to]; !alive {
		delete(r.inflight, id)
		return false
	}
	r.responses[id] = response{payload: payload, handled: handled}
	if w, ok := r.waiters[id]; ok {
		close(w.wake)
		delete(r.waiters, id)
	}
	return true
}

// checkResponse is one step of the request protocol. ready=false means the
// answer is pending and wake has been registered as the request's waiter,
// replacing any earlier one.
func (r *Registry) checkResponse(to ServiceID, id RequestID, wake chan struct{}) (payload any, err error, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed, true
	}
	if resp, ok := r.responses[id]; ok {
		delete(r.responses, id)
		delete(r.inflight, id)
		delete(r.waiters, id)
		if !resp.handled {
			return nil, ErrRejected, true
		}
		return resp.payload, nil, true
	}
	if _, alive := r.services[to]; alive {
		r.waiters[id] = waiter{to: to, wake: wake}
		return nil, nil, false
	}
	delete(r.inflight, id)
	delete(r.waiters, id)
	return nil, ErrVanished, true
}

// abandon forgets everything the registry holds for a request: its waiter
// (woken so nobody blocks on it) and any unconsumed response. With withdraw
// the inbound record is also removed from the queue if not yet taken.
func (r *Registry) abandon(id RequestID, withdraw bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	to, ok := r.inflight[id]
	delete(r.inflight, id)
	delete(r.responses, id)
	if w, waiting := r.waiters[id]; waiting {
		close(w.wake)
		delete(r.waiters, id)
	}
	if !ok || !withdraw {
		return
	}
	if s, alive := r.services[to]; alive && s.queue.remove(id) {
		r.log.Debug("request withdrawn", "request", id, "service", to)
	}
}

func (r *Registry) notifyChan(id ServiceID) (ch <-chan struct{}, ok bool) {
	ok = r.withService(id, func(s *service) bool {
		ch = s.notify
		return true
	})
	return ch, ok
}

func (r *Registry) weakRef() weak.Pointer[Registry] {
	return weak.Make(r)
}

func payloadType(payload any) string {
	return fmt.Sprintf("%T", payload)
}
