package msgq

import (
	"runtime"
	"sync"
	"weak"
)

// Registration is the owning capability of one service. There is exactly one
// per service; closing it unregisters the service and discards its state and
// queued requests. A registration that becomes unreachable without being
// closed is unregistered by the garbage collector.
type Registration struct {
	id      ServiceID
	reg     *Registry
	once    sync.Once
	cleanup runtime.Cleanup
}

type unregisterArg struct {
	reg *Registry
	id  ServiceID
}

// Register allocates a new service identity in r.
func Register(r *Registry) (*Registration, error) {
	if r == nil {
		panic("msgq: nil registry")
	}
	id, err := r.register()
	if err != nil {
		return nil, err
	}
	s := &Registration{id: id, reg: r}
	s.cleanup = runtime.AddCleanup(s, func(arg unregisterArg) {
		arg.reg.unregister(arg.id)
	}, unregisterArg{reg: r, id: id})
	return s, nil
}

func (s *Registration) ID() ServiceID { return s.id }

// Handle returns a weak capability to the service.
func (s *Registration) Handle() Handle {
	return Handle{id: s.id, reg: s.reg.weakRef()}
}

// Close unregisters the service. It is safe to call more than once.
func (s *Registration) Close() error {
	s.once.Do(func() {
		s.cleanup.Stop()
		s.reg.unregister(s.id)
	})
	return nil
}

// Handle is a weak, freely copyable capability to one service. It does not
// keep the registry alive; once the registry or the service is gone every
// operation reports "absent" instead of failing loudly.
//
// The zero Handle refers to nothing.
type Handle struct {
	id  ServiceID
	reg weak.Pointer[Registry]
}

// ID returns the service identity. It stays valid as a lookup key after the
// service is gone, it just no longer resolves.
func (h Handle) ID() ServiceID { return h.id }

func (h Handle) registry() (*Registry, bool) {
	r := h.reg.Value()
	return r, r != nil
}

func (h Handle) withService(fn func(*service) bool) bool {
	r, ok := h.registry()
	if !ok {
		return false
	}
	return r.withService(h.id, fn)
}

// Alive reports whether the service is still registered.
func (h Handle) Alive() bool {
	return h.withService(func(*service) bool { return true })
}

// Post queues payload for service to and returns the future of its response.
func (h Handle) Post(to ServiceID, payload any) *Request {
	r, ok := h.registry()
	if !ok {
		return &Request{to: to, done: true, err: ErrRegistryClosed}
	}
	return r.Post(h.id, to, payload)
}

// Take removes the oldest request queued for this service.
func (h Handle) Take() (Inbound, bool) {
	r, ok := h.registry()
	if !ok {
		return Inbound{}, false
	}
	return r.Take(h.id)
}

// Respond answers a request previously taken from this service's queue.
func (h Handle) Respond(id RequestID, payload any) bool {
	r, ok := h.registry()
	return ok && r.Respond(id, payload)
}

// Reject marks a request previously taken from this service's queue as not
// recognized.
func (h Handle) Reject(id RequestID) bool {
	r, ok := h.registry()
	return ok && r.Reject(id)
}

// QueueLen returns the number of requests waiting for this service.
func (h Handle) QueueLen() (int, bool) {
	r, ok := h.registry()
	if !ok {
		return 0, false
	}
	return r.QueueLen(h.id)
}

// Notify returns a channel that receives a signal whenever a request is
// posted to this service. It is closed once the service is unregistered, so
// a drain loop can range over it.
func (h Handle) Notify() (<-chan struct{}, bool) {
	r, ok := h.registry()
	if !ok {
		return nil, false
	}
	return r.notifyChan(h.id)
}
