package msgq

import (
	"context"
	"fmt"
	"msgqueue/internal/util/future"
	"runtime"
	"sync"
	"weak"
)

// Request is the one-shot future of a posted request. It is driven by a
// single logical awaiter; the outcome is cached once ready.
type Request struct {
	mu       sync.Mutex
	reg      weak.Pointer[Registry]
	to       ServiceID
	id       RequestID
	accepted bool

	done    bool
	payload any
	err     error
	wake    chan struct{}
	cleanup runtime.Cleanup
}

type abandonArg struct {
	reg weak.Pointer[Registry]
	id  RequestID
}

func newRequest(r *Registry, to ServiceID, id RequestID) *Request {
	q := &Request{reg: r.weakRef(), to: to, id: id, accepted: true}
	// a request dropped before completion must not leave its waiter or
	// response behind; the inbound record stays queued (fire-and-forget)
	q.cleanup = runtime.AddCleanup(q, func(arg abandonArg) {
		if r := arg.reg.Value(); r != nil {
			r.abandon(arg.id, false)
		}
	}, abandonArg{reg: q.reg, id: id})
	return q
}

func rejectedRequest(r *Registry, to ServiceID) *Request {
	return &Request{reg: r.weakRef(), to: to}
}

// ID returns the request identity, or false if the request was never
// accepted by the registry.
func (q *Request) ID() (RequestID, bool) {
	return q.id, q.accepted
}

// To returns the destination service.
func (q *Request) To() ServiceID { return q.to }

// Poll advances the request by one step without blocking. ready=false means
// the answer is pending; [Request.Wait] then returns a channel that is closed
// when it is worth polling again.
func (q *Request) Poll() (payload any, err error, ready bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pollLocked()
}

func (q *Request) pollLocked() (any, error, bool) {
	if q.done {
		return q.payload, q.err, true
	}
	if !q.accepted {
		return q.finishLocked(nil, ErrNotAccepted)
	}
	r := q.reg.Value()
	if r == nil {
		return q.finishLocked(nil, ErrRegistryClosed)
	}
	wake := make(chan struct{})
	payload, err, ready := r.checkResponse(q.to, q.id, wake)
	if !ready {
		q.wake = wake
		return nil, nil, false
	}
	return q.finishLocked(payload, err)
}

func (q *Request) finishLocked(payload any, err error) (any, error, bool) {
	q.done = true
	q.payload = payload
	q.err = err
	q.wake = nil
	if q.accepted {
		q.cleanup.Stop()
	}
	return payload, err, true
}

// Wait returns the wake channel registered by the last pending Poll. It is
// nil before the first pending poll and after completion.
func (q *Request) Wait() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.wake
}

// Await polls until the request completes. The only way out besides an
// outcome is ctx ending, which cancels the request.
func (q *Request) Await(ctx context.Context) (any, error) {
	for {
		q.mu.Lock()
		payload, err, ready := q.pollLocked()
		wake := q.wake
		q.mu.Unlock()
		if ready {
			return payload, err
		}
		select {
		case <-wake:
		case <-ctx.Done():
			return q.cancel(fmt.Errorf("%w: %w", ErrCanceled, ctx.Err()))
		}
	}
}

// Cancel abandons the request: its waiter and any unconsumed response are
// dropped and, if the destination has not taken it yet, it is withdrawn from
// the queue. Cancelling a completed request does nothing.
func (q *Request) Cancel() {
	q.cancel(ErrCanceled)
}

// cancel finishes the request with reason unless it already completed, in
// which case the cached outcome is returned unchanged.
func (q *Request) cancel(reason error) (any, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.done {
		return q.payload, q.err
	}
	if r := q.reg.Value(); r != nil && q.accepted {
		r.abandon(q.id, true)
	}
	payload, err, _ := q.finishLocked(nil, reason)
	return payload, err
}

// Future adapts the request to a [future.Future]. A request that is already
// complete yields a completed future without starting anything; otherwise
// one goroutine awaits the request and ends no later than ctx, which
// cancels the request.
func (q *Request) Future(ctx context.Context) *future.Future[any] {
	if payload, err, ready := q.Poll(); ready {
		if err != nil {
			return future.FromError[any](err)
		}
		return future.FromValue(payload)
	}
	f := future.Pending[any]()
	go func() {
		payload, err := q.Await(ctx)
		if err != nil {
			f.Fail(err)
			return
		}
		f.Complete(payload)
	}()
	return f
}

// Call posts payload to service to, waits for the answer and asserts its type.
func Call[R any](ctx context.Context, h Handle, to ServiceID, payload any) (R, error) {
	var zero R
	v, err := h.Post(to, payload).Await(ctx)
	if err != nil {
		return zero, err
	}
	out, ok := v.(R)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %T", ErrUnexpectedResponse, v, zero)
	}
	return out, nil
}
