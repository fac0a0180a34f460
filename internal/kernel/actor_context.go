package kernel

import (
	"context"
	"errors"
	"fmt"
	"msgqueue/internal/msgq"
	"msgqueue/internal/util/future"
	"time"
)

const defaultSendTimeout = 5 * time.Second

// ActCtx is what a handler sees of the kernel while processing one request.
type ActCtx struct {
	K       *Kernel
	Self    msgq.Handle
	Context context.Context
	svc     *service
}

// Reply answers msg with payload.
func (c *ActCtx) Reply(msg msgq.Inbound, payload any) bool {
	return c.Self.Respond(msg.ID, payload)
}

// Reject answers msg with the "not recognized" marker.
func (c *ActCtx) Reject(msg msgq.Inbound) bool {
	return c.Self.Reject(msg.ID)
}

// Post sends payload to service to and returns the response future.
func (c *ActCtx) Post(to msgq.ServiceID, payload any) *msgq.Request {
	c.svc.ipcOut.Add(1)
	return c.Self.Post(to, payload)
}

// SendAsync fire-and-forgets.
func (c *ActCtx) SendAsync(to msgq.ServiceID, payload any) error {
	if _, ok := c.Post(to, payload).ID(); !ok {
		return fmt.Errorf("E_NO_SUCH: target service %v: %w", to, msgq.ErrNoSuchService)
	}
	return nil
}

// PostByName resolves name through the kernel and posts payload to it.
func (c *ActCtx) PostByName(name string, payload any) (*msgq.Request, error) {
	id, ok := c.K.ServiceByName(name)
	if !ok {
		log.Warnf("E_NO_SUCH: service %q, from %v", name, c.Self.ID())
		return nil, fmt.Errorf("E_NO_SUCH: service %q: %w", name, msgq.ErrNoSuchService)
	}
	return c.Post(id, payload), nil
}

// SendFuture posts payload and returns its response as a future. The request
// is cancelled when ctx ends before an answer arrives.
func (c *ActCtx) SendFuture(ctx context.Context, to msgq.ServiceID, payload any) *future.Future[any] {
	return c.Post(to, payload).Future(ctx)
}

// SendSync sends and waits for a single reply.
func (c *ActCtx) SendSync(to msgq.ServiceID, payload any) (any, error) {
	return c.SendSyncWithTimeout(to, payload, defaultSendTimeout)
}

// SendSyncWithTimeout is SendSync with an explicit deadline. On timeout the
// request is cancelled: withdrawn if still queued, and a late answer is
// dropped.
func (c *ActCtx) SendSyncWithTimeout(to msgq.ServiceID, payload any, timeout time.Duration) (any, error) {
	ctx, cancel := context.WithTimeout(c.Context, timeout)
	defer cancel()
	resp, err := c.SendFuture(ctx, to, payload).AwaitContext(c.Context)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		log.Warnf("E_DEADLINE: reply timeout %v, from %v to %v, %T", timeout, c.Self.ID(), to, payload)
		return nil, fmt.Errorf("E_DEADLINE: reply timeout %v: %w", timeout, err)
	}
	return resp, err
}
