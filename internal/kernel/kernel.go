package kernel

// The kernel drives services registered on a msgq.Registry. Every service has
// a name, an optional OpSet filter and a Handler, and gets a goroutine
// that drains its request queue whenever something is posted to it. The
// kernel itself is a service ("kernel") that answers Lookup, Status,
// Broadcast and RequestShutdown.

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"msgqueue/internal/logger"
	"msgqueue/internal/msgq"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

var log = logger.NewLogger("kernel", SystemLogLevel())

var ErrNameTaken = errors.New("E_EXISTS: service name already registered")

type service struct {
	id       msgq.ServiceID
	name     string
	reg      *msgq.Registration
	handle   msgq.Handle
	ops      OpSet
	handler  Handler
	cpuOps   atomic.Uint64
	ipcIn    atomic.Uint64
	ipcOut   atomic.Uint64
	rejected atomic.Uint64
}

type Kernel struct {
	mu       sync.RWMutex
	reg      *msgq.Registry
	services map[msgq.ServiceID]*service
	nameIdx  map[string]msgq.ServiceID
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	exit     chan int
	once     sync.Once
	ownsReg  bool
	hooks    []func()

	StatusInterval time.Duration
}

// NewKernel creates a kernel on reg, or on a fresh registry when reg is nil.
// A registry created here is closed by Shutdown; one passed in is left open.
func NewKernel(reg *msgq.Registry) *Kernel {
	owns := reg == nil
	if owns {
		reg = msgq.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	k := &Kernel{
		reg:      reg,
		ownsReg:  owns,
		services: make(map[msgq.ServiceID]*service),
		nameIdx:  make(map[string]msgq.ServiceID),
		ctx:      ctx,
		cancel:   cancel,
		exit:     make(chan int, 1),
	}

	if _, err := k.RegisterService(KernelService, Operations, k.handler); err != nil {
		panic(fmt.Sprintf("kernel: cannot register itself: %v", err))
	}
	return k
}

func (k *Kernel) Registry() *msgq.Registry { return k.reg }

// RegisterActor registers a service that accepts every payload.
func (k *Kernel) RegisterActor(name string, handler Handler) (msgq.ServiceID, error) {
	return k.RegisterService(name, nil, handler)
}

// RegisterService registers a named service and starts draining its queue.
func (k *Kernel) RegisterService(name string, ops OpSet, handler Handler) (msgq.ServiceID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.ctx.Err() != nil {
		return 0, msgq.ErrRegistryClosed
	}
	if _, taken := k.nameIdx[name]; taken && name != "" {
		return 0, fmt.Errorf("%w: %q", ErrNameTaken, name)
	}
	reg, err := msgq.Register(k.reg)
	if err != nil {
		return 0, err
	}
	svc := &service{
		id:      reg.ID(),
		name:    name,
		reg:     reg,
		handle:  reg.Handle(),
		ops:     ops,
		handler: handler,
	}
	k.services[svc.id] = svc
	if name != "" {
		k.nameIdx[name] = svc.id
	}
	k.wg.Add(1)
	go k.runService(svc)
	log.Debugf("registered service %v (%s)", svc.id, name)
	return svc.id, nil
}

// Handle returns a handle to a kernel service.
func (k *Kernel) Handle(id msgq.ServiceID) (msgq.Handle, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	svc, ok := k.services[id]
	if !ok {
		return msgq.Handle{}, false
	}
	return svc.handle, true
}

// ServiceByName looks a service up by its registered name.
func (k *Kernel) ServiceByName(name string) (msgq.ServiceID, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	id, ok := k.nameIdx[name]
	return id, ok
}

// Stop unregisters a service. Requests still queued for it are dropped and
// their futures resolve as vanished.
func (k *Kernel) Stop(id msgq.ServiceID, reason string) bool {
	k.mu.Lock()
	svc, ok := k.services[id]
	if ok {
		k.forgetLocked(svc)
	}
	k.mu.Unlock()
	if !ok {
		return false
	}
	log.Infof("stopping service %v (%s): %s", svc.id, svc.name, reason)
	_ = svc.reg.Close()
	return true
}

func (k *Kernel) forgetLocked(svc *service) {
	delete(k.services, svc.id)
	if svc.name != "" && k.nameIdx[svc.name] == svc.id {
		delete(k.nameIdx, svc.name)
	}
}

func (k *Kernel) runService(svc *service) {
	defer k.wg.Done()
	notify, ok := svc.handle.Notify()
	if !ok {
		return
	}
	ctx := &ActCtx{K: k, Self: svc.handle, Context: k.ctx, svc: svc}
	for {
		select {
		case <-k.ctx.Done():
			return
		case _, open := <-notify:
			if !open {
				return
			}
		}
		if !k.drain(ctx, svc) {
			return
		}
	}
}

// drain handles every queued request. It reports false once the service has
// terminated.
func (k *Kernel) drain(ctx *ActCtx, svc *service) bool {
	for k.ctx.Err() == nil {
		msg, ok := svc.handle.Take()
		if !ok {
			return true
		}
		svc.ipcIn.Add(1)
		if !svc.ops.Accepts(msg.Payload) {
			log.Warnf("E_POLICY: no defined operation for %T from %v to %v (%s)", msg.Payload, msg.From, svc.id, svc.name)
			svc.rejected.Add(1)
			svc.handle.Reject(msg.ID)
			continue
		}

		start := time.Now()
		sig := k.invoke(ctx, svc, msg)
		svc.cpuOps.Add(uint64(time.Since(start).Microseconds()))

		switch signal := sig.(type) {
		case nil, Continue:
		case Terminate:
			k.Stop(svc.id, signal.Reason)
			return false
		case Error:
			log.Errorf("service %v (%s) reported error: %v", svc.id, svc.name, signal.Err)
		}
	}
	return false
}

// invoke runs the handler, turning a panic into a rejected request.
func (k *Kernel) invoke(ctx *ActCtx, svc *service, msg msgq.Inbound) (sig HandlerSignal) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("service %v (%s) panicked on %T: %v", svc.id, svc.name, msg.Payload, r)
			svc.handle.Reject(msg.ID)
			sig = Error{Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return svc.handler(ctx, msg)
}

// Services returns a snapshot of every kernel service ordered by id.
func (k *Kernel) Services() []ServiceView {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]ServiceView, 0, len(k.services))
	for _, svc := range k.services {
		queued, _ := svc.handle.QueueLen()
		out = append(out, ServiceView{
			ID:        svc.id,
			Name:      svc.name,
			Queued:    queued,
			CPUMicros: svc.cpuOps.Load(),
			IpcIn:     svc.ipcIn.Load(),
			IpcOut:    svc.ipcOut.Load(),
			Rejected:  svc.rejected.Load(),
		})
	}
	slices.SortFunc(out, func(a, b ServiceView) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Run boots every service, logs a status line every StatusInterval and blocks
// until ctx is done or a RequestShutdown arrives. It returns the requested
// exit code and shuts the kernel down.
func (k *Kernel) Run(ctx context.Context) int {
	kernelID, _ := k.ServiceByName(KernelService)
	k.broadcast(kernelID, Boot{})

	var tick <-chan time.Time
	if k.StatusInterval > 0 {
		ticker := time.NewTicker(k.StatusInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	code := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case code = <-k.exit:
			break loop
		case <-tick:
			k.printStatus()
		}
	}
	k.Shutdown()
	return code
}

// BeforeShutdown registers fn to run at the start of Shutdown, while every
// service is still registered. Hooks run in registration order.
func (k *Kernel) BeforeShutdown(fn func()) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.hooks = append(k.hooks, fn)
}

// Shutdown stops every service and waits for their goroutines.
func (k *Kernel) Shutdown() {
	k.once.Do(func() {
		k.mu.RLock()
		hooks := slices.Clone(k.hooks)
		k.mu.RUnlock()
		for _, fn := range hooks {
			fn()
		}

		k.mu.Lock()
		k.cancel()
		services := make([]*service, 0, len(k.services))
		for _, svc := range k.services {
			services = append(services, svc)
			k.forgetLocked(svc)
		}
		k.mu.Unlock()
		for _, svc := range services {
			_ = svc.reg.Close()
		}
		k.wg.Wait()
		if k.ownsReg {
			k.reg.Close()
		}
		log.Infof("kernel stopped, %d services unregistered", len(services))
	})
}

// broadcast posts payload to every other service that declares its type.
// Responses are not awaited.
func (k *Kernel) broadcast(from msgq.ServiceID, payload any) int {
	k.mu.RLock()
	targets := make([]msgq.ServiceID, 0, len(k.services))
	for id, svc := range k.services {
		if id == from || svc.ops == nil || !svc.ops.Accepts(payload) {
			continue
		}
		targets = append(targets, id)
	}
	k.mu.RUnlock()
	for _, id := range targets {
		k.reg.Post(from, id, payload)
	}
	return len(targets)
}

func (k *Kernel) printStatus() {
	views := k.Services()
	log.Infof("Services=%d", len(views))
	for _, v := range views {
		log.Infof("  - Id=%2d Name=%-8s cpu(μs) %8d queued %3d ipc(in=%3d out=%3d) rejected=%d",
			v.ID, v.Name, v.CPUMicros, v.Queued, v.IpcIn, v.IpcOut, v.Rejected)
	}
}

func (k *Kernel) handler(ctx *ActCtx, msg msgq.Inbound) HandlerSignal {
	switch payload := msg.Payload.(type) {
	case Broadcast:
		ctx.Reply(msg, k.broadcast(msg.From, payload.Payload))
	case Lookup:
		id, ok := k.ServiceByName(payload.Name)
		ctx.Reply(msg, LookupResult{ID: id, Found: ok})
	case Status:
		ctx.Reply(msg, k.Services())
	case RequestShutdown:
		log.Infof("RequestShutdown: %d", payload.ExitCode)
		ctx.Reply(msg, nil)
		select {
		case k.exit <- payload.ExitCode:
		default:
		}
	}
	return Continue{}
}
