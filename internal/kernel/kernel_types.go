package kernel

import (
	"msgqueue/internal/msgq"
	"reflect"
)

// OpSet declares the payload types a service understands. Requests with
// any other payload are rejected before reaching the handler. A nil
// OpSet accepts everything.
type OpSet map[reflect.Type]struct{}

// Ops builds an OpSet from sample payload values.
func Ops(payloads ...any) OpSet {
	ops := make(OpSet, len(payloads))
	for _, p := range payloads {
		ops[reflect.TypeOf(p)] = struct{}{}
	}
	return ops
}

func (o OpSet) Accepts(payload any) bool {
	if o == nil {
		return true
	}
	if payload == nil {
		return false
	}
	_, ok := o[reflect.TypeOf(payload)]
	return ok
}

// ServiceView is a point-in-time snapshot of one kernel service.
type ServiceView struct {
	ID        msgq.ServiceID `json:"id"`
	Name      string         `json:"name"`
	Queued    int            `json:"queued"`
	CPUMicros uint64         `json:"cpu_us"`
	IpcIn     uint64         `json:"ipc_in"`
	IpcOut    uint64         `json:"ipc_out"`
	Rejected  uint64         `json:"rejected"`
}

// Service handler is a function invoked for each inbound request.
// ===============================================================

type Handler func(ctx *ActCtx, msg msgq.Inbound) HandlerSignal

type HandlerSignal interface {
	Signal()
}

type Continue struct{}

func (c Continue) Signal() {}

// Terminate unregisters the service after the current request.
type Terminate struct {
	Reason string
}

func (t Terminate) Signal() {}

type Error struct {
	Err error
}

func (e Error) Signal() {}
