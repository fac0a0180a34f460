package widget

import (
	"fmt"
	"msgqueue/internal/kernel"
	"msgqueue/internal/msgq"
)

type ButtonState struct {
	Touched bool
}

// Press touches a button. The reply is the resulting ButtonState.
type Press struct{}

var ButtonOperations = kernel.Ops(Press{})

// ButtonID addresses a button service. It has the common widget accessors
// plus the touched flag.
type ButtonID struct {
	Widget
}

func (b ButtonID) ID() msgq.ServiceID { return b.h.ID() }

func (b ButtonID) Touched() (bool, bool) {
	return msgq.Peek(b.h, func(s ButtonState) bool { return s.Touched })
}

func (b ButtonID) SetTouched(touched bool) bool {
	return set(b.h, func(s *ButtonState) { s.Touched = touched })
}

// Button owns the registration of a button service that is not driven by a
// kernel. Closing it unregisters the service and drops its state.
type Button struct {
	reg *msgq.Registration
	id  ButtonID
}

func NewButton(r *msgq.Registry) (*Button, error) {
	reg, err := msgq.Register(r)
	if err != nil {
		return nil, err
	}
	h := reg.Handle()
	msgq.Put(h, DefaultCommonState())
	msgq.Put(h, ButtonState{})
	return &Button{reg: reg, id: ButtonID{Widget{h: h}}}, nil
}

func (b *Button) ID() ButtonID { return b.id }

func (b *Button) Close() error { return b.reg.Close() }

// RegisterButton starts a kernel-driven button service named name whose
// requests are handled by ButtonHandler.
func RegisterButton(k *kernel.Kernel, name, label string) (ButtonID, error) {
	id, err := k.RegisterService(name, ButtonOperations, ButtonHandler)
	if err != nil {
		return ButtonID{}, err
	}
	h, ok := k.Handle(id)
	if !ok {
		return ButtonID{}, fmt.Errorf("button %q: %w", name, msgq.ErrVanished)
	}
	state := DefaultCommonState()
	if label != "" {
		state.Label = label
	}
	msgq.Put(h, state)
	if _, ok := msgq.Peek(h, func(ButtonState) struct{} { return struct{}{} }); !ok {
		msgq.Put(h, ButtonState{})
	}
	return ButtonID{Widget{h: h}}, nil
}

// ButtonHandler serves Press: a disabled button is left alone, an enabled
// one becomes touched. Either way the current ButtonState is the reply.
func ButtonHandler(ctx *kernel.ActCtx, msg msgq.Inbound) kernel.HandlerSignal {
	switch msg.Payload.(type) {
	case Press:
		b := ButtonID{Widget{h: ctx.Self}}
		if enabled, ok := b.Enabled(); ok && !enabled {
			state, _ := msgq.Clone[ButtonState](ctx.Self)
			ctx.Reply(msg, state)
			return kernel.Continue{}
		}
		state, ok := msgq.Poke(ctx.Self, func(s *ButtonState) ButtonState {
			s.Touched = true
			return *s
		})
		if !ok {
			state = ButtonState{Touched: true}
			msgq.Put(ctx.Self, state)
		}
		ctx.Reply(msg, state)
	default:
		ctx.Reject(msg)
	}
	return kernel.Continue{}
}
