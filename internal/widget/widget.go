// Package widget keeps widget state in the service registry: every widget is
// a service, and its label, flags and geometry are typed state slots on it.
// Anyone holding a handle can read or change them; once the service is gone
// every accessor reports ok=false.
package widget

import "msgqueue/internal/msgq"

type Rect struct {
	X, Y, W, H float32
}

// CommonState is shared by every widget kind.
type CommonState struct {
	Visible bool
	Enabled bool
	Label   string
	Rect    Rect
}

func DefaultCommonState() CommonState {
	return CommonState{Visible: true, Enabled: true, Label: "Default"}
}

// Widget is a view of a widget service's CommonState.
type Widget struct {
	h msgq.Handle
}

func Of(h msgq.Handle) Widget { return Widget{h: h} }

func (w Widget) Handle() msgq.Handle { return w.h }

func (w Widget) Label() (string, bool) {
	return msgq.Peek(w.h, func(s CommonState) string { return s.Label })
}

func (w Widget) SetLabel(label string) bool {
	return set(w.h, func(s *CommonState) { s.Label = label })
}

func (w Widget) Enabled() (bool, bool) {
	return msgq.Peek(w.h, func(s CommonState) bool { return s.Enabled })
}

func (w Widget) SetEnabled(enabled bool) bool {
	return set(w.h, func(s *CommonState) { s.Enabled = enabled })
}

func (w Widget) Visible() (bool, bool) {
	return msgq.Peek(w.h, func(s CommonState) bool { return s.Visible })
}

func (w Widget) SetVisible(visible bool) bool {
	return set(w.h, func(s *CommonState) { s.Visible = visible })
}

func (w Widget) Rect() (Rect, bool) {
	return msgq.Peek(w.h, func(s CommonState) Rect { return s.Rect })
}

func (w Widget) SetRect(r Rect) bool {
	return set(w.h, func(s *CommonState) { s.Rect = r })
}

// State copies the whole CommonState out.
func (w Widget) State() (CommonState, bool) {
	return msgq.Clone[CommonState](w.h)
}

func set[T any](h msgq.Handle, fn func(*T)) bool {
	_, ok := msgq.Poke(h, func(s *T) struct{} {
		fn(s)
		return struct{}{}
	})
	return ok
}
