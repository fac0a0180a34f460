package msgq

import "reflect"

// stateMap holds at most one value per Go type. The value stored under
// reflect.TypeFor[T]() is always a *T.
type stateMap map[reflect.Type]any

func stateSlot[T any](m stateMap) (*T, bool) {
	v, ok := m[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	p, ok := v.(*T)
	return p, ok
}

// Cloner lets a state type provide its own deep copy for [Clone].
type Cloner[T any] interface {
	Clone() T
}

// Put stores v as the service's state of type T, replacing any previous value
// of the same type. It is a no-op when the service or registry is gone.
func Put[T any](h Handle, v T) {
	h.withService(func(s *service) bool {
		s.state[reflect.TypeFor[T]()] = &v
		return true
	})
}

// Peek calls fn with the stored T and returns its result. ok is false when no
// T is stored or the service is gone; the two cases are not distinguished.
//
// fn runs under the registry lock and must not call back into the registry.
func Peek[T, V any](h Handle, fn func(T) V) (out V, ok bool) {
	ok = h.withService(func(s *service) bool {
		p, found := stateSlot[T](s.state)
		if !found {
			return false
		}
		out = fn(*p)
		return true
	})
	return out, ok
}

// Poke is Peek with in-place mutable access to the stored T.
func Poke[T, V any](h Handle, fn func(*T) V) (out V, ok bool) {
	ok = h.withService(func(s *service) bool {
		p, found := stateSlot[T](s.state)
		if !found {
			return false
		}
		out = fn(p)
		return true
	})
	return out, ok
}

// Clone returns a copy of the stored T. Types implementing [Cloner] are
// deep-copied through it, all others are copied by value.
func Clone[T any](h Handle) (out T, ok bool) {
	ok = h.withService(func(s *service) bool {
		p, found := stateSlot[T](s.state)
		if !found {
			return false
		}
		out = *p
		if c, isCloner := any(out).(Cloner[T]); isCloner {
			out = c.Clone()
		}
		return true
	})
	return out, ok
}

// Remove deletes the stored T and returns it.
func Remove[T any](h Handle) (out T, ok bool) {
	ok = h.withService(func(s *service) bool {
		p, found := stateSlot[T](s.state)
		if !found {
			return false
		}
		delete(s.state, reflect.TypeFor[T]())
		out = *p
		return true
	})
	return out, ok
}
