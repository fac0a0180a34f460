package msgq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterState struct {
	N int
}

type tagState struct {
	Tags []string
}

func (t tagState) Clone() tagState {
	return tagState{Tags: append([]string(nil), t.Tags...)}
}

func newService(t *testing.T, r *Registry) (*Registration, Handle) {
	t.Helper()
	reg, err := Register(r)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg, reg.Handle()
}

func TestPutReplacesSameType(t *testing.T) {
	_, h := newService(t, New())

	Put(h, counterState{N: 1})
	Put(h, counterState{N: 2})

	n, ok := Peek(h, func(s counterState) int { return s.N })
	require.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestDistinctTypesDoNotCollide(t *testing.T) {
	_, h := newService(t, New())

	Put(h, counterState{N: 5})
	Put(h, "label")
	Put(h, 42)

	s, ok := Clone[string](h)
	require.True(t, ok)
	assert.Equal(t, "label", s)

	i, ok := Clone[int](h)
	require.True(t, ok)
	assert.Equal(t, 42, i)

	c, ok := Clone[counterState](h)
	require.True(t, ok)
	assert.Equal(t, 5, c.N)
}

func TestAbsentStateForEveryAccessor(t *testing.T) {
	_, h := newService(t, New())

	_, ok := Peek(h, func(s counterState) int { return s.N })
	assert.False(t, ok)
	_, ok = Poke(h, func(s *counterState) int { return s.N })
	assert.False(t, ok)
	_, ok = Clone[counterState](h)
	assert.False(t, ok)
	_, ok = Remove[counterState](h)
	assert.False(t, ok)
}

func TestPokeMutatesInPlace(t *testing.T) {
	_, h := newService(t, New())
	Put(h, counterState{})

	for i := 0; i < 3; i++ {
		_, ok := Poke(h, func(s *counterState) struct{} { s.N++; return struct{}{} })
		require.True(t, ok)
	}

	n, _ := Peek(h, func(s counterState) int { return s.N })
	assert.Equal(t, 3, n)
}

func TestCloneUsesCloner(t *testing.T) {
	_, h := newService(t, New())
	Put(h, tagState{Tags: []string{"a"}})

	c, ok := Clone[tagState](h)
	require.True(t, ok)
	c.Tags[0] = "changed"

	orig, _ := Peek(h, func(s tagState) string { return s.Tags[0] })
	assert.Equal(t, "a", orig)
}

func TestRemoveThenPeekIsAbsent(t *testing.T) {
	_, h := newService(t, New())
	Put(h, counterState{N: 9})

	v, ok := Remove[counterState](h)
	require.True(t, ok)
	assert.Equal(t, 9, v.N)

	_, ok = Peek(h, func(s counterState) int { return s.N })
	assert.False(t, ok)
	_, ok = Remove[counterState](h)
	assert.False(t, ok)
}

func TestStateGoneAfterUnregister(t *testing.T) {
	reg, h := newService(t, New())
	Put(h, counterState{N: 1})
	require.NoError(t, reg.Close())

	_, ok := Peek(h, func(s counterState) int { return s.N })
	assert.False(t, ok)

	// writes to a vanished service do not resurrect it
	Put(h, counterState{N: 2})
	assert.False(t, h.Alive())
	_, ok = Clone[counterState](h)
	assert.False(t, ok)
}

func TestStaleHandlesAfterRegistryClose(t *testing.T) {
	r := New()
	_, h := newService(t, r)
	Put(h, counterState{N: 1})

	r.Close()

	_, ok := Peek(h, func(s counterState) int { return s.N })
	assert.False(t, ok)
	_, ok = h.Take()
	assert.False(t, ok)
	_, ok = h.QueueLen()
	assert.False(t, ok)
	assert.False(t, h.Respond(1, "x"))

	_, err := Register(r)
	assert.ErrorIs(t, err, ErrRegistryClosed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestZeroHandle(t *testing.T) {
	var h Handle
	Put(h, counterState{N: 1})
	_, ok := Clone[counterState](h)
	assert.False(t, ok)
	assert.False(t, h.Alive())

	_, err := h.Post(1, "ping").Await(t.Context())
	assert.ErrorIs(t, err, ErrNotFound)
}
