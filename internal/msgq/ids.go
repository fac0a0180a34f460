package msgq

import (
	"math"
	"strconv"
)

// ServiceID identifies a registered service. Identities are never reused for
// the lifetime of a registry, even after the service is unregistered.
type ServiceID uint64

func (id ServiceID) String() string { return "srv#" + strconv.FormatUint(uint64(id), 10) }

// RequestID identifies a posted request. It is unique across the whole
// registry, not just within one service's queue.
type RequestID uint64

func (id RequestID) String() string { return "req#" + strconv.FormatUint(uint64(id), 10) }

// counter hands out monotonically increasing identities. The zero identity
// is never allocated so zero values read as "none".
type counter struct {
	next uint64
}

func newCounter() counter {
	return counter{next: 1}
}

// take returns the current value and advances the counter by one.
func (c *counter) take() uint64 {
	id := c.next
	if id == math.MaxUint64 {
		panic("msgq: identity counter overflow")
	}
	c.next++
	return id
}
