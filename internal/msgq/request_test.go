package msgq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func awaitAsync(q *Request) <-chan error {
	done := make(chan error, 1)
	go func() {
		_, err := q.Await(context.Background())
		done <- err
	}()
	return done
}

func TestPingPong(t *testing.T) {
	r := New()
	_, a := newService(t, r)
	_, b := newService(t, r)

	q := a.Post(b.ID(), "ping")

	in, ok := b.Take()
	require.True(t, ok)
	assert.Equal(t, "ping", in.Payload)
	require.True(t, b.Respond(in.ID, "pong"))

	v, err := q.Await(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "pong", v)
}

func TestPingPongWhileAwaiting(t *testing.T) {
	r := New()
	_, a := newService(t, r)
	_, b := newService(t, r)

	q := a.Post(b.ID(), "ping")
	_, _, ready := q.Poll()
	require.False(t, ready)
	wake := q.Wait()
	require.NotNil(t, wake)

	result := make(chan any, 1)
	go func() {
		v, _ := q.Await(context.Background())
		result <- v
	}()

	in, ok := b.Take()
	require.True(t, ok)
	b.Respond(in.ID, "pong")

	select {
	case v := <-result:
		assert.Equal(t, "pong", v)
	case <-time.After(time.Second):
		t.Fatal("future was not woken by the response")
	}
}

func TestOutcomeDeliveredExactlyOnce(t *testing.T) {
	r := New()
	_, a := newService(t, r)
	_, b := newService(t, r)

	q := a.Post(b.ID(), "ping")
	in, _ := b.Take()
	require.True(t, b.Respond(in.ID, "pong"))

	v, err, ready := q.Poll()
	require.True(t, ready)
	require.NoError(t, err)
	assert.Equal(t, "pong", v)

	// the registry has forgotten the request; the future keeps its result
	assert.False(t, r.Respond(in.ID, "again"))
	v, err, ready = q.Poll()
	assert.True(t, ready)
	assert.NoError(t, err)
	assert.Equal(t, "pong", v)
}

func TestRejectedRequest(t *testing.T) {
	r := New()
	_, a := newService(t, r)
	_, b := newService(t, r)

	q := a.Post(b.ID(), 3.14)
	in, _ := b.Take()
	require.True(t, b.Reject(in.ID))

	_, err := q.Await(t.Context())
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestRespondWithNilPayloadIsSuccess(t *testing.T) {
	r := New()
	_, b := newService(t, r)

	q := r.Post(0, b.ID(), "noop")
	in, _ := b.Take()
	b.Respond(in.ID, nil)

	v, err := q.Await(t.Context())
	assert.NoError(t, err)
	assert.Nil(t, v)
}

func TestResolveOverwritesUnconsumedAnswer(t *testing.T) {
	r := New()
	_, b := newService(t, r)

	q := r.Post(0, b.ID(), "ping")
	in, _ := b.Take()
	b.Respond(in.ID, "first")
	b.Respond(in.ID, "second")

	v, err := q.Await(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "second", v)
}

func TestVanishedBeforeAnswer(t *testing.T) {
	r := New()
	_, a := newService(t, r)
	regB, b := newService(t, r)

	q := a.Post(b.ID(), "ping")
	in, ok := b.Take()
	require.True(t, ok)

	done := awaitAsync(q)
	require.NoError(t, regB.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrVanished)
	case <-time.After(time.Second):
		t.Fatal("future hung after the destination vanished")
	}

	// answering a request of a vanished service is a no-op
	assert.False(t, r.Respond(in.ID, "pong"))
}

func TestVanishedWakesRegisteredWaiter(t *testing.T) {
	r := New()
	regB, b := newService(t, r)

	q := r.Post(0, b.ID(), "ping")
	_, _, ready := q.Poll()
	require.False(t, ready)
	wake := q.Wait()

	require.NoError(t, regB.Close())
	select {
	case <-wake:
	default:
		t.Fatal("waiter not woken on unregister")
	}

	_, err, ready := q.Poll()
	assert.True(t, ready)
	assert.ErrorIs(t, err, ErrVanished)
}

func TestAnsweredThenVanishedStillSucceeds(t *testing.T) {
	r := New()
	regB, b := newService(t, r)

	q := r.Post(0, b.ID(), "ping")
	in, _ := b.Take()
	b.Respond(in.ID, "pong")
	require.NoError(t, regB.Close())

	v, err := q.Await(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "pong", v)
}

func TestNeverAcceptedFailsImmediately(t *testing.T) {
	r := New()
	_, a := newService(t, r)

	q := a.Post(ServiceID(999), "ping")
	_, ok := q.ID()
	assert.False(t, ok)

	_, err, ready := q.Poll()
	assert.True(t, ready)
	assert.ErrorIs(t, err, ErrNotAccepted)
	assert.Nil(t, q.Wait())
}

func TestRegistryClosedWhileAwaiting(t *testing.T) {
	r := New()
	_, b := newService(t, r)

	q := r.Post(0, b.ID(), "ping")
	done := awaitAsync(q)
	r.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrRegistryClosed)
	case <-time.After(time.Second):
		t.Fatal("future hung after registry close")
	}
}

func TestLatestWaiterIsWoken(t *testing.T) {
	r := New()
	_, b := newService(t, r)

	q := r.Post(0, b.ID(), "ping")
	_, _, ready := q.Poll()
	require.False(t, ready)
	first := q.Wait()
	_, _, ready = q.Poll()
	require.False(t, ready)
	second := q.Wait()

	in, _ := b.Take()
	b.Respond(in.ID, "pong")

	select {
	case <-second:
	default:
		t.Fatal("latest waiter not woken")
	}
	select {
	case <-first:
		t.Fatal("overwritten waiter was woken")
	default:
	}
}

func TestCancelWithdrawsQueuedRequest(t *testing.T) {
	r := New()
	_, b := newService(t, r)

	q := r.Post(0, b.ID(), "ping")
	id, _ := q.ID()
	q.Cancel()

	n, _ := b.QueueLen()
	assert.Zero(t, n)
	assert.False(t, r.Respond(id, "pong"))

	_, err, ready := q.Poll()
	assert.True(t, ready)
	assert.ErrorIs(t, err, ErrCanceled)

	r.mu.Lock()
	assert.Empty(t, r.waiters)
	assert.Empty(t, r.inflight)
	assert.Empty(t, r.responses)
	r.mu.Unlock()
}

func TestAwaitContextCancelDeregistersWaiter(t *testing.T) {
	r := New()
	_, b := newService(t, r)

	q := r.Post(0, b.ID(), "ping")
	in, _ := b.Take()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Await(ctx)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	r.mu.Lock()
	assert.Empty(t, r.waiters)
	r.mu.Unlock()

	// the late answer wakes nothing and is dropped
	assert.False(t, b.Respond(in.ID, "late"))
}

func TestRequestFuture(t *testing.T) {
	r := New()
	_, b := newService(t, r)

	f := r.Post(0, b.ID(), "ping").Future(t.Context())
	in, _ := b.Take()
	b.Respond(in.ID, "pong")

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	v, err := f.AwaitContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pong", v)
}

func TestRequestFutureOfCompletedRequest(t *testing.T) {
	r := New()
	_, b := newService(t, r)

	q := r.Post(0, b.ID(), "ping")
	in, _ := b.Take()
	b.Respond(in.ID, "pong")
	_, _, ready := q.Poll()
	require.True(t, ready)

	v, err := q.Future(t.Context()).Await()
	require.NoError(t, err)
	assert.Equal(t, "pong", v)

	_, err = r.Post(0, 999, "nobody").Future(t.Context()).Await()
	assert.ErrorIs(t, err, ErrNotAccepted)
}

func TestRequestFutureEndsWithContext(t *testing.T) {
	r := New()
	_, b := newService(t, r)

	ctx, cancel := context.WithCancel(t.Context())
	f := r.Post(0, b.ID(), "never answered").Future(ctx)
	cancel()

	_, err := f.Await()
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	n, _ := b.QueueLen()
	assert.Zero(t, n)
}

func TestCancelAfterCompletionKeepsPayload(t *testing.T) {
	r := New()
	_, b := newService(t, r)

	q := r.Post(0, b.ID(), "ping")
	in, _ := b.Take()
	b.Respond(in.ID, "pong")
	_, _, ready := q.Poll()
	require.True(t, ready)

	// an Await whose context ends just as another poll completed the
	// request must still report the answer
	payload, err := q.cancel(ErrCanceled)
	require.NoError(t, err)
	assert.Equal(t, "pong", payload)

	q.Cancel()
	payload, err, ready = q.Poll()
	require.True(t, ready)
	require.NoError(t, err)
	assert.Equal(t, "pong", payload)
}

func TestCallAssertsResponseType(t *testing.T) {
	r := New()
	_, a := newService(t, r)
	_, b := newService(t, r)

	go func() {
		ch, _ := b.Notify()
		for range ch {
			for {
				in, ok := b.Take()
				if !ok {
					break
				}
				switch in.Payload {
				case "int":
					b.Respond(in.ID, 7)
				default:
					b.Respond(in.ID, "seven")
				}
			}
		}
	}()

	n, err := Call[int](t.Context(), a, b.ID(), "int")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = Call[int](t.Context(), a, b.ID(), "string")
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestConcurrentRequests(t *testing.T) {
	r := New()
	regB, b := newService(t, r)
	ch, _ := b.Notify()

	go func() {
		for range ch {
			for {
				in, ok := b.Take()
				if !ok {
					break
				}
				b.Respond(in.ID, in.Payload.(int)*2)
			}
		}
	}()

	const clients = 8
	const perClient = 50
	var wg sync.WaitGroup
	errs := make(chan error, clients*perClient)
	for c := 0; c < clients; c++ {
		_, h := newService(t, r)
		wg.Add(1)
		go func(h Handle, base int) {
			defer wg.Done()
			for i := 0; i < perClient; i++ {
				n, err := Call[int](context.Background(), h, b.ID(), base+i)
				if err != nil {
					errs <- err
					continue
				}
				if n != (base+i)*2 {
					errs <- errors.New("wrong answer")
				}
			}
		}(h, c*1000)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	require.NoError(t, regB.Close())
}
