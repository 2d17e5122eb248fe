package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/buzkaaclicker/streams"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
)

func newTestQueue(size int) *Queue {
	q := NewQueue(size)
	q.NewBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	return q
}

// runQueue starts q and returns a function stopping it and waiting for Run
// to return.
func runQueue(q *Queue) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestQueueRunsInOrder(t *testing.T) {
	assert := assert.New(t)
	q := newTestQueue(10)
	stop := runQueue(q)

	var mutex sync.Mutex
	var ran []string
	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c"} {
		name := name
		wg.Add(1)
		err := q.Enqueue(context.Background(), streams.Task{Name: name, Run: func(ctx context.Context) error {
			defer wg.Done()
			mutex.Lock()
			ran = append(ran, name)
			mutex.Unlock()
			return nil
		}})
		if !assert.NoError(err) {
			return
		}
	}
	wg.Wait()
	stop()
	assert.Equal([]string{"a", "b", "c"}, ran)
}

func TestQueueRetries(t *testing.T) {
	assert := assert.New(t)
	q := newTestQueue(1)
	stop := runQueue(q)

	attempts := 0
	done := make(chan struct{})
	err := q.Enqueue(context.Background(), streams.Task{Name: "flaky", Run: func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("cache unavailable")
		}
		close(done)
		return nil
	}})
	if !assert.NoError(err) {
		return
	}
	<-done
	stop()
	assert.Equal(3, attempts)
}

func TestQueueGivesUp(t *testing.T) {
	assert := assert.New(t)
	q := newTestQueue(1)
	stop := runQueue(q)

	attempts := make(chan struct{}, 10)
	err := q.Enqueue(context.Background(), streams.Task{Name: "broken", Run: func(ctx context.Context) error {
		attempts <- struct{}{}
		return errors.New("always")
	}})
	if !assert.NoError(err) {
		return
	}
	next := make(chan struct{})
	err = q.Enqueue(context.Background(), streams.Task{Name: "next", Run: func(ctx context.Context) error {
		close(next)
		return nil
	}})
	if !assert.NoError(err) {
		return
	}
	<-next
	stop()
	assert.Len(attempts, 4, "first attempt and three retries")
}

func TestQueuePermanentError(t *testing.T) {
	assert := assert.New(t)
	q := newTestQueue(1)
	stop := runQueue(q)

	attempts := 0
	done := make(chan struct{})
	err := q.Enqueue(context.Background(), streams.Task{Name: "permanent", Run: func(ctx context.Context) error {
		attempts++
		defer close(done)
		return backoff.Permanent(errors.New("gone"))
	}})
	if !assert.NoError(err) {
		return
	}
	<-done
	stop()
	assert.Equal(1, attempts)
}

func TestEnqueueFull(t *testing.T) {
	assert := assert.New(t)
	q := newTestQueue(1)
	q.EnqueueWait = 10 * time.Millisecond
	noop := streams.Task{Name: "noop", Run: func(ctx context.Context) error { return nil }}

	assert.NoError(q.Enqueue(context.Background(), noop))

	started := time.Now()
	err := q.Enqueue(context.Background(), noop)
	assert.ErrorIs(err, ErrQueueFull)
	assert.Less(time.Since(started), time.Second, "a full queue must not block a context without deadline")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = q.Enqueue(ctx, noop)
	assert.ErrorIs(err, context.Canceled)
	assert.False(errors.Is(err, ErrQueueFull))
}

func TestRunDrainsOnShutdown(t *testing.T) {
	assert := assert.New(t)
	q := newTestQueue(2)

	ran := 0
	count := streams.Task{Name: "count", Run: func(ctx context.Context) error {
		ran++
		return nil
	}}
	assert.NoError(q.Enqueue(context.Background(), count))
	assert.NoError(q.Enqueue(context.Background(), count))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.Run(ctx)
	assert.Equal(2, ran)
}
