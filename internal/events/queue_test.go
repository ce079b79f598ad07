package events_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/relay/internal/events"
	"github.com/kode4food/relay/pkg/api"
)

const eventTimeout = 3 * time.Second

func TestQueueOrdered(t *testing.T) {
	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	q := events.NewQueue(
		func(batch []*api.Event) error {
			for _, ev := range batch {
				value, ok := ev.Data.(int)
				if !ok {
					return errors.New("invalid event data")
				}
				mu.Lock()
				order = append(order, value)
				if value == 3 {
					close(done)
				}
				mu.Unlock()
			}
			return nil
		},
		128,
	)
	q.Start()
	t.Cleanup(q.Flush)

	for i := 1; i <= 3; i++ {
		q.Enqueue(&api.Event{Type: api.EventTypeStepStarted, Data: i})
	}

	select {
	case <-done:
	case <-time.After(eventTimeout):
		assert.Fail(t, "timed out waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestQueueHandlerRetry(t *testing.T) {
	done := make(chan struct{})
	var mu sync.Mutex
	calls := 0

	q := events.NewQueue(
		func([]*api.Event) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 1 {
				return errors.New("handler error")
			}
			close(done)
			return nil
		},
		1,
	)
	q.Start()
	t.Cleanup(q.Flush)

	q.Enqueue(&api.Event{Type: api.EventTypeRunStarted})

	select {
	case <-done:
	case <-time.After(eventTimeout):
		assert.Fail(t, "timed out waiting for retry")
	}
}

func TestQueueHandlerPanic(t *testing.T) {
	done := make(chan struct{})
	var once sync.Once
	calls := 0

	q := events.NewQueue(
		func([]*api.Event) error {
			calls++
			if calls == 1 {
				panic("boom")
			}
			once.Do(func() { close(done) })
			return nil
		},
		1,
	)
	q.Start()
	t.Cleanup(q.Flush)

	q.Enqueue(&api.Event{Type: api.EventTypeRunStarted})

	select {
	case <-done:
	case <-time.After(eventTimeout):
		assert.Fail(t, "timed out waiting for recovery")
	}
}

func TestQueueFlushHandlesAll(t *testing.T) {
	var mu sync.Mutex
	var seen []int

	q := events.NewQueue(
		func(batch []*api.Event) error {
			mu.Lock()
			defer mu.Unlock()
			for _, ev := range batch {
				seen = append(seen, ev.Data.(int))
			}
			return nil
		},
		8,
	)
	q.Start()

	for i := range 100 {
		q.Enqueue(&api.Event{Type: api.EventTypeStepStarted, Data: i})
	}
	q.Flush()
	q.Flush()

	mu.Lock()
	defer mu.Unlock()
	if assert.Len(t, seen, 100) {
		for i, v := range seen {
			assert.Equal(t, i, v)
		}
	}
}

func TestQueueFlushWithoutStart(t *testing.T) {
	handled := 0
	q := events.NewQueue(
		func(batch []*api.Event) error {
			handled += len(batch)
			return nil
		},
		4,
	)
	q.Flush()
	assert.Zero(t, handled)
}
