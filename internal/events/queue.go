package events

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/relay/pkg/api"
	"github.com/kode4food/relay/pkg/log"
)

type (
	// Queue hands queued run events to a handler sequentially in bounded
	// batches
	Queue struct {
		prod        topic.Producer[*api.Event]
		cons        topic.Consumer[*api.Event]
		handler     Handler
		stop        chan struct{}
		batchSize   int
		wg          sync.WaitGroup
		pending     sync.WaitGroup
		startOnce   sync.Once
		stopOnce    sync.Once
		cleanupOnce sync.Once
	}

	// Handler processes a batch of run events
	Handler func([]*api.Event) error
)

var ErrHandlerPanicked = errors.New("event handler panicked")

const (
	maxRetries = 3
	retryDelay = 100 * time.Millisecond
)

// NewQueue creates a new event queue with the provided batch size
func NewQueue(handler Handler, batchSize int) *Queue {
	queue := caravan.NewTopic[*api.Event]()
	return &Queue{
		prod:      queue.NewProducer(),
		cons:      queue.NewConsumer(),
		handler:   handler,
		stop:      make(chan struct{}),
		batchSize: max(batchSize, 1),
	}
}

// Start begins processing queued events
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.wg.Go(func() {
			for {
				select {
				case <-q.stop:
					return
				case ev, ok := <-q.cons.Receive():
					if !ok {
						return
					}
					batch := q.collectBatch(ev)
					q.handleBatch(batch)
					q.pending.Add(-len(batch))
				}
			}
		})
	})
}

// Enqueue adds an event to the queue. It must not be called once Flush has
// begun
func (q *Queue) Enqueue(ev *api.Event) {
	q.pending.Add(1)
	q.prod.Send() <- ev
}

// Flush waits until every enqueued event has been handed to the handler,
// then stops the queue
func (q *Queue) Flush() {
	q.Start()
	q.pending.Wait()
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
	q.cleanupOnce.Do(q.close)
}

func (q *Queue) collectBatch(first *api.Event) []*api.Event {
	batch := []*api.Event{first}
	for len(batch) < q.batchSize {
		select {
		case ev, ok := <-q.cons.Receive():
			if !ok {
				return batch
			}
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

func (q *Queue) close() {
	q.prod.Close()
	q.cons.Close()
}

func (q *Queue) handleBatch(batch []*api.Event) {
	for attempt := range maxRetries {
		err := q.tryHandleBatch(batch)
		if err == nil {
			return
		}
		slog.Error("Run event batch failed",
			slog.Int("batch_size", len(batch)),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", maxRetries),
			log.Error(err))
		if attempt < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	slog.Error("Run event batch permanently failed",
		slog.Int("batch_size", len(batch)))
}

func (q *Queue) tryHandleBatch(batch []*api.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanicked, r)
		}
	}()
	return q.handler(batch)
}
