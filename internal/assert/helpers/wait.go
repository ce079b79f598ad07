package helpers

import (
	"testing"
	"time"

	"github.com/kode4food/relay/internal/events"
	"github.com/kode4food/relay/pkg/api"
)

// EventWaiter waits for events matching a filter. Create before triggering
// the action
type EventWaiter struct {
	sub  *events.Subscription
	desc string
}

// DefaultWaitTimeout bounds how long a waiter blocks
const DefaultWaitTimeout = 3 * time.Second

// Subscribe creates a waiter for events of the given types
func (env *TestEnv) Subscribe(types ...api.EventType) *EventWaiter {
	var filter events.Filter
	if len(types) > 0 {
		filter = events.FilterTypes(types...)
	}
	return &EventWaiter{
		sub:  env.Hub.Subscribe(0, filter),
		desc: describeTypes(types),
	}
}

// Wait blocks until the next matching event arrives
func (w *EventWaiter) Wait(t *testing.T, timeout time.Duration) *api.Event {
	t.Helper()
	select {
	case ev, ok := <-w.sub.Events():
		if !ok {
			t.Fatalf("subscription closed waiting for %s", w.desc)
		}
		return ev
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for %s", w.desc)
		return nil
	}
}

// Collect waits for count matching events and returns them in order
func (w *EventWaiter) Collect(
	t *testing.T, count int, timeout time.Duration,
) []*api.Event {
	t.Helper()
	res := make([]*api.Event, 0, count)
	for range count {
		res = append(res, w.Wait(t, timeout))
	}
	return res
}

// Close releases the subscription
func (w *EventWaiter) Close() {
	w.sub.Close()
}

func describeTypes(types []api.EventType) string {
	if len(types) == 0 {
		return "any event"
	}
	res := ""
	for i, t := range types {
		if i > 0 {
			res += "|"
		}
		res += string(t)
	}
	return res
}
