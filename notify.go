package taskgraph

import "sync"

// Event is a stable notification-bus event name (see spec §4.6).
type Event string

const (
	EventTaskDidStart  Event = "TaskDidStart"
	EventTaskDidFinish Event = "TaskDidFinish"
	EventTaskDidFail   Event = "TaskDidFail"
	EventTaskDidCancel Event = "TaskDidCancel"
	EventTaskDidReset  Event = "TaskDidReset"
	EventTaskDidRetry  Event = "TaskDidRetry"

	EventWorkflowWillStart Event = "WorkflowWillStart"
	EventWorkflowWillCancel Event = "WorkflowWillCancel"
	EventWorkflowWillReset  Event = "WorkflowWillReset"
	EventWorkflowWillRetry  Event = "WorkflowWillRetry"
	EventWorkflowDidFinish  Event = "WorkflowDidFinish"

	EventWorkflowTaskDidCancel Event = "WorkflowTaskDidCancel"
	EventWorkflowTaskDidFail   Event = "WorkflowTaskDidFail"
)

// Notification is the payload delivered to a NotificationBus subscriber.
type Notification struct {
	Event  Event
	Source any   // the *Task or *Workflow that posted the event
	Task   *Task // populated for WorkflowTaskDidCancel / WorkflowTaskDidFail
}

// Observer receives notifications synchronously, on the goroutine that
// drove the state change.
type Observer func(Notification)

type busKey struct {
	source any
	event  Event
}

// NotificationBus is a named-event fan-out keyed by (source, event-name)
// pairs, generalized from the teacher's RWMutex-guarded named-value map
// (WorkflowContext.values) into a RWMutex-guarded map of subscriber slices.
type NotificationBus struct {
	mu   sync.RWMutex
	subs map[busKey][]Observer
}

// NewNotificationBus returns an empty bus ready for use.
func NewNotificationBus() *NotificationBus {
	return &NotificationBus{subs: make(map[busKey][]Observer)}
}

// Subscribe registers obs to be called for every notification posted with
// the given source and event. The returned func removes the subscription;
// it is safe to call more than once.
func (b *NotificationBus) Subscribe(source any, event Event, obs Observer) func() {
	key := busKey{source: source, event: event}

	b.mu.Lock()
	b.subs[key] = append(b.subs[key], obs)
	idx := len(b.subs[key]) - 1
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			entries := b.subs[key]
			if idx < len(entries) {
				// Replace with a no-op rather than reslicing, so other
				// subscribers' indices remain valid.
				entries[idx] = func(Notification) {}
			}
		})
	}
}

// Post synchronously fans a notification out to every subscriber registered
// for (n.Source, n.Event). Subscribers are copied out from under the lock
// before being invoked, so a subscriber may safely Subscribe/unsubscribe
// from within its own callback.
func (b *NotificationBus) Post(n Notification) {
	key := busKey{source: n.Source, event: n.Event}

	b.mu.RLock()
	observers := append([]Observer(nil), b.subs[key]...)
	b.mu.RUnlock()

	for _, obs := range observers {
		obs(n)
	}
}
