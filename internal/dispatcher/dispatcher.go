package dispatcher

import (
	"sync"

	"github.com/askhat-b/MentorLink/internal/models"
	"github.com/askhat-b/MentorLink/pkg/logger"
	"github.com/google/uuid"
)

// subscriberBuffer is the per-subscription channel capacity. A subscriber that
// falls this far behind starts losing events and must reconcile via the list
// endpoints.
const subscriberBuffer = 64

// Dispatcher is a topic-keyed publish/subscribe hub. Topics are plain strings
// ("conversation:<id>", "identity:<id>"); every notification in the system
// flows through this one mechanism.
type Dispatcher struct {
	mu     sync.RWMutex
	topics map[string]*topic
}

type topic struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

// Subscription is the handle returned by Subscribe. Events arrive on Events()
// in publish order for the subscribed topic.
type Subscription struct {
	ID    string
	Topic string

	d      *Dispatcher
	events chan models.Event
	once   sync.Once
}

// Events returns the subscriber's delivery channel. It is closed by Unsubscribe.
func (s *Subscription) Events() <-chan models.Event {
	return s.events
}

func New() *Dispatcher {
	return &Dispatcher{
		topics: make(map[string]*topic),
	}
}

// Subscribe registers a new subscriber on the given topic.
func (d *Dispatcher) Subscribe(topicName string) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		Topic:  topicName,
		d:      d,
		events: make(chan models.Event, subscriberBuffer),
	}

	// Register while still holding d.mu: releasing it before t.mu would let a
	// concurrent Unsubscribe drop the topic from the map in between, leaving
	// the new subscriber on an orphaned topic that Publish never finds.
	d.mu.Lock()
	t, ok := d.topics[topicName]
	if !ok {
		t = &topic{subs: make(map[string]*Subscription)}
		d.topics[topicName] = t
	}
	t.mu.Lock()
	t.subs[sub.ID] = sub
	t.mu.Unlock()
	d.mu.Unlock()

	return sub
}

// Publish delivers the event to every current subscriber of the topic.
// Delivery is fire-and-forget: a subscriber with a full buffer loses the
// event (logged) and never blocks delivery to the others. Only the topic's
// own lock is held, so contention on one conversation never touches another.
func (d *Dispatcher) Publish(topicName string, event models.Event) {
	d.mu.RLock()
	t, ok := d.topics[topicName]
	d.mu.RUnlock()
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sub := range t.subs {
		select {
		case sub.events <- event:
		default:
			logger.Log.WithFields(map[string]interface{}{
				"topic":        topicName,
				"subscription": sub.ID,
				"event_type":   event.Type,
			}).Warn("Dropping event for slow subscriber")
		}
	}
}

// Unsubscribe removes the subscription and closes its channel. Safe to call
// multiple times and after the underlying connection has dropped.
func (d *Dispatcher) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.once.Do(func() {
		d.mu.RLock()
		t, ok := d.topics[sub.Topic]
		d.mu.RUnlock()
		if ok {
			t.mu.Lock()
			delete(t.subs, sub.ID)
			empty := len(t.subs) == 0
			t.mu.Unlock()

			if empty {
				d.mu.Lock()
				if t2, ok := d.topics[sub.Topic]; ok {
					t2.mu.Lock()
					if len(t2.subs) == 0 {
						delete(d.topics, sub.Topic)
					}
					t2.mu.Unlock()
				}
				d.mu.Unlock()
			}
		}
		close(sub.events)
	})
}
