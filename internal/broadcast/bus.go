package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verhoeven/escape-controller/internal/monitor"
)

// DefaultQueueSize bounds a subscriber's queue when the config does not say
// otherwise. Sized for bursts (a transition emits up to five events) while
// keeping a stuck observer's cost small.
const DefaultQueueSize = 200

// Subscription is one observer's bounded event queue. Receive from C until
// it is closed; Close unregisters and is safe to call more than once.
type Subscription struct {
	// ID identifies the subscriber in logs and drop accounting.
	ID string
	// C delivers events in publish order. Closed on unregister.
	C <-chan Event

	bus  *Bus
	ch   chan Event
	once sync.Once
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() { s.bus.unregister(s) })
}

// Bus fans events out to subscribers. Publish never blocks: each subscriber
// has a bounded queue and an event that finds the queue full is dropped for
// that subscriber only. Observers recover from drops via the next full_state
// event or by querying the state endpoint.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]*Subscription
	size    int
	dropped uint64

	log     *zap.SugaredLogger
	metrics *monitor.Metrics
}

// New creates a bus whose subscribers each get a queue of queueSize events.
// queueSize <= 0 selects DefaultQueueSize.
func New(queueSize int, log *zap.SugaredLogger, metrics *monitor.Metrics) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Bus{
		subs:    make(map[string]*Subscription),
		size:    queueSize,
		log:     log,
		metrics: metrics,
	}
}

// Register adds a subscriber and returns its queue.
func (b *Bus) Register() *Subscription {
	sub := &Subscription{
		ID:  uuid.NewString(),
		bus: b,
		ch:  make(chan Event, b.size),
	}
	sub.C = sub.ch

	b.mu.Lock()
	b.subs[sub.ID] = sub
	n := len(b.subs)
	b.mu.Unlock()

	b.metrics.SetSubscribers(n)
	b.log.Debugw("subscriber registered", "id", sub.ID, "subscribers", n)
	return sub
}

// unregister removes the subscription and closes its channel. Removal and
// close happen under the bus lock, so a concurrent Publish can never send on
// the closed channel.
func (b *Bus) unregister(s *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[s.ID]; ok {
		delete(b.subs, s.ID)
		close(s.ch)
	}
	n := len(b.subs)
	b.mu.Unlock()

	b.metrics.SetSubscribers(n)
	b.log.Debugw("subscriber unregistered", "id", s.ID, "subscribers", n)
}

// Publish delivers evt to every subscriber that has queue space and drops it
// for the rest. It never blocks and is a no-op with no subscribers.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			b.dropped++
			b.metrics.IncEventDropped()
			b.log.Debugw("event dropped on full queue", "id", sub.ID, "type", evt.Type)
		}
	}
	b.mu.Unlock()

	b.metrics.IncEventPublished(string(evt.Type))
}

// Count returns the current subscriber count.
func (b *Bus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns the total events dropped since the bus was created.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
