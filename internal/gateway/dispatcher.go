package gateway

import (
	"sync"

	"go.uber.org/zap"
)

// subscriptionBuffer bounds each subscriber's delivery channel. A connection
// that falls this far behind is forcibly disconnected rather than allowed to
// silently skip events.
const subscriptionBuffer = 64

// Delivery pairs a published event with its routing target. Each connection
// filters deliveries against its own authentication state.
type Delivery struct {
	Target Target
	Event  Event
}

// Dispatcher is the process-wide best-effort broadcast bus. REST handlers
// and gateway handlers publish (target, event) pairs; every live connection
// holds a subscription and receives everything, filtering locally. It is not
// a durable log: publishing never blocks, and events published while a
// subscriber's buffer is full cost that subscriber its feed.
type Dispatcher struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	log  *zap.Logger
}

// NewDispatcher constructs a dispatcher. Pass zap.NewNop() in tests.
func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		subs: make(map[*Subscription]struct{}),
		log:  log,
	}
}

// Subscription is one receiver's end of the bus. C is closed when the
// subscriber lags beyond its buffer or after Close.
type Subscription struct {
	C chan Delivery

	d      *Dispatcher
	closed bool // guarded by d.mu
}

// Subscribe registers a new receiver.
func (d *Dispatcher) Subscribe() *Subscription {
	s := &Subscription{C: make(chan Delivery, subscriptionBuffer), d: d}
	d.mu.Lock()
	d.subs[s] = struct{}{}
	d.mu.Unlock()
	return s
}

// Close removes the subscription from the bus. Safe to call more than once.
func (s *Subscription) Close() {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(s.d.subs, s)
	close(s.C)
}

// Publish fans the event out to every subscriber without blocking. With no
// subscribers it logs and returns; REST request paths must never stall on
// delivery. A subscriber whose buffer is full has its channel closed, which
// its connection observes as a lagged feed and treats as fatal.
func (d *Dispatcher) Publish(target Target, event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.subs) == 0 {
		d.log.Debug("publish with no subscribers", zap.String("event", event.Tag))
		return
	}

	for s := range d.subs {
		select {
		case s.C <- Delivery{Target: target, Event: event}:
		default:
			d.log.Warn("subscriber lagged, dropping it", zap.String("event", event.Tag))
			s.closed = true
			delete(d.subs, s)
			close(s.C)
		}
	}
}
