package rfq

import (
	"sync"

	"go.uber.org/zap"
)

type EventType string

const (
	// EventSnapshot carries the full order book.
	EventSnapshot EventType = "orderBook"
	// EventFill carries a single just-filled order.
	EventFill EventType = "orderFilled"
)

// Event is one bus message. Snapshot events populate Book; fill events
// populate Order.
type Event struct {
	Type  EventType
	Book  []Order
	Order *Order
}

// Subscription is one observer's handle. Events arrive on Events() until the
// subscriber is unsubscribed or pruned for falling behind, at which point the
// channel is closed.
type Subscription struct {
	ch chan Event
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Bus fans order-book snapshots and fill events out to subscribers.
// Delivery is best effort: sends never block, and a subscriber whose buffer
// is full is dropped so one stalled consumer cannot stall the rest.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool

	snapshot func() []Order
	buf      int
	log      *zap.Logger
}

// NewBus creates a bus. snapshot supplies the current full order list for
// new subscribers and explicit PublishSnapshot calls.
func NewBus(snapshot func() []Order, bufSize int, logger *zap.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:     make(map[*Subscription]struct{}),
		snapshot: snapshot,
		buf:      bufSize,
		log:      logger,
	}
}

// Subscribe registers a new observer. The first message on the channel is a
// full snapshot, so late joiners are never missing state.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{ch: make(chan Event, b.buf)}
	sub.ch <- Event{Type: EventSnapshot, Book: b.snapshot()}
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	b.log.Debug("subscriber added", zap.Int("total", len(b.subs)))
	return sub
}

// Unsubscribe removes an observer. Idempotent.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
	b.log.Debug("subscriber removed", zap.Int("total", len(b.subs)))
}

// PublishSnapshot sends the current full order list to every subscriber.
func (b *Bus) PublishSnapshot() {
	book := b.snapshot()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishLocked(Event{Type: EventSnapshot, Book: book})
}

// PublishFill sends a fill event followed by a fresh snapshot, so observers
// that ignore individual events still converge on the correct state.
func (b *Bus) PublishFill(order Order) {
	book := b.snapshot()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishLocked(Event{Type: EventFill, Order: &order})
	b.publishLocked(Event{Type: EventSnapshot, Book: book})
}

// Close drops every subscriber and rejects future ones. Used at shutdown.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

func (b *Bus) publishLocked(evt Event) {
	for sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			// Buffer full: the subscriber is stalled. Prune it rather
			// than block the mutating caller or its peers.
			delete(b.subs, sub)
			close(sub.ch)
			b.log.Warn("dropping stalled subscriber", zap.Int("total", len(b.subs)))
		}
	}
}

// The bus doubles as the store's Notifier, translating commits into the
// broadcast sequence the streaming surface expects. The book passed by the
// store was taken inside the commit, keeping notifications consistent with
// queryable state.

func (b *Bus) OrderCreated(order Order, book []Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishLocked(Event{Type: EventSnapshot, Book: book})
}

func (b *Bus) OrderTransitioned(order Order, book []Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if order.State == StateFilled {
		b.publishLocked(Event{Type: EventFill, Order: &order})
	}
	b.publishLocked(Event{Type: EventSnapshot, Book: book})
}
