package rfq

import (
	"sync"

	"github.com/benbjohnson/clock"
)

// Notifier receives callbacks after a store mutation has committed. The book
// argument is a snapshot taken inside the same commit, so observers never see
// a notification for state that is not yet queryable.
type Notifier interface {
	OrderCreated(order Order, book []Order)
	OrderTransitioned(order Order, book []Order)
}

// Store is the exclusive holder of the order collection. All mutation goes
// through Insert and Transition; every read returns deep copies.
type Store struct {
	// pubMu serializes commit+notify pairs so notification order always
	// matches commit order. mu alone guards the collection, keeping reads
	// concurrent with notification fan-out.
	pubMu sync.Mutex
	mu    sync.RWMutex

	orders map[string]*Order
	seq    []string // hashes in insertion order, for deterministic snapshots

	clk      clock.Clock
	notifier Notifier
}

func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.New()
	}
	return &Store{
		orders: make(map[string]*Order),
		clk:    clk,
	}
}

// SetNotifier attaches the notification sink. Called once at wiring time,
// before the store is shared.
func (s *Store) SetNotifier(n Notifier) {
	s.notifier = n
}

// Insert adds a new order in the Open state, stamping CreatedAt/UpdatedAt.
// Returns ErrDuplicateOrder if the hash is already present.
func (s *Store) Insert(o Order) (Order, error) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	if _, exists := s.orders[o.OrderHash]; exists {
		s.mu.Unlock()
		return Order{}, ErrDuplicateOrder
	}
	now := s.clk.Now().UnixMilli()
	o.State = StateOpen
	o.CreatedAt = now
	o.UpdatedAt = now
	stored := o.Clone()
	s.orders[o.OrderHash] = &stored
	s.seq = append(s.seq, o.OrderHash)
	book := s.snapshotLocked()
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.OrderCreated(o.Clone(), book)
	}
	return o, nil
}

// Get returns a copy of the order, or ErrNotFound.
func (s *Store) Get(hash string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[hash]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o.Clone(), nil
}

// ListByWallet returns every order where the wallet is on either leg, in
// insertion order.
func (s *Store) ListByWallet(wallet string) []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Order
	for _, hash := range s.seq {
		o := s.orders[hash]
		if o.Signer.Wallet == wallet || o.Sender.Wallet == wallet {
			out = append(out, o.Clone())
		}
	}
	return out
}

// ListAll returns a full snapshot in insertion order.
func (s *Store) ListAll() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []Order {
	out := make([]Order, 0, len(s.seq))
	for _, hash := range s.seq {
		out = append(out, s.orders[hash].Clone())
	}
	return out
}

// Transition is the only mutation primitive for order state. It atomically
// checks that the order exists and its current state is in fromAllowed, then
// sets the new state and refreshes UpdatedAt. Concurrent calls on the same
// hash observe each other: exactly one of two racing fills can succeed.
func (s *Store) Transition(hash string, fromAllowed []State, to State) (Order, error) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	o, ok := s.orders[hash]
	if !ok {
		s.mu.Unlock()
		return Order{}, ErrNotFound
	}
	allowed := false
	for _, from := range fromAllowed {
		if o.State == from {
			allowed = true
			break
		}
	}
	if !allowed {
		err := &InvalidTransitionError{OrderHash: hash, Current: o.State, Attempted: to}
		s.mu.Unlock()
		return Order{}, err
	}
	o.State = to
	o.UpdatedAt = s.clk.Now().UnixMilli()
	updated := o.Clone()
	book := s.snapshotLocked()
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.OrderTransitioned(updated.Clone(), book)
	}
	return updated, nil
}

// Fill marks an Open order as Filled.
func (s *Store) Fill(hash string) (Order, error) {
	return s.Transition(hash, []State{StateOpen}, StateFilled)
}

// Cancel marks an Open order as Cancelled on behalf of wallet. The wallet
// must be a party to the order; a stranger gets ErrNotFound rather than a
// hint that the order exists.
func (s *Store) Cancel(hash, wallet string) (Order, error) {
	o, err := s.Get(hash)
	if err != nil {
		return Order{}, err
	}
	if o.Signer.Wallet != wallet && o.Sender.Wallet != wallet {
		return Order{}, ErrNotFound
	}
	return s.Transition(hash, []State{StateOpen}, StateCancelled)
}
