package rfq

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Monitor sweeps the store on a fixed interval and transitions stale Open
// orders to Expired. Losing a race to a concurrent fill or cancel is
// expected and swallowed: whichever operation reaches Transition first wins.
type Monitor struct {
	store    *Store
	interval time.Duration
	clk      clock.Clock
	log      *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewMonitor(store *Store, interval time.Duration, clk clock.Clock, logger *zap.Logger) *Monitor {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		store:    store,
		interval: interval,
		clk:      clk,
		log:      logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Call Stop to terminate it.
func (m *Monitor) Start() {
	go m.run()
}

// Stop terminates the sweep loop and blocks until it has exited.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

func (m *Monitor) run() {
	defer close(m.done)
	ticker := m.clk.Ticker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep expires every Open order whose expiry has passed. Exported so tests
// and callers with their own scheduling can trigger a pass directly.
func (m *Monitor) Sweep() {
	now := m.clk.Now().Unix()
	for _, o := range m.store.ListAll() {
		if o.State != StateOpen || o.Expiry > now {
			continue
		}
		_, err := m.store.Transition(o.OrderHash, []State{StateOpen}, StateExpired)
		var invalid *InvalidTransitionError
		switch {
		case err == nil:
			m.log.Info("order expired",
				zap.String("orderHash", o.OrderHash), zap.Int64("expiry", o.Expiry))
		case errors.As(err, &invalid), errors.Is(err, ErrNotFound):
			// Lost the race to a fill or cancel; benign.
			m.log.Debug("expiry race lost", zap.String("orderHash", o.OrderHash), zap.Error(err))
		default:
			m.log.Warn("expiry sweep error", zap.String("orderHash", o.OrderHash), zap.Error(err))
		}
	}
}
