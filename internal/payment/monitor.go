package payment

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jedilabs/paygate/pkg/models"
)

// SettlementHandler is invoked at most once when a watched payment instrument
// reaches a settled state.
type SettlementHandler func(paymentID string)

// Monitor runs one cancellable background poll task per active payment
// instrument. The lifecycle engine owns the cancellation: it calls Stop
// exactly once per job, at the terminal transition. Stop is idempotent and
// safe to call from inside the settlement handler it cancels.
type Monitor struct {
	client   Client
	interval time.Duration

	mu      sync.Mutex
	watches map[string]*watch
	wg      sync.WaitGroup
}

type watch struct {
	cancel context.CancelFunc
	fired  bool
}

// NewMonitor creates a Monitor polling at the given interval.
func NewMonitor(client Client, interval time.Duration) *Monitor {
	return &Monitor{
		client:   client,
		interval: interval,
		watches:  make(map[string]*watch),
	}
}

// Start begins watching paymentID. The handler fires at most once, and never
// after Stop has been called for the same instrument. Starting an already
// watched instrument is a no-op.
func (m *Monitor) Start(paymentID string, onSettled SettlementHandler) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if _, exists := m.watches[paymentID]; exists {
		m.mu.Unlock()
		cancel()
		return
	}
	m.watches[paymentID] = &watch{cancel: cancel}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.poll(ctx, paymentID, onSettled)
}

// Stop cancels the watch for paymentID and releases its goroutine. Safe to
// call repeatedly, for unknown instruments, and from within the settlement
// handler.
func (m *Monitor) Stop(paymentID string) {
	m.mu.Lock()
	w, ok := m.watches[paymentID]
	if ok {
		delete(m.watches, paymentID)
	}
	m.mu.Unlock()

	if ok {
		w.cancel()
	}
}

// StopAll cancels every active watch and waits for the poll goroutines to
// drain. Used at shutdown.
func (m *Monitor) StopAll() {
	m.mu.Lock()
	for id, w := range m.watches {
		w.cancel()
		delete(m.watches, id)
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// Active reports whether paymentID is currently being watched.
func (m *Monitor) Active(paymentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watches[paymentID]
	return ok
}

func (m *Monitor) poll(ctx context.Context, paymentID string, onSettled SettlementHandler) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		status, err := m.client.CheckStatus(ctx, paymentID)
		switch {
		case err != nil:
			// Status unknown, not settlement failure. Keep polling.
			if ctx.Err() == nil {
				slog.Warn("payment status poll failed", "payment_id", paymentID, "error", err)
			}
		case models.SettledPaymentStatus(status):
			if m.claimFire(paymentID) {
				onSettled(paymentID)
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// claimFire marks the watch as fired, serialized against Stop. Returns false
// when the watch was stopped before settlement was observed, or already fired.
func (m *Monitor) claimFire(paymentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watches[paymentID]
	if !ok || w.fired {
		return false
	}
	w.fired = true
	return true
}
