// Package network implements the NetworkMonitor from spec §4.5: a thin
// wrapper around a pluggable reachability probe that fans status changes
// out to subscribers, suppressing updates that don't change is_connected or
// is_internet_reachable (engine.Observably).
package network

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/syncengine/internal/engine"
)

// Prober is the pluggable reachability check a Monitor polls. Production
// wiring supplies one backed by a platform reachability API or an HTTP HEAD
// probe; tests supply a func literal.
type Prober func(ctx context.Context) engine.NetworkStatus

// Monitor is the default engine.NetworkReachability implementation.
type Monitor struct {
	probe        Prober
	pollInterval time.Duration

	mu        sync.RWMutex
	last      engine.NetworkStatus
	listeners map[int]func(engine.NetworkStatus)
	nextID    int

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Monitor. pollInterval controls how often probe is called
// while running in the background; Initialize calls probe once synchronously
// before returning.
func New(probe Prober, pollInterval time.Duration) *Monitor {
	return &Monitor{
		probe:        probe,
		pollInterval: pollInterval,
		listeners:    make(map[int]func(engine.NetworkStatus)),
	}
}

func (m *Monitor) Initialize(ctx context.Context) error {
	m.mu.Lock()
	m.last = m.probe(ctx)
	m.mu.Unlock()

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(loopCtx)
	return nil
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	next := m.probe(ctx)

	m.mu.Lock()
	prev := m.last
	changed := engine.Observably(prev, next)
	m.last = next
	var fanout []func(engine.NetworkStatus)
	if changed {
		for _, l := range m.listeners {
			fanout = append(fanout, l)
		}
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	log.Debug().Bool("connected", next.IsConnected).Msg("network status changed")
	for _, l := range fanout {
		l(next)
	}
}

// IsOnline reports connected-and-reachable (spec §4.5): is_connected must be
// true and is_internet_reachable must not be an explicit "no". Unknown
// reachability is treated as online, since plenty of probes can only ever
// confirm link-layer connectivity.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last.IsConnected && m.last.IsInternetReachable != engine.No
}

func (m *Monitor) Status() engine.NetworkStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Subscribe registers listener and returns a func that removes it. Listener
// panics are not recovered here; callers that need isolation between
// subscribers should recover inside their own listener, matching the
// orchestrator's observer contract (spec §4.6).
func (m *Monitor) Subscribe(listener func(engine.NetworkStatus)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) Shutdown() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}
