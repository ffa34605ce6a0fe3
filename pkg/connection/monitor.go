package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ccu-link/ccu-go/pkg/event"
)

// Monitor errors.
var (
	ErrMonitorClosed       = errors.New("connection monitor closed")
	ErrInterfaceUnknown    = errors.New("interface not registered")
	ErrInterfaceRegistered = errors.New("interface already registered")
	ErrAlreadyConnected    = errors.New("already connected")
)

// connectTimeout bounds a single reconnection attempt.
const connectTimeout = 30 * time.Second

// State represents the connection state of one interface.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates automatic reconnection is in progress.
	StateReconnecting

	// StateClosed indicates the monitor has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc establishes the connection for one interface.
// It should return nil on success or an error on failure.
type ConnectFunc func(ctx context.Context) error

// iface is the per-interface connection state.
type iface struct {
	id        string
	state     State
	backoff   *Backoff
	connectFn ConnectFunc

	// reconnectCh coalesces reconnect triggers: a signal while one is
	// already pending is dropped.
	reconnectCh chan struct{}
}

// Monitor tracks the connection state of every backend interface and drives
// automatic reconnection with exponential backoff. It answers the
// connection-health tracker's HasRPCProxyIssue query, so ping tracking is
// suppressed while an interface is known to be down.
type Monitor struct {
	mu         sync.RWMutex
	interfaces map[string]*iface
	closed     bool

	// bus receives ConnectionStateChanged events; may be nil.
	bus *event.Bus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor publishing state changes on bus.
// A nil bus disables event publication.
func NewMonitor(bus *event.Bus) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		interfaces: make(map[string]*iface),
		bus:        bus,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Register adds an interface with its connect function and starts its
// reconnection loop. The interface starts out disconnected.
func (m *Monitor) Register(interfaceID string, connectFn ConnectFunc) error {
	return m.RegisterWithBackoff(interfaceID, connectFn, BackoffConfig{})
}

// RegisterWithBackoff adds an interface with custom backoff settings.
func (m *Monitor) RegisterWithBackoff(interfaceID string, connectFn ConnectFunc, backoff BackoffConfig) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMonitorClosed
	}
	if _, exists := m.interfaces[interfaceID]; exists {
		m.mu.Unlock()
		return ErrInterfaceRegistered
	}

	i := &iface{
		id:          interfaceID,
		state:       StateDisconnected,
		backoff:     NewBackoffWithConfig(backoff),
		connectFn:   connectFn,
		reconnectCh: make(chan struct{}, 1),
	}
	m.interfaces[interfaceID] = i
	m.wg.Add(1)
	m.mu.Unlock()

	go m.reconnectLoop(i)
	return nil
}

// Connect initiates a connection for the given interface.
func (m *Monitor) Connect(ctx context.Context, interfaceID string) error {
	m.mu.Lock()
	i, ok := m.interfaces[interfaceID]
	if !ok {
		m.mu.Unlock()
		return ErrInterfaceUnknown
	}
	if i.state == StateConnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	if i.state == StateClosed {
		m.mu.Unlock()
		return ErrMonitorClosed
	}
	old := i.state
	i.state = StateConnecting
	m.mu.Unlock()

	m.publishStateChange(i.id, old, StateConnecting, "")

	err := i.connectFn(ctx)

	m.mu.Lock()
	if err != nil {
		i.state = StateDisconnected
		m.mu.Unlock()
		m.publishStateChange(i.id, StateConnecting, StateDisconnected, err.Error())
		return err
	}
	i.state = StateConnected
	i.backoff.Reset()
	m.mu.Unlock()

	m.publishStateChange(i.id, StateConnecting, StateConnected, "")
	return nil
}

// NotifyConnectionLost marks an interface as lost and triggers automatic
// reconnection. Safe to call for unregistered interfaces.
func (m *Monitor) NotifyConnectionLost(interfaceID string, reason string) {
	m.mu.Lock()
	i, ok := m.interfaces[interfaceID]
	if !ok || i.state != StateConnected {
		m.mu.Unlock()
		return
	}
	i.state = StateReconnecting
	m.mu.Unlock()

	m.publishStateChange(i.id, StateConnected, StateReconnecting, reason)

	select {
	case i.reconnectCh <- struct{}{}:
	default:
		// Already pending
	}
}

// State returns the connection state of an interface.
// Unregistered interfaces report StateDisconnected.
func (m *Monitor) State(interfaceID string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i, ok := m.interfaces[interfaceID]; ok {
		return i.state
	}
	return StateDisconnected
}

// HasRPCProxyIssue reports whether the interface is known to be unreachable.
// Anything other than an established connection counts as an issue; an
// unregistered interface reports false so standalone trackers keep working.
func (m *Monitor) HasRPCProxyIssue(interfaceID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i, ok := m.interfaces[interfaceID]; ok {
		return i.state != StateConnected
	}
	return false
}

// BackoffAttempts returns the reconnection attempts for an interface since
// its last successful connect.
func (m *Monitor) BackoffAttempts(interfaceID string) int {
	m.mu.RLock()
	i, ok := m.interfaces[interfaceID]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return i.backoff.Attempts()
}

// Close shuts down the monitor and all reconnection loops.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, i := range m.interfaces {
		old := i.state
		i.state = StateClosed
		if old != StateClosed {
			defer m.publishStateChange(i.id, old, StateClosed, "")
		}
	}
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

// reconnectLoop handles reconnection attempts for one interface.
func (m *Monitor) reconnectLoop(i *iface) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-i.reconnectCh:
			m.attemptReconnect(i)
		}
	}
}

// attemptReconnect retries the connect function with backoff until the
// interface is connected or the monitor shuts down.
func (m *Monitor) attemptReconnect(i *iface) {
	for {
		m.mu.RLock()
		state := i.state
		m.mu.RUnlock()

		if state == StateClosed || state == StateConnected {
			return
		}

		delay := i.backoff.Next()
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(m.ctx, connectTimeout)
		err := i.connectFn(ctx)
		cancel()

		if err != nil {
			// Failed - continue looping with next backoff
			continue
		}

		m.mu.Lock()
		if i.state == StateClosed {
			m.mu.Unlock()
			return
		}
		old := i.state
		i.state = StateConnected
		i.backoff.Reset()
		m.mu.Unlock()

		m.publishStateChange(i.id, old, StateConnected, "")
		return
	}
}

// publishStateChange emits a ConnectionStateChanged event when a bus is set.
func (m *Monitor) publishStateChange(interfaceID string, old, next State, reason string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(m.ctx, event.ConnectionStateChanged{
		InterfaceID: interfaceID,
		OldState:    old.String(),
		NewState:    next.String(),
		Reason:      reason,
		Timestamp:   time.Now(),
	})
}
