package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultPollInterval is how often the monitor actively probes the server.
	DefaultPollInterval = 30 * time.Second
	// DefaultProbeTimeout bounds a single probe round trip.
	DefaultProbeTimeout = 5 * time.Second
)

// Prober checks whether the sync server is reachable. A nil error means
// online.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Config configures a Monitor. Zero values fall back to defaults.
type Config struct {
	Prober       Prober
	PollInterval time.Duration
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

// Monitor tracks reachability of the sync server. Platform signals (cable
// unplugged, interface down) are taken as hints that trigger an immediate
// probe; the probe result is the ground truth, and state changes flow
// through a single transition point so flapping platform events cannot
// produce duplicate notifications.
type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu          sync.Mutex
	online      bool
	subscribers map[int]func(online bool)
	nextSubID   int
	onReconnect func()
	destroyed   bool

	kick chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewMonitor creates a monitor and starts its polling loop. The first probe
// runs immediately; until it completes the monitor reports offline.
func NewMonitor(cfg Config) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	m := &Monitor{
		prober:      cfg.Prober,
		interval:    cfg.PollInterval,
		timeout:     cfg.ProbeTimeout,
		logger:      cfg.Logger,
		subscribers: make(map[int]func(bool)),
		kick:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go m.loop()
	return m
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Report feeds a passive platform signal into the monitor. The signal is
// not trusted directly; it schedules an immediate probe whose result drives
// any transition.
func (m *Monitor) Report(online bool) {
	m.logger.Debug("platform connectivity signal", "online", online)
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Subscribe registers a callback invoked on every state transition. The
// returned function removes the subscription.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// OnReconnect registers a one-shot callback for the next offline-to-online
// transition. If the monitor is already online the callback runs
// immediately; otherwise it replaces any previously armed callback.
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	if m.online {
		m.mu.Unlock()
		fn()
		return
	}
	m.onReconnect = fn
	m.mu.Unlock()
}

// Destroy stops the polling loop and drops all subscribers. Safe to call
// more than once.
func (m *Monitor) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.subscribers = make(map[int]func(bool))
	m.onReconnect = nil
	m.mu.Unlock()

	close(m.stop)
	<-m.done
}

func (m *Monitor) loop() {
	defer close(m.done)

	m.poll()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.poll()
		case <-m.kick:
			m.poll()
		}
	}
}

func (m *Monitor) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	err := m.prober.Probe(ctx)
	m.setState(err == nil)
}

// setState is the single transition point. Probe results that do not change
// the state are absorbed silently.
func (m *Monitor) setState(online bool) {
	m.mu.Lock()
	if m.destroyed || m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	subs := make([]func(bool), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	var reconnect func()
	if online && m.onReconnect != nil {
		reconnect = m.onReconnect
		m.onReconnect = nil
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed", "online", online)
	for _, fn := range subs {
		fn(online)
	}
	if reconnect != nil {
		reconnect()
	}
}
