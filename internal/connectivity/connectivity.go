// Package connectivity tracks whether remote inference is reachable. A
// Prober answers the point-in-time question; a Monitor runs the probe on a
// fixed interval in the background and fires callbacks on state transitions
// so the capture path can switch between online processing and the offline
// store.
package connectivity

import (
	"context"
	"net"
	"sync"
	"time"

	"medecho/internal/logging"
)

// DefaultEndpoints are well-known always-up resolvers probed for
// reachability. Success on any one of them means online.
var DefaultEndpoints = []string{"8.8.8.8:53", "1.1.1.1:53"}

// ProbeTimeout bounds each individual connection attempt.
const ProbeTimeout = 2 * time.Second

// DialFunc dials a network address; injectable for tests.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Prober checks reachability of a fixed endpoint set.
type Prober struct {
	endpoints []string
	dial      DialFunc
}

// NewProber returns a Prober over the given endpoints, or DefaultEndpoints
// when none are given.
func NewProber(endpoints ...string) *Prober {
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	d := &net.Dialer{Timeout: ProbeTimeout}
	return &Prober{endpoints: endpoints, dial: d.DialContext}
}

// SetDial overrides the dialer. Test hook.
func (p *Prober) SetDial(dial DialFunc) { p.dial = dial }

// Online reports whether any endpoint is reachable. Dial failures of any
// kind, DNS errors included, count as not reachable and never propagate.
func (p *Prober) Online(ctx context.Context) bool {
	for _, ep := range p.endpoints {
		dialCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
		conn, err := p.dial(dialCtx, "tcp", ep)
		cancel()
		if err != nil {
			continue
		}
		conn.Close()
		return true
	}
	return false
}

// State is the monitor's remembered connectivity state.
type State int

const (
	// StateUnknown means no probe has completed yet. Callers must treat
	// unknown as offline so captured data is persisted rather than dropped.
	StateUnknown State = iota
	StateOffline
	StateOnline
)

// Monitor polls connectivity on a fixed interval and fires exactly one
// callback per observed state change. It is the only component meant to run
// continuously in the background.
type Monitor struct {
	probe     func(ctx context.Context) bool
	interval  time.Duration
	onOnline  func()
	onOffline func()

	mu      sync.Mutex
	state   State
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// MonitorConfig configures a Monitor. Nil callbacks are no-ops.
type MonitorConfig struct {
	// Probe reports current reachability. Defaults to a Prober over
	// DefaultEndpoints.
	Probe func(ctx context.Context) bool

	// Interval between probes. Defaults to 10 seconds.
	Interval time.Duration

	OnOnline  func()
	OnOffline func()
}

// NewMonitor creates a stopped Monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	probe := cfg.Probe
	if probe == nil {
		probe = NewProber().Online
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		probe:     probe,
		interval:  interval,
		onOnline:  cfg.OnOnline,
		onOffline: cfg.OnOffline,
		state:     StateUnknown,
	}
}

// Start launches the background probe loop. Calling Start on a running
// monitor is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(m.stop, m.done)
}

// Stop requests shutdown and waits for the loop to exit. At most one
// in-flight probe may still complete; no callbacks fire afterwards.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done
}

// Online reports the last observed state. Unknown is reported as offline.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateOnline
}

func (m *Monitor) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.observe(m.probe(context.Background()))
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// observe updates the remembered state and fires a callback only when the
// state changed. The first completed probe always counts as a change out of
// StateUnknown.
func (m *Monitor) observe(online bool) {
	next := StateOffline
	if online {
		next = StateOnline
	}

	m.mu.Lock()
	changed := next != m.state
	m.state = next
	m.mu.Unlock()

	if !changed {
		return
	}

	log := logging.WithComponent("connectivity")
	if online {
		log.Info().Msg("connection restored, back online")
		if m.onOnline != nil {
			m.onOnline()
		}
	} else {
		log.Warn().Msg("connection lost, switching to offline mode")
		if m.onOffline != nil {
			m.onOffline()
		}
	}
}
