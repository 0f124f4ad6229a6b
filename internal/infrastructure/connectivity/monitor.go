// Package connectivity tracks whether the document backends are reachable.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	defaultInterval     = 5 * time.Second
	defaultProbeTimeout = 3 * time.Second
)

// Probe returns nil when the network is reachable.
type Probe func(ctx context.Context) error

// HTTPProbe reports reachability of url; any HTTP response counts as online.
func HTTPProbe(client *http.Client, url string) Probe {
	if client == nil {
		client = &http.Client{Timeout: defaultProbeTimeout}
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return fmt.Errorf("create probe request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("probe %s: %w", url, err)
		}
		resp.Body.Close()
		return nil
	}
}

type Monitor struct {
	probe    Probe
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	online   bool
	onlineCh chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewMonitor starts optimistic: the monitor reports online until a probe fails.
// A nil probe yields a monitor that is always online.
func NewMonitor(probe Probe, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	ch := make(chan struct{})
	close(ch)
	return &Monitor{
		probe:    probe,
		interval: interval,
		logger:   logger,
		online:   true,
		onlineCh: ch,
	}
}

func (m *Monitor) Start(ctx context.Context) {
	if m.probe == nil {
		return
	}
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.Check(loopCtx)
	go m.loop(loopCtx)
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check probes immediately and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.probe == nil {
		return true
	}
	probeCtx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()
	err := m.probe(probeCtx)
	if err != nil && ctx.Err() != nil {
		return m.Online()
	}
	m.set(err == nil, err)
	return err == nil
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// WaitOnline blocks until the monitor observes connectivity or ctx is done.
func (m *Monitor) WaitOnline(ctx context.Context) error {
	m.mu.Lock()
	ch := m.onlineCh
	m.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) set(online bool, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return
	}
	m.online = online
	if online {
		close(m.onlineCh)
		m.logger.Info("connectivity_restored")
		return
	}
	m.onlineCh = make(chan struct{})
	m.logger.Warn("connectivity_lost", "error", cause)
}
