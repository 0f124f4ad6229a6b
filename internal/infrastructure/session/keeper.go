package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/ports"
)

const (
	defaultRefreshInterval = 10 * time.Minute
	// expirySkew refreshes sessions that are about to expire.
	expirySkew = 30 * time.Second
)

// Keeper refreshes credentials on an interval and on demand.
type Keeper struct {
	provider ports.SessionProvider
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	refreshMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewKeeper(provider ports.SessionProvider, interval time.Duration, logger *slog.Logger) *Keeper {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Keeper{provider: provider, interval: interval, logger: logger, now: time.Now}
}

// Start refreshes once and then on every interval until Stop or ctx is done.
func (k *Keeper) Start(ctx context.Context) error {
	k.mu.Lock()
	if k.started {
		k.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	k.cancel = cancel
	k.done = make(chan struct{})
	k.started = true
	k.mu.Unlock()

	if err := k.Refresh(loopCtx); err != nil {
		k.logger.Warn("session_refresh_failed", "trigger", "start", "error", err)
	}

	go k.loop(loopCtx)
	return nil
}

func (k *Keeper) Stop() {
	k.mu.Lock()
	if !k.started {
		k.mu.Unlock()
		return
	}
	cancel, done := k.cancel, k.done
	k.started = false
	k.mu.Unlock()

	cancel()
	<-done
}

func (k *Keeper) loop(ctx context.Context) {
	defer close(k.done)
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := k.Refresh(ctx); err != nil {
				k.logger.Warn("session_refresh_failed", "trigger", "interval", "error", err)
			}
		}
	}
}

// Refresh forces a credential refresh; concurrent calls are serialized.
func (k *Keeper) Refresh(ctx context.Context) error {
	k.refreshMu.Lock()
	defer k.refreshMu.Unlock()
	if err := k.provider.RefreshSession(ctx); err != nil {
		return err
	}
	k.logger.Debug("session_refreshed")
	return nil
}

// EnsureFresh refreshes only when the session is missing or about to expire.
func (k *Keeper) EnsureFresh(ctx context.Context) (*domain.Session, error) {
	current, err := k.provider.CurrentSession(ctx)
	if err == nil && current.Valid(k.now().Add(expirySkew)) {
		return current, nil
	}
	if err := k.Refresh(ctx); err != nil {
		return nil, err
	}
	return k.provider.CurrentSession(ctx)
}

func (k *Keeper) CurrentSession(ctx context.Context) (*domain.Session, error) {
	return k.provider.CurrentSession(ctx)
}

func (k *Keeper) RefreshSession(ctx context.Context) error {
	return k.Refresh(ctx)
}
