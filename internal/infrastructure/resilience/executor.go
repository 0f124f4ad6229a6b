package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/ports"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if classifier == nil {
		classifier = defaultClassifier
	}
	hooks := ports.RetryHooks{
		Retryable: func(err error) bool { return classifier(err).Retryable },
	}
	return e.run(ctx, operation, func(ctx context.Context, _ int) error { return fn(ctx) }, classifier, hooks)
}

// ExecuteAttempts implements ports.RetryExecutor.
func (e *Executor) ExecuteAttempts(
	ctx context.Context,
	operation string,
	fn func(ctx context.Context, attempt int) error,
	hooks ports.RetryHooks,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	classifier := func(err error) ErrorClassification {
		if callerAborted(err) {
			return ErrorClassification{}
		}
		if hooks.Retryable == nil {
			return ErrorClassification{Retryable: true, RecordFailure: true}
		}
		retryable := hooks.Retryable(err)
		return ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	return e.run(ctx, operation, fn, classifier, hooks)
}

func (e *Executor) run(
	ctx context.Context,
	operation string,
	fn func(context.Context, int) error,
	classifier ErrorClassifier,
	hooks ports.RetryHooks,
) error {
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}

	if !e.cfg.BreakerEnabled {
		return e.executeWithRetry(ctx, op, fn, classifier, hooks)
	}

	breaker := e.circuitBreaker(op, classifier)
	_, err := breaker.Execute(func() (any, error) {
		return nil, e.executeWithRetry(ctx, op, fn, classifier, hooks)
	})
	return err
}

func (e *Executor) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.RetryInitialBackoff
	b.MaxInterval = e.cfg.RetryMaxBackoff
	b.Multiplier = e.cfg.RetryMultiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (e *Executor) executeWithRetry(
	ctx context.Context,
	operation string,
	fn func(context.Context, int) error,
	classifier ErrorClassifier,
	hooks ports.RetryHooks,
) error {
	maxAttempts := e.cfg.RetryMaxAttempts
	schedule := e.newBackOff()
	refreshed := false

	for attempt := 1; attempt <= maxAttempts; {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.awaitOnline(ctx, operation, hooks.Gate); err != nil {
			return err
		}

		if attempt == maxAttempts && maxAttempts > 1 && hooks.BeforeFinal != nil && !refreshed {
			refreshed = true
			if err := hooks.BeforeFinal(ctx); err != nil {
				slog.Warn("retry_before_final_failed", "operation", operation, "error", err)
			}
		}

		start := time.Now()
		err := fn(ctx, attempt)
		if err == nil {
			if hooks.OnAttempt != nil {
				hooks.OnAttempt(attempt, nil, time.Since(start))
			}
			return nil
		}

		if hooks.Gate != nil && !hooks.Gate.Online() {
			slog.Info("retry_paused_offline", "operation", operation, "attempt", attempt, "error", err)
			continue
		}
		if hooks.OnAttempt != nil {
			hooks.OnAttempt(attempt, err, time.Since(start))
		}

		class := classifier(err)
		if !class.Retryable || attempt == maxAttempts {
			return err
		}

		wait := schedule.NextBackOff()
		if wait > e.cfg.RetryMaxBackoff {
			wait = e.cfg.RetryMaxBackoff
		}
		slog.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", err,
		)

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}
		attempt++
	}

	return nil
}

func (e *Executor) awaitOnline(ctx context.Context, operation string, gate ports.Connectivity) error {
	if gate == nil || gate.Online() {
		return nil
	}
	slog.Info("waiting_for_connectivity", "operation", operation, "ceiling", e.cfg.OfflineCeiling.String())
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.OfflineCeiling)
	defer cancel()
	if err := gate.WaitOnline(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.WrapError(domain.ErrOffline, operation, err)
	}
	return nil
}

func (e *Executor) circuitBreaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if domain.IsKind(err, domain.ErrOffline) {
				return true
			}
			class := classifier(err)
			return !class.RecordFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
