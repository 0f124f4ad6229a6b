package resilience

import (
	"context"
	"errors"
	"net"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

// Transient builds a classifier that retries errors matched by transient.
// Caller cancellation is never retried nor counted against the breaker, and an
// open breaker is retried so a half-open probe can close it.
func Transient(transient func(err error) bool) ErrorClassifier {
	return func(err error) ErrorClassification {
		switch {
		case err == nil:
			return ErrorClassification{}
		case callerAborted(err):
			return ErrorClassification{}
		case IsCircuitOpen(err):
			return ErrorClassification{Retryable: true, RecordFailure: true}
		case transient != nil && transient(err):
			return ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return ErrorClassification{Retryable: false, RecordFailure: true}
		}
	}
}

// BestEffort never retries and never trips the breaker. Used for side-channel
// publishes whose loss the caller tolerates.
func BestEffort(error) ErrorClassification {
	return ErrorClassification{}
}

// WrapTemporary tags err as domain.ErrTemporary when classifier would have retried it.
func WrapTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if IsCircuitOpen(err) || (classifier != nil && classifier(err).Retryable) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

// IsNetworkError reports dial, read and timeout failures below the protocol layer.
func IsNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

func callerAborted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
