package ollama

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// malformedResponseError means the model answered but the envelope could not be decoded.
type malformedResponseError struct {
	operation string
	err       error
}

func (e *malformedResponseError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.operation, e.err)
}

func (e *malformedResponseError) Unwrap() error { return e.err }

// classifyGenerateError retries transport failures and overloaded model servers.
// Answers that arrive but cannot be used are never retried.
var classifyGenerateError = resilience.Transient(func(err error) bool {
	var malformed *malformedResponseError
	if errors.As(err, &malformed) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return retryableModelStatus(statusErr.StatusCode)
	}
	return resilience.IsNetworkError(err)
})

// analysisError maps a generate failure onto the domain: unusable answers and
// rejected requests become ErrAnalysisFailed, everything retryable ErrTemporary.
func analysisError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if resilience.IsCircuitOpen(err) || classifyGenerateError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return domain.WrapError(domain.ErrAnalysisFailed, operation, err)
}

func retryableModelStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
