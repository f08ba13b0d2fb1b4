package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, body)
}

func classifyOllamaError(err error) resilience.Classification {
	switch {
	case err == nil:
		return resilience.Classification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Classification{}
	case resilience.IsCircuitOpen(err):
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		retryable := isRetryableHTTPStatus(statusErr.StatusCode)
		return resilience.Classification{Retryable: retryable, RecordFailure: retryable}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}
	return resilience.Classification{RecordFailure: true}
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyOllamaError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
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
