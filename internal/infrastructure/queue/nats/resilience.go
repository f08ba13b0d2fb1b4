package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/infrastructure/resilience"
)

func classifyNATSError(err error) resilience.Classification {
	switch {
	case err == nil:
		return resilience.Classification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Classification{}
	case resilience.IsCircuitOpen(err),
		errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected):
		return resilience.Classification{Retryable: true, RecordFailure: true}
	default:
		return resilience.Classification{RecordFailure: true}
	}
}

func wrapTemporaryIfNeeded(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	}
	return err
}
