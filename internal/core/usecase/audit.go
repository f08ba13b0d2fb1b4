package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/core/ports"
)

// AuditUseCase persists published session activity.
type AuditUseCase struct {
	repo ports.EventRepository
}

func NewAuditUseCase(repo ports.EventRepository) *AuditUseCase {
	return &AuditUseCase{repo: repo}
}

func (uc *AuditUseCase) Record(ctx context.Context, event domain.SessionEvent) error {
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Type) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record event", errors.New("event id and type are required"))
	}
	if strings.TrimSpace(event.SessionID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record event", fmt.Errorf("event %s has no session", event.ID))
	}
	if len(event.Payload) == 0 {
		event.Payload = []byte("{}")
	}
	if err := uc.repo.Append(ctx, event); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (uc *AuditUseCase) List(ctx context.Context, sessionID string, limit int) ([]domain.SessionEvent, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list events", errors.New("session id is required"))
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	events, err := uc.repo.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
