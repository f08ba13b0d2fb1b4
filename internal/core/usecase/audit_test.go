package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/textify/internal/core/domain"
)

type eventRepoFake struct {
	appended []domain.SessionEvent
	limit    int
	err      error
}

func (f *eventRepoFake) Append(_ context.Context, event domain.SessionEvent) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, event)
	return nil
}

func (f *eventRepoFake) ListBySession(_ context.Context, _ string, limit int) ([]domain.SessionEvent, error) {
	f.limit = limit
	return f.appended, f.err
}

func TestAuditRecordValidatesAndDefaultsPayload(t *testing.T) {
	repo := &eventRepoFake{}
	uc := NewAuditUseCase(repo)

	err := uc.Record(context.Background(), domain.SessionEvent{ID: "e1", SessionID: "s1", Type: domain.EventNotification, OccurredAt: time.Now()})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if string(repo.appended[0].Payload) != "{}" {
		t.Fatalf("expected default payload, got %s", repo.appended[0].Payload)
	}

	if err := uc.Record(context.Background(), domain.SessionEvent{ID: "e2", Type: domain.EventExported}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input without session, got %v", err)
	}
}

func TestAuditRecordWrapsRepositoryError(t *testing.T) {
	uc := NewAuditUseCase(&eventRepoFake{err: errors.New("db down")})
	err := uc.Record(context.Background(), domain.SessionEvent{ID: "e1", SessionID: "s1", Type: domain.EventExported})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestAuditListClampsLimit(t *testing.T) {
	repo := &eventRepoFake{}
	uc := NewAuditUseCase(repo)
	if _, err := uc.List(context.Background(), "s1", 10_000); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if repo.limit != 100 {
		t.Fatalf("expected clamped limit 100, got %d", repo.limit)
	}
}
