package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/core/ports"
)

// Log writes session activity to the structured log. It is the publisher of record
// when no broker is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, n domain.Notification) error {
	level := slog.LevelInfo
	if n.Kind == domain.NotificationError {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "notification",
		"session_id", n.SessionID,
		"kind", n.Kind,
		"title", n.Title,
		"description", n.Description,
	)
	return nil
}

func (l *Log) PublishExtraction(ctx context.Context, sessionID string, result domain.ExtractionResult) error {
	l.logger.DebugContext(ctx, "extraction_published",
		"session_id", sessionID,
		"entry_id", result.EntryID,
		"status", result.Status,
	)
	return nil
}

func (l *Log) PublishExport(ctx context.Context, artifact domain.ExportArtifact) error {
	l.logger.InfoContext(ctx, "export_published",
		"session_id", artifact.SessionID,
		"export_id", artifact.ID,
		"format", artifact.Format,
		"size", artifact.Size,
	)
	return nil
}

// Fanout delivers every event to all publishers and joins their errors.
type Fanout []ports.EventPublisher

func (f Fanout) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.Notify(ctx, n))
	}
	return errors.Join(errs...)
}

func (f Fanout) PublishExtraction(ctx context.Context, sessionID string, result domain.ExtractionResult) error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.PublishExtraction(ctx, sessionID, result))
	}
	return errors.Join(errs...)
}

func (f Fanout) PublishExport(ctx context.Context, artifact domain.ExportArtifact) error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.PublishExport(ctx, artifact))
	}
	return errors.Join(errs...)
}
