package ports

import (
	"context"
	"io"

	"github.com/kirillkom/textify/internal/core/domain"
)

// SessionService is the inbound contract for capture sessions.
type SessionService interface {
	Create(ctx context.Context) (domain.SessionSnapshot, error)
	Get(ctx context.Context, sessionID string) (domain.SessionSnapshot, error)
	Close(ctx context.Context, sessionID string) error

	AddFiles(ctx context.Context, sessionID string, uploads []domain.Upload) (domain.CaptureOutcome, error)
	StartCamera(ctx context.Context, sessionID string) error
	CaptureFromCamera(ctx context.Context, sessionID string) (domain.ImageEntry, error)
	CancelCamera(ctx context.Context, sessionID string) error

	Preview(ctx context.Context, sessionID string, index int) (domain.ImagePreview, error)
	RemoveAt(ctx context.Context, sessionID string, index int) error
	ClearAll(ctx context.Context, sessionID string) error
	Copy(ctx context.Context, sessionID string, index int) (string, error)

	Export(ctx context.Context, sessionID string, format domain.ExportFormat) (*domain.ExportArtifact, error)
	OpenExport(ctx context.Context, sessionID, exportID string) (*domain.ExportArtifact, io.ReadCloser, error)
}

// TextExtractor runs a single synchronous extraction outside any session.
type TextExtractor interface {
	ExtractOne(ctx context.Context, upload domain.Upload) (domain.ExtractionResult, error)
}

// TextExporter renders an ad-hoc list of texts outside any session.
type TextExporter interface {
	ExportTexts(ctx context.Context, texts []string, format domain.ExportFormat) (*domain.ExportArtifact, []byte, error)
}

// AuditService records and lists the persisted session activity trail.
type AuditService interface {
	Record(ctx context.Context, event domain.SessionEvent) error
	List(ctx context.Context, sessionID string, limit int) ([]domain.SessionEvent, error)
}
