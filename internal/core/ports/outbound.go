package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/textify/internal/core/domain"
)

// OCREngine turns one image payload into text.
type OCREngine interface {
	Name() string
	Extract(ctx context.Context, in domain.OCRInput) (domain.OCROutput, error)
}

// Renderer serializes an export document into one file format.
type Renderer interface {
	Format() domain.ExportFormat
	ContentType() string
	Render(ctx context.Context, w io.Writer, doc domain.ExportDocument) error
}

// ObjectStorage stores rendered exports.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// ImageCodec sniffs and rasterizes image bytes.
type ImageCodec interface {
	Sniff(data []byte) string
	// Rasterize decodes any supported image format and re-encodes it as PNG.
	Rasterize(data []byte) ([]byte, error)
}

// Camera grants access to a live frame source.
type Camera interface {
	Open(ctx context.Context) (MediaStream, error)
}

// MediaStream is an open camera stream. Stop must be safe to call more than once.
type MediaStream interface {
	Frame(ctx context.Context) ([]byte, error)
	Stop()
}

// Clipboard receives copied text.
type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// Notifier delivers user-facing notifications.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// EventPublisher publishes session activity for the audit worker.
type EventPublisher interface {
	Notifier
	PublishExtraction(ctx context.Context, sessionID string, result domain.ExtractionResult) error
	PublishExport(ctx context.Context, artifact domain.ExportArtifact) error
}

// EventSubscriber consumes published session activity.
type EventSubscriber interface {
	SubscribeEvents(ctx context.Context, handler func(context.Context, domain.SessionEvent) error) error
}

// EventRepository persists the audit trail.
type EventRepository interface {
	Append(ctx context.Context, event domain.SessionEvent) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.SessionEvent, error)
}

// ExtractionObserver records OCR request metrics.
type ExtractionObserver interface {
	StartExtraction()
	FinishExtraction(engine string, duration time.Duration, err error)
}
