package httpadapter

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/textify/internal/core/domain"
)

// sessionFake records calls and answers with canned values or err.
type sessionFake struct {
	mu      sync.Mutex
	err     error
	uploads []domain.Upload
	removed []int
	copied  []int
	formats []domain.ExportFormat
	text    string
	export  *domain.ExportArtifact
	body    string
}

func (f *sessionFake) snapshot(id string) domain.SessionSnapshot {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	return domain.SessionSnapshot{ID: id, CreatedAt: now, UpdatedAt: now}
}

func (f *sessionFake) Create(context.Context) (domain.SessionSnapshot, error) {
	if f.err != nil {
		return domain.SessionSnapshot{}, f.err
	}
	return f.snapshot("sess-1"), nil
}

func (f *sessionFake) Get(_ context.Context, id string) (domain.SessionSnapshot, error) {
	if f.err != nil {
		return domain.SessionSnapshot{}, f.err
	}
	return f.snapshot(id), nil
}

func (f *sessionFake) Close(context.Context, string) error { return f.err }

func (f *sessionFake) AddFiles(_ context.Context, _ string, uploads []domain.Upload) (domain.CaptureOutcome, error) {
	if f.err != nil {
		return domain.CaptureOutcome{}, f.err
	}
	f.mu.Lock()
	f.uploads = append(f.uploads, uploads...)
	f.mu.Unlock()

	outcome := domain.CaptureOutcome{Rejected: []domain.FileRejection{}}
	for i, upload := range uploads {
		if upload.Size > domain.MaxImageBytes {
			outcome.Rejected = append(outcome.Rejected, domain.FileRejection{
				Filename: upload.Filename,
				Size:     upload.Size,
				Message:  upload.Filename + ": " + domain.MsgFileTooLarge,
				Err:      domain.ErrFileTooLarge,
			})
			continue
		}
		outcome.Accepted = append(outcome.Accepted, domain.ImageEntry{
			ID:       "entry-" + string(rune('a'+i)),
			Filename: upload.Filename,
			MimeType: upload.MimeType,
			Size:     upload.Size,
			Source:   domain.SourceUpload,
		})
	}
	return outcome, nil
}

func (f *sessionFake) StartCamera(context.Context, string) error { return f.err }

func (f *sessionFake) CaptureFromCamera(context.Context, string) (domain.ImageEntry, error) {
	if f.err != nil {
		return domain.ImageEntry{}, f.err
	}
	return domain.ImageEntry{ID: "entry-cam", Filename: "capture-1.png", Source: domain.SourceCamera}, nil
}

func (f *sessionFake) CancelCamera(context.Context, string) error { return f.err }

func (f *sessionFake) Preview(_ context.Context, _ string, index int) (domain.ImagePreview, error) {
	if f.err != nil {
		return domain.ImagePreview{}, f.err
	}
	return domain.ImagePreview{
		Index:        index,
		EntryID:      "entry-1",
		Filename:     "scan.png",
		MimeType:     "image/png",
		ImageDataURL: "data:image/png;base64,cG5n",
	}, nil
}

func (f *sessionFake) RemoveAt(_ context.Context, _ string, index int) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.removed = append(f.removed, index)
	f.mu.Unlock()
	return nil
}

func (f *sessionFake) ClearAll(context.Context, string) error { return f.err }

func (f *sessionFake) Copy(_ context.Context, _ string, index int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	f.copied = append(f.copied, index)
	f.mu.Unlock()
	return f.text, nil
}

func (f *sessionFake) Export(_ context.Context, sessionID string, format domain.ExportFormat) (*domain.ExportArtifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.formats = append(f.formats, format)
	f.mu.Unlock()
	return &domain.ExportArtifact{
		ID:          "exp-1",
		SessionID:   sessionID,
		Format:      format,
		Filename:    domain.DefaultExportBasename + "." + string(format),
		ContentType: "application/octet-stream",
	}, nil
}

func (f *sessionFake) OpenExport(context.Context, string, string) (*domain.ExportArtifact, io.ReadCloser, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.export, io.NopCloser(strings.NewReader(f.body)), nil
}

type auditFake struct {
	limit  int
	events []domain.SessionEvent
}

func (f *auditFake) Record(context.Context, domain.SessionEvent) error { return nil }

func (f *auditFake) List(_ context.Context, _ string, limit int) ([]domain.SessionEvent, error) {
	f.limit = limit
	return f.events, nil
}
