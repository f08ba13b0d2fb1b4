package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/core/ports"
)

const adhocSessionID = "adhoc"

type ExportService struct {
	renderers map[domain.ExportFormat]ports.Renderer
	storage   ports.ObjectStorage
	events    ports.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewExportService(
	storage ports.ObjectStorage,
	events ports.EventPublisher,
	logger *slog.Logger,
	renderers ...ports.Renderer,
) *ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	byFormat := make(map[domain.ExportFormat]ports.Renderer, len(renderers))
	for _, r := range renderers {
		byFormat[r.Format()] = r
	}
	return &ExportService{
		renderers: byFormat,
		storage:   storage,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// BuildExportDocument lays results out in collection order, one labelled section each.
func BuildExportDocument(results []domain.ExtractionResult) domain.ExportDocument {
	doc := domain.ExportDocument{
		Title:    "Extracted text",
		Sections: make([]domain.ExportSection, 0, len(results)),
	}
	for i, result := range results {
		doc.Sections = append(doc.Sections, domain.ExportSection{
			Heading: fmt.Sprintf("Text from image %d", i+1),
			Text:    result.Text,
			Failed:  result.Failed(),
		})
	}
	return doc
}

// ExportAll renders the whole collection into one stored file.
func (s *ExportService) ExportAll(
	ctx context.Context,
	sessionID string,
	results []domain.ExtractionResult,
	format domain.ExportFormat,
) (*domain.ExportArtifact, error) {
	if len(results) == 0 {
		return nil, domain.WrapError(domain.ErrNothingToExport, "export", errors.New("result collection is empty"))
	}
	return s.export(ctx, sessionID, BuildExportDocument(results), format)
}

// ExportTexts renders plain texts that do not belong to a session. Nothing is stored: the
// document comes back with its metadata.
func (s *ExportService) ExportTexts(ctx context.Context, texts []string, format domain.ExportFormat) (*domain.ExportArtifact, []byte, error) {
	if len(texts) == 0 {
		return nil, nil, domain.WrapError(domain.ErrNothingToExport, "export", errors.New("no texts given"))
	}
	results := make([]domain.ExtractionResult, 0, len(texts))
	for _, text := range texts {
		results = append(results, domain.ExtractionResult{Text: text, Status: domain.ExtractionReady})
	}
	artifact, data, err := s.render(ctx, adhocSessionID, BuildExportDocument(results), format)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("export_rendered",
		"export_id", artifact.ID,
		"format", artifact.Format,
		"entries", artifact.Entries,
		"bytes", artifact.Size,
	)
	return artifact, data, nil
}

// Discard deletes stored artifacts. Failures are logged; the remaining artifacts are
// still attempted.
func (s *ExportService) Discard(ctx context.Context, artifacts []domain.ExportArtifact) {
	for _, artifact := range artifacts {
		if artifact.StorageKey == "" {
			continue
		}
		if err := s.storage.Delete(ctx, artifact.StorageKey); err != nil {
			s.logger.Warn("export_discard_failed", "session_id", artifact.SessionID, "export_id", artifact.ID, "error", err)
		}
	}
}

// Open streams a stored artifact back.
func (s *ExportService) Open(ctx context.Context, artifact domain.ExportArtifact) (io.ReadCloser, error) {
	reader, err := s.storage.Open(ctx, artifact.StorageKey)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExportNotFound, "open export", err)
	}
	return reader, nil
}

func (s *ExportService) export(
	ctx context.Context,
	sessionID string,
	doc domain.ExportDocument,
	format domain.ExportFormat,
) (*domain.ExportArtifact, error) {
	artifact, data, err := s.render(ctx, sessionID, doc, format)
	if err != nil {
		return nil, err
	}
	artifact.StorageKey = fmt.Sprintf("exports/%s/%s.%s", sessionID, artifact.ID, artifact.Format)

	if err := s.storage.Save(ctx, artifact.StorageKey, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("save export: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishExport(ctx, *artifact); err != nil {
			s.logger.Warn("export_event_publish_failed", "session_id", sessionID, "export_id", artifact.ID, "error", err)
		}
	}
	s.logger.Info("export_created",
		"session_id", sessionID,
		"export_id", artifact.ID,
		"format", artifact.Format,
		"entries", artifact.Entries,
		"bytes", artifact.Size,
	)
	return artifact, nil
}

func (s *ExportService) render(
	ctx context.Context,
	sessionID string,
	doc domain.ExportDocument,
	format domain.ExportFormat,
) (*domain.ExportArtifact, []byte, error) {
	if format == "" {
		format = domain.FormatDOCX
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "export", fmt.Errorf("unsupported format %q", format))
	}

	var buf bytes.Buffer
	if err := renderer.Render(ctx, &buf, doc); err != nil {
		return nil, nil, fmt.Errorf("render %s: %w", format, err)
	}

	return &domain.ExportArtifact{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Format:      format,
		Filename:    fmt.Sprintf("%s.%s", domain.DefaultExportBasename, format),
		ContentType: renderer.ContentType(),
		Size:        int64(buf.Len()),
		Entries:     len(doc.Sections),
		CreatedAt:   s.now().UTC(),
	}, buf.Bytes(), nil
}
