package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/core/ports"
)

// Engine picks an OCR engine per payload. Documents try the document engine first and fall
// back to the primary engine when it finds no text, as with a scanned PDF. Images always go
// to the primary engine.
type Engine struct {
	primary   ports.OCREngine
	documents ports.OCREngine
	logger    *slog.Logger
}

func New(primary, documents ports.OCREngine, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{primary: primary, documents: documents, logger: logger}
}

func (e *Engine) Name() string { return e.primary.Name() }

func (e *Engine) Extract(ctx context.Context, in domain.OCRInput) (domain.OCROutput, error) {
	if e.documents == nil || !strings.EqualFold(in.MimeType, "application/pdf") {
		return e.primary.Extract(ctx, in)
	}

	out, err := e.documents.Extract(ctx, in)
	if err == nil && strings.TrimSpace(out.Text) != "" {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.OCROutput{}, ctxErr
	}
	e.logger.Info("ocr_document_fallback",
		"entry_id", in.EntryID,
		"from", e.documents.Name(),
		"to", e.primary.Name(),
		"error", err,
	)
	return e.primary.Extract(ctx, in)
}
