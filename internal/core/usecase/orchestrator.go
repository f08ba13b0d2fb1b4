package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/core/ports"
)

// Orchestrator fires one OCR request per image and reports every outcome exactly once.
// Requests are tracked in a process-wide task set so shutdown can drain them.
type Orchestrator struct {
	engine   ports.OCREngine
	observer ports.ExtractionObserver
	logger   *slog.Logger
	now      func() time.Time

	tasks errgroup.Group
}

// NewOrchestrator builds an orchestrator. maxConcurrency <= 0 means no limit.
func NewOrchestrator(
	engine ports.OCREngine,
	observer ports.ExtractionObserver,
	maxConcurrency int,
	logger *slog.Logger,
) *Orchestrator {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		engine:   engine,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
	if maxConcurrency > 0 {
		o.tasks.SetLimit(maxConcurrency)
	}
	return o
}

// Dispatch starts extraction for entry and calls settle once the request resolves.
// The request is detached from ctx cancellation: once dispatched it always resolves.
func (o *Orchestrator) Dispatch(
	ctx context.Context,
	sessionID string,
	entry domain.ImageEntry,
	ordinal int,
	settle func(domain.ExtractionResult, error),
) {
	detached := context.WithoutCancel(ctx)
	o.logger.Debug("ocr_dispatch", "session_id", sessionID, "entry_id", entry.ID, "ordinal", ordinal)
	o.tasks.Go(func() error {
		result, err := o.Extract(detached, sessionID, entry, ordinal)
		settle(result, err)
		return nil
	})
}

// Extract runs one OCR request synchronously and converts its outcome into a result.
// The returned result is always usable; err is non-nil only for failed extractions.
func (o *Orchestrator) Extract(
	ctx context.Context,
	sessionID string,
	entry domain.ImageEntry,
	ordinal int,
) (domain.ExtractionResult, error) {
	start := o.now()
	o.observer.StartExtraction()

	out, err := o.engine.Extract(ctx, domain.OCRInput{
		EntryID:        entry.ID,
		MimeType:       entry.MimeType,
		Data:           entry.Data,
		EncodedPayload: entry.EncodedPayload,
	})
	duration := o.now().Sub(start)

	engine := out.Engine
	if engine == "" {
		engine = o.engine.Name()
	}
	o.observer.FinishExtraction(engine, duration, err)

	result := domain.ExtractionResult{
		EntryID:     entry.ID,
		Ordinal:     ordinal,
		Filename:    entry.Filename,
		Engine:      engine,
		DurationMS:  float64(duration.Microseconds()) / 1000.0,
		CompletedAt: o.now().UTC(),
	}
	if err != nil {
		result.Status = domain.ExtractionFailed
		result.Text = domain.ExtractionFailedText
		o.logger.Warn("ocr_settled",
			"session_id", sessionID,
			"entry_id", entry.ID,
			"engine", engine,
			"status", result.Status,
			"duration_ms", result.DurationMS,
			"error", err,
		)
		return result, err
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		text = domain.NoTextFoundText
	}
	result.Status = domain.ExtractionReady
	result.Text = text
	o.logger.Info("ocr_settled",
		"session_id", sessionID,
		"entry_id", entry.ID,
		"engine", engine,
		"status", result.Status,
		"duration_ms", result.DurationMS,
		"chars", len([]rune(text)),
	)
	return result, nil
}

// Wait blocks until every dispatched request has settled.
func (o *Orchestrator) Wait() {
	_ = o.tasks.Wait()
}

type noopObserver struct{}

func (noopObserver) StartExtraction()                             {}
func (noopObserver) FinishExtraction(string, time.Duration, error) {}
