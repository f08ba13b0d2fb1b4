package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/textify/internal/config"
	"github.com/kirillkom/textify/internal/core/ports"
	"github.com/kirillkom/textify/internal/core/usecase"
	"github.com/kirillkom/textify/internal/infrastructure/camera/snapshot"
	"github.com/kirillkom/textify/internal/infrastructure/clipboard"
	"github.com/kirillkom/textify/internal/infrastructure/export/docx"
	"github.com/kirillkom/textify/internal/infrastructure/export/markup"
	"github.com/kirillkom/textify/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/textify/internal/infrastructure/imaging"
	"github.com/kirillkom/textify/internal/infrastructure/notify"
	"github.com/kirillkom/textify/internal/infrastructure/ocr/ollama"
	"github.com/kirillkom/textify/internal/infrastructure/ocr/pdftext"
	ocrrouter "github.com/kirillkom/textify/internal/infrastructure/ocr/router"
	"github.com/kirillkom/textify/internal/infrastructure/ocr/tesseract"
	"github.com/kirillkom/textify/internal/infrastructure/ocr/vertex"
	"github.com/kirillkom/textify/internal/infrastructure/queue/nats"
	"github.com/kirillkom/textify/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/textify/internal/infrastructure/resilience"
	"github.com/kirillkom/textify/internal/infrastructure/storage/gcs"
	"github.com/kirillkom/textify/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/textify/internal/observability/metrics"
)

const serviceName = "textify"

// App is the wiring shared by the API and MCP processes.
type App struct {
	Config config.Config

	Sessions *usecase.SessionManager
	Exporter *usecase.ExportService
	// Audit is nil unless POSTGRES_DSN is set.
	Audit ports.AuditService

	closers []func()
}

// New builds the session stack. registerer receives extraction metrics and may be nil.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, registerer prometheus.Registerer) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	ocrExecutor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.OCRRetryMaxAttempts,
		BreakerEnabled:   cfg.OCRBreakerEnabled,
	}, logger)

	engine, err := app.newOCREngine(ctx, cfg, ocrExecutor, logger)
	if err != nil {
		return nil, err
	}

	storage, err := app.newObjectStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	events, err := app.newEventPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}

	var observer ports.ExtractionObserver
	if registerer != nil {
		observer = metrics.NewExtractionMetrics(serviceName, registerer)
	}

	app.Exporter = usecase.NewExportService(storage, events, logger,
		docx.New(),
		xlsx.New(),
		markup.NewHTML(),
		markup.NewMarkdown(),
	)
	app.Sessions = usecase.NewSessionManager(usecase.SessionDeps{
		Orchestrator: usecase.NewOrchestrator(engine, observer, cfg.OCRMaxConcurrency, logger),
		Capture:      usecase.NewCaptureValidator(imaging.NewCodec(cfg.ImageMaxPixels), cfg.MaxImageBytes),
		Exporter:     app.Exporter,
		Camera:       snapshot.New(cfg.CameraSnapshotURL, cfg.CameraTimeout),
		Clipboard:    newClipboard(cfg, logger),
		Events:       events,
		Logger:       logger,
	}, cfg.SessionIdleTTL)

	if cfg.PostgresDSN != "" {
		repo, err := app.openEventRepository(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.Audit = usecase.NewAuditUseCase(repo)
	}

	logger.Info("bootstrap_ready",
		"ocr_engine", engine.Name(),
		"storage_backend", cfg.StorageBackend,
		"events_backend", cfg.EventsBackend,
		"audit_enabled", app.Audit != nil,
	)
	return app, nil
}

func (a *App) newOCREngine(ctx context.Context, cfg config.Config, executor *resilience.Executor, logger *slog.Logger) (ports.OCREngine, error) {
	var primary ports.OCREngine
	switch cfg.OCREngine {
	case "", "ollama":
		primary = ollama.New(cfg.OllamaURL, cfg.OllamaVisionModel, ollama.Options{
			Timeout:            cfg.OCRTimeout,
			LanguageHint:       cfg.OCRLanguageHint,
			ResilienceExecutor: executor,
		})
	case "vertex":
		engine, err := vertex.New(ctx, cfg.VertexProject, cfg.VertexRegion, cfg.VertexModel, cfg.OCRLanguageHint, executor)
		if err != nil {
			return nil, fmt.Errorf("init vertex engine: %w", err)
		}
		a.closers = append(a.closers, func() { _ = engine.Close() })
		primary = engine
	case "tesseract":
		if !tesseract.Available {
			return nil, errors.New("ocr engine tesseract requires a build with -tags tesseract")
		}
		primary = tesseract.New(cfg.TesseractLanguages)
	default:
		return nil, fmt.Errorf("unknown OCR_ENGINE %q", cfg.OCREngine)
	}

	if !cfg.OCRPDFTextLayer {
		return primary, nil
	}
	return ocrrouter.New(primary, pdftext.New(0), logger), nil
}

func (a *App) newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "", "localfs":
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		return storage, nil
	case "gcs":
		storage, err := gcs.New(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		a.closers = append(a.closers, func() { _ = storage.Close() })
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}

func (a *App) newEventPublisher(cfg config.Config, logger *slog.Logger) (ports.EventPublisher, error) {
	logPublisher := notify.NewLog(logger)
	switch cfg.EventsBackend {
	case "", "log":
		return logPublisher, nil
	case "nats":
		queue, err := newQueue(cfg, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, queue.Close)
		return notify.Fanout{logPublisher, queue}, nil
	default:
		return nil, fmt.Errorf("unknown EVENTS_BACKEND %q", cfg.EventsBackend)
	}
}

func (a *App) openEventRepository(ctx context.Context, cfg config.Config) (*postgres.EventRepository, error) {
	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closers = append(a.closers, func() { _ = db.Close() })

	repo := postgres.NewEventRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func newQueue(cfg config.Config, logger *slog.Logger) (*nats.Queue, error) {
	publishConfig := resilience.DefaultConfig()
	publishConfig.RetryMaxAttempts = 3

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ClientName:         serviceName,
		Source:             "/" + serviceName,
		ResilienceExecutor: resilience.NewExecutor(publishConfig, logger),
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	return queue, nil
}

func newClipboard(cfg config.Config, logger *slog.Logger) ports.Clipboard {
	if cfg.ClipboardBackend == "system" {
		system := clipboard.NewSystem()
		if system.Available() {
			return system
		}
		logger.Warn("system_clipboard_unavailable", "fallback", "memory")
	}
	return clipboard.NewMemory()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Worker is the wiring of the audit consumer.
type Worker struct {
	Config config.Config

	Subscriber ports.EventSubscriber
	Audit      *usecase.AuditUseCase

	db    *sql.DB
	queue *nats.Queue
}

func NewWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Worker, error) {
	if cfg.PostgresDSN == "" {
		return nil, errors.New("POSTGRES_DSN is required for the worker")
	}
	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewEventRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := newQueue(cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Worker{
		Config:     cfg,
		Subscriber: queue,
		Audit:      usecase.NewAuditUseCase(repo),
		db:         db,
		queue:      queue,
	}, nil
}

func (w *Worker) Close() {
	w.queue.Close()
	_ = w.db.Close()
}
