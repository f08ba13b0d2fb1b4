package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/infrastructure/resilience"
)

const workerQueueGroup = "audit-workers"

// Queue publishes session activity as CloudEvents and feeds it to audit workers.
type Queue struct {
	conn     *nats.Conn
	subject  string
	source   string
	executor *resilience.Executor
	logger   *slog.Logger
	now      func() time.Time
}

type Options struct {
	ClientName           string
	Source               string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string, options Options) (*Queue, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	clientName := options.ClientName
	if clientName == "" {
		clientName = "textify"
	}
	source := options.Source
	if source == "" {
		source = "textify/api"
	}

	conn, err := nats.Connect(
		url,
		nats.Name(clientName),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		source:   source,
		executor: options.ResilienceExecutor,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) Notify(ctx context.Context, n domain.Notification) error {
	return q.publish(ctx, n.SessionID, domain.EventNotification, n)
}

func (q *Queue) PublishExtraction(ctx context.Context, sessionID string, result domain.ExtractionResult) error {
	return q.publish(ctx, sessionID, domain.EventExtracted, extractionPayload{
		EntryID:    result.EntryID,
		Ordinal:    result.Ordinal,
		Filename:   result.Filename,
		Status:     result.Status,
		Engine:     result.Engine,
		DurationMS: result.DurationMS,
		Chars:      len([]rune(result.Text)),
	})
}

func (q *Queue) PublishExport(ctx context.Context, artifact domain.ExportArtifact) error {
	return q.publish(ctx, artifact.SessionID, domain.EventExported, artifact)
}

func (q *Queue) publish(ctx context.Context, sessionID, eventType string, payload any) error {
	body, err := encodeEvent(q.source, sessionID, eventType, q.now().UTC(), payload)
	if err != nil {
		return err
	}
	call := func(context.Context) error {
		if err := q.conn.Publish(q.subject, body); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeEvents blocks until ctx is done, handing every decoded event to handler.
func (q *Queue) SubscribeEvents(ctx context.Context, handler func(context.Context, domain.SessionEvent) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := decodeEvent(msg.Data)
		if err != nil {
			q.logger.Warn("event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}
		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			q.logger.Error("event_handler_failed", "event_id", event.ID, "type", event.Type, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
