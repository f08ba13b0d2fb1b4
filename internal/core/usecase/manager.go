package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/textify/internal/core/domain"
)

// SessionManager is the registry of live capture sessions.
type SessionManager struct {
	deps    SessionDeps
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager(deps SessionDeps, idleTTL time.Duration) *SessionManager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &SessionManager{
		deps:     deps,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (m *SessionManager) Create(context.Context) (domain.SessionSnapshot, error) {
	session := newSession(uuid.NewString(), m.deps, m.now)

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.deps.Logger.Info("session_created", "session_id", session.ID())
	return session.Snapshot(), nil
}

func (m *SessionManager) Get(_ context.Context, sessionID string) (domain.SessionSnapshot, error) {
	session, err := m.lookup(sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

func (m *SessionManager) Close(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return notFound(sessionID)
	}
	m.discard(ctx, session.Close())
	m.deps.Logger.Info("session_closed", "session_id", sessionID)
	return nil
}

func (m *SessionManager) AddFiles(ctx context.Context, sessionID string, uploads []domain.Upload) (domain.CaptureOutcome, error) {
	session, err := m.lookup(sessionID)
	if err != nil {
		return domain.CaptureOutcome{}, err
	}
	return session.AddFiles(ctx, uploads)
}

func (m *SessionManager) StartCamera(ctx context.Context, sessionID string) error {
	session, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return session.StartCamera(ctx)
}

func (m *SessionManager) CaptureFromCamera(ctx context.Context, sessionID string) (domain.ImageEntry, error) {
	session, err := m.lookup(sessionID)
	if err != nil {
		return domain.ImageEntry{}, err
	}
	return session.CaptureFromCamera(ctx)
}

func (m *SessionManager) CancelCamera(ctx context.Context, sessionID string) error {
	session, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return session.CancelCamera(ctx)
}

func (m *SessionManager) Preview(ctx context.Context, sessionID string, index int) (domain.ImagePreview, error) {
	session, err := m.lookup(sessionID)
	if err != nil {
		return domain.ImagePreview{}, err
	}
	return session.Preview(ctx, index)
}

func (m *SessionManager) RemoveAt(ctx context.Context, sessionID string, index int) error {
	session, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return session.RemoveAt(ctx, index)
}

func (m *SessionManager) ClearAll(ctx context.Context, sessionID string) error {
	session, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return session.ClearAll(ctx)
}

func (m *SessionManager) Copy(ctx context.Context, sessionID string, index int) (string, error) {
	session, err := m.lookup(sessionID)
	if err != nil {
		return "", err
	}
	return session.Copy(ctx, index)
}

func (m *SessionManager) Export(ctx context.Context, sessionID string, format domain.ExportFormat) (*domain.ExportArtifact, error) {
	session, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Export(ctx, format)
}

func (m *SessionManager) OpenExport(ctx context.Context, sessionID, exportID string) (*domain.ExportArtifact, io.ReadCloser, error) {
	session, err := m.lookup(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session.OpenExport(ctx, exportID)
}

// Wait blocks until the session has no outstanding requests.
func (m *SessionManager) Wait(ctx context.Context, sessionID string) error {
	session, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return session.Wait(ctx)
}

// ExtractOne validates a single upload and extracts it synchronously, outside any session.
func (m *SessionManager) ExtractOne(ctx context.Context, upload domain.Upload) (domain.ExtractionResult, error) {
	outcome := m.deps.Capture.SelectFiles([]domain.Upload{upload})
	if len(outcome.Rejected) > 0 {
		return domain.ExtractionResult{}, outcome.Rejected[0].Err
	}
	return m.deps.Orchestrator.Extract(ctx, adhocSessionID, outcome.Accepted[0], 0)
}

// EvictIdle closes sessions idle for longer than the configured TTL. Sessions with
// outstanding requests are never evicted.
func (m *SessionManager) EvictIdle() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().UTC().Add(-m.idleTTL)

	m.mu.Lock()
	var expired []*Session
	for id, session := range m.sessions {
		lastActive, idle := session.idleSince()
		if idle && lastActive.Before(cutoff) {
			expired = append(expired, session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		m.discard(context.Background(), session.Close())
		m.deps.Logger.Info("session_expired", "session_id", session.ID())
	}
	return len(expired)
}

// RunJanitor evicts idle sessions every interval until ctx is done. onEvict, when set,
// receives the number of sessions closed by each sweep.
func (m *SessionManager) RunJanitor(ctx context.Context, interval time.Duration, onEvict func(int)) {
	if interval <= 0 || m.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(); n > 0 && onEvict != nil {
				onEvict(n)
			}
		}
	}
}

// Shutdown closes every session and waits for in-flight requests to drain.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		m.discard(context.Background(), session.Close())
	}
	m.deps.Orchestrator.Wait()
}

func (m *SessionManager) discard(ctx context.Context, exports []domain.ExportArtifact) {
	if len(exports) == 0 || m.deps.Exporter == nil {
		return
	}
	m.deps.Exporter.Discard(context.WithoutCancel(ctx), exports)
}

func (m *SessionManager) lookup(sessionID string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound(sessionID)
	}
	return session, nil
}

func notFound(sessionID string) error {
	return domain.WrapError(domain.ErrSessionNotFound, "lookup session", fmt.Errorf("id=%s", sessionID))
}
