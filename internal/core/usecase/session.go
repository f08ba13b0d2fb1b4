package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/core/ports"
)

// SessionDeps are the collaborators shared by every session.
type SessionDeps struct {
	Orchestrator *Orchestrator
	Capture      *CaptureValidator
	Exporter     *ExportService
	Camera       ports.Camera
	Clipboard    ports.Clipboard
	Events       ports.EventPublisher
	Logger       *slog.Logger
}

// Session owns the entry list, the completion-ordered result list and the
// outstanding request counter of one capture session.
type Session struct {
	id   string
	deps SessionDeps
	now  func() time.Time

	mu          sync.Mutex
	entries     []domain.ImageEntry
	results     []domain.ExtractionResult
	outstanding int
	// epoch is bumped by ClearAll and Close; completions from an older epoch are dropped.
	epoch    uint64
	inFlight map[string]struct{}
	dropped  map[string]struct{}
	idle     chan struct{}
	errMsg   string
	stream   ports.MediaStream
	captures int
	copied   string
	exports  map[string]domain.ExportArtifact
	closed   bool

	createdAt  time.Time
	lastActive time.Time
}

func newSession(id string, deps SessionDeps, now func() time.Time) *Session {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ts := now().UTC()
	return &Session{
		id:         id,
		deps:       deps,
		now:        now,
		inFlight:   map[string]struct{}{},
		dropped:    map[string]struct{}{},
		exports:    map[string]domain.ExportArtifact{},
		createdAt:  ts,
		lastActive: ts,
	}
}

func (s *Session) ID() string { return s.id }

// AddFiles validates uploads and dispatches one extraction per accepted file.
func (s *Session) AddFiles(ctx context.Context, uploads []domain.Upload) (domain.CaptureOutcome, error) {
	if len(uploads) == 0 {
		s.setError(domain.MsgNoImage)
		return domain.CaptureOutcome{}, domain.WrapError(domain.ErrInvalidInput, "add files", errors.New("no files"))
	}

	outcome := s.deps.Capture.SelectFiles(uploads)

	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return domain.CaptureOutcome{}, err
	}
	s.releaseStreamLocked()
	switch {
	case len(outcome.Rejected) > 0:
		s.errMsg = outcome.Rejected[len(outcome.Rejected)-1].Message
	case len(outcome.Accepted) > 0:
		s.errMsg = ""
	}
	s.touchLocked()
	s.mu.Unlock()

	for _, entry := range outcome.Accepted {
		s.dispatch(ctx, entry)
	}
	return outcome, nil
}

// StartCamera opens the camera. Failure is terminal for this attempt only.
func (s *Session) StartCamera(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.releaseStreamLocked()
	s.touchLocked()
	s.mu.Unlock()

	if s.deps.Camera == nil {
		err := domain.WrapError(domain.ErrCameraUnsupported, "start camera", errors.New("no camera configured"))
		s.failCamera(ctx, err)
		return err
	}

	stream, err := s.deps.Camera.Open(ctx)
	if err != nil {
		s.failCamera(ctx, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		stream.Stop()
		return domain.WrapError(domain.ErrSessionNotFound, "start camera", errors.New("session closed"))
	}
	s.releaseStreamLocked()
	s.stream = stream
	s.errMsg = ""
	return nil
}

// CaptureFromCamera grabs the current frame, releases the stream and dispatches the frame.
func (s *Session) CaptureFromCamera(ctx context.Context) (domain.ImageEntry, error) {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return domain.ImageEntry{}, err
	}
	stream := s.stream
	s.touchLocked()
	s.mu.Unlock()

	if stream == nil {
		s.setError(domain.MsgCameraInactive)
		return domain.ImageEntry{}, domain.WrapError(domain.ErrCameraInactive, "capture", errors.New("no active stream"))
	}

	frame, err := stream.Frame(ctx)
	if err != nil {
		if !isClassifiedFrameError(err) {
			err = domain.WrapError(domain.ErrTemporary, "read camera frame", err)
		}
		s.failCamera(ctx, err)
		return domain.ImageEntry{}, err
	}

	s.mu.Lock()
	s.captures++
	seq := s.captures
	if s.stream == stream {
		s.releaseStreamLocked()
	}
	s.mu.Unlock()

	entry, err := s.deps.Capture.FromFrame(frame, seq)
	if err != nil {
		s.setError(rejectionMessage("", err))
		return domain.ImageEntry{}, err
	}

	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return domain.ImageEntry{}, err
	}
	s.errMsg = ""
	s.mu.Unlock()

	s.dispatch(ctx, entry)
	return entry, nil
}

// CancelCamera releases the active stream, if any.
func (s *Session) CancelCamera(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.releaseStreamLocked()
	s.touchLocked()
	return nil
}

// Preview returns the data URL of the entry at index.
func (s *Session) Preview(_ context.Context, index int) (domain.ImagePreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return domain.ImagePreview{}, err
	}
	if index < 0 || index >= len(s.entries) {
		return domain.ImagePreview{}, domain.WrapError(domain.ErrInvalidInput, "preview image", fmt.Errorf("index %d out of range [0,%d)", index, len(s.entries)))
	}
	entry := s.entries[index]
	return domain.ImagePreview{
		Index:        index,
		EntryID:      entry.ID,
		Filename:     entry.Filename,
		MimeType:     entry.MimeType,
		Size:         entry.Size,
		Source:       entry.Source,
		ImageDataURL: entry.EncodedPayload,
	}, nil
}

// RemoveAt drops the entry at index together with the result produced for it.
func (s *Session) RemoveAt(_ context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if index < 0 || index >= len(s.entries) {
		return domain.WrapError(domain.ErrInvalidInput, "remove image", fmt.Errorf("index %d out of range [0,%d)", index, len(s.entries)))
	}

	entry := s.entries[index]
	s.entries = append(s.entries[:index:index], s.entries[index+1:]...)

	if _, pending := s.inFlight[entry.ID]; pending {
		s.dropped[entry.ID] = struct{}{}
	}
	for i, result := range s.results {
		if result.EntryID == entry.ID {
			s.results = append(s.results[:i:i], s.results[i+1:]...)
			break
		}
	}
	s.touchLocked()
	return nil
}

// ClearAll empties both lists, resets the counter and releases the camera.
func (s *Session) ClearAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.resetLocked()
	s.touchLocked()
	return nil
}

// Copy hands the text of result index to the clipboard. Failure leaves state untouched.
func (s *Session) Copy(ctx context.Context, index int) (string, error) {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	if index < 0 || index >= len(s.results) {
		s.mu.Unlock()
		return "", domain.WrapError(domain.ErrInvalidInput, "copy", fmt.Errorf("index %d out of range [0,%d)", index, len(s.results)))
	}
	text := s.results[index].Text
	s.mu.Unlock()

	if s.deps.Clipboard == nil {
		err := errors.New("no clipboard configured")
		s.notify(ctx, domain.NotificationError, "Copy Failed", domain.MsgCopyFailed)
		return "", fmt.Errorf("copy to clipboard: %w", err)
	}
	if err := s.deps.Clipboard.Copy(ctx, text); err != nil {
		s.notify(ctx, domain.NotificationError, "Copy Failed", domain.MsgCopyFailed)
		return "", fmt.Errorf("copy to clipboard: %w", err)
	}

	s.mu.Lock()
	s.copied = text
	s.touchLocked()
	s.mu.Unlock()
	s.notify(ctx, domain.NotificationInfo, "Copied", fmt.Sprintf("Text from image %d copied to clipboard.", index+1))
	return text, nil
}

// Export renders every result into one document.
func (s *Session) Export(ctx context.Context, format domain.ExportFormat) (*domain.ExportArtifact, error) {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	results := append([]domain.ExtractionResult(nil), s.results...)
	s.touchLocked()
	s.mu.Unlock()

	if len(results) == 0 {
		s.setError(domain.MsgNothingToExport)
		return nil, domain.WrapError(domain.ErrNothingToExport, "export", errors.New("result collection is empty"))
	}

	artifact, err := s.deps.Exporter.ExportAll(ctx, s.id, results, format)
	if err != nil {
		if format == "" {
			format = domain.FormatDOCX
		}
		s.setError(fmt.Sprintf("Failed to generate %s file.", formatLabel(format)))
		s.notify(ctx, domain.NotificationError, "Export Failed", fmt.Sprintf("Could not export the text to %s.", formatLabel(format)))
		return nil, err
	}

	s.mu.Lock()
	s.exports[artifact.ID] = *artifact
	s.mu.Unlock()
	return artifact, nil
}

// OpenExport returns a previously created artifact of this session.
func (s *Session) OpenExport(ctx context.Context, exportID string) (*domain.ExportArtifact, io.ReadCloser, error) {
	s.mu.Lock()
	artifact, ok := s.exports[exportID]
	s.mu.Unlock()
	if !ok {
		return nil, nil, domain.WrapError(domain.ErrExportNotFound, "open export", fmt.Errorf("id=%s", exportID))
	}
	reader, err := s.deps.Exporter.Open(ctx, artifact)
	if err != nil {
		return nil, nil, err
	}
	return &artifact, reader, nil
}

// Snapshot copies the current state.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionSnapshot{
		ID:           s.id,
		Entries:      append([]domain.ImageEntry{}, s.entries...),
		Results:      append([]domain.ExtractionResult{}, s.results...),
		Outstanding:  s.outstanding,
		Extracting:   s.outstanding > 0,
		Error:        s.errMsg,
		CameraActive: s.stream != nil,
		LastCopied:   s.copied,
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.lastActive,
	}
}

// Wait blocks until no request is outstanding or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	if s.outstanding == 0 {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the camera and detaches every in-flight request. It returns the exports
// created by the session so the caller can delete them; exports live only as long as
// their session.
func (s *Session) Close() []domain.ExportArtifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.resetLocked()
	s.closed = true

	exports := make([]domain.ExportArtifact, 0, len(s.exports))
	for _, artifact := range s.exports {
		exports = append(exports, artifact)
	}
	s.exports = map[string]domain.ExportArtifact{}
	return exports
}

func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, s.outstanding == 0
}

func (s *Session) dispatch(ctx context.Context, entry domain.ImageEntry) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.entries = append(s.entries, entry)
	ordinal := len(s.entries) - 1
	if s.outstanding == 0 {
		s.idle = make(chan struct{})
	}
	s.outstanding++
	s.inFlight[entry.ID] = struct{}{}
	epoch := s.epoch
	s.mu.Unlock()

	s.deps.Orchestrator.Dispatch(ctx, s.id, entry, ordinal, func(result domain.ExtractionResult, err error) {
		s.settle(ctx, epoch, result, err)
	})
}

func (s *Session) settle(ctx context.Context, epoch uint64, result domain.ExtractionResult, err error) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	s.outstanding--
	delete(s.inFlight, result.EntryID)
	if s.outstanding == 0 {
		close(s.idle)
	}

	if _, gone := s.dropped[result.EntryID]; gone {
		delete(s.dropped, result.EntryID)
		s.mu.Unlock()
		return
	}
	s.results = append(s.results, result)
	if err != nil {
		s.errMsg = domain.MsgExtractionFailed
	}
	s.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	if s.deps.Events != nil {
		if pubErr := s.deps.Events.PublishExtraction(detached, s.id, result); pubErr != nil {
			s.deps.Logger.Warn("extraction_event_publish_failed", "session_id", s.id, "entry_id", result.EntryID, "error", pubErr)
		}
	}
	if err != nil {
		s.notify(detached, domain.NotificationError, "Extraction Error", "Could not extract text from the image.")
	}
}

func (s *Session) failCamera(ctx context.Context, err error) {
	msg := domain.MsgCameraFrame
	title := "Camera Error"
	description := domain.MsgCameraFrame
	switch {
	case domain.IsKind(err, domain.ErrCameraDenied):
		msg = domain.MsgCameraDenied
		title = "Camera Access Denied"
		description = "Please enable camera permissions in your device settings."
	case domain.IsKind(err, domain.ErrCameraUnsupported):
		msg = domain.MsgCameraUnsupported
		title = "Camera Unavailable"
		description = domain.MsgCameraUnsupported
	case domain.IsKind(err, domain.ErrCameraInactive):
		msg = domain.MsgCameraInactive
		title = "Camera Stopped"
		description = domain.MsgCameraInactive
	}
	s.setError(msg)
	s.notify(ctx, domain.NotificationError, title, description)
	s.deps.Logger.Warn("camera_failed", "session_id", s.id, "error", err)
}

func isClassifiedFrameError(err error) bool {
	for _, kind := range []error{
		domain.ErrCameraDenied,
		domain.ErrCameraUnsupported,
		domain.ErrCameraInactive,
		domain.ErrFileTooLarge,
		domain.ErrTemporary,
	} {
		if domain.IsKind(err, kind) {
			return true
		}
	}
	return false
}

func (s *Session) notify(ctx context.Context, kind domain.NotificationKind, title, description string) {
	if s.deps.Events == nil {
		return
	}
	err := s.deps.Events.Notify(ctx, domain.Notification{
		SessionID:   s.id,
		Kind:        kind,
		Title:       title,
		Description: description,
		At:          s.now().UTC(),
	})
	if err != nil {
		s.deps.Logger.Warn("notification_failed", "session_id", s.id, "title", title, "error", err)
	}
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.touchLocked()
	s.mu.Unlock()
}

func (s *Session) resetLocked() {
	s.entries = nil
	s.results = nil
	if s.outstanding > 0 {
		close(s.idle)
	}
	s.outstanding = 0
	s.epoch++
	s.inFlight = map[string]struct{}{}
	s.dropped = map[string]struct{}{}
	s.errMsg = ""
	s.releaseStreamLocked()
}

func (s *Session) releaseStreamLocked() {
	if s.stream != nil {
		s.stream.Stop()
		s.stream = nil
	}
}

func (s *Session) touchLocked() {
	s.lastActive = s.now().UTC()
}

func (s *Session) checkOpen() error {
	if s.closed {
		return domain.WrapError(domain.ErrSessionNotFound, "session", fmt.Errorf("id=%s closed", s.id))
	}
	return nil
}

func formatLabel(format domain.ExportFormat) string {
	switch format {
	case domain.FormatDOCX:
		return "DOCX"
	case domain.FormatXLSX:
		return "XLSX"
	case domain.FormatHTML:
		return "HTML"
	case domain.FormatMarkdown:
		return "Markdown"
	default:
		return string(format)
	}
}
