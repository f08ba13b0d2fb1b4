package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/core/ports"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func pngBytes(body string) []byte {
	return append(append([]byte{}, pngMagic...), body...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type codecFake struct{}

func (codecFake) Sniff(data []byte) string {
	return strings.SplitN(http.DetectContentType(data), ";", 2)[0]
}

func (codecFake) Rasterize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return pngBytes(string(data)), nil
}

// ocrFake answers by entry payload; gates let tests decide completion order.
type ocrFake struct {
	mu    sync.Mutex
	texts map[string]string
	errs  map[string]error
	gates map[string]chan struct{}
	calls int
}

func newOCRFake() *ocrFake {
	return &ocrFake{
		texts: map[string]string{},
		errs:  map[string]error{},
		gates: map[string]chan struct{}{},
	}
}

func (f *ocrFake) gate(key string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[key] = ch
	f.mu.Unlock()
	return ch
}

func (f *ocrFake) Name() string { return "fake" }

func (f *ocrFake) Extract(_ context.Context, in domain.OCRInput) (domain.OCROutput, error) {
	key := string(bytes.TrimPrefix(in.Data, pngMagic))
	f.mu.Lock()
	f.calls++
	gate := f.gates[key]
	text := f.texts[key]
	err := f.errs[key]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return domain.OCROutput{}, err
	}
	return domain.OCROutput{Text: text, Engine: "fake"}, nil
}

type eventsFake struct {
	mu            sync.Mutex
	notifications []domain.Notification
	extractions   []domain.ExtractionResult
	exports       []domain.ExportArtifact
}

func (f *eventsFake) Notify(_ context.Context, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *eventsFake) PublishExtraction(_ context.Context, _ string, result domain.ExtractionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractions = append(f.extractions, result)
	return nil
}

func (f *eventsFake) PublishExport(_ context.Context, artifact domain.ExportArtifact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exports = append(f.exports, artifact)
	return nil
}

func (f *eventsFake) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.notifications))
	for _, n := range f.notifications {
		out = append(out, n.Title)
	}
	return out
}

type streamFake struct {
	frame   []byte
	err     error
	stopped int
	mu      sync.Mutex
}

func (s *streamFake) Frame(context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.frame, nil
}

func (s *streamFake) Stop() {
	s.mu.Lock()
	s.stopped++
	s.mu.Unlock()
}

func (s *streamFake) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type cameraFake struct {
	stream *streamFake
	err    error
}

func (c *cameraFake) Open(context.Context) (ports.MediaStream, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

type clipboardFake struct {
	copied string
	err    error
}

func (c *clipboardFake) Copy(_ context.Context, text string) error {
	if c.err != nil {
		return c.err
	}
	c.copied = text
	return nil
}

type rendererFake struct {
	format domain.ExportFormat
	got    domain.ExportDocument
	err    error
}

func (r *rendererFake) Format() domain.ExportFormat { return r.format }
func (r *rendererFake) ContentType() string         { return "application/test" }

func (r *rendererFake) Render(_ context.Context, w io.Writer, doc domain.ExportDocument) error {
	if r.err != nil {
		return r.err
	}
	r.got = doc
	_, err := io.WriteString(w, doc.CombinedText())
	return err
}

type storageFake struct {
	mu    sync.Mutex
	files map[string]string
	err   error
}

func newStorageFake() *storageFake {
	return &storageFake{files: map[string]string{}}
}

func (s *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if s.err != nil {
		return s.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.files[key] = string(raw)
	s.mu.Unlock()
	return nil
}

func (s *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.files[key]
	if !ok {
		return nil, errors.New("missing object")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (s *storageFake) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	return nil
}

func (s *storageFake) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

type harness struct {
	ocr       *ocrFake
	events    *eventsFake
	camera    *cameraFake
	clipboard *clipboardFake
	renderer  *rendererFake
	storage   *storageFake
	manager   *SessionManager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ocr:       newOCRFake(),
		events:    &eventsFake{},
		camera:    &cameraFake{stream: &streamFake{frame: []byte("frame")}},
		clipboard: &clipboardFake{},
		renderer:  &rendererFake{format: domain.FormatDOCX},
		storage:   newStorageFake(),
	}
	logger := discardLogger()
	h.manager = NewSessionManager(SessionDeps{
		Orchestrator: NewOrchestrator(h.ocr, nil, 0, logger),
		Capture:      NewCaptureValidator(codecFake{}, domain.MaxImageBytes),
		Exporter:     NewExportService(h.storage, h.events, logger, h.renderer),
		Camera:       h.camera,
		Clipboard:    h.clipboard,
		Events:       h.events,
		Logger:       logger,
	}, time.Minute)
	return h
}

func (h *harness) newSession(t *testing.T) string {
	t.Helper()
	snap, err := h.manager.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return snap.ID
}

func (h *harness) wait(t *testing.T, sessionID string) domain.SessionSnapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.manager.Wait(ctx, sessionID); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	snap, err := h.manager.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return snap
}

func imageUpload(name, key string) domain.Upload {
	data := pngBytes(key)
	return domain.Upload{Filename: name, MimeType: "image/png", Size: int64(len(data)), Data: data}
}

func resultTexts(results []domain.ExtractionResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Text)
	}
	return out
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
