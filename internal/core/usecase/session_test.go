package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/textify/internal/core/domain"
)

func TestAddFilesRecordsOneResultPerImage(t *testing.T) {
	h := newHarness(t)
	h.ocr.texts["a"] = "  alpha  "
	h.ocr.texts["b"] = ""
	h.ocr.errs["c"] = errors.New("model unavailable")
	id := h.newSession(t)

	outcome, err := h.manager.AddFiles(context.Background(), id, []domain.Upload{
		imageUpload("a.png", "a"),
		imageUpload("b.png", "b"),
		imageUpload("c.png", "c"),
	})
	if err != nil {
		t.Fatalf("AddFiles() error = %v", err)
	}
	if len(outcome.Accepted) != 3 || len(outcome.Rejected) != 0 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	snap := h.wait(t, id)
	if len(snap.Entries) != 3 || len(snap.Results) != 3 {
		t.Fatalf("expected 3 entries and 3 results, got %d/%d", len(snap.Entries), len(snap.Results))
	}
	if snap.Outstanding != 0 || snap.Extracting {
		t.Fatalf("expected idle session, got outstanding=%d", snap.Outstanding)
	}

	byEntry := map[string]domain.ExtractionResult{}
	for _, r := range snap.Results {
		if _, dup := byEntry[r.EntryID]; dup {
			t.Fatalf("duplicate result for entry %s", r.EntryID)
		}
		byEntry[r.EntryID] = r
	}
	want := []struct {
		text   string
		status domain.ExtractionStatus
	}{
		{"alpha", domain.ExtractionReady},
		{domain.NoTextFoundText, domain.ExtractionReady},
		{domain.ExtractionFailedText, domain.ExtractionFailed},
	}
	for i, entry := range snap.Entries {
		got, ok := byEntry[entry.ID]
		if !ok {
			t.Fatalf("missing result for entry %d", i)
		}
		if got.Text != want[i].text || got.Status != want[i].status {
			t.Fatalf("entry %d: got %q/%s, want %q/%s", i, got.Text, got.Status, want[i].text, want[i].status)
		}
	}
	if snap.Error != domain.MsgExtractionFailed {
		t.Fatalf("expected extraction failure message, got %q", snap.Error)
	}
	waitUntil(t, func() bool { return len(h.events.titles()) > 0 })
	if titles := h.events.titles(); len(titles) != 1 || titles[0] != "Extraction Error" {
		t.Fatalf("expected one extraction error notification, got %v", titles)
	}
}

func TestResultsFollowCompletionOrder(t *testing.T) {
	h := newHarness(t)
	h.ocr.texts["A"] = "text A"
	h.ocr.texts["B"] = "text B"
	releaseA := h.ocr.gate("A")
	id := h.newSession(t)

	if _, err := h.manager.AddFiles(context.Background(), id, []domain.Upload{
		imageUpload("a.png", "A"),
		imageUpload("b.png", "B"),
	}); err != nil {
		t.Fatalf("AddFiles() error = %v", err)
	}

	waitUntil(t, func() bool {
		snap, _ := h.manager.Get(context.Background(), id)
		return len(snap.Results) == 1
	})
	snap, _ := h.manager.Get(context.Background(), id)
	if !snap.Extracting || snap.Outstanding != 1 {
		t.Fatalf("expected one outstanding request, got %d", snap.Outstanding)
	}
	close(releaseA)

	snap = h.wait(t, id)
	if got := resultTexts(snap.Results); !reflect.DeepEqual(got, []string{"text B", "text A"}) {
		t.Fatalf("expected completion order [B A], got %v", got)
	}
	if snap.Entries[0].Filename != "a.png" || snap.Entries[1].Filename != "b.png" {
		t.Fatalf("entries must stay in submission order: %+v", snap.Entries)
	}
	if snap.Results[0].Ordinal != 1 || snap.Results[1].Ordinal != 0 {
		t.Fatalf("expected ordinals to point at submitting entries, got %d,%d", snap.Results[0].Ordinal, snap.Results[1].Ordinal)
	}
}

func TestAddFilesRejectsOversizedFile(t *testing.T) {
	h := newHarness(t)
	h.ocr.texts["ok"] = "fine"
	id := h.newSession(t)

	big := pngBytes(strings.Repeat("x", domain.MaxImageBytes))
	outcome, err := h.manager.AddFiles(context.Background(), id, []domain.Upload{
		{Filename: "huge.png", Size: int64(len(big)), Data: big},
		imageUpload("ok.png", "ok"),
	})
	if err != nil {
		t.Fatalf("AddFiles() error = %v", err)
	}
	if len(outcome.Rejected) != 1 || !domain.IsKind(outcome.Rejected[0].Err, domain.ErrFileTooLarge) {
		t.Fatalf("expected one size rejection, got %+v", outcome.Rejected)
	}
	if outcome.Rejected[0].Message != "huge.png: "+domain.MsgFileTooLarge {
		t.Fatalf("unexpected rejection message %q", outcome.Rejected[0].Message)
	}

	snap := h.wait(t, id)
	if len(snap.Entries) != 1 || snap.Entries[0].Filename != "ok.png" {
		t.Fatalf("oversized file must not become an entry: %+v", snap.Entries)
	}
	if !strings.Contains(snap.Error, domain.MsgFileTooLarge) {
		t.Fatalf("expected size error in session state, got %q", snap.Error)
	}
}

func TestRemoveAtKeepsRelativeOrder(t *testing.T) {
	h := newHarness(t)
	for _, k := range []string{"1", "2", "3", "4"} {
		h.ocr.texts[k] = "text " + k
	}
	id := h.newSession(t)
	for _, k := range []string{"1", "2", "3", "4"} {
		if _, err := h.manager.AddFiles(context.Background(), id, []domain.Upload{imageUpload(k+".png", k)}); err != nil {
			t.Fatalf("AddFiles() error = %v", err)
		}
		h.wait(t, id)
	}

	if err := h.manager.RemoveAt(context.Background(), id, 1); err != nil {
		t.Fatalf("RemoveAt() error = %v", err)
	}
	snap, _ := h.manager.Get(context.Background(), id)
	if got := resultTexts(snap.Results); !reflect.DeepEqual(got, []string{"text 1", "text 3", "text 4"}) {
		t.Fatalf("unexpected results after remove: %v", got)
	}
	names := []string{snap.Entries[0].Filename, snap.Entries[1].Filename, snap.Entries[2].Filename}
	if !reflect.DeepEqual(names, []string{"1.png", "3.png", "4.png"}) {
		t.Fatalf("unexpected entries after remove: %v", names)
	}

	err := h.manager.RemoveAt(context.Background(), id, 3)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for out of range index, got %v", err)
	}
}

func TestRemoveAtDropsLateResultOfRemovedEntry(t *testing.T) {
	h := newHarness(t)
	h.ocr.texts["slow"] = "slow text"
	release := h.ocr.gate("slow")
	id := h.newSession(t)

	if _, err := h.manager.AddFiles(context.Background(), id, []domain.Upload{imageUpload("slow.png", "slow")}); err != nil {
		t.Fatalf("AddFiles() error = %v", err)
	}
	if err := h.manager.RemoveAt(context.Background(), id, 0); err != nil {
		t.Fatalf("RemoveAt() error = %v", err)
	}
	close(release)

	snap := h.wait(t, id)
	if len(snap.Entries) != 0 || len(snap.Results) != 0 {
		t.Fatalf("expected empty collection, got %d entries %d results", len(snap.Entries), len(snap.Results))
	}
	if snap.Outstanding != 0 {
		t.Fatalf("expected counter back at zero, got %d", snap.Outstanding)
	}
}

func TestClearAllResetsCounterAndReleasesCamera(t *testing.T) {
	h := newHarness(t)
	h.ocr.texts["pending"] = "late"
	release := h.ocr.gate("pending")
	id := h.newSession(t)

	if _, err := h.manager.AddFiles(context.Background(), id, []domain.Upload{imageUpload("p.png", "pending")}); err != nil {
		t.Fatalf("AddFiles() error = %v", err)
	}
	if err := h.manager.StartCamera(context.Background(), id); err != nil {
		t.Fatalf("StartCamera() error = %v", err)
	}

	if err := h.manager.ClearAll(context.Background(), id); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	snap, _ := h.manager.Get(context.Background(), id)
	if snap.Outstanding != 0 || snap.Extracting || snap.CameraActive {
		t.Fatalf("expected reset session, got %+v", snap)
	}
	if h.camera.stream.stopCount() != 1 {
		t.Fatalf("expected camera stream stopped once, got %d", h.camera.stream.stopCount())
	}

	close(release)
	h.manager.deps.Orchestrator.Wait()

	snap, _ = h.manager.Get(context.Background(), id)
	if snap.Outstanding != 0 {
		t.Fatalf("counter must never go negative, got %d", snap.Outstanding)
	}
	if len(snap.Results) != 0 {
		t.Fatalf("late completion must be discarded after clear, got %v", resultTexts(snap.Results))
	}
}

func TestCameraDeniedKeepsProcessedImages(t *testing.T) {
	h := newHarness(t)
	h.ocr.texts["a"] = "kept"
	id := h.newSession(t)
	if _, err := h.manager.AddFiles(context.Background(), id, []domain.Upload{imageUpload("a.png", "a")}); err != nil {
		t.Fatalf("AddFiles() error = %v", err)
	}
	h.wait(t, id)

	h.camera.err = domain.WrapError(domain.ErrCameraDenied, "open camera", errors.New("403"))
	err := h.manager.StartCamera(context.Background(), id)
	if !domain.IsKind(err, domain.ErrCameraDenied) {
		t.Fatalf("expected ErrCameraDenied, got %v", err)
	}

	snap, _ := h.manager.Get(context.Background(), id)
	if snap.Error != domain.MsgCameraDenied {
		t.Fatalf("expected camera denied message, got %q", snap.Error)
	}
	if len(snap.Results) != 1 || snap.Results[0].Text != "kept" {
		t.Fatalf("camera failure must not touch results: %+v", snap.Results)
	}
}

func TestCameraUnsupportedMessage(t *testing.T) {
	h := newHarness(t)
	h.camera.err = domain.WrapError(domain.ErrCameraUnsupported, "open camera", errors.New("no device"))
	id := h.newSession(t)

	if err := h.manager.StartCamera(context.Background(), id); !domain.IsKind(err, domain.ErrCameraUnsupported) {
		t.Fatalf("expected ErrCameraUnsupported, got %v", err)
	}
	snap, _ := h.manager.Get(context.Background(), id)
	if snap.Error != domain.MsgCameraUnsupported {
		t.Fatalf("expected unsupported message, got %q", snap.Error)
	}
}

func TestCaptureFromCameraDispatchesFrame(t *testing.T) {
	h := newHarness(t)
	h.ocr.texts["frame"] = "from camera"
	id := h.newSession(t)

	if _, err := h.manager.CaptureFromCamera(context.Background(), id); !domain.IsKind(err, domain.ErrCameraInactive) {
		t.Fatalf("expected ErrCameraInactive before start, got %v", err)
	}

	if err := h.manager.StartCamera(context.Background(), id); err != nil {
		t.Fatalf("StartCamera() error = %v", err)
	}
	entry, err := h.manager.CaptureFromCamera(context.Background(), id)
	if err != nil {
		t.Fatalf("CaptureFromCamera() error = %v", err)
	}
	if entry.Source != domain.SourceCamera || entry.MimeType != "image/png" || entry.Filename != "capture-1.png" {
		t.Fatalf("unexpected captured entry: %+v", entry)
	}
	if !strings.HasPrefix(entry.EncodedPayload, "data:image/png;base64,") {
		t.Fatalf("expected png data url, got %q", entry.EncodedPayload[:20])
	}

	snap := h.wait(t, id)
	if snap.CameraActive || h.camera.stream.stopCount() != 1 {
		t.Fatalf("expected stream released after capture")
	}
	if len(snap.Results) != 1 || snap.Results[0].Text != "from camera" {
		t.Fatalf("unexpected results: %+v", snap.Results)
	}
}

func TestCopyFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	h.ocr.texts["a"] = "copy me"
	id := h.newSession(t)
	if _, err := h.manager.AddFiles(context.Background(), id, []domain.Upload{imageUpload("a.png", "a")}); err != nil {
		t.Fatalf("AddFiles() error = %v", err)
	}
	before := h.wait(t, id)

	h.clipboard.err = errors.New("clipboard locked")
	if _, err := h.manager.Copy(context.Background(), id, 0); err == nil {
		t.Fatalf("expected copy error")
	}
	after, _ := h.manager.Get(context.Background(), id)
	if after.Error != before.Error || len(after.Results) != len(before.Results) || after.LastCopied != "" {
		t.Fatalf("copy failure mutated state: before=%+v after=%+v", before, after)
	}
	if titles := h.events.titles(); titles[len(titles)-1] != "Copy Failed" {
		t.Fatalf("expected copy failure notification, got %v", titles)
	}

	h.clipboard.err = nil
	text, err := h.manager.Copy(context.Background(), id, 0)
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if text != "copy me" || h.clipboard.copied != "copy me" {
		t.Fatalf("unexpected copied text %q", text)
	}
}

func TestExportEmptyCollectionFails(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	_, err := h.manager.Export(context.Background(), id, domain.FormatDOCX)
	if !domain.IsKind(err, domain.ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
	if len(h.storage.files) != 0 {
		t.Fatalf("empty export must not write files")
	}
	snap, _ := h.manager.Get(context.Background(), id)
	if snap.Error != domain.MsgNothingToExport {
		t.Fatalf("expected nothing-to-export message, got %q", snap.Error)
	}
}

func TestExportConcatenatesWithHeaders(t *testing.T) {
	h := newHarness(t)
	h.ocr.texts["a"] = "first"
	h.ocr.texts["b"] = "second"
	id := h.newSession(t)
	for _, k := range []string{"a", "b"} {
		if _, err := h.manager.AddFiles(context.Background(), id, []domain.Upload{imageUpload(k+".png", k)}); err != nil {
			t.Fatalf("AddFiles() error = %v", err)
		}
		h.wait(t, id)
	}

	artifact, err := h.manager.Export(context.Background(), id, "")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if artifact.Format != domain.FormatDOCX || artifact.Filename != "extracted-text.docx" || artifact.Entries != 2 {
		t.Fatalf("unexpected artifact: %+v", artifact)
	}
	want := "Text from image 1\nfirst\n\nText from image 2\nsecond"
	if got := h.storage.files[artifact.StorageKey]; got != want {
		t.Fatalf("unexpected export body %q", got)
	}
	if len(h.events.exports) != 1 {
		t.Fatalf("expected one export event, got %d", len(h.events.exports))
	}

	meta, body, err := h.manager.OpenExport(context.Background(), id, artifact.ID)
	if err != nil {
		t.Fatalf("OpenExport() error = %v", err)
	}
	defer body.Close()
	if meta.ID != artifact.ID {
		t.Fatalf("unexpected artifact id %s", meta.ID)
	}
}

func TestExportFailureKeepsResults(t *testing.T) {
	h := newHarness(t)
	h.ocr.texts["a"] = "first"
	h.renderer.err = errors.New("writer broke")
	id := h.newSession(t)
	if _, err := h.manager.AddFiles(context.Background(), id, []domain.Upload{imageUpload("a.png", "a")}); err != nil {
		t.Fatalf("AddFiles() error = %v", err)
	}
	h.wait(t, id)

	if _, err := h.manager.Export(context.Background(), id, domain.FormatDOCX); err == nil {
		t.Fatalf("expected export error")
	}
	snap, _ := h.manager.Get(context.Background(), id)
	if snap.Error != "Failed to generate DOCX file." {
		t.Fatalf("unexpected error message %q", snap.Error)
	}
	if len(snap.Results) != 1 {
		t.Fatalf("export failure must not clear results")
	}
}

func TestClosedSessionIsNotFound(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	if err := h.manager.Close(context.Background(), id); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := h.manager.Get(context.Background(), id); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCaptureFromCameraAcceptsFrameAboveUploadLimit(t *testing.T) {
	h := newHarness(t)
	key := strings.Repeat("f", domain.MaxImageBytes+1024)
	h.camera.stream.frame = []byte(key)
	h.ocr.texts[key] = "large frame"
	id := h.newSession(t)

	if err := h.manager.StartCamera(context.Background(), id); err != nil {
		t.Fatalf("StartCamera() error = %v", err)
	}
	entry, err := h.manager.CaptureFromCamera(context.Background(), id)
	if err != nil {
		t.Fatalf("CaptureFromCamera() error = %v", err)
	}
	if entry.Size <= domain.MaxImageBytes {
		t.Fatalf("expected frame above upload limit, got %d bytes", entry.Size)
	}

	snap := h.wait(t, id)
	if snap.Error != "" {
		t.Fatalf("unexpected error message %q", snap.Error)
	}
	if len(snap.Results) != 1 || snap.Results[0].Text != "large frame" {
		t.Fatalf("unexpected results: %+v", resultTexts(snap.Results))
	}
}

func TestPreviewReturnsEntryDataURL(t *testing.T) {
	h := newHarness(t)
	h.ocr.texts["a"] = "text a"
	id := h.newSession(t)
	if _, err := h.manager.AddFiles(context.Background(), id, []domain.Upload{imageUpload("a.png", "a")}); err != nil {
		t.Fatalf("AddFiles() error = %v", err)
	}
	h.wait(t, id)

	preview, err := h.manager.Preview(context.Background(), id, 0)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if preview.Filename != "a.png" || preview.ImageDataURL != EncodePayload("image/png", pngBytes("a")) {
		t.Fatalf("unexpected preview %+v", preview)
	}
	if _, err := h.manager.Preview(context.Background(), id, 1); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for out of range index, got %v", err)
	}
}

func TestCloseAndEvictionDeleteStoredExports(t *testing.T) {
	h := newHarness(t)
	h.ocr.texts["a"] = "first"
	closed := h.newSession(t)
	idle := h.newSession(t)
	for _, id := range []string{closed, idle} {
		if _, err := h.manager.AddFiles(context.Background(), id, []domain.Upload{imageUpload("a.png", "a")}); err != nil {
			t.Fatalf("AddFiles() error = %v", err)
		}
		h.wait(t, id)
		if _, err := h.manager.Export(context.Background(), id, ""); err != nil {
			t.Fatalf("Export() error = %v", err)
		}
	}
	if h.storage.count() != 2 {
		t.Fatalf("expected two stored exports, got %d", h.storage.count())
	}

	if err := h.manager.Close(context.Background(), closed); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if h.storage.count() != 1 {
		t.Fatalf("expected closed session export deleted, got %d stored", h.storage.count())
	}

	h.manager.now = func() time.Time { return time.Now().Add(time.Hour) }
	if n := h.manager.EvictIdle(); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if h.storage.count() != 0 {
		t.Fatalf("expected evicted session export deleted, got %d stored", h.storage.count())
	}
}

func TestExportTextsRendersWithoutStoring(t *testing.T) {
	h := newHarness(t)
	exporter := NewExportService(h.storage, h.events, discardLogger(), h.renderer)

	artifact, data, err := exporter.ExportTexts(context.Background(), []string{"first", "second"}, "")
	if err != nil {
		t.Fatalf("ExportTexts() error = %v", err)
	}
	if artifact.Format != domain.FormatDOCX || artifact.StorageKey != "" || artifact.Size != int64(len(data)) {
		t.Fatalf("unexpected artifact %+v", artifact)
	}
	if string(data) != "Text from image 1\nfirst\n\nText from image 2\nsecond" {
		t.Fatalf("unexpected document %q", data)
	}
	if h.storage.count() != 0 {
		t.Fatalf("ad-hoc export must not be stored")
	}
	if _, _, err := exporter.ExportTexts(context.Background(), nil, ""); !domain.IsKind(err, domain.ErrNothingToExport) {
		t.Fatalf("expected nothing to export, got %v", err)
	}
}

func TestCaptureFrameReadFailureIsNotReportedAsDenied(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	if err := h.manager.StartCamera(context.Background(), id); err != nil {
		t.Fatalf("StartCamera() error = %v", err)
	}

	h.camera.stream.err = errors.New("unexpected EOF")
	_, err := h.manager.CaptureFromCamera(context.Background(), id)
	if !domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrCameraDenied) {
		t.Fatalf("expected temporary frame error, got %v", err)
	}

	snap, _ := h.manager.Get(context.Background(), id)
	if snap.Error != domain.MsgCameraFrame {
		t.Fatalf("expected frame read message, got %q", snap.Error)
	}
	if !snap.CameraActive {
		t.Fatalf("camera should stay active after a failed frame read")
	}
	titles := h.events.titles()
	if len(titles) == 0 || titles[len(titles)-1] != "Camera Error" {
		t.Fatalf("unexpected notifications %v", titles)
	}
}
