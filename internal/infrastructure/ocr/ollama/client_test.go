package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/textify/internal/core/domain"
)

func TestExtractSendsImageAndReturnsTranscription(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte("{\"response\":\"```text\\nHello\\nWorld\\n```\"}"))
	}))
	defer server.Close()

	engine := New(server.URL, "llava", Options{})
	out, err := engine.Extract(context.Background(), domain.OCRInput{EntryID: "e1", MimeType: "image/png", Data: []byte("img")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out.Text != "Hello\nWorld" || out.Engine != "ollama" {
		t.Fatalf("unexpected output %+v", out)
	}
	if captured["model"] != "llava" {
		t.Fatalf("unexpected model %v", captured["model"])
	}
	images, _ := captured["images"].([]any)
	if len(images) != 1 || images[0] != base64.StdEncoding.EncodeToString([]byte("img")) {
		t.Fatalf("unexpected images payload %v", captured["images"])
	}
}

func TestExtractMarksServerErrorsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, "llava", Options{}).Extract(context.Background(), domain.OCRInput{Data: []byte("img")})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestExtractKeepsClientErrorsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model does not support images", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := New(server.URL, "llama3", Options{}).Extract(context.Background(), domain.OCRInput{Data: []byte("img")})
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestExtractRejectsEmptyImage(t *testing.T) {
	_, err := New("http://127.0.0.1:0", "llava", Options{}).Extract(context.Background(), domain.OCRInput{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExtractUnwrapsErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"llava\" not found, try pulling it first"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "llava", Options{}).Extract(context.Background(), domain.OCRInput{Data: []byte("img")})
	if err == nil {
		t.Fatalf("expected error")
	}
	if strings.Contains(err.Error(), `{"error"`) || !strings.Contains(err.Error(), "try pulling it first") {
		t.Fatalf("expected unwrapped message, got %v", err)
	}
}

func TestExtractSendsBase64PartOfDataURL(t *testing.T) {
	var captured struct {
		Images []string `json:"images"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer server.Close()

	encoded := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	_, err := New(server.URL, "llava", Options{}).Extract(context.Background(), domain.OCRInput{
		MimeType:       "image/png",
		EncodedPayload: "data:image/png;base64," + encoded,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(captured.Images) != 1 || captured.Images[0] != encoded {
		t.Fatalf("unexpected images payload %v", captured.Images)
	}
}

func TestBuildPromptAddsLanguageHint(t *testing.T) {
	if got := buildPrompt("  "); got != extractionPrompt {
		t.Fatalf("expected bare prompt without hint, got %q", got)
	}
	if got := buildPrompt("Arabic"); !strings.HasPrefix(got, extractionPrompt) || !strings.Contains(got, "mostly written in Arabic") {
		t.Fatalf("unexpected prompt %q", got)
	}
}
