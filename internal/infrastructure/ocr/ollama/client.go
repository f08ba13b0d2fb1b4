package ollama

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/infrastructure/resilience"
)

const engineName = "ollama"

type Options struct {
	Timeout            time.Duration
	LanguageHint       string
	ResilienceExecutor *resilience.Executor
}

// Engine extracts text from images with an Ollama vision model.
type Engine struct {
	baseURL    string
	model      string
	prompt     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, opts Options) *Engine {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Engine{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		prompt:     buildPrompt(opts.LanguageHint),
		httpClient: &http.Client{Timeout: timeout},
		executor:   opts.ResilienceExecutor,
	}
}

func (e *Engine) Name() string { return engineName }

func (e *Engine) Extract(ctx context.Context, in domain.OCRInput) (domain.OCROutput, error) {
	if len(in.Data) == 0 && in.EncodedPayload == "" {
		return domain.OCROutput{}, domain.WrapError(domain.ErrInvalidInput, "ollama extract", errors.New("empty image"))
	}
	request := map[string]any{
		"model":  e.model,
		"prompt": e.prompt,
		"images": []string{imagePayload(in)},
		"stream": false,
		"options": map[string]any{
			"temperature": 0,
		},
	}

	text, err := resilience.Do(ctx, e.executor, "ollama.generate", func(ctx context.Context) (string, error) {
		var response struct {
			Response string `json:"response"`
		}
		if err := e.postJSON(ctx, "/api/generate", request, &response, "generate"); err != nil {
			return "", err
		}
		return response.Response, nil
	}, classifyOllamaError)
	if err != nil {
		return domain.OCROutput{}, wrapTemporaryIfNeeded("ollama extract", err)
	}
	return domain.OCROutput{Text: cleanTranscription(text), Engine: engineName}, nil
}

// imagePayload reuses the entry's data URL. Ollama wants the bare base64 part.
func imagePayload(in domain.OCRInput) string {
	if strings.HasPrefix(in.EncodedPayload, "data:") {
		if _, encoded, ok := strings.Cut(in.EncodedPayload, ";base64,"); ok {
			return encoded
		}
	}
	return base64.StdEncoding.EncodeToString(in.Data)
}
