package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/infrastructure/resilience"
)

const (
	engineName   = "vertex"
	systemPrompt = "You are an OCR engine. You return the text visible in an image verbatim and nothing else."
	userPrompt   = `Extract all text from this image. Keep line breaks and reading order.
Return ONLY the extracted text. If there is no readable text, return an empty response.`
)

// Engine runs extraction through a Gemini model on Vertex AI.
type Engine struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	prompt   string
	executor *resilience.Executor
}

func New(ctx context.Context, projectID, region, modelName, languageHint string, executor *resilience.Executor) (*Engine, error) {
	if projectID == "" || region == "" {
		return nil, errors.New("vertex: project id and region are required")
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}

	return &Engine{client: client, model: model, prompt: buildPrompt(languageHint), executor: executor}, nil
}

func buildPrompt(languageHint string) string {
	if languageHint = strings.TrimSpace(languageHint); languageHint == "" {
		return userPrompt
	}
	return userPrompt + "\nThe text is mostly written in " + languageHint + ". Keep it in its original script and reading order."
}

func (e *Engine) Name() string { return engineName }

func (e *Engine) Extract(ctx context.Context, in domain.OCRInput) (domain.OCROutput, error) {
	blob, err := inlineBlob(in)
	if err != nil {
		return domain.OCROutput{}, err
	}

	resp, err := resilience.Do(ctx, e.executor, "vertex.generate", func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return e.model.GenerateContent(ctx, blob, genai.Text(e.prompt))
	}, nil)
	if err != nil {
		if resilience.IsCircuitOpen(err) {
			return domain.OCROutput{}, domain.WrapError(domain.ErrTemporary, "vertex extract", err)
		}
		return domain.OCROutput{}, fmt.Errorf("vertex generate content: %w", err)
	}
	return domain.OCROutput{Text: responseText(resp), Engine: engineName}, nil
}

func (e *Engine) Close() error {
	return e.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String())
}

// inlineBlob sends images and PDFs inline; Gemini reads both.
func inlineBlob(in domain.OCRInput) (genai.Blob, error) {
	if in.MimeType != "application/pdf" && !strings.HasPrefix(in.MimeType, "image/") {
		return genai.Blob{}, domain.WrapError(domain.ErrUnsupportedMedia, "vertex extract", fmt.Errorf("mime type %q", in.MimeType))
	}
	return genai.Blob{MIMEType: in.MimeType, Data: in.Data}, nil
}
