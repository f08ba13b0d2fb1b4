package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/textify/internal/core/domain"
)

const engineName = "pdftext"

// Engine reads the embedded text layer of PDF payloads. Scanned PDFs without a text
// layer come back empty, which the orchestrator reports as "no text found".
type Engine struct {
	maxChars int
}

func New(maxChars int) *Engine {
	if maxChars <= 0 {
		maxChars = 200_000
	}
	return &Engine{maxChars: maxChars}
}

func (e *Engine) Name() string { return engineName }

func (e *Engine) Extract(ctx context.Context, in domain.OCRInput) (domain.OCROutput, error) {
	if len(in.Data) == 0 {
		return domain.OCROutput{}, domain.WrapError(domain.ErrInvalidInput, "pdf extract", errors.New("empty document"))
	}
	if err := ctx.Err(); err != nil {
		return domain.OCROutput{}, err
	}

	reader, err := pdf.NewReader(bytes.NewReader(in.Data), int64(len(in.Data)))
	if err != nil {
		return domain.OCROutput{}, domain.WrapError(domain.ErrUnsupportedMedia, "open pdf", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return domain.OCROutput{}, fmt.Errorf("read pdf text layer: %w", err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, io.LimitReader(plain, int64(e.maxChars))); err != nil {
		return domain.OCROutput{}, fmt.Errorf("copy pdf text: %w", err)
	}
	return domain.OCROutput{Text: normalizeWhitespace(sb.String()), Engine: engineName}, nil
}

func normalizeWhitespace(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
