//go:build tesseract

package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/kirillkom/textify/internal/core/domain"
)

const engineName = "tesseract"

// Available reports whether this binary was built with the tesseract tag.
const Available = true

// Engine runs the local Tesseract library. One client per call; gosseract clients are
// not safe for concurrent use.
type Engine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

func New(languages []string) *Engine {
	return &Engine{languages: languages, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return engineName }

func (e *Engine) Extract(ctx context.Context, in domain.OCRInput) (domain.OCROutput, error) {
	if err := ctx.Err(); err != nil {
		return domain.OCROutput{}, err
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Data); err != nil {
		return domain.OCROutput{}, fmt.Errorf("set image: %w", err)
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return domain.OCROutput{}, fmt.Errorf("set languages: %w", err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return domain.OCROutput{}, fmt.Errorf("recognize text: %w", err)
	}
	return domain.OCROutput{Text: strings.TrimSpace(text), Engine: engineName}, nil
}
