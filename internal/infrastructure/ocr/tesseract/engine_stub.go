//go:build !tesseract

package tesseract

import (
	"context"
	"errors"

	"github.com/kirillkom/textify/internal/core/domain"
)

const Available = false

// Engine is a placeholder in builds without cgo Tesseract bindings.
type Engine struct{}

func New([]string) *Engine { return &Engine{} }

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Extract(context.Context, domain.OCRInput) (domain.OCROutput, error) {
	return domain.OCROutput{}, errors.New("tesseract: binary built without the tesseract tag")
}
