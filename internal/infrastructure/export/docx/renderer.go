package docx

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/kirillkom/textify/internal/core/domain"
)

const contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Renderer writes one heading paragraph per image followed by its text, one paragraph per line.
// Lines in right-to-left scripts are right aligned.
type Renderer struct{}

func New() *Renderer { return &Renderer{} }

func (r *Renderer) Format() domain.ExportFormat { return domain.FormatDOCX }
func (r *Renderer) ContentType() string         { return contentType }

func (r *Renderer) Render(ctx context.Context, w io.Writer, doc domain.ExportDocument) error {
	file := docx.New().WithDefaultTheme()

	for i, section := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			file.AddParagraph()
		}
		file.AddParagraph().AddText(section.Heading).Bold().Size("28")
		for _, line := range strings.Split(section.Text, "\n") {
			para := file.AddParagraph()
			if domain.IsRightToLeft(line) {
				para.Justification("end")
			}
			run := para.AddText(line)
			if section.Failed {
				run.Color("808080")
			}
		}
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}
