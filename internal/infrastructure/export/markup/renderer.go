package markup

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/kirillkom/textify/internal/core/domain"
)

// Markdown renders the export as a markdown document.
type Markdown struct{}

func NewMarkdown() *Markdown { return &Markdown{} }

func (m *Markdown) Format() domain.ExportFormat { return domain.FormatMarkdown }
func (m *Markdown) ContentType() string         { return "text/markdown; charset=utf-8" }

func (m *Markdown) Render(_ context.Context, w io.Writer, doc domain.ExportDocument) error {
	_, err := io.WriteString(w, toMarkdown(doc))
	return err
}

// HTML renders the markdown form through goldmark into a standalone page.
type HTML struct {
	md goldmark.Markdown
}

func NewHTML() *HTML {
	return &HTML{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

func (h *HTML) Format() domain.ExportFormat { return domain.FormatHTML }
func (h *HTML) ContentType() string         { return "text/html; charset=utf-8" }

func (h *HTML) Render(_ context.Context, w io.Writer, doc domain.ExportDocument) error {
	var body bytes.Buffer
	if err := h.md.Convert([]byte(toMarkdown(doc)), &body); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}
	title := html.EscapeString(titleOf(doc))
	_, err := fmt.Fprintf(w,
		"<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n<style>p, li { unicode-bidi: plaintext; }</style>\n</head>\n<body>\n%s</body>\n</html>\n",
		title, body.String())
	return err
}

func toMarkdown(doc domain.ExportDocument) string {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(titleOf(doc))
	sb.WriteString("\n")
	for _, section := range doc.Sections {
		sb.WriteString("\n## ")
		sb.WriteString(section.Heading)
		sb.WriteString("\n\n")
		text := escapeMarkdown(section.Text)
		if section.Failed {
			text = "_" + text + "_"
		}
		// Hard line breaks keep the OCR line layout.
		sb.WriteString(strings.ReplaceAll(text, "\n", "  \n"))
		sb.WriteString("\n")
	}
	return sb.String()
}

func titleOf(doc domain.ExportDocument) string {
	if strings.TrimSpace(doc.Title) == "" {
		return "Extracted text"
	}
	return doc.Title
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"#", `\#`,
	"<", "&lt;",
	">", "&gt;",
)

func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}
