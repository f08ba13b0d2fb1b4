package markup

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/textify/internal/core/domain"
)

var sampleDoc = domain.ExportDocument{
	Title: "Extracted text",
	Sections: []domain.ExportSection{
		{Heading: "Text from image 1", Text: "Total: 5 * 3\n<b>bold?</b>"},
		{Heading: "Text from image 2", Text: domain.NoTextFoundText},
	},
}

func TestMarkdownKeepsHeadingsAndEscapesText(t *testing.T) {
	var buf bytes.Buffer
	if err := NewMarkdown().Render(context.Background(), &buf, sampleDoc); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"# Extracted text", "## Text from image 1", `Total: 5 \* 3  `, "&lt;b&gt;", "## Text from image 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestHTMLRendersHeadingsWithoutRawMarkup(t *testing.T) {
	var buf bytes.Buffer
	if err := NewHTML().Render(context.Background(), &buf, sampleDoc); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<h2>Text from image 1</h2>") {
		t.Fatalf("expected section heading, got:\n%s", out)
	}
	if strings.Contains(out, "<b>bold?</b>") {
		t.Fatalf("OCR text must not be rendered as markup:\n%s", out)
	}
	if !strings.Contains(out, "<title>Extracted text</title>") {
		t.Fatalf("expected page title, got:\n%s", out)
	}
}
