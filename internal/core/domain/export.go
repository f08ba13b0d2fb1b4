package domain

import (
	"time"
	"unicode"
)

type ExportFormat string

const (
	FormatDOCX     ExportFormat = "docx"
	FormatXLSX     ExportFormat = "xlsx"
	FormatHTML     ExportFormat = "html"
	FormatMarkdown ExportFormat = "md"
)

const DefaultExportBasename = "extracted-text"

func ParseExportFormat(raw string) (ExportFormat, bool) {
	switch ExportFormat(raw) {
	case "":
		return FormatDOCX, true
	case FormatDOCX, FormatXLSX, FormatHTML, FormatMarkdown:
		return ExportFormat(raw), true
	default:
		return "", false
	}
}

// ExportSection is one per-image block of an export.
type ExportSection struct {
	Heading string
	Text    string
	Failed  bool
}

// ExportDocument is the format-neutral input handed to a renderer.
type ExportDocument struct {
	Title    string
	Sections []ExportSection
}

// CombinedText joins all sections with their headings, in order.
func (d ExportDocument) CombinedText() string {
	out := make([]byte, 0, 256)
	for i, section := range d.Sections {
		if i > 0 {
			out = append(out, "\n\n"...)
		}
		out = append(out, section.Heading...)
		out = append(out, '\n')
		out = append(out, section.Text...)
	}
	return string(out)
}

type ExportArtifact struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id"`
	Format      ExportFormat `json:"format"`
	Filename    string       `json:"filename"`
	StorageKey  string       `json:"storage_key,omitempty"`
	ContentType string       `json:"content_type"`
	Size        int64        `json:"size"`
	Entries     int          `json:"entries"`
	CreatedAt   time.Time    `json:"created_at"`
}

var rightToLeftScripts = []*unicode.RangeTable{
	unicode.Arabic,
	unicode.Hebrew,
	unicode.Syriac,
	unicode.Thaana,
	unicode.Nko,
}

// IsRightToLeft reports whether the first letter of text belongs to a right-to-left script.
func IsRightToLeft(text string) bool {
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		return unicode.In(r, rightToLeftScripts...)
	}
	return false
}
