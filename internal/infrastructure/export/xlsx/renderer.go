package xlsx

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/infrastructure/chunking"
)

const (
	contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sheetName   = "Extracted Text"
)

// Renderer writes one row per image: position, heading, text and status. Text longer
// than a cell can hold continues on the following rows.
type Renderer struct {
	splitter *chunking.Splitter
}

func New() *Renderer {
	return &Renderer{splitter: chunking.NewSplitter(excelize.TotalCellChars)}
}

func (r *Renderer) Format() domain.ExportFormat { return domain.FormatXLSX }
func (r *Renderer) ContentType() string         { return contentType }

func (r *Renderer) Render(ctx context.Context, w io.Writer, doc domain.ExportDocument) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := []any{"#", "Heading", "Text", "Status"}
	if err := setRow(f, 1, header); err != nil {
		return err
	}
	row := 2
	for i, section := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return err
		}
		status := "ok"
		if section.Failed {
			status = "failed"
		}
		pieces := r.splitter.Split(section.Text)
		if len(pieces) == 0 {
			pieces = []string{""}
		}
		for j, piece := range pieces {
			heading := section.Heading
			if j > 0 {
				heading += " (continued)"
			}
			if err := setRow(f, row, []any{i + 1, heading, piece, status}); err != nil {
				return err
			}
			row++
		}
	}
	if err := f.SetColWidth(sheetName, "B", "B", 22); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(sheetName, "C", "C", 80); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, value); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}
