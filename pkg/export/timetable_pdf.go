package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// TimetableCell is one rendered slot of the weekly grid.
type TimetableCell struct {
	Subject  string
	Teacher  string
	Room     string
	Modified bool
}

// TimetableGrid is the renderable form of an effective weekly schedule.
type TimetableGrid struct {
	Title   string
	Days    []string
	Periods []string
	// Cells is keyed by [periodIndex][dayIndex]; nil means a free slot.
	Cells [][]*TimetableCell
}

// TimetablePDFExporter renders an effective weekly schedule into a PDF grid.
type TimetablePDFExporter struct{}

// NewTimetablePDFExporter constructs the exporter.
func NewTimetablePDFExporter() *TimetablePDFExporter {
	return &TimetablePDFExporter{}
}

// Render creates a landscape A4 document with days as columns and periods as rows.
func (e *TimetablePDFExporter) Render(grid TimetableGrid) ([]byte, error) {
	if len(grid.Days) == 0 || len(grid.Periods) == 0 {
		return nil, fmt.Errorf("timetable grid requires days and periods")
	}
	if len(grid.Cells) != len(grid.Periods) {
		return nil, fmt.Errorf("cell rows (%d) must match periods (%d)", len(grid.Cells), len(grid.Periods))
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	if grid.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(grid.Title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	periodColWidth := 28.0
	dayColWidth := (277.0 - periodColWidth) / float64(len(grid.Days))

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(periodColWidth, 8, "Period", "1", 0, "C", false, 0, "")
	for _, day := range grid.Days {
		pdf.CellFormat(dayColWidth, 8, day, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	for row, period := range grid.Periods {
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(periodColWidth, 12, period, "1", 0, "C", false, 0, "")
		pdf.SetFont("Arial", "", 8)
		for col := range grid.Days {
			cell := grid.Cells[row][col]
			if cell == nil {
				pdf.CellFormat(dayColWidth, 12, "-", "1", 0, "C", false, 0, "")
				continue
			}
			label := cell.Subject
			if cell.Teacher != "" {
				label += " / " + cell.Teacher
			}
			if cell.Room != "" {
				label += " (" + cell.Room + ")"
			}
			if cell.Modified {
				label += " *"
			}
			pdf.CellFormat(dayColWidth, 12, label, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "I", 7)
	pdf.Ln(2)
	pdf.CellFormat(0, 5, "* slot overridden for this week", "", 1, "L", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render timetable pdf: %w", err)
	}
	return buf.Bytes(), nil
}
