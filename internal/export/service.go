// Package export renders a validation outcome as an XLSX workbook for
// auditors who want the field-by-field verdict next to the raw values.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ebmtools/invoice-validator/internal/reconcile"
)

// Service produces XLSX bytes for validation reports.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// WriteReportXLSX returns a workbook with one row per field comparison plus a
// summary block.
func (s *Service) WriteReportXLSX(outcome *reconcile.Outcome) ([]byte, error) {
	start := time.Now()
	res := outcome.Result

	f := excelize.NewFile()
	const sheet = "Validation"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{"Field", "Status", "QR Value", "Text Value", "Detail", "Page", "Sources"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for _, c := range res.Comparisons {
		write(1, string(c.Field))
		write(2, string(c.Status))
		write(3, c.QRValue)
		write(4, c.TextValue)
		write(5, truncate(c.Details, 140))
		if c.PageNumber > 0 {
			write(6, c.PageNumber)
		}
		write(7, join(c.Sources))
		row++
	}

	// Summary block, one blank row below the table.
	row++
	write(1, "Template")
	write(2, res.TemplateName)
	row++
	write(1, "Issuer")
	write(2, res.Issuer)
	row++
	write(1, "Summary")
	write(2, res.Summary)
	for _, e := range res.Errors {
		row++
		write(1, "Error")
		write(2, e)
	}

	_ = f.SetColWidth(sheet, "A", "A", 18)
	_ = f.SetColWidth(sheet, "B", "B", 40)
	_ = f.SetColWidth(sheet, "C", "D", 24)
	_ = f.SetColWidth(sheet, "E", "E", 48)
	_ = f.SetColWidth(sheet, "G", "G", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"id", res.ID.String(),
		"rows", len(res.Comparisons),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func join(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
