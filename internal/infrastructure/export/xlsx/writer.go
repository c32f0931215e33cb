// Package xlsx renders application drafts as spreadsheet workbooks.
package xlsx

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/grantflow/internal/core/document"
	"github.com/kirillkom/grantflow/internal/core/domain"
)

const (
	SheetApplication = "Application"
	SheetSummary     = "Summary"
)

type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

// Write lays out the same sections as the text draft, one field per row.
func (w *Writer) Write(ctx context.Context, draft domain.Draft, out io.Writer) error {
	if draft.State != domain.StepComplete {
		return domain.WrapError(domain.ErrPreconditionViolation, "xlsx.write",
			fmt.Errorf("session is in %s, drafts require %s", draft.State, domain.StepComplete))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", SheetApplication); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	rows := [][]any{{"Section", "Field", "Value"}}
	for _, section := range document.Sections(draft.Record) {
		title := fmt.Sprintf("[%d] %s", section.Index, section.Title)
		for _, field := range section.Fields {
			rows = append(rows, []any{title, field.Name, field.Value})
		}
	}
	if err := writeRows(f, SheetApplication, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetApplication, "A1", "C1", header); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(SheetApplication, "A", "B", 32); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(SheetApplication, "C", "C", 80); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	summary := [][]any{
		{"Title", document.Title},
		{"Session ID", draft.SessionID},
		{"Status", document.StatusLine(draft.Record)},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "A3", header); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
