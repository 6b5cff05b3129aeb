// Package export renders a user's confirmed documents as an XLSX workbook.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/docvault/docvault/internal/repository"
)

const sheetName = "Documentos"

var headers = []string{"Data", "Tipo", "Título", "Resumo", "Valor", "Data do documento"}

// Lister is the slice of the record store the exporter needs.
type Lister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]repository.Record, error)
}

type Service struct {
	records Lister
	logger  *slog.Logger
}

func NewService(records Lister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, logger: logger}
}

// Workbook builds the spreadsheet for the owner's documents, newest first.
func (s *Service) Workbook(ctx context.Context, ownerID string) (*bytes.Buffer, error) {
	records, err := s.records.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, r := range records {
		row := i + 2
		values := []any{
			r.CreatedAt.Format("02/01/2006"),
			r.DocumentType,
			r.Title,
			r.Summary,
			floatOrEmpty(r.Amount),
			stringOrEmpty(r.DocumentDate),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 12)
	_ = f.SetColWidth(sheetName, "C", "D", 40)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}

	s.logger.Info("export.workbook.ok", "owner_id", ownerID, "rows", len(records))
	return &buf, nil
}

func floatOrEmpty(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func stringOrEmpty(v *string) any {
	if v == nil {
		return ""
	}
	return *v
}
