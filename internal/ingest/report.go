package ingest

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"inmodossier/server/internal/models"
)

var reportColumns = []string{"archivo", "precio", "habitaciones", "metros", "zona", "estado", "resultado"}

// WriteExcel writes the per-document results of a batch to an xlsx
// workbook, one row per dossier.
func WriteExcel(path string, documents []models.DocumentResult) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Propiedades"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(reportColumns))
	for i, col := range reportColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, doc := range documents {
		outcome := doc.Outcome.String()
		if doc.Err != "" {
			outcome = "failed: " + doc.Err
		}
		row := []interface{}{
			doc.SourceFile,
			doc.Fields.Price,
			doc.Fields.Rooms,
			doc.Fields.Area,
			doc.Fields.Zone,
			doc.Fields.Condition,
			outcome,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
