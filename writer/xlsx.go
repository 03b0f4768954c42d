package writer

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"recessionflow/models"
)

const riskSheet = "nrr"

// EncodeRiskXLSX renders risk records as a single-sheet workbook with
// date, nrr and probability columns.
func EncodeRiskXLSX(records []models.RiskRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(riskSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	if err := f.SetSheetRow(riskSheet, "A1", &[]interface{}{"date", "nrr", "probability"}); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{r.Date.Format(models.DateLayout), r.Level, r.Probability}
		if err := f.SetSheetRow(riskSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
