package writer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"

	"recessionflow/models"
)

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// EncodeSeriesCSV renders a series as date,<columns...> with an empty cell
// for each missing value.
func EncodeSeriesCSV(s *models.Series) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"date"}, s.Columns...)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(header))
	for _, r := range s.Rows {
		record[0] = r.Date.Format(models.DateLayout)
		for i, v := range r.Values {
			record[i+1] = formatValue(v)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeRiskCSV renders risk records as date,nrr.
func EncodeRiskCSV(records []models.RiskRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"date", "nrr"}); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := w.Write([]string{r.Date.Format(models.DateLayout), strconv.Itoa(r.Level)}); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
