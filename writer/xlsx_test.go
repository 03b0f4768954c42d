package writer

import (
	"bytes"
	"context"
	"testing"

	"github.com/xuri/excelize/v2"

	appconfig "recessionflow/config"
	"recessionflow/models"
)

func TestEncodeRiskXLSX(t *testing.T) {
	records := []models.RiskRecord{
		{Date: day, Level: 5, Probability: 0.01},
		{Date: day.AddDate(0, 1, 0), Level: 1, Probability: 0.9},
	}
	body, err := EncodeRiskXLSX(records)
	if err != nil {
		t.Fatalf("EncodeRiskXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != riskSheet {
		t.Fatalf("unexpected sheets: %v", sheets)
	}
	rows, err := f.GetRows(riskSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "nrr" || rows[1][0] != "2015-01-01" || rows[1][1] != "5" || rows[2][1] != "1" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestPublisherXLSXFormat(t *testing.T) {
	store := newMemStore()
	p := NewPublisher(store, appconfig.WriterConfig{Format: "xlsx", NRRPrefix: "nrr"}, nil)
	if p.RiskKey() != "nrr/nrr_table.xlsx" {
		t.Fatalf("unexpected risk key: %s", p.RiskKey())
	}
	if err := p.PublishRisk(context.Background(), []models.RiskRecord{{Date: day, Level: 3}}); err != nil {
		t.Fatalf("PublishRisk: %v", err)
	}
	if store.types["nrr/nrr_table.xlsx"] != contentTypeXLSX {
		t.Fatalf("xlsx object missing or mistyped: %v", keys(store))
	}
}
