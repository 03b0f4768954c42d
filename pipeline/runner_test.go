package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"recessionflow/config"
	"recessionflow/internal/metadata"
	"recessionflow/models"
	"recessionflow/processor"
	"recessionflow/reader"
	"recessionflow/scorer"
	"recessionflow/writer"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    map[string]bool
}

func (m *memStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[key] {
		return errors.New("access denied")
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = append([]byte(nil), body...)
	return nil
}

const extraRows = 20

var labelStart = time.Date(1919, 1, 1, 0, 0, 0, 0, time.UTC)

func monthlySeries(id string, columns []string, rows int, value func(k, col int) float64) *models.Series {
	s := models.NewEmptySeries(id, columns...)
	for k := 0; k < rows; k++ {
		vals := make([]float64, len(columns))
		for c := range columns {
			vals[c] = value(k, c)
		}
		s.Rows = append(s.Rows, models.Row{Date: labelStart.AddDate(0, k, 0), Values: vals})
	}
	return s
}

// fakeSources serves a label that tracks the PCE feature, so the classifier
// has signal, plus filler features for every other id.
func fakeSources(constantLabel bool, failing map[string]bool) map[reader.Provider]reader.Source {
	rows := processor.TrimOffset + scorer.DefaultSplitRow + extraRows
	point := reader.SourceFunc(func(ctx context.Context, id string) (*models.Series, error) {
		if failing[id] {
			return nil, &reader.FetchError{SeriesID: id, URL: "http://fred.test", StatusCode: 500, Err: errors.New("down")}
		}
		switch id {
		case models.LabelColumn:
			return monthlySeries(id, []string{id}, rows, func(k, _ int) float64 {
				if !constantLabel && (k*37)%100 >= 70 {
					return 1
				}
				return 0
			}), nil
		case "PCE":
			return monthlySeries(id, []string{id}, rows, func(k, _ int) float64 { return float64((k * 37) % 100) }), nil
		default:
			seed := len(id)
			return monthlySeries(id, []string{id}, rows, func(k, _ int) float64 { return float64((k*61 + seed*13) % 97) }), nil
		}
	})
	paginated := reader.SourceFunc(func(ctx context.Context, id string) (*models.Series, error) {
		cols := []string{"bc_3month", "bc_6month", "bc_1year", "bc_10year", "bc_30year"}
		return monthlySeries(id, cols, rows, func(k, c int) float64 { return float64((k*(c+3))%89) / 10 }), nil
	})
	return map[reader.Provider]reader.Source{reader.ProviderPoint: point, reader.ProviderPaginated: paginated}
}

func newTestRunner(t *testing.T, series []config.SeriesConfig, sources map[reader.Provider]reader.Source) (*Runner, *memStore, *metadata.Recorder) {
	t.Helper()
	reqs, err := reader.RequestsFromConfig(series)
	if err != nil {
		t.Fatalf("RequestsFromConfig: %v", err)
	}
	store := &memStore{}
	rec := metadata.NewRecorder("RecessionFlow", "test", time.Now())
	pub := writer.NewPublisher(store, config.WriterConfig{Format: "csv", KPIPrefix: "kpi", NRRPrefix: "nrr"}, rec)
	return NewRunner(reader.NewDispatcher(sources), reqs, WithPublisher(pub)), store, rec
}

func TestRunEndToEnd(t *testing.T) {
	r, store, rec := newTestRunner(t, config.DefaultSeries(), fakeSources(false, nil))

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ScoreErr != nil {
		t.Fatalf("unexpected scoring error: %v", res.ScoreErr)
	}
	if len(res.Records) != extraRows {
		t.Fatalf("expected %d records, got %d", extraRows, len(res.Records))
	}
	if want := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC); !res.Records[0].Date.Equal(want) {
		t.Fatalf("first prediction dated %s, want %s", res.Records[0].Date, want)
	}
	if !res.Table.Dates[0].Equal(processor.ExpectedStart) {
		t.Fatalf("aligned table starts %s", res.Table.Dates[0])
	}

	for _, s := range config.DefaultSeries() {
		if _, ok := store.objects["kpi/"+s.Name+".csv"]; !ok {
			t.Errorf("series %s not published", s.Name)
		}
	}
	body, ok := store.objects["nrr/nrr_table.csv"]
	if !ok {
		t.Fatalf("risk table not published")
	}
	if lines := strings.Count(string(body), "\n"); lines != extraRows+1 {
		t.Fatalf("risk table has %d lines", lines)
	}
	if _, ok := store.objects[res.ManifestKey]; !ok || res.ManifestKey == "" {
		t.Fatalf("manifest not published")
	}
	if n := len(rec.Snapshot().Objects); n != 10 {
		t.Fatalf("expected 10 manifest objects, got %d", n)
	}
}

func TestRunScoringFailureStillPublishesSeries(t *testing.T) {
	r, store, rec := newTestRunner(t, config.DefaultSeries(), fakeSources(true, nil))

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var se *scorer.ScoringError
	if !errors.As(res.ScoreErr, &se) {
		t.Fatalf("expected ScoringError, got %v", res.ScoreErr)
	}
	if len(res.Records) != 0 {
		t.Fatalf("expected no records, got %d", len(res.Records))
	}
	if _, ok := store.objects["nrr/nrr_table.csv"]; ok {
		t.Fatalf("risk table must not be published after a scoring failure")
	}
	if _, ok := store.objects["kpi/Gross Domestic Product.csv"]; !ok {
		t.Fatalf("fetched series not published")
	}
	if w := rec.Snapshot().Warnings; len(w) != 1 {
		t.Fatalf("expected scoring warning in manifest, got %v", w)
	}
}

func TestRunRecoversFailedSource(t *testing.T) {
	r, _, _ := newTestRunner(t, config.DefaultSeries(), fakeSources(false, map[string]bool{"GDP": true}))

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Series[3].Len() != 0 {
		t.Fatalf("failed source should yield an empty series")
	}
	var se *scorer.ScoringError
	if !errors.As(res.ScoreErr, &se) {
		t.Fatalf("an all-missing feature must fail scoring, got %v", res.ScoreErr)
	}
}

func TestRunShapeErrorAborts(t *testing.T) {
	r, store, _ := newTestRunner(t, config.DefaultSeries()[:8], fakeSources(false, nil))

	_, err := r.Run(context.Background())
	var se *processor.ShapeError
	if !errors.As(err, &se) {
		t.Fatalf("expected ShapeError, got %v", err)
	}
	for key := range store.objects {
		if strings.HasPrefix(key, "nrr/") {
			t.Fatalf("nothing under nrr/ may be written after a shape error, found %s", key)
		}
	}
}

func TestRunContinuesAfterSeriesPublishFailure(t *testing.T) {
	r, store, rec := newTestRunner(t, config.DefaultSeries(), fakeSources(false, nil))
	store.fail = map[string]bool{"kpi/Gross Domestic Product.csv": true}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ScoreErr != nil || len(res.Records) != extraRows {
		t.Fatalf("scoring should be unaffected: %d records, err %v", len(res.Records), res.ScoreErr)
	}
	if _, ok := store.objects["nrr/nrr_table.csv"]; !ok {
		t.Fatalf("risk table not published")
	}
	if _, ok := store.objects["kpi/Unemployment Rate.csv"]; !ok {
		t.Fatalf("remaining series not published")
	}
	w := rec.Snapshot().Warnings
	if len(w) != 1 || !strings.Contains(w[0], "Gross Domestic Product") {
		t.Fatalf("expected one publish warning, got %v", w)
	}
}
