package writer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "recessionflow/config"
	"recessionflow/internal/metadata"
	"recessionflow/models"
)

type memStore struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if m.err != nil {
		return m.err
	}
	m.objects[key] = append([]byte(nil), body...)
	m.types[key] = contentType
	return nil
}

var day = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

func TestEncodeSeriesCSV(t *testing.T) {
	s := &models.Series{ID: "yc", Columns: []string{"bc_3month", "bc_1year"}, Rows: []models.Row{
		{Date: day, Values: []float64{0.25, math.NaN()}},
		{Date: day.AddDate(0, 0, 1), Values: []float64{1, 2.5}},
	}}
	b, err := EncodeSeriesCSV(s)
	if err != nil {
		t.Fatalf("EncodeSeriesCSV: %v", err)
	}
	want := "date,bc_3month,bc_1year\n2015-01-01,0.25,\n2015-01-02,1,2.5\n"
	if string(b) != want {
		t.Fatalf("unexpected csv:\n%s", b)
	}
}

func TestEncodeRiskCSV(t *testing.T) {
	b, err := EncodeRiskCSV([]models.RiskRecord{{Date: day, Level: 5, Probability: 0.01}, {Date: day.AddDate(0, 1, 0), Level: 2}})
	if err != nil {
		t.Fatalf("EncodeRiskCSV: %v", err)
	}
	if want := "date,nrr\n2015-01-01,5\n2015-02-01,2\n"; string(b) != want {
		t.Fatalf("unexpected csv:\n%s", b)
	}
}

func TestEncodeRiskParquet(t *testing.T) {
	b, err := EncodeRiskParquet([]models.RiskRecord{{Date: day, Level: 3, Probability: 0.2}}, "snappy")
	if err != nil {
		t.Fatalf("EncodeRiskParquet: %v", err)
	}
	if len(b) < 8 || !bytes.HasPrefix(b, []byte("PAR1")) || !bytes.HasSuffix(b, []byte("PAR1")) {
		t.Fatalf("output is not a parquet file (%d bytes)", len(b))
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(dir)
	if err := fs.Put(context.Background(), "kpi/GDP.csv", []byte("x"), contentTypeCSV); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "kpi", "GDP.csv"))
	if err != nil || string(got) != "x" {
		t.Fatalf("unexpected file: %q %v", got, err)
	}
	if err := fs.Put(context.Background(), "../escape", []byte("x"), contentTypeCSV); err == nil {
		t.Fatalf("expected error for escaping key")
	}
}

func TestMultiStoreJoinsErrors(t *testing.T) {
	ok := newMemStore()
	bad := newMemStore()
	bad.err = errors.New("denied")
	err := MultiStore{ok, bad}.Put(context.Background(), "k", []byte("v"), contentTypeCSV)
	if err == nil || !strings.Contains(err.Error(), "denied") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if string(ok.objects["k"]) != "v" {
		t.Fatalf("healthy store not written")
	}
}

type fakePutObject struct {
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakePutObject) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	b, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &s3.PutObjectOutput{}, nil
}

func TestS3StorePut(t *testing.T) {
	api := &fakePutObject{}
	store := newS3Store(api, "recession-risk", "1.0.0")
	if err := store.Put(context.Background(), "nrr/nrr_table.csv", []byte("date,nrr\n"), contentTypeCSV); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if *api.input.Bucket != "recession-risk" || *api.input.Key != "nrr/nrr_table.csv" {
		t.Fatalf("unexpected input: %+v", api.input)
	}
	if *api.input.ContentType != contentTypeCSV || string(api.body) != "date,nrr\n" {
		t.Fatalf("unexpected body or content type")
	}
	if api.input.Metadata["recessionflow-version"] != "1.0.0" {
		t.Fatalf("version metadata missing: %v", api.input.Metadata)
	}
}

func TestPublisherKeysAndManifest(t *testing.T) {
	store := newMemStore()
	rec := metadata.NewRecorder("RecessionFlow", "1.0.0", time.Now())
	p := NewPublisher(store, appconfig.WriterConfig{Format: "parquet", KPIPrefix: "kpi/", NRRPrefix: "nrr"}, rec)

	s := &models.Series{ID: "UNRATE", Columns: []string{"UNRATE"}, Rows: []models.Row{{Date: day, Values: []float64{5.6}}}}
	if err := p.PublishSeries(context.Background(), "Unemployment Rate", s); err != nil {
		t.Fatalf("PublishSeries: %v", err)
	}
	if err := p.PublishRisk(context.Background(), []models.RiskRecord{{Date: day, Level: 5}}); err != nil {
		t.Fatalf("PublishRisk: %v", err)
	}
	key, err := p.PublishManifest(context.Background())
	if err != nil {
		t.Fatalf("PublishManifest: %v", err)
	}

	if _, ok := store.objects["kpi/Unemployment Rate.csv"]; !ok {
		t.Fatalf("series object missing: %v", keys(store))
	}
	if store.types["nrr/nrr_table.parquet"] != contentTypeParquet {
		t.Fatalf("risk object missing or mistyped: %v", keys(store))
	}
	if _, ok := store.objects[key]; !ok {
		t.Fatalf("manifest %s not written", key)
	}
	m := rec.Snapshot()
	if len(m.Objects) != 2 || m.Objects[1].RecordCount != 1 {
		t.Fatalf("unexpected manifest objects: %+v", m.Objects)
	}
}

func TestPublisherPropagatesStoreErrors(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("bucket gone")
	p := NewPublisher(store, appconfig.WriterConfig{Format: "csv", NRRPrefix: "nrr"}, nil)
	if err := p.PublishRisk(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
	if p.RiskKey() != "nrr/nrr_table.csv" {
		t.Fatalf("unexpected risk key: %s", p.RiskKey())
	}
}

func keys(m *memStore) []string {
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}
