package writer

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	appconfig "recessionflow/config"
	"recessionflow/internal/metadata"
	"recessionflow/logger"
	"recessionflow/models"
)

const (
	contentTypeCSV     = "text/csv"
	contentTypeParquet = "application/vnd.apache.parquet"
	contentTypeXLSX    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeJSON    = "application/json"

	riskObjectName = "nrr_table"
)

// Publisher encodes pipeline artifacts and hands them to a Store. Every
// object written is recorded in the run manifest.
type Publisher struct {
	store    Store
	cfg      appconfig.WriterConfig
	recorder *metadata.Recorder
	log      *logger.Log
}

// NewPublisher creates a publisher for one run.
func NewPublisher(store Store, cfg appconfig.WriterConfig, recorder *metadata.Recorder) *Publisher {
	return &Publisher{store: store, cfg: cfg, recorder: recorder, log: logger.GetLogger()}
}

// SeriesKey returns the object key of a fetched series.
func (p *Publisher) SeriesKey(name string) string {
	return joinKey(p.cfg.KPIPrefix, name+".csv")
}

// RiskKey returns the object key of the risk table.
func (p *Publisher) RiskKey() string {
	ext := "csv"
	switch p.cfg.Format {
	case "parquet", "xlsx":
		ext = p.cfg.Format
	}
	return joinKey(p.cfg.NRRPrefix, riskObjectName+"."+ext)
}

// PublishSeries writes one fetched series as CSV under its display name.
func (p *Publisher) PublishSeries(ctx context.Context, name string, s *models.Series) error {
	body, err := EncodeSeriesCSV(s)
	if err != nil {
		return fmt.Errorf("encode series %s: %w", name, err)
	}
	return p.put(ctx, p.SeriesKey(name), "series", contentTypeCSV, body, s.Len())
}

// PublishRisk writes the risk table in the configured format.
func (p *Publisher) PublishRisk(ctx context.Context, records []models.RiskRecord) error {
	var (
		body        []byte
		err         error
		contentType = contentTypeCSV
	)
	switch p.cfg.Format {
	case "parquet":
		contentType = contentTypeParquet
		body, err = EncodeRiskParquet(records, p.cfg.Compression)
	case "xlsx":
		contentType = contentTypeXLSX
		body, err = EncodeRiskXLSX(records)
	default:
		body, err = EncodeRiskCSV(records)
	}
	if err != nil {
		return fmt.Errorf("encode risk table: %w", err)
	}
	return p.put(ctx, p.RiskKey(), "risk", contentType, body, len(records))
}

// Warn records a non-fatal run problem in the manifest.
func (p *Publisher) Warn(msg string) {
	if p.recorder != nil {
		p.recorder.AddWarning(msg)
	}
}

// PublishManifest writes the run manifest next to the risk table.
func (p *Publisher) PublishManifest(ctx context.Context) (string, error) {
	if p.recorder == nil {
		return "", nil
	}
	body, err := p.recorder.Finish(time.Now())
	if err != nil {
		return "", err
	}
	key := p.recorder.Key(p.cfg.NRRPrefix)
	if err := p.store.Put(ctx, key, body, contentTypeJSON); err != nil {
		return "", fmt.Errorf("publish manifest: %w", err)
	}
	return key, nil
}

// Close releases the underlying store when it holds connections.
func (p *Publisher) Close() error {
	if c, ok := p.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (p *Publisher) put(ctx context.Context, key, kind, contentType string, body []byte, records int) error {
	log := p.log.WithComponent("publisher").WithFields(logger.Fields{
		"key":          key,
		"kind":         kind,
		"record_count": records,
		"file_size":    len(body),
	})

	start := time.Now()
	if err := p.store.Put(ctx, key, body, contentType); err != nil {
		log.WithError(err).Error("failed to publish object")
		return fmt.Errorf("publish %s: %w", key, err)
	}
	logger.LogPerformanceEntry(log, "publisher", "put_object", time.Since(start), nil)

	if p.recorder != nil {
		p.recorder.AddObject(metadata.Object{
			Key:         key,
			Kind:        kind,
			ContentType: contentType,
			SizeBytes:   int64(len(body)),
			RecordCount: int64(records),
		})
	}
	log.Info("object published")
	return nil
}

func joinKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
