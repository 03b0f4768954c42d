package pipeline

import (
	"context"
	"fmt"

	"recessionflow/config"
	"recessionflow/internal/metadata"
	"recessionflow/logger"
	"recessionflow/reader"
	"recessionflow/reader/fred"
	"recessionflow/reader/treasury"
	"recessionflow/writer"
)

// NewSources builds one source per provider sharing a pooled HTTP client.
func NewSources(cfg *config.Config) map[reader.Provider]reader.Source {
	hc := reader.NewHTTPClient(cfg.Reader)
	return map[reader.Provider]reader.Source{
		reader.ProviderPoint:     fred.NewFromConfig(cfg, hc),
		reader.ProviderPaginated: treasury.NewFromConfig(cfg, hc),
	}
}

// NewStore returns the configured stores. It returns nil when no storage
// backend is enabled.
func NewStore(ctx context.Context, cfg *config.Config) (writer.Store, error) {
	var stores writer.MultiStore
	if cfg.Storage.S3.Enabled {
		s3Store, err := writer.NewS3Store(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("s3 store: %w", err)
		}
		stores = append(stores, s3Store)
	}
	if cfg.Storage.Local.Enabled {
		stores = append(stores, writer.NewFileStore(cfg.Storage.Local.Dir))
	}
	if cfg.Storage.Kafka.Enabled {
		kafkaStore, err := writer.NewKafkaStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("kafka store: %w", err)
		}
		stores = append(stores, kafkaStore)
	}

	switch len(stores) {
	case 0:
		return nil, nil
	case 1:
		return stores[0], nil
	default:
		return stores, nil
	}
}

// NewFromConfig assembles a runner with live sources and the configured
// storage backends.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Runner, error) {
	requests, err := reader.RequestsFromConfig(cfg.Series)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var publisher *writer.Publisher
	if store != nil {
		rec := metadata.NewRecorder(cfg.RecessionFlow.Name, cfg.RecessionFlow.Version, timeNow())
		publisher = writer.NewPublisher(store, cfg.Writer, rec)
	} else {
		logger.GetLogger().WithComponent("pipeline").Warn("no storage backend enabled; results will not be published")
	}

	return NewRunner(reader.NewDispatcher(NewSources(cfg)), requests, WithPublisher(publisher)), nil
}
