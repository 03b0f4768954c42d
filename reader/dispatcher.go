package reader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recessionflow/logger"
	"recessionflow/models"
)

// Dispatcher routes each request to the source registered for its provider.
// Fetch and parse failures are logged and replaced by an empty series so one
// bad provider never stops the run.
type Dispatcher struct {
	sources map[Provider]Source
	log     *logger.Log
}

// NewDispatcher creates a dispatcher over the given sources.
func NewDispatcher(sources map[Provider]Source) *Dispatcher {
	copied := make(map[Provider]Source, len(sources))
	for p, s := range sources {
		copied[p] = s
	}
	return &Dispatcher{sources: copied, log: logger.GetLogger()}
}

// Fetch retrieves one series. It never returns nil.
func (d *Dispatcher) Fetch(ctx context.Context, req Request) *models.Series {
	log := d.log.WithComponent("dispatcher").WithFields(logger.Fields{
		"series":   req.ID,
		"name":     req.Name,
		"provider": req.Provider.String(),
	})

	src, ok := d.sources[req.Provider]
	if !ok {
		log.WithError(fmt.Errorf("no source registered for provider %s", req.Provider)).Warn("series skipped")
		return models.NewEmptySeries(req.ID)
	}

	start := time.Now()
	series, err := src.Fetch(ctx, req.ID)
	if err != nil {
		var fetchErr *FetchError
		var parseErr *ParseError
		switch {
		case errors.As(err, &fetchErr):
			log = log.WithFields(logger.Fields{"error_type": "fetch", "status": fetchErr.StatusCode})
		case errors.As(err, &parseErr):
			log = log.WithFields(logger.Fields{"error_type": "parse"})
		}
		log.WithError(err).Warn("failed to fetch series; continuing with empty series")
		return models.NewEmptySeries(req.ID)
	}
	if series == nil {
		return models.NewEmptySeries(req.ID)
	}

	logger.LogPerformanceEntry(log, "dispatcher", "fetch_series", time.Since(start), logger.Fields{"series": req.ID})
	log.LogMetric("dispatcher", "rows_fetched", series.Len(), "counter", logger.Fields{"series": req.ID})
	return series
}

// FetchAll fetches every request in order. The result has one series per
// request at the same index.
func (d *Dispatcher) FetchAll(ctx context.Context, reqs []Request) []*models.Series {
	out := make([]*models.Series, len(reqs))
	for i, req := range reqs {
		out[i] = d.Fetch(ctx, req)
	}
	return out
}
