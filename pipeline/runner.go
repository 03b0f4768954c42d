package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recessionflow/logger"
	"recessionflow/models"
	"recessionflow/processor"
	"recessionflow/reader"
	"recessionflow/scorer"
	"recessionflow/writer"
)

var timeNow = time.Now

// Result carries every artifact of a run.
type Result struct {
	Series      []*models.Series
	Table       *models.AlignedTable
	Records     []models.RiskRecord
	ScoreErr    error
	ManifestKey string
}

// Runner executes fetch, normalize, unify, fill, score and publish once.
type Runner struct {
	dispatcher *reader.Dispatcher
	requests   []reader.Request
	scorer     *scorer.Scorer
	publisher  *writer.Publisher
	log        *logger.Log
}

// Option configures a Runner.
type Option func(*Runner)

// WithPublisher sets where artifacts are written. A nil publisher skips
// publishing.
func WithPublisher(p *writer.Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithScorer replaces the default scorer.
func WithScorer(s *scorer.Scorer) Option {
	return func(r *Runner) {
		if s != nil {
			r.scorer = s
		}
	}
}

// NewRunner creates a runner over the ordered catalogue. The first request
// must be the recession label.
func NewRunner(dispatcher *reader.Dispatcher, requests []reader.Request, opts ...Option) *Runner {
	r := &Runner{
		dispatcher: dispatcher,
		requests:   append([]reader.Request(nil), requests...),
		scorer:     scorer.New(),
		log:        logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close releases publishing resources.
func (r *Runner) Close() error {
	if r.publisher == nil {
		return nil
	}
	return r.publisher.Close()
}

// Run executes the pipeline. A *processor.ShapeError aborts the run. A
// *scorer.ScoringError is reported in Result.ScoreErr; the fetched series
// are still published and no risk records are produced.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	log := r.log.WithComponent("pipeline")
	log.WithFields(logger.Fields{"series": len(r.requests)}).Info("run started")
	res := &Result{}

	stage := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		elapsed := time.Since(start)
		log.LogMetric("pipeline", "stage_duration_ms", float64(elapsed.Nanoseconds())/1e6, "gauge", logger.Fields{"stage": name})
		return err
	}

	stage("fetch", func() error {
		res.Series = r.dispatcher.FetchAll(ctx, r.requests)
		return nil
	})

	if r.publisher != nil {
		stage("publish_series", func() error {
			for i, s := range res.Series {
				if err := r.publisher.PublishSeries(ctx, r.requests[i].Name, s); err != nil {
					log.WithError(err).WithFields(logger.Fields{"series": r.requests[i].ID}).Warn("failed to publish series; continuing")
					r.publisher.Warn(err.Error())
				}
			}
			return nil
		})
	}

	var table *models.AlignedTable
	if err := stage("unify", func() error {
		var err error
		table, err = processor.Unify(processor.NormalizeAll(res.Series))
		return err
	}); err != nil {
		log.WithError(err).Error("series could not be unified")
		return res, err
	}

	stage("fill", func() error {
		res.Table = processor.Fill(table)
		return nil
	})
	logger.LogDataFlowEntry(log, "processor", "scorer", res.Table.Len(), "aligned_table")

	stage("score", func() error {
		res.Records, res.ScoreErr = r.scorer.Score(res.Table)
		return nil
	})
	if res.ScoreErr != nil {
		var se *scorer.ScoringError
		if !errors.As(res.ScoreErr, &se) {
			return res, fmt.Errorf("score: %w", res.ScoreErr)
		}
		res.Records = nil
		log.WithError(res.ScoreErr).Warn("scoring failed; no risk records produced")
	}

	if r.publisher != nil {
		if err := stage("publish_risk", func() error {
			if res.ScoreErr == nil {
				if err := r.publisher.PublishRisk(ctx, res.Records); err != nil {
					return err
				}
			} else {
				r.publisher.Warn(res.ScoreErr.Error())
			}
			key, err := r.publisher.PublishManifest(ctx)
			res.ManifestKey = key
			return err
		}); err != nil {
			return res, err
		}
	}

	log.WithFields(logger.Fields{
		"rows":         res.Table.Len(),
		"risk_records": len(res.Records),
		"manifest":     res.ManifestKey,
	}).Info("run finished")
	return res, nil
}
