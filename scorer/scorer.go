package scorer

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"recessionflow/logger"
	"recessionflow/models"
)

const (
	// DefaultSplitRow is the first row of the prediction window.
	DefaultSplitRow = 300

	// DefaultC is the inverse regularisation strength.
	DefaultC = 1.0

	defaultMaxIter = 100
	defaultTol     = 1e-8
)

// Level thresholds on P(recession). A probability below the n-th bound maps
// to level 5-n.
var levelBounds = [...]float64{0.075, 0.15, 0.225, 0.3}

// ScoringError reports a table that cannot be scored. No records are
// produced when it is returned.
type ScoringError struct {
	Reason string
	Err    error
}

func (e *ScoringError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scoring: %s: %v", e.Reason, e.Err)
	}
	return "scoring: " + e.Reason
}

func (e *ScoringError) Unwrap() error { return e.Err }

// Scorer trains on the rows before the split and assigns a risk level to
// every row from the split onward.
type Scorer struct {
	splitRow int
	fit      FitOptions
	log      *logger.Log
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithSplitRow moves the train/predict boundary.
func WithSplitRow(z int) Option {
	return func(s *Scorer) {
		if z > 0 {
			s.splitRow = z
		}
	}
}

// WithRegularization sets the inverse regularisation strength C.
func WithRegularization(c float64) Option {
	return func(s *Scorer) {
		if c > 0 {
			s.fit.C = c
		}
	}
}

// New creates a scorer with the default split and regularisation.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		splitRow: DefaultSplitRow,
		fit:      FitOptions{C: DefaultC, MaxIter: defaultMaxIter, Tol: defaultTol},
		log:      logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Level maps a recession probability to a risk level. Level 5 is the lowest
// probability band and level 1 the highest.
func Level(p float64) int {
	for i, bound := range levelBounds {
		if p < bound {
			return 5 - i
		}
	}
	return 1
}

// Score fits the classifier on the training window and returns one record
// per prediction-window row in chronological order. Any failure yields a
// *ScoringError and no records.
func (s *Scorer) Score(t *models.AlignedTable) ([]models.RiskRecord, error) {
	log := s.log.WithComponent("scorer")
	start := time.Now()

	if t == nil {
		return nil, &ScoringError{Reason: "no table"}
	}
	label, ok := t.Values[models.LabelColumn]
	if !ok {
		return nil, &ScoringError{Reason: fmt.Sprintf("label column %s missing", models.LabelColumn)}
	}
	rows := t.Len()
	if rows <= s.splitRow {
		return nil, &ScoringError{Reason: fmt.Sprintf("prediction window is empty: %d rows, split at %d", rows, s.splitRow)}
	}

	features := t.FeatureColumns()
	if len(features) == 0 {
		return nil, &ScoringError{Reason: "no feature columns"}
	}

	y := label[:s.splitRow]
	var positives int
	for i, v := range y {
		switch v {
		case 0:
		case 1:
			positives++
		default:
			return nil, &ScoringError{Reason: fmt.Sprintf("label is not binary at row %d: %v", i, v)}
		}
	}
	if positives == 0 || positives == len(y) {
		return nil, &ScoringError{Reason: "label has a single class in the training window"}
	}

	x, err := design(t, features, 0, rows)
	if err != nil {
		return nil, err
	}
	train := x.Slice(0, s.splitRow, 0, len(features)).(*mat.Dense)

	model, err := Fit(train, y, s.fit)
	if err != nil {
		return nil, &ScoringError{Reason: "model fit failed", Err: err}
	}

	s.logConfusion(log, model, train, y)

	records := make([]models.RiskRecord, 0, rows-s.splitRow)
	for i := s.splitRow; i < rows; i++ {
		p := model.Probability(x.RawRowView(i))
		if math.IsNaN(p) {
			return nil, &ScoringError{Reason: fmt.Sprintf("probability undefined at row %d", i)}
		}
		records = append(records, models.RiskRecord{
			Date:        t.Dates[i],
			Level:       Level(p),
			Probability: p,
		})
	}

	logger.LogPerformanceEntry(log, "scorer", "score", time.Since(start), logger.Fields{
		"train_rows":   s.splitRow,
		"predict_rows": len(records),
		"iterations":   model.Iterations,
	})
	log.LogMetric("scorer", "risk_records", len(records), "gauge", nil)
	return records, nil
}

// design builds the feature matrix for rows [from,to), rejecting missing
// cells.
func design(t *models.AlignedTable, features []string, from, to int) (*mat.Dense, error) {
	x := mat.NewDense(to-from, len(features), nil)
	for j, col := range features {
		vals := t.Values[col]
		for i := from; i < to; i++ {
			v := vals[i]
			if math.IsNaN(v) {
				return nil, &ScoringError{Reason: fmt.Sprintf("feature %s is missing at row %d", col, i)}
			}
			x.Set(i-from, j, v)
		}
	}
	return x, nil
}

// logConfusion reports the in-sample confusion matrix at a 0.5 cutoff.
func (s *Scorer) logConfusion(log *logger.Entry, m *Model, x *mat.Dense, y []float64) {
	var tn, fp, fn, tp int
	for i, truth := range y {
		predicted := m.Probability(x.RawRowView(i)) >= 0.5
		switch {
		case truth == 1 && predicted:
			tp++
		case truth == 1:
			fn++
		case predicted:
			fp++
		default:
			tn++
		}
	}
	log.WithFields(logger.Fields{
		"true_negative":  tn,
		"false_positive": fp,
		"false_negative": fn,
		"true_positive":  tp,
	}).Info("training confusion matrix")
}
