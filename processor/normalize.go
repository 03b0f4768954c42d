package processor

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"recessionflow/models"
)

// Normalize rescales every value column of s to [0,1] with min-max scaling
// over the non-missing values. A column whose known values are all equal has
// no defined scale and becomes entirely missing. Missing values stay missing
// and dates are untouched. The input is not modified.
func Normalize(s *models.Series) *models.Series {
	if s == nil {
		return nil
	}
	out := s.Clone()

	known := make([]float64, 0, len(out.Rows))
	for ci := range out.Columns {
		known = known[:0]
		for _, r := range out.Rows {
			if v := r.Values[ci]; !math.IsNaN(v) {
				known = append(known, v)
			}
		}
		if len(known) == 0 {
			continue
		}

		lo, hi := floats.Min(known), floats.Max(known)
		span := hi - lo
		for _, r := range out.Rows {
			v := r.Values[ci]
			switch {
			case math.IsNaN(v):
			case span == 0:
				r.Values[ci] = math.NaN()
			default:
				r.Values[ci] = (v - lo) / span
			}
		}
	}
	return out
}

// NormalizeAll normalizes each series independently, preserving order.
func NormalizeAll(series []*models.Series) []*models.Series {
	out := make([]*models.Series, len(series))
	for i, s := range series {
		out[i] = Normalize(s)
	}
	return out
}
