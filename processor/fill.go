package processor

import (
	"math"

	"recessionflow/models"
)

// Fill interpolates the gaps of every feature column. Interior gaps are
// filled on the straight line between the nearest known neighbours by row
// position, leading gaps take the first known value and trailing gaps the
// last. The label column and wholly missing columns are left as they are.
// Fill returns a new table and is idempotent.
func Fill(t *models.AlignedTable) *models.AlignedTable {
	if t == nil {
		return nil
	}
	out := t.Clone()
	for _, col := range out.FeatureColumns() {
		interpolate(out.Values[col])
	}
	return out
}

func interpolate(v []float64) {
	prev := -1
	for i, x := range v {
		if math.IsNaN(x) {
			continue
		}
		switch {
		case prev < 0:
			for j := 0; j < i; j++ {
				v[j] = x
			}
		case i-prev > 1:
			step := (x - v[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				v[j] = v[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
	if prev < 0 {
		return
	}
	for j := prev + 1; j < len(v); j++ {
		v[j] = v[prev]
	}
}
