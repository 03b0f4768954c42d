package reader

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"recessionflow/models"
)

var dateLayouts = []string{
	models.DateLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseValue coerces a provider cell into a number. Anything that is not a
// finite number, including FRED's "." placeholder, becomes NaN.
func ParseValue(raw *string) float64 {
	if raw == nil {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// ParseDate accepts the calendar and timestamp forms the providers emit.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// BuildSeries coerces raw observations into a Series with the given columns.
// Rows are sorted by date and duplicate dates keep their first occurrence.
// Observations with an unreadable date are dropped and counted in skipped.
func BuildSeries(id string, columns []string, obs []models.RawObservation) (series *models.Series, skipped int) {
	series = models.NewEmptySeries(id, columns...)
	rows := make([]models.Row, 0, len(obs))
	for _, o := range obs {
		date, ok := ParseDate(o.Date)
		if !ok {
			skipped++
			continue
		}
		values := make([]float64, len(series.Columns))
		for i, col := range series.Columns {
			values[i] = ParseValue(o.Fields[col])
		}
		rows = append(rows, models.Row{Date: date, Values: values})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	deduped := rows[:0]
	for i, r := range rows {
		if i > 0 && r.Date.Equal(deduped[len(deduped)-1].Date) {
			continue
		}
		deduped = append(deduped, r)
	}
	series.Rows = deduped
	return series, skipped
}
