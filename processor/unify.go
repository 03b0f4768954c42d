package processor

import (
	"fmt"
	"time"

	"recessionflow/logger"
	"recessionflow/models"
)

const (
	// ExpectedSeries is the catalogue size, label included.
	ExpectedSeries = 9

	// TrimOffset is the number of leading joined rows discarded. With the
	// label truncated to start in 1919-01 the first kept row is 1990-01-01.
	TrimOffset = 852
)

// ExpectedStart is the first aligned date when every provider behaves.
var ExpectedStart = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

// Unify left-joins the series on date, seeded by series[0] (the label), and
// trims the first TrimOffset rows. Dates missing from a joined series are
// missing values; dates missing from the label are never introduced.
func Unify(series []*models.Series) (*models.AlignedTable, error) {
	if len(series) != ExpectedSeries {
		return nil, &ShapeError{Reason: fmt.Sprintf("expected %d series, got %d", ExpectedSeries, len(series))}
	}
	for i, s := range series {
		if s == nil {
			return nil, &ShapeError{Reason: fmt.Sprintf("series %d is nil", i)}
		}
	}
	label := series[0]
	if label.ColumnIndex(models.LabelColumn) < 0 {
		return nil, &ShapeError{Reason: fmt.Sprintf("first series %q has no %s column", label.ID, models.LabelColumn)}
	}

	table := seed(label)
	for _, s := range series[1:] {
		join(table, s)
	}

	table = trim(table, TrimOffset)

	log := logger.GetLogger().WithComponent("unifier").WithFields(logger.Fields{
		"rows":    table.Len(),
		"columns": len(table.Columns),
	})
	if table.Len() > 0 && !table.Dates[0].Equal(ExpectedStart) {
		log.WithFields(logger.Fields{
			"first_date": table.Dates[0].Format(models.DateLayout),
			"expected":   ExpectedStart.Format(models.DateLayout),
		}).Warn("aligned table does not start at the expected date")
	}
	log.Debug("series unified")
	return table, nil
}

// seed builds the accumulator from the label series with the label column
// first.
func seed(label *models.Series) *models.AlignedTable {
	n := len(label.Rows)
	t := &models.AlignedTable{
		Dates:   make([]time.Time, n),
		Columns: []string{models.LabelColumn},
		Values:  make(map[string][]float64, ExpectedSeries),
	}
	for i, r := range label.Rows {
		t.Dates[i] = r.Date
	}
	for _, col := range label.Columns {
		if col != models.LabelColumn {
			t.Columns = append(t.Columns, col)
		}
		t.Values[col], _ = label.Column(col)
	}
	return t
}

func join(t *models.AlignedTable, s *models.Series) {
	byDate := make(map[int64]int, len(s.Rows))
	for i, r := range s.Rows {
		if _, dup := byDate[r.Date.Unix()]; !dup {
			byDate[r.Date.Unix()] = i
		}
	}

	for ci, col := range s.Columns {
		name := qualify(t, s.ID, col)
		vals := make([]float64, len(t.Dates))
		for i, d := range t.Dates {
			if ri, ok := byDate[d.Unix()]; ok {
				vals[i] = s.Rows[ri].Values[ci]
			} else {
				vals[i] = models.Missing()
			}
		}
		t.Columns = append(t.Columns, name)
		t.Values[name] = vals
	}
}

// qualify resolves column name collisions as <seriesID>.<column>.
func qualify(t *models.AlignedTable, seriesID, col string) string {
	if _, taken := t.Values[col]; !taken {
		return col
	}
	name := seriesID + "." + col
	for n := 2; ; n++ {
		if _, taken := t.Values[name]; !taken {
			return name
		}
		name = fmt.Sprintf("%s.%s.%d", seriesID, col, n)
	}
}

func trim(t *models.AlignedTable, offset int) *models.AlignedTable {
	if offset > len(t.Dates) {
		offset = len(t.Dates)
	}
	out := &models.AlignedTable{
		Dates:   append([]time.Time(nil), t.Dates[offset:]...),
		Columns: t.Columns,
		Values:  make(map[string][]float64, len(t.Values)),
	}
	for k, v := range t.Values {
		out.Values[k] = append([]float64(nil), v[offset:]...)
	}
	return out
}
