package processor

import (
	"errors"
	"math"
	"testing"
	"time"

	"recessionflow/models"
)

var origin = time.Date(1919, 1, 1, 0, 0, 0, 0, time.UTC)

func monthly(id string, n int, value func(i int) float64) *models.Series {
	s := &models.Series{ID: id, Columns: []string{id}, Rows: make([]models.Row, n)}
	for i := 0; i < n; i++ {
		s.Rows[i] = models.Row{Date: origin.AddDate(0, i, 0), Values: []float64{value(i)}}
	}
	return s
}

// catalogue returns a label of labelRows monthly rows plus eight features.
func catalogue(labelRows int) []*models.Series {
	out := []*models.Series{monthly(models.LabelColumn, labelRows, func(i int) float64 { return float64(i % 2) })}
	for k := 1; k < ExpectedSeries; k++ {
		k := k
		out = append(out, monthly(string(rune('A'+k)), labelRows, func(i int) float64 { return float64(i * k) }))
	}
	return out
}

func TestNormalizeRange(t *testing.T) {
	s := &models.Series{ID: "x", Columns: []string{"a", "b"}, Rows: []models.Row{
		{Date: origin, Values: []float64{2, 5}},
		{Date: origin.AddDate(0, 1, 0), Values: []float64{math.NaN(), 5}},
		{Date: origin.AddDate(0, 2, 0), Values: []float64{6, 5}},
		{Date: origin.AddDate(0, 3, 0), Values: []float64{4, math.NaN()}},
	}}
	out := Normalize(s)

	a, _ := out.Column("a")
	if a[0] != 0 || a[2] != 1 || a[3] != 0.5 || !math.IsNaN(a[1]) {
		t.Fatalf("unexpected normalized column: %v", a)
	}
	b, _ := out.Column("b")
	for i, v := range b {
		if !math.IsNaN(v) {
			t.Fatalf("constant column value %d should be missing, got %v", i, v)
		}
	}
	if s.Rows[0].Values[0] != 2 {
		t.Fatalf("input was modified")
	}
	for i := range s.Rows {
		if !out.Rows[i].Date.Equal(s.Rows[i].Date) {
			t.Fatalf("dates changed at %d", i)
		}
	}
}

func TestNormalizeAllMissingAndEmpty(t *testing.T) {
	s := &models.Series{ID: "x", Columns: []string{"x"}, Rows: []models.Row{{Date: origin, Values: []float64{math.NaN()}}}}
	if out := Normalize(s); !math.IsNaN(out.Rows[0].Values[0]) {
		t.Fatalf("missing value changed: %v", out.Rows[0].Values[0])
	}
	if out := Normalize(models.NewEmptySeries("y")); out.Len() != 0 {
		t.Fatalf("empty series gained rows")
	}
	if Normalize(nil) != nil {
		t.Fatalf("nil input should yield nil")
	}
}

func TestUnifyShapeErrors(t *testing.T) {
	cases := map[string][]*models.Series{
		"eight series": catalogue(900)[:8],
		"nil series": func() []*models.Series {
			c := catalogue(900)
			c[4] = nil
			return c
		}(),
		"label missing": func() []*models.Series {
			c := catalogue(900)
			c[0], c[1] = c[1], c[0]
			return c
		}(),
	}
	for name, in := range cases {
		_, err := Unify(in)
		var se *ShapeError
		if !errors.As(err, &se) {
			t.Errorf("%s: expected ShapeError, got %v", name, err)
		}
	}
}

func TestUnifyAlignsAndTrims(t *testing.T) {
	const rows = TrimOffset + 12
	in := catalogue(rows)
	// Second feature only reports every other month.
	sparse := in[2]
	kept := sparse.Rows[:0]
	for i, r := range sparse.Rows {
		if i%2 == 0 {
			kept = append(kept, r)
		}
	}
	sparse.Rows = kept
	// Third feature reports a date the label does not have.
	in[3].Rows = append(in[3].Rows, models.Row{Date: origin.AddDate(0, rows+5, 0), Values: []float64{1}})

	table, err := Unify(in)
	if err != nil {
		t.Fatalf("Unify: %v", err)
	}
	if table.Len() != rows-TrimOffset {
		t.Fatalf("expected %d rows, got %d", rows-TrimOffset, table.Len())
	}
	if !table.Dates[0].Equal(ExpectedStart) {
		t.Fatalf("first date %s, want %s", table.Dates[0], ExpectedStart)
	}
	if table.Columns[0] != models.LabelColumn || len(table.Columns) != ExpectedSeries {
		t.Fatalf("unexpected columns: %v", table.Columns)
	}
	for _, c := range table.Columns {
		if len(table.Values[c]) != table.Len() {
			t.Fatalf("column %s has %d values for %d dates", c, len(table.Values[c]), table.Len())
		}
	}
	col := table.Values[sparse.ID]
	if !math.IsNaN(col[1]) || math.IsNaN(col[0]) {
		t.Fatalf("left join did not mark absent dates missing: %v", col[:2])
	}
}

func TestUnifyQualifiesCollisions(t *testing.T) {
	in := catalogue(TrimOffset + 2)
	in[2].Columns = []string{in[1].Columns[0]}
	table, err := Unify(in)
	if err != nil {
		t.Fatalf("Unify: %v", err)
	}
	want := in[2].ID + "." + in[1].Columns[0]
	if _, ok := table.Values[want]; !ok {
		t.Fatalf("expected qualified column %s in %v", want, table.Columns)
	}
}

func TestUnifyShortTableIsEmpty(t *testing.T) {
	table, err := Unify(catalogue(100))
	if err != nil {
		t.Fatalf("Unify: %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("expected empty table, got %d rows", table.Len())
	}
	for _, c := range table.Columns {
		if len(table.Values[c]) != 0 {
			t.Fatalf("column %s not empty", c)
		}
	}
}

func TestFillInterpolates(t *testing.T) {
	nan := math.NaN()
	table := &models.AlignedTable{
		Dates:   make([]time.Time, 6),
		Columns: []string{models.LabelColumn, "x", "empty"},
		Values: map[string][]float64{
			models.LabelColumn: {nan, 0, 1, nan, 0, 0},
			"x":                {nan, 1, nan, nan, 4, nan},
			"empty":            {nan, nan, nan, nan, nan, nan},
		},
	}
	out := Fill(table)

	want := []float64{1, 1, 2, 3, 4, 4}
	for i, v := range out.Values["x"] {
		if math.Abs(v-want[i]) > 1e-12 {
			t.Fatalf("x[%d] = %v, want %v", i, v, want[i])
		}
	}
	if !math.IsNaN(out.Values[models.LabelColumn][0]) {
		t.Fatalf("label column must not be filled")
	}
	for _, v := range out.Values["empty"] {
		if !math.IsNaN(v) {
			t.Fatalf("wholly missing column must stay missing")
		}
	}
	if !math.IsNaN(table.Values["x"][0]) {
		t.Fatalf("input was modified")
	}
}

func TestFillIdempotent(t *testing.T) {
	nan := math.NaN()
	table := &models.AlignedTable{
		Dates:   make([]time.Time, 5),
		Columns: []string{models.LabelColumn, "x"},
		Values: map[string][]float64{
			models.LabelColumn: {0, 0, 1, 1, 0},
			"x":                {nan, 0.2, nan, 0.8, nan},
		},
	}
	once := Fill(table)
	twice := Fill(once)
	for i := range once.Values["x"] {
		if once.Values["x"][i] != twice.Values["x"][i] {
			t.Fatalf("Fill not idempotent at %d: %v vs %v", i, once.Values["x"][i], twice.Values["x"][i])
		}
	}
}
