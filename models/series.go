package models

import (
	"math"
	"time"
)

// RawObservation is one reporting period as read off the wire, before numeric
// coercion. A nil field means the provider omitted it.
type RawObservation struct {
	Date   string
	Fields map[string]*string
}

// Row is a single dated observation. Values line up with Series.Columns and
// hold NaN where the provider reported nothing usable.
type Row struct {
	Date   time.Time `json:"date"`
	Values []float64 `json:"values"`
}

// Series is the canonical form every source adapter produces. Rows are kept
// in ascending date order without duplicate dates.
type Series struct {
	ID      string   `json:"id"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewEmptySeries returns a series with the given columns and no rows.
func NewEmptySeries(id string, columns ...string) *Series {
	if len(columns) == 0 {
		columns = []string{id}
	}
	return &Series{ID: id, Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// ColumnIndex returns the position of name in Columns or -1.
func (s *Series) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the values of one column in row order.
func (s *Series) Column(name string) ([]float64, bool) {
	idx := s.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Values[idx]
	}
	return out, true
}

// Clone returns a deep copy so later stages never share backing arrays with
// their input.
func (s *Series) Clone() *Series {
	if s == nil {
		return nil
	}
	out := &Series{
		ID:      s.ID,
		Columns: append([]string(nil), s.Columns...),
		Rows:    make([]Row, len(s.Rows)),
	}
	for i, r := range s.Rows {
		out.Rows[i] = Row{Date: r.Date, Values: append([]float64(nil), r.Values...)}
	}
	return out
}

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Missing returns the missing-value marker.
func Missing() float64 {
	return math.NaN()
}
