package models

import "time"

// LabelColumn is the recession indicator every aligned table is anchored on.
const LabelColumn = "USREC"

// AlignedTable is the joined, date-keyed table fed to gap filling and
// scoring. Every column holds exactly len(Dates) values and the label column
// is Columns[0].
type AlignedTable struct {
	Dates   []time.Time
	Columns []string
	Values  map[string][]float64
}

// Len returns the number of rows.
func (t *AlignedTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Dates)
}

// FeatureColumns returns every column except the label.
func (t *AlignedTable) FeatureColumns() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c != LabelColumn {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *AlignedTable) Clone() *AlignedTable {
	if t == nil {
		return nil
	}
	out := &AlignedTable{
		Dates:   append([]time.Time(nil), t.Dates...),
		Columns: append([]string(nil), t.Columns...),
		Values:  make(map[string][]float64, len(t.Values)),
	}
	for k, v := range t.Values {
		out.Values[k] = append([]float64(nil), v...)
	}
	return out
}
