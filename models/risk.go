package models

import "time"

// RiskRecord is the scored output for one prediction-window date. Level 5 is
// the lowest recession probability and level 1 the highest.
type RiskRecord struct {
	Date        time.Time `json:"date"`
	Level       int       `json:"nrr"`
	Probability float64   `json:"probability"`
}

// RiskRow is the parquet layout of a RiskRecord.
type RiskRow struct {
	Date        string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	NRR         int32   `parquet:"name=nrr, type=INT32"`
	Probability float64 `parquet:"name=probability, type=DOUBLE"`
}

// DateLayout is the calendar date format used on every output.
const DateLayout = "2006-01-02"

// ToRow converts the record into its parquet row.
func (r RiskRecord) ToRow() RiskRow {
	return RiskRow{
		Date:        r.Date.Format(DateLayout),
		NRR:         int32(r.Level),
		Probability: r.Probability,
	}
}
