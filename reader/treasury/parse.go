package treasury

import (
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"

	"recessionflow/models"
)

var markupRegexp = regexp.MustCompile(`<.*?>`)

type cell struct {
	Inner string `xml:",innerxml"`
}

type properties struct {
	NewDate  *cell `xml:"NEW_DATE"`
	BC3Month *cell `xml:"BC_3MONTH"`
	BC6Month *cell `xml:"BC_6MONTH"`
	BC1Year  *cell `xml:"BC_1YEAR"`
	BC10Year *cell `xml:"BC_10YEAR"`
	BC30Year *cell `xml:"BC_30YEAR"`
}

type content struct {
	Properties properties `xml:"properties"`
}

// ParsePage extracts one raw observation per <content> record of an Atom
// yield curve page. Records without a date are skipped.
func ParsePage(r io.Reader) ([]models.RawObservation, error) {
	dec := xml.NewDecoder(r)
	var out []models.RawObservation
	sawRoot := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true
		if se.Name.Local != "content" {
			continue
		}

		var c content
		if err := dec.DecodeElement(&c, &se); err != nil {
			return nil, err
		}
		p := c.Properties
		date := clean(p.NewDate)
		if date == nil || *date == "" {
			continue
		}
		out = append(out, models.RawObservation{
			Date: *date,
			Fields: map[string]*string{
				"bc_3month": clean(p.BC3Month),
				"bc_6month": clean(p.BC6Month),
				"bc_1year":  clean(p.BC1Year),
				"bc_10year": clean(p.BC10Year),
				"bc_30year": clean(p.BC30Year),
			},
		})
	}

	if !sawRoot {
		return nil, errors.New("empty document")
	}
	return out, nil
}

// clean strips embedded markup and the midnight time suffix. A nil cell
// stays nil.
func clean(c *cell) *string {
	if c == nil {
		return nil
	}
	v := markupRegexp.ReplaceAllString(c.Inner, "")
	v = strings.TrimSpace(strings.ReplaceAll(v, "T00:00:00", ""))
	return &v
}
