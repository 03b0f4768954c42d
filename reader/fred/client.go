package fred

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"recessionflow/config"
	"recessionflow/logger"
	"recessionflow/models"
	"recessionflow/reader"
)

const (
	// DefaultBaseURL is the FRED series observations endpoint.
	DefaultBaseURL = "https://api.stlouisfed.org/fred/series/observations"

	// LabelOffset is the number of leading USREC rows discarded after
	// parsing. The first kept observation is 1919-01-01.
	LabelOffset = 769
)

// Client fetches one series per request from the FRED observations API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Log
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the observations endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a FRED client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig creates a client from the application configuration.
func NewFromConfig(cfg *config.Config, hc *http.Client) *Client {
	return NewClient(cfg.Source.FRED.APIKey, WithBaseURL(cfg.Source.FRED.URL), WithHTTPClient(hc))
}

type observationsDoc struct {
	XMLName      xml.Name      `xml:"observations"`
	Observations []observation `xml:"observation"`
}

type observation struct {
	Date  string `xml:"date,attr"`
	Value string `xml:"value,attr"`
}

// Fetch downloads and parses the full history of seriesID.
func (c *Client) Fetch(ctx context.Context, seriesID string) (*models.Series, error) {
	log := c.log.WithComponent("fred_reader").WithFields(logger.Fields{"series": seriesID})

	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", c.apiKey)
	endpoint := c.baseURL + "?" + q.Encode()
	redacted := c.baseURL + "?series_id=" + url.QueryEscape(seriesID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &reader.FetchError{SeriesID: seriesID, URL: redacted, Err: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &reader.FetchError{SeriesID: seriesID, URL: redacted, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &reader.FetchError{
			SeriesID:   seriesID,
			URL:        redacted,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &reader.FetchError{SeriesID: seriesID, URL: redacted, Err: err}
	}
	logger.LogPerformanceEntry(log, "fred_reader", "api_request", time.Since(start), logger.Fields{"bytes": len(body)})

	series, err := Parse(seriesID, body)
	if err != nil {
		return nil, err
	}

	if seriesID == models.LabelColumn {
		series = truncateLabel(series)
	}

	log.WithFields(logger.Fields{"rows": series.Len()}).Debug("series fetched")
	return series, nil
}

// Parse converts an observations document into a single-column series named
// after seriesID.
func Parse(seriesID string, body []byte) (*models.Series, error) {
	var doc observationsDoc
	dec := xml.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&doc); err != nil {
		return nil, &reader.ParseError{SeriesID: seriesID, Err: err}
	}

	obs := make([]models.RawObservation, 0, len(doc.Observations))
	for _, o := range doc.Observations {
		value := o.Value
		obs = append(obs, models.RawObservation{
			Date:   o.Date,
			Fields: map[string]*string{seriesID: &value},
		})
	}

	series, skipped := reader.BuildSeries(seriesID, []string{seriesID}, obs)
	if skipped > 0 {
		logger.GetLogger().WithComponent("fred_reader").WithFields(logger.Fields{
			"series":  seriesID,
			"skipped": skipped,
		}).Warn("observations with unreadable dates dropped")
	}
	return series, nil
}

func truncateLabel(s *models.Series) *models.Series {
	if len(s.Rows) <= LabelOffset {
		s.Rows = s.Rows[:0]
		return s
	}
	s.Rows = append([]models.Row(nil), s.Rows[LabelOffset:]...)
	return s
}
