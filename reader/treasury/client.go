package treasury

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"recessionflow/config"
	"recessionflow/logger"
	"recessionflow/models"
	"recessionflow/reader"
)

const (
	// DefaultBaseURL is the daily yield curve XML endpoint.
	DefaultBaseURL = "https://home.treasury.gov/resource-center/data-chart-center/interest-rates/pages/xml"

	// FirstYear is the earliest year requested.
	FirstYear = 1990

	// MaxWorkers bounds the number of yearly pages fetched concurrently.
	MaxWorkers = 10
)

// Columns lists the tenors kept from every record, in output order.
var Columns = []string{"bc_3month", "bc_6month", "bc_1year", "bc_10year", "bc_30year"}

// Client fetches the yield curve one calendar year per request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	firstYear  int
	workers    int
	now        func() time.Time
	log        *logger.Log
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the feed endpoint.
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

// WithRateLimit paces page requests. Zero disables pacing.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		}
	}
}

// WithYears restricts the requested range to [first, current year].
func WithYears(first int) Option {
	return func(c *Client) {
		if first > 0 {
			c.firstYear = first
		}
	}
}

// WithClock replaces the clock used to find the current year.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a Treasury client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		firstYear:  FirstYear,
		workers:    MaxWorkers,
		now:        time.Now,
		log:        logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig creates a client from the application configuration.
func NewFromConfig(cfg *config.Config, hc *http.Client) *Client {
	return NewClient(
		WithBaseURL(cfg.Source.Treasury.URL),
		WithHTTPClient(hc),
		WithRateLimit(cfg.Source.Treasury.RequestsPerSecond),
	)
}

type pageResult struct {
	year int
	obs  []models.RawObservation
}

// Fetch downloads every year from the first year through the current year on
// a bounded worker pool. A failed year is logged and contributes no rows.
// Only when every page fails is an error returned.
func (c *Client) Fetch(ctx context.Context, seriesID string) (*models.Series, error) {
	log := c.log.WithComponent("treasury_reader").WithFields(logger.Fields{"series": seriesID})

	lastYear := c.now().Year()
	if lastYear < c.firstYear {
		return models.NewEmptySeries(seriesID, Columns...), nil
	}
	total := lastYear - c.firstYear + 1

	years := make(chan int, total)
	for y := c.firstYear; y <= lastYear; y++ {
		years <- y
	}
	close(years)

	var (
		mu      sync.Mutex
		pages   []pageResult
		failed  int
		lastErr error
		wg      sync.WaitGroup
	)

	workers := c.workers
	if workers > total {
		workers = total
	}

	start := time.Now()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for year := range years {
				obs, err := c.fetchYear(ctx, seriesID, year)
				mu.Lock()
				if err != nil {
					failed++
					lastErr = err
				} else {
					pages = append(pages, pageResult{year: year, obs: obs})
				}
				mu.Unlock()
				if err != nil {
					log.WithError(err).WithFields(logger.Fields{"year": year}).Warn("failed to fetch yield curve page")
				}
			}
		}()
	}
	wg.Wait()

	if failed > 0 {
		log.LogMetric("treasury_reader", "pages_failed", failed, "counter", logger.Fields{"series": seriesID})
	}
	if failed == total {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
		}
		return nil, &reader.FetchError{
			SeriesID: seriesID,
			URL:      c.baseURL,
			Err:      fmt.Errorf("all %d pages failed: %w", total, lastErr),
		}
	}

	// Pages finish in any order; concatenate by year so first-wins dedupe is
	// deterministic.
	sort.Slice(pages, func(i, j int) bool { return pages[i].year < pages[j].year })
	var all []models.RawObservation
	for _, p := range pages {
		all = append(all, p.obs...)
	}

	series, skipped := reader.BuildSeries(seriesID, Columns, all)
	logger.LogPerformanceEntry(log, "treasury_reader", "fetch_pages", time.Since(start), logger.Fields{
		"pages":   total,
		"failed":  failed,
		"rows":    series.Len(),
		"skipped": skipped,
	})
	return series, nil
}

func (c *Client) pageURL(seriesID string, year int) string {
	q := url.Values{}
	q.Set("data", seriesID)
	q.Set("field_tdr_date_value", strconv.Itoa(year))
	return c.baseURL + "?" + q.Encode()
}

func (c *Client) fetchYear(ctx context.Context, seriesID string, year int) ([]models.RawObservation, error) {
	endpoint := c.pageURL(seriesID, year)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &reader.FetchError{SeriesID: seriesID, URL: endpoint, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &reader.FetchError{SeriesID: seriesID, URL: endpoint, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &reader.FetchError{SeriesID: seriesID, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &reader.FetchError{
			SeriesID:   seriesID,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %s", resp.Status),
		}
	}

	obs, err := ParsePage(resp.Body)
	if err != nil {
		return nil, &reader.ParseError{SeriesID: seriesID, Err: fmt.Errorf("year %d: %w", year, err)}
	}
	return obs, nil
}
