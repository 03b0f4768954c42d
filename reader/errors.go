package reader

import "fmt"

// FetchError reports a network failure or a non-2xx response.
type FetchError struct {
	SeriesID   string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d from %s", e.SeriesID, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("fetch %s from %s: %v", e.SeriesID, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a response body that is not the expected document.
type ParseError struct {
	SeriesID string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.SeriesID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
