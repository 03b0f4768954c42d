package reader

import (
	"context"
	"fmt"
	"strings"

	"recessionflow/config"
	"recessionflow/models"
)

// Provider selects the fetch strategy used for a series.
type Provider int

const (
	// ProviderPoint answers one request with the complete history.
	ProviderPoint Provider = iota
	// ProviderPaginated serves history one calendar year per request.
	ProviderPaginated
)

func (p Provider) String() string {
	switch p {
	case ProviderPoint:
		return "point"
	case ProviderPaginated:
		return "paginated"
	default:
		return fmt.Sprintf("provider(%d)", int(p))
	}
}

// ParseProvider maps a configured provider name onto its fetch strategy.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case config.ProviderFRED:
		return ProviderPoint, nil
	case config.ProviderTreasury:
		return ProviderPaginated, nil
	default:
		return 0, fmt.Errorf("unknown provider %q", name)
	}
}

// Source fetches one series and converts it into canonical form.
type Source interface {
	Fetch(ctx context.Context, seriesID string) (*models.Series, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, seriesID string) (*models.Series, error)

func (f SourceFunc) Fetch(ctx context.Context, seriesID string) (*models.Series, error) {
	return f(ctx, seriesID)
}

// Request names one entry of the series catalogue.
type Request struct {
	Name     string
	Provider Provider
	ID       string
}

// RequestsFromConfig converts the configured catalogue, preserving order.
func RequestsFromConfig(series []config.SeriesConfig) ([]Request, error) {
	out := make([]Request, 0, len(series))
	for i, s := range series {
		p, err := ParseProvider(s.Provider)
		if err != nil {
			return nil, fmt.Errorf("series[%d]: %w", i, err)
		}
		name := s.Name
		if name == "" {
			name = s.ID
		}
		out = append(out, Request{Name: name, Provider: p, ID: s.ID})
	}
	return out, nil
}
