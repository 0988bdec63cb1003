package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"IceStock/internal/model"
)

// MockSource returns a fixed forecast or error, for development and tests.
type MockSource struct {
	ID       string
	Forecast model.Forecast
	Err      error
	Calls    int

	mu sync.Mutex
}

func (m *MockSource) Name() string {
	if m.ID == "" {
		return "mock"
	}
	return m.ID
}

func (m *MockSource) FetchForecast(_ context.Context, _ model.Location) (model.Forecast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Forecast.Truncate(), nil
}

// MockForecast generates days consecutive days starting at start with a fixed range.
func MockForecast(start time.Time, days int, tempMin, tempMax float64) model.Forecast {
	f := make(model.Forecast, days)
	for i := range f {
		f[i] = model.ForecastDay{
			Timestamp: model.DateOf(start).AddDate(0, 0, i).Unix(),
			TempMin:   tempMin,
			TempMax:   tempMax,
		}
	}
	return f
}

// Result is the outcome of a chain fetch.
type Result struct {
	Forecast model.Forecast
	Source   string
	Warnings []string // failures of sources that were skipped
}

// Chain tries sources in order. Transport and parse failures move on to the
// next source; a config failure ends the chain.
type Chain struct {
	Sources []Source
	log     zerolog.Logger
}

// NewChain creates a fallback chain; the first source is preferred.
func NewChain(log zerolog.Logger, sources ...Source) *Chain {
	return &Chain{Sources: sources, log: log.With().Str("component", "collector").Logger()}
}

// Fetch returns the first successful forecast.
func (c *Chain) Fetch(ctx context.Context, loc model.Location) (*Result, error) {
	if len(c.Sources) == 0 {
		return nil, ErrNoSources
	}
	res := &Result{}
	var lastErr error
	for i, src := range c.Sources {
		forecast, err := src.FetchForecast(ctx, loc)
		if err == nil {
			res.Forecast = forecast.Truncate()
			res.Source = src.Name()
			c.log.Debug().Str("source", src.Name()).Int("days", len(res.Forecast)).Msg("forecast fetched")
			return res, nil
		}
		lastErr = err
		if !Fallbackable(err) || ctx.Err() != nil || i == len(c.Sources)-1 {
			break
		}
		c.log.Warn().Err(err).Str("source", src.Name()).Str("next", c.Sources[i+1].Name()).Msg("forecast source failed, falling back")
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s falló: %v", src.Name(), err))
	}
	return nil, fmt.Errorf("fetch forecast: %w", lastErr)
}
