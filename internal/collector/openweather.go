package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"IceStock/internal/model"
	"IceStock/internal/transport"
)

// DefaultOpenWeatherEndpoint is the One Call endpoint used when none is configured.
const DefaultOpenWeatherEndpoint = "https://api.openweathermap.org/data/2.5/onecall"

// OpenWeatherSource is the primary forecast source.
type OpenWeatherSource struct {
	Endpoint string
	APIKey   string
	Client   *transport.Client
}

// NewOpenWeatherSource creates the primary source; an empty endpoint selects the default.
func NewOpenWeatherSource(endpoint, apiKey string, client *transport.Client) *OpenWeatherSource {
	if endpoint == "" {
		endpoint = DefaultOpenWeatherEndpoint
	}
	return &OpenWeatherSource{Endpoint: endpoint, APIKey: apiKey, Client: client}
}

func (s *OpenWeatherSource) Name() string { return "openweathermap" }

// owmOneCall is the subset of the One Call response we read.
type owmOneCall struct {
	Daily []struct {
		Dt   int64 `json:"dt"`
		Temp struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
	} `json:"daily"`
}

func (s *OpenWeatherSource) FetchForecast(ctx context.Context, loc model.Location) (model.Forecast, error) {
	if !loc.Complete() {
		return nil, s.fail(KindConfig, ErrMissingCoordinates)
	}
	if s.APIKey == "" {
		return nil, s.fail(KindConfig, ErrMissingAPIKey)
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(*loc.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(*loc.Lon, 'f', -1, 64))
	q.Set("exclude", "minutely,hourly,alerts")
	q.Set("units", "metric")
	q.Set("appid", s.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, s.fail(KindConfig, fmt.Errorf("build request: %w", err))
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, s.fail(KindTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, s.fail(KindTransport, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, s.fail(KindTransport, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body)))
	}

	var payload owmOneCall
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, s.fail(KindParse, fmt.Errorf("decode: %w", err))
	}

	forecast := make(model.Forecast, 0, len(payload.Daily))
	for _, d := range payload.Daily {
		forecast = append(forecast, model.ForecastDay{Timestamp: d.Dt, TempMin: d.Temp.Min, TempMax: d.Temp.Max})
	}
	return forecast.Truncate(), nil
}

func (s *OpenWeatherSource) fail(kind ErrorKind, err error) error {
	return &FetchError{Source: s.Name(), Kind: kind, Err: err}
}
