package collector

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"IceStock/internal/model"
	"IceStock/internal/transport"
)

// DefaultInfoclimaURL is the page scraped when no URL is configured.
const DefaultInfoclimaURL = "https://infoclima.com/?ch=PY"

// InfoclimaSource scrapes the infoclima forecast page. It is experimental:
// the page offers no coordinates lookup and its markup may change at any time.
type InfoclimaSource struct {
	URL    string
	Client *transport.Client
	Now    func() time.Time
}

// NewInfoclimaSource creates the experimental source; an empty URL selects the default.
func NewInfoclimaSource(pageURL string, client *transport.Client) *InfoclimaSource {
	if pageURL == "" {
		pageURL = DefaultInfoclimaURL
	}
	return &InfoclimaSource{URL: pageURL, Client: client, Now: time.Now}
}

func (s *InfoclimaSource) Name() string { return "infoclima" }

// FetchForecast ignores loc; the page only lists a national forecast.
func (s *InfoclimaSource) FetchForecast(ctx context.Context, _ model.Location) (model.Forecast, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, s.fail(KindConfig, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, s.fail(KindTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, s.fail(KindTransport, fmt.Errorf("status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, s.fail(KindParse, fmt.Errorf("parse html: %w", err))
	}

	// Only the first week of entries is read. The page has no usable date per
	// entry, so parsed days are stamped consecutively from today.
	today := model.DateOf(s.Now())
	var forecast model.Forecast
	doc.Find(".forecast .day").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= model.MaxForecastDays {
			return false
		}
		dateEl, minEl, maxEl := sel.Find(".date").First(), sel.Find(".min").First(), sel.Find(".max").First()
		if dateEl.Length() == 0 || minEl.Length() == 0 || maxEl.Length() == 0 {
			return true
		}
		tmin, err := parseCelsius(minEl.Text())
		if err != nil {
			return true
		}
		tmax, err := parseCelsius(maxEl.Text())
		if err != nil {
			return true
		}
		forecast = append(forecast, model.ForecastDay{
			Timestamp: today.AddDate(0, 0, len(forecast)).Unix(),
			TempMin:   tmin,
			TempMax:   tmax,
		})
		return true
	})

	if len(forecast) == 0 {
		return nil, s.fail(KindParse, ErrSiteChanged)
	}
	return forecast, nil
}

func (s *InfoclimaSource) fail(kind ErrorKind, err error) error {
	return &FetchError{Source: s.Name(), Kind: kind, Err: err}
}

// parseCelsius reads values like "23°", "23 °C" or "-1.5C".
func parseCelsius(text string) (float64, error) {
	t := strings.TrimSpace(text)
	t = strings.ReplaceAll(t, "°", "")
	t = strings.ReplaceAll(t, "C", "")
	t = strings.ReplaceAll(t, ",", ".")
	return strconv.ParseFloat(strings.TrimSpace(t), 64)
}
