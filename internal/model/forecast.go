package model

import "time"

// MaxForecastDays is the longest forecast any source hands to the forecaster.
const MaxForecastDays = 7

// ForecastDay is one day of a normalized forecast.
type ForecastDay struct {
	Timestamp int64   `json:"dt"` // seconds since epoch, UTC
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
}

// Date returns the UTC calendar date of the day, at midnight.
func (d ForecastDay) Date() time.Time {
	return DateOf(time.Unix(d.Timestamp, 0))
}

// MeanTemp returns the midpoint of the daily minimum and maximum.
func (d ForecastDay) MeanTemp() float64 {
	return (d.TempMin + d.TempMax) / 2.0
}

// Forecast is an ordered, chronologically ascending list of days.
type Forecast []ForecastDay

// Truncate returns at most MaxForecastDays days.
func (f Forecast) Truncate() Forecast {
	if len(f) > MaxForecastDays {
		return f[:MaxForecastDays]
	}
	return f
}

// Location holds optional store coordinates.
type Location struct {
	Lat *float64
	Lon *float64
}

// Complete reports whether both coordinates are present.
func (l Location) Complete() bool {
	return l.Lat != nil && l.Lon != nil
}
