// Package forecaster turns a weather forecast and baseline daily demand into
// a weekly stock suggestion. It is pure and safe for concurrent use.
package forecaster

import (
	"time"

	"IceStock/internal/calculator"
	"IceStock/internal/model"
)

// BuildWeeklySuggestion computes the suggestion using the current time for
// the week start of an empty forecast.
func BuildWeeklySuggestion(forecast model.Forecast, baseline model.Baseline, strategy string) *model.WeeklySuggestion {
	return BuildWeeklySuggestionAt(forecast, baseline, strategy, time.Now())
}

// BuildWeeklySuggestionAt is BuildWeeklySuggestion with an explicit clock.
func BuildWeeklySuggestionAt(forecast model.Forecast, baseline model.Baseline, strategy string, now time.Time) *model.WeeklySuggestion {
	resolved, multiplier := ResolveStrategy(strategy)

	weekStart := model.NewDate(now)
	if len(forecast) > 0 {
		weekStart = model.Date{Time: forecast[0].Date()}
	}

	// Each day contributes on its own; the baseline is never multiplied by 7.
	totals := make([]float64, len(baseline))
	for _, day := range forecast {
		tf := calculator.ThermalFactor(day.MeanTemp())
		df := calculator.DayFactor(day.Date())
		for i, p := range baseline {
			totals[i] += p.Daily * tf * df
		}
	}

	suggestion := &model.WeeklySuggestion{
		WeekStart: weekStart,
		Strategy:  resolved,
		Items:     make([]model.LineItem, 0, len(baseline)),
	}
	for i, p := range baseline {
		family := calculator.Classify(p.Product)
		quantity := calculator.Round1(totals[i] * multiplier)
		suggestion.Items = append(suggestion.Items, model.LineItem{
			Product:  p.Product,
			Family:   family,
			Quantity: quantity,
			Cases:    calculator.Cases(family, quantity),
		})
	}
	return suggestion
}
