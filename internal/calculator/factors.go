package calculator

import "time"

// WeekendFactor is the uplift applied to Saturdays and Sundays.
const WeekendFactor = 1.4

// ThermalFactor buckets the mean daily temperature (°C) into a demand multiplier.
// Intervals are left-closed; there is no interpolation between buckets.
func ThermalFactor(meanC float64) float64 {
	switch {
	case meanC < 20:
		return 0.3
	case meanC < 25:
		return 1.0
	case meanC < 30:
		return 1.8
	default:
		return 2.5
	}
}

// DayFactor returns the weekend uplift for the UTC weekday of date.
func DayFactor(date time.Time) float64 {
	switch date.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return WeekendFactor
	default:
		return 1.0
	}
}
