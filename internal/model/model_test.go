package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseline_KeepsDocumentOrder(t *testing.T) {
	var b Baseline
	require.NoError(t, json.Unmarshal([]byte(`{"potes_kg_per_day":1.1,"conos_u_per_day":3,"aaa":0.5}`), &b))

	require.Len(t, b, 3)
	assert.Equal(t, "potes_kg_per_day", b[0].Product)
	assert.Equal(t, "conos_u_per_day", b[1].Product)
	assert.Equal(t, "aaa", b[2].Product)

	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, `{"potes_kg_per_day":1.1,"conos_u_per_day":3,"aaa":0.5}`, string(out))
}

func TestBaseline_DuplicateKeyKeepsFirstPosition(t *testing.T) {
	var b Baseline
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":2,"a":5}`), &b))
	assert.Equal(t, Baseline{{"a", 5}, {"b", 2}}, b)
}

func TestBaseline_RejectsNonObject(t *testing.T) {
	var b Baseline
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &b))
	assert.Error(t, json.Unmarshal([]byte(`{"a":"x"}`), &b))
}

func TestForecastDay_DateIsUTC(t *testing.T) {
	// 2024-01-06 23:30 UTC is still Saturday in UTC even if local time differs.
	ts := time.Date(2024, 1, 6, 23, 30, 0, 0, time.UTC).Unix()
	d := ForecastDay{Timestamp: ts, TempMin: 10, TempMax: 20}
	assert.Equal(t, time.Saturday, d.Date().Weekday())
	assert.Equal(t, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), d.Date())
	assert.Equal(t, 15.0, d.MeanTemp())
}

func TestForecast_Truncate(t *testing.T) {
	f := make(Forecast, 9)
	assert.Len(t, f.Truncate(), MaxForecastDays)
	assert.Len(t, Forecast{}.Truncate(), 0)
}

func TestLineItem_JSONByFamily(t *testing.T) {
	units := LineItem{Product: "conos_u_per_day", Family: FamilyUnits, Quantity: 13.5, Cases: 0.6}
	data, err := json.Marshal(units)
	require.NoError(t, err)
	assert.JSONEq(t, `{"product":"conos_u_per_day","units_week":13.5,"bultos":0.6}`, string(data))

	mass := LineItem{Product: "potes_kg_per_day", Family: FamilyMass, Quantity: 7.8, Cases: 1}
	data, err = json.Marshal(mass)
	require.NoError(t, err)
	assert.JSONEq(t, `{"product":"potes_kg_per_day","kg_week":7.8,"cajas":1}`, string(data))

	var back LineItem
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, mass, back)
}

func TestWeeklySuggestion_JSONRoundTrip(t *testing.T) {
	s := WeeklySuggestion{
		WeekStart: NewDate(time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)),
		Strategy:  StrategyBalanced,
		Items: []LineItem{
			{Product: "conos_u_per_day", Family: FamilyUnits, Quantity: 0, Cases: 0},
			{Product: "potes_kg_per_day", Family: FamilyMass, Quantity: 3.3, Cases: 0.4},
		},
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"week_start":"2024-01-01"`)

	var back WeeklySuggestion
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}
