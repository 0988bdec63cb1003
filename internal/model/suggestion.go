package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Strategy is a named risk posture applied to the weekly total.
type Strategy string

const (
	StrategyConservative Strategy = "conservative"
	StrategyBalanced     Strategy = "balanced"
	StrategyAggressive   Strategy = "aggressive"
)

// Family tells how a product is counted and packed.
type Family string

const (
	FamilyUnits Family = "units"
	FamilyMass  Family = "mass"
)

// LineItem is the weekly quantity of one product.
// Units products serialize as units_week/bultos, mass products as kg_week/cajas.
type LineItem struct {
	Product  string
	Family   Family
	Quantity float64 // units or kg per week
	Cases    float64 // bultos or cajas
}

type unitsItemJSON struct {
	Product   string  `json:"product"`
	UnitsWeek float64 `json:"units_week"`
	Bultos    float64 `json:"bultos"`
}

type massItemJSON struct {
	Product string  `json:"product"`
	KgWeek  float64 `json:"kg_week"`
	Cajas   float64 `json:"cajas"`
}

func (li LineItem) MarshalJSON() ([]byte, error) {
	if li.Family == FamilyUnits {
		return json.Marshal(unitsItemJSON{Product: li.Product, UnitsWeek: li.Quantity, Bultos: li.Cases})
	}
	return json.Marshal(massItemJSON{Product: li.Product, KgWeek: li.Quantity, Cajas: li.Cases})
}

func (li *LineItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Product   string   `json:"product"`
		UnitsWeek *float64 `json:"units_week"`
		Bultos    *float64 `json:"bultos"`
		KgWeek    *float64 `json:"kg_week"`
		Cajas     *float64 `json:"cajas"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.UnitsWeek != nil || raw.Bultos != nil:
		*li = LineItem{Product: raw.Product, Family: FamilyUnits, Quantity: deref(raw.UnitsWeek), Cases: deref(raw.Bultos)}
	case raw.KgWeek != nil || raw.Cajas != nil:
		*li = LineItem{Product: raw.Product, Family: FamilyMass, Quantity: deref(raw.KgWeek), Cases: deref(raw.Cajas)}
	default:
		return fmt.Errorf("line item %q: no quantity fields", raw.Product)
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// WeeklySuggestion is the forecaster's output.
type WeeklySuggestion struct {
	WeekStart Date       `json:"week_start"`
	Strategy  Strategy   `json:"strategy"`
	Items     []LineItem `json:"items"`
}

// Item returns the line item for product, if present.
func (s *WeeklySuggestion) Item(product string) (LineItem, bool) {
	for _, it := range s.Items {
		if it.Product == product {
			return it, true
		}
	}
	return LineItem{}, false
}

// SuggestionRecord is a persisted suggestion with its explanation.
type SuggestionRecord struct {
	ID          int64            `json:"id"`
	StoreID     int64            `json:"store_id"`
	StoreName   string           `json:"store_name,omitempty"`
	Suggestion  WeeklySuggestion `json:"suggestion"`
	Explanation string           `json:"explanation"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Store is a registered ice-cream store.
type Store struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Lat        *float64  `json:"lat"`
	Lon        *float64  `json:"lon"`
	City       string    `json:"city"`
	Country    string    `json:"country"`
	BaseDemand Baseline  `json:"base_demand"`
	CreatedAt  time.Time `json:"created_at"`
}

// Location returns the store coordinates.
func (s *Store) Location() Location {
	return Location{Lat: s.Lat, Lon: s.Lon}
}
