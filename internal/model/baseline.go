package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProductDemand is the daily baseline demand of one product.
type ProductDemand struct {
	Product string
	Daily   float64
}

// Baseline maps product identifiers to daily demand, keeping insertion order.
// It is encoded as a JSON object.
type Baseline []ProductDemand

// DefaultBaseline is offered to stores registered without their own values.
func DefaultBaseline() Baseline {
	return Baseline{
		{Product: "palitos_u_per_day", Daily: 3.4},
		{Product: "conos_u_per_day", Daily: 3.0},
		{Product: "vasitos_u_per_day", Daily: 2.0},
		{Product: "potes_kg_per_day", Daily: 1.1},
		{Product: "helado_premium_kg_per_day", Daily: 0.6},
	}
}

// Set updates an existing product in place or appends a new one.
func (b *Baseline) Set(product string, daily float64) {
	for i := range *b {
		if (*b)[i].Product == product {
			(*b)[i].Daily = daily
			return
		}
	}
	*b = append(*b, ProductDemand{Product: product, Daily: daily})
}

func (b Baseline) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Product)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.Daily)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", p.Product, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (b *Baseline) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*b = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("baseline: expected JSON object")
	}
	out := Baseline{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("baseline: expected product key, got %v", tok)
		}
		var daily float64
		if err := dec.Decode(&daily); err != nil {
			return fmt.Errorf("baseline: product %s: %w", key, err)
		}
		out.Set(key, daily)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*b = out
	return nil
}
