package calculator

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"IceStock/internal/model"
)

const (
	// UnitsPerCase is the size of a bulto of unit-counted products.
	UnitsPerCase = 24.0
	// KgPerCase is the weight of a caja of mass-counted products.
	KgPerCase = 7.8
)

// Classify returns the packing family of a product identifier.
// Identifiers matching neither rule, _kg_per_day included, fall into the mass family.
func Classify(product string) model.Family {
	if strings.HasPrefix(product, "palitos") || strings.HasSuffix(product, "_u_per_day") {
		return model.FamilyUnits
	}
	return model.FamilyMass
}

// Cases converts a rounded weekly quantity into cases of the given family.
func Cases(family model.Family, quantity float64) float64 {
	if family == model.FamilyUnits {
		return Round1(quantity / UnitsPerCase)
	}
	return Round1(quantity / KgPerCase)
}

// exactDigits keeps enough of a float64's binary expansion that only values
// exactly on a tie are rounded as ties.
const exactDigits = -30

// Round1 rounds to one decimal place, half to even on the exact binary value
// of v, so 0.25 gives 0.2 and 0.35 (stored as 0.34999...) gives 0.3.
// NaN and infinities are returned unchanged.
func Round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloatWithExponent(v, exactDigits).RoundBank(1).InexactFloat64()
}
