package forecaster

import (
	"strings"

	"IceStock/internal/model"
)

// Strategies maps each risk posture, and its Spanish aliases, to a multiplier.
var Strategies = []struct {
	Strategy   model.Strategy
	Aliases    []string
	Multiplier float64
}{
	{model.StrategyConservative, []string{"conservadora"}, 0.9},
	{model.StrategyBalanced, []string{"balanceada"}, 1.0},
	{model.StrategyAggressive, []string{"agresiva"}, 1.15},
}

// ResolveStrategy returns the canonical strategy and its multiplier.
// Unrecognized names resolve to balanced.
func ResolveStrategy(name string) (model.Strategy, float64) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, s := range Strategies {
		if key == string(s.Strategy) {
			return s.Strategy, s.Multiplier
		}
		for _, alias := range s.Aliases {
			if key == alias {
				return s.Strategy, s.Multiplier
			}
		}
	}
	return model.StrategyBalanced, 1.0
}
