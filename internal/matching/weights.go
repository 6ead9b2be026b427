// Package matching scores investor/target pairs across six weighted
// dimensions and defines the persisted match record.
package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealmatch/internal/config"
)

// Weights sets the contribution of each dimension. They sum to 1.0.
type Weights struct {
	Industry  float64 `json:"industry"`
	Geography float64 `json:"geography"`
	Financial float64 `json:"financial"`
	Profile   float64 `json:"profile"`
	Timeline  float64 `json:"timeline"`
	Ownership float64 `json:"ownership"`
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{
		Industry:  0.25,
		Geography: 0.20,
		Financial: 0.20,
		Profile:   0.15,
		Timeline:  0.10,
		Ownership: 0.10,
	}
}

// WeightsFromConfig maps the configured weights. A zero-valued section
// yields DefaultWeights.
func WeightsFromConfig(c config.MatchWeights) Weights {
	w := Weights{
		Industry:  c.Industry,
		Geography: c.Geography,
		Financial: c.Financial,
		Profile:   c.Profile,
		Timeline:  c.Timeline,
		Ownership: c.Ownership,
	}
	if w.Sum() == 0 {
		return DefaultWeights()
	}
	return w
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Industry + w.Geography + w.Financial + w.Profile + w.Timeline + w.Ownership
}

// ValidateWeights checks that every weight is non-negative and that they sum to 1.0.
func ValidateWeights(w Weights) error {
	var errs []string

	named := []struct {
		name string
		v    float64
	}{
		{"industry", w.Industry},
		{"geography", w.Geography},
		{"financial", w.Financial},
		{"profile", w.Profile},
		{"timeline", w.Timeline},
		{"ownership", w.Ownership},
	}
	for _, n := range named {
		if n.v < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", n.name))
		}
	}

	if sum := w.Sum(); math.Abs(sum-1) > 1e-9 {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %.4f", sum))
	}

	if len(errs) > 0 {
		return eris.Errorf("matching: weight validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
