package matching

import (
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sells-group/dealmatch/internal/profile"
)

// neutral is the score for a dimension with no data to judge.
const neutral = 0.5

// Dimensions holds the six sub-scores of a pair, each in [0,1].
type Dimensions struct {
	Industry  float64 `json:"industry"`
	Geography float64 `json:"geography"`
	Financial float64 `json:"financial"`
	Profile   float64 `json:"profile"`
	Timeline  float64 `json:"timeline"`
	Ownership float64 `json:"ownership"`
}

// Score is the result of scoring one investor/target pair.
type Score struct {
	Total      int        `json:"total"`
	Dimensions Dimensions `json:"dimensions"`
	ComputedAt time.Time  `json:"computed_at"`
}

// Scorer computes match scores. It holds no mutable state and is safe for
// concurrent use.
type Scorer struct {
	weights Weights
	clock   clockwork.Clock
}

// NewScorer validates w and returns a Scorer reading time from clock.
// A nil clock uses the wall clock.
func NewScorer(w Weights, clock clockwork.Clock) (*Scorer, error) {
	if err := ValidateWeights(w); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scorer{weights: w, clock: clock}, nil
}

// DefaultScorer returns a Scorer with DefaultWeights and the wall clock.
func DefaultScorer() *Scorer {
	return &Scorer{weights: DefaultWeights(), clock: clockwork.NewRealClock()}
}

// Weights returns the scorer's weights.
func (s *Scorer) Weights() Weights { return s.weights }

// Score rates how well tgt fits inv.
func (s *Scorer) Score(inv profile.Investor, tgt profile.Target) Score {
	now := s.clock.Now()
	d := Dimensions{
		Industry:  scoreIndustry(inv.Industries, tgt.Industries),
		Geography: scoreGeography(inv.Countries, tgt.HQ, tgt.OperatingCountries),
		Financial: scoreFinancial(inv, tgt),
		Profile:   scoreProfile(inv, tgt, now.Year()),
		Timeline:  scoreTimeline(inv.Timeline, tgt.Timeline),
		Ownership: scoreOwnership(inv, tgt),
	}
	return Score{
		Total:      total(d, s.weights),
		Dimensions: d,
		ComputedAt: now.UTC(),
	}
}

func total(d Dimensions, w Weights) int {
	raw := 100 * (w.Industry*d.Industry +
		w.Geography*d.Geography +
		w.Financial*d.Financial +
		w.Profile*d.Profile +
		w.Timeline*d.Timeline +
		w.Ownership*d.Ownership)
	return int(math.Max(0, math.Min(100, math.Round(raw))))
}

// average returns the mean of the sub-fits that produced a value, or
// neutral when none did.
func average(fits ...*float64) float64 {
	var sum float64
	var n int
	for _, f := range fits {
		if f != nil {
			sum += *f
			n++
		}
	}
	if n == 0 {
		return neutral
	}
	return clamp01(sum / float64(n))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func ptr(v float64) *float64 { return &v }
