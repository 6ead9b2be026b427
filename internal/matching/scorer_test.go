package matching

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/sells-group/dealmatch/internal/profile"
)

func ptrRange(lo, hi float64) *profile.Range { return &profile.Range{Min: lo, Max: hi} }
func ptrFloat64(v float64) *float64 { return &v }

func names(ss ...string) []profile.Item {
	out := make([]profile.Item, 0, len(ss))
	for _, s := range ss {
		out = append(out, profile.Item{Name: s})
	}
	return out
}

func fixedScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultWeights(), clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	return s
}

func TestDefaultWeights_SumToOne(t *testing.T) {
	assert.InDelta(t, 1.0, DefaultWeights().Sum(), 1e-9)
	assert.NoError(t, ValidateWeights(DefaultWeights()))
}

func TestValidateWeights(t *testing.T) {
	w := DefaultWeights()
	w.Industry = 0.5
	err := ValidateWeights(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")

	w = DefaultWeights()
	w.Ownership = -0.1
	w.Timeline = 0.3
	err = ValidateWeights(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ownership weight must be >= 0")

	_, err = NewScorer(Weights{}, nil)
	assert.Error(t, err)
}

func TestScore_FintechScenario(t *testing.T) {
	inv := profile.Investor{Industries: names("Fintech"), Countries: []profile.Item{{ID: 1}}}
	tgt := profile.Target{Industries: names("Financial Technology"), HQ: []profile.Item{{ID: 1}}}

	got := fixedScorer(t).Score(inv, tgt)

	assert.Greater(t, got.Dimensions.Industry, 0.4)
	assert.InDelta(t, 1.0, got.Dimensions.Geography, 1e-9)
	assert.InDelta(t, neutral, got.Dimensions.Financial, 1e-9)
	assert.InDelta(t, neutral, got.Dimensions.Profile, 1e-9)
	assert.InDelta(t, neutral, got.Dimensions.Timeline, 1e-9)
	assert.InDelta(t, neutral, got.Dimensions.Ownership, 1e-9)

	w := DefaultWeights()
	want := 100 * (w.Industry*got.Dimensions.Industry + w.Geography + neutral*(w.Financial+w.Profile+w.Timeline+w.Ownership))
	assert.InDelta(t, want, float64(got.Total), 0.5)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got.ComputedAt)
}

func TestScore_EmptyProfilesAreNeutral(t *testing.T) {
	got := fixedScorer(t).Score(profile.Investor{}, profile.Target{})
	assert.Equal(t, 50, got.Total)
}

func TestScoreIndustry(t *testing.T) {
	tests := []struct {
		name string
		want []profile.Item
		have []profile.Item
		min  float64
		max  float64
	}{
		{"no preference", nil, names("Retail"), 0.5, 0.5},
		{"no target data", names("Retail"), nil, 0.3, 0.3},
		{"exact overlap gets bonus", names("Retail", "Healthcare"), names("retail"), 0.7, 0.7},
		{"full overlap capped", names("Retail"), names("RETAIL"), 1.0, 1.0},
		{"portmanteau", names("Fintech"), names("Financial Technology"), 0.8, 0.8},
		{"typo", names("Healthcare"), names("Helthcare"), 0.85, 1.0},
		{"unrelated", names("Mining"), names("Retail"), 0, 0.4},
		{"same id, investor has no name", []profile.Item{{ID: 3}}, []profile.Item{{ID: 3, Name: "Fintech"}}, 1.0, 1.0},
		{"same id, target has no name", []profile.Item{{ID: 3, Name: "Fintech"}}, []profile.Item{{ID: 3}}, 1.0, 1.0},
		{"overlap counted by id", []profile.Item{{ID: 3, Name: "Retail"}, {ID: 4}}, []profile.Item{{ID: 4, Name: "Mining"}}, 0.7, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreIndustry(tt.want, tt.have)
			assert.GreaterOrEqual(t, got, tt.min-1e-9)
			assert.LessOrEqual(t, got, tt.max+1e-9)
		})
	}
}

func TestScoreGeography(t *testing.T) {
	sg := profile.Item{ID: 131, Name: "Singapore"}
	my := profile.Item{ID: 124, Name: "Malaysia"}
	vn := profile.Item{Name: "Vietnam"}

	tests := []struct {
		name      string
		want      []profile.Item
		hq        []profile.Item
		operating []profile.Item
		score     float64
	}{
		{"no preference", nil, []profile.Item{sg}, nil, 0.5},
		{"no target data", []profile.Item{sg}, nil, nil, 0.3},
		{"hq match by id", []profile.Item{{ID: 131}}, []profile.Item{sg}, nil, 1.0},
		{"hq match by name", []profile.Item{{Name: "singapore"}}, []profile.Item{{Name: "Singapore"}}, nil, 1.0},
		{"operating only", []profile.Item{my}, []profile.Item{sg}, []profile.Item{my}, 0.8},
		{"no overlap", []profile.Item{vn}, []profile.Item{sg}, []profile.Item{my}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.score, scoreGeography(tt.want, tt.hq, tt.operating), 1e-9)
		})
	}
}

func TestIntervalFit(t *testing.T) {
	assert.Nil(t, intervalFit(nil, nil, budgetMiss))
	assert.InDelta(t, 0.4, *intervalFit(ptrRange(1, 2), nil, budgetMiss), 1e-9)
	assert.InDelta(t, 0.4, *intervalFit(nil, ptrRange(1, 2), budgetMiss), 1e-9)
	assert.InDelta(t, 1.0, *intervalFit(ptrRange(10, 100), ptrRange(20, 30), budgetMiss), 1e-9)
	assert.InDelta(t, 1.0, *intervalFit(ptrRange(20, 30), ptrRange(10, 100), budgetMiss), 1e-9)
	assert.InDelta(t, 0.7, *intervalFit(ptrRange(10, 50), ptrRange(40, 100), budgetMiss), 1e-9)
	assert.InDelta(t, 0.2, *intervalFit(ptrRange(10, 20), ptrRange(30, 40), flatMiss(0.2)), 1e-9)
}

func TestBudgetMiss(t *testing.T) {
	// gap 10 over a combined extent of 30.
	assert.InDelta(t, (1-10.0/30.0)*0.5, budgetMiss(profile.Range{Min: 10, Max: 20}, profile.Range{Min: 30, Max: 40}), 1e-9)
	assert.InDelta(t, 0.0, budgetMiss(profile.Range{}, profile.Range{}), 1e-9)
}

func TestRevenueMiss(t *testing.T) {
	want := profile.Range{Min: 100, Max: 200}
	assert.InDelta(t, 0.7, revenueMiss(want, profile.Range{Min: 220, Max: 300}), 1e-9)
	assert.InDelta(t, 0.7, revenueMiss(want, profile.Range{Min: 50, Max: 75}), 1e-9)
	assert.InDelta(t, 0.3, revenueMiss(want, profile.Range{Min: 300, Max: 400}), 1e-9)
}

func TestScoreFinancial(t *testing.T) {
	assert.InDelta(t, neutral, scoreFinancial(profile.Investor{}, profile.Target{}), 1e-9)

	inv := profile.Investor{Budget: ptrRange(1e6, 5e6), EBITDA: ptrRange(1e6, 2e6)}
	tgt := profile.Target{ExpectedAmount: ptrRange(2e6, 3e6), EBITDA: ptrRange(5e6, 6e6)}
	// budget contained (1.0), ebitda miss (0.2), revenue absent on both sides.
	assert.InDelta(t, 0.6, scoreFinancial(inv, tgt), 1e-9)
}

func TestScoreProfile(t *testing.T) {
	inv := profile.Investor{
		EmployeeCount:   ptrRange(50, 200),
		YearsInBusiness: ptrRange(5, profile.Unbounded),
		CompanyTypes:    names("Private Limited"),
	}
	tgt := profile.Target{EmployeeCount: ptrRange(60, 180), YearFounded: 2012, CompanyType: "private limited"}
	assert.InDelta(t, 1.0, scoreProfile(inv, tgt, 2026), 1e-9)

	tgt.YearFounded = 2024
	// years miss (0.3) alongside two perfect fits.
	assert.InDelta(t, (1.0+0.3+1.0)/3, scoreProfile(inv, tgt, 2026), 1e-9)

	assert.InDelta(t, neutral, scoreProfile(profile.Investor{}, profile.Target{}, 2026), 1e-9)
}

func TestYearsFit(t *testing.T) {
	assert.Nil(t, yearsFit(nil, 0, 2026))
	assert.InDelta(t, 0.4, *yearsFit(nil, 2010, 2026), 1e-9)
	assert.InDelta(t, 0.4, *yearsFit(ptrRange(5, 10), 2030, 2026), 1e-9)
	assert.InDelta(t, 1.0, *yearsFit(ptrRange(5, 20), 2010, 2026), 1e-9)
	assert.InDelta(t, 0.3, *yearsFit(ptrRange(20, 30), 2010, 2026), 1e-9)
}

func TestCompanyTypeFit(t *testing.T) {
	assert.Nil(t, companyTypeFit(nil, ""))
	assert.InDelta(t, 0.4, *companyTypeFit(nil, "LLC"), 1e-9)
	assert.InDelta(t, 1.0, *companyTypeFit([]string{"Sole Proprietorship", "Private Limited"}, "PRIVATE LIMITED"), 1e-9)
	assert.InDelta(t, 1-4.0/15.0, *companyTypeFit([]string{"Private Limited"}, "Private Ltd"), 1e-9)
	assert.InDelta(t, 0.2, *companyTypeFit([]string{"Public"}, "Partnership"), 1e-9)
}

func TestScoreTimeline(t *testing.T) {
	tests := []struct {
		name string
		want string
		have string
		min  float64
		max  float64
	}{
		{"missing side", "", "Immediate", 0.5, 0.5},
		{"exact ignoring case", "Immediate", "immediate", 1.0, 1.0},
		{"flexible", "Flexible", "Long term (> 12 months)", 0.8, 0.8},
		{"one bucket apart", "Immediate (0-3 months)", "Short term (3-6 months)", 0.7, 0.7},
		{"two buckets apart", "Immediate", "Medium term", 0.4, 0.4},
		{"far apart", "Immediate", "Long term", 0.2, 0.2},
		{"same bucket by horizon", "within 6 months", "Short term", 1.0, 1.0},
		{"unmapped falls back to text", "Q3 2027", "Q4 2027", 0.85, 0.86},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreTimeline(tt.want, tt.have)
			assert.GreaterOrEqual(t, got, tt.min-1e-9)
			assert.LessOrEqual(t, got, tt.max+1e-9)
		})
	}
}

func TestScoreOwnership(t *testing.T) {
	tests := []struct {
		name string
		inv  profile.Investor
		tgt  profile.Target
		want float64
	}{
		{"negotiable", profile.Investor{Negotiable: true, Stake: profile.StakeMajority},
			profile.Target{MaxShareholding: ptrFloat64(10)}, 0.85},
		{"majority allowed", profile.Investor{Stake: profile.StakeMajority},
			profile.Target{MaxShareholding: ptrFloat64(60)}, 1.0},
		{"majority blocked", profile.Investor{Stake: profile.StakeMajority},
			profile.Target{MaxShareholding: ptrFloat64(49)}, 0.3},
		{"minority allowed", profile.Investor{Stake: profile.StakeMinority},
			profile.Target{MaxShareholding: ptrFloat64(10)}, 1.0},
		{"minority blocked", profile.Investor{Stake: profile.StakeMinority},
			profile.Target{MaxShareholding: ptrFloat64(0)}, 0.1},
		{"range inside", profile.Investor{AcquisitionPercent: ptrRange(20, 40)},
			profile.Target{MaxShareholding: ptrFloat64(49)}, 1.0},
		{"range partially below", profile.Investor{AcquisitionPercent: ptrRange(40, 60)},
			profile.Target{MaxShareholding: ptrFloat64(49)}, 0.7},
		{"range above", profile.Investor{AcquisitionPercent: ptrRange(60, 80)},
			profile.Target{MaxShareholding: ptrFloat64(49)}, 0.3},
		{"text match", profile.Investor{OwnershipText: "Significant minority (25–49%)"},
			profile.Target{InvestmentCondition: "significant minority (25-49%)"}, 1.0},
		{"no data", profile.Investor{}, profile.Target{}, 0.5},
		{"one side only", profile.Investor{Stake: profile.StakeMinority, OwnershipText: "Minority"},
			profile.Target{}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scoreOwnership(tt.inv, tt.tgt), 1e-9)
		})
	}
}

func TestValidateStatus(t *testing.T) {
	assert.NoError(t, ValidateStatus(StatusReviewed))
	assert.Error(t, ValidateStatus("archived"))
}

func TestNewRecord(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := NewRecord(1, 2, Score{Total: 70, Dimensions: Dimensions{Industry: 1}, ComputedAt: at})
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, 70, r.Total)
	assert.Equal(t, at, r.ComputedAt)
}

func rangeGen() *rapid.Generator[*profile.Range] {
	return rapid.Custom(func(t *rapid.T) *profile.Range {
		if rapid.Bool().Draw(t, "absent") {
			return nil
		}
		lo := rapid.Float64Range(0, 1e7).Draw(t, "lo")
		hi := rapid.Float64Range(lo, 2e7).Draw(t, "hi")
		return &profile.Range{Min: lo, Max: hi}
	})
}

func itemsGen() *rapid.Generator[[]profile.Item] {
	labels := []string{"Retail", "Fintech", "Financial Technology", "Healthcare", "Singapore", "Mining", ""}
	return rapid.Custom(func(t *rapid.T) []profile.Item {
		n := rapid.IntRange(0, 3).Draw(t, "n")
		out := make([]profile.Item, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, profile.Item{
				ID:   rapid.Int64Range(0, 5).Draw(t, "id"),
				Name: rapid.SampledFrom(labels).Draw(t, "name"),
			})
		}
		return out
	})
}

func TestScore_Property_Bounds(t *testing.T) {
	s := DefaultScorer()
	timelines := []string{"", "Immediate", "Short term", "Flexible", "Long term", "next spring"}
	rapid.Check(t, func(t *rapid.T) {
		inv := profile.Investor{
			Industries:         itemsGen().Draw(t, "inv_industries"),
			Countries:          itemsGen().Draw(t, "inv_countries"),
			Budget:             rangeGen().Draw(t, "budget"),
			EBITDA:             rangeGen().Draw(t, "inv_ebitda"),
			Revenue:            rangeGen().Draw(t, "inv_revenue"),
			EmployeeCount:      rangeGen().Draw(t, "inv_employees"),
			YearsInBusiness:    rangeGen().Draw(t, "years"),
			Timeline:           rapid.SampledFrom(timelines).Draw(t, "inv_timeline"),
			Stake:              rapid.SampledFrom([]string{"", profile.StakeMinority, profile.StakeMajority}).Draw(t, "stake"),
			Negotiable:         rapid.Bool().Draw(t, "negotiable"),
			AcquisitionPercent: rangeGen().Draw(t, "acq"),
		}
		tgt := profile.Target{
			Industries:         itemsGen().Draw(t, "tgt_industries"),
			HQ:                 itemsGen().Draw(t, "hq"),
			OperatingCountries: itemsGen().Draw(t, "operating"),
			ExpectedAmount:     rangeGen().Draw(t, "expected"),
			EBITDA:             rangeGen().Draw(t, "tgt_ebitda"),
			Revenue:            rangeGen().Draw(t, "tgt_revenue"),
			EmployeeCount:      rangeGen().Draw(t, "tgt_employees"),
			YearFounded:        rapid.IntRange(0, 2030).Draw(t, "founded"),
			Timeline:           rapid.SampledFrom(timelines).Draw(t, "tgt_timeline"),
		}
		if rapid.Bool().Draw(t, "has_max") {
			tgt.MaxShareholding = ptrFloat64(rapid.Float64Range(0, 100).Draw(t, "max_share"))
		}

		got := s.Score(inv, tgt)
		if got.Total < 0 || got.Total > 100 {
			t.Fatalf("total %d out of range", got.Total)
		}
		d := got.Dimensions
		for name, v := range map[string]float64{
			"industry": d.Industry, "geography": d.Geography, "financial": d.Financial,
			"profile": d.Profile, "timeline": d.Timeline, "ownership": d.Ownership,
		} {
			if v < 0 || v > 1 {
				t.Fatalf("%s dimension %f out of range", name, v)
			}
		}
		if again := s.Score(inv, tgt); again.Dimensions != got.Dimensions || again.Total != got.Total {
			t.Fatalf("non-deterministic score")
		}
	})
}
