package matching

import (
	"math"

	"github.com/sells-group/dealmatch/internal/profile"
	"github.com/sells-group/dealmatch/internal/textnorm"
)

// missFunc scores two parsed ranges that do not overlap.
type missFunc func(want, have profile.Range) float64

// scoreFinancial averages the budget, EBITDA, and revenue fits.
func scoreFinancial(inv profile.Investor, tgt profile.Target) float64 {
	return average(
		intervalFit(inv.Budget, tgt.ExpectedAmount, budgetMiss),
		intervalFit(inv.EBITDA, tgt.EBITDA, flatMiss(0.2)),
		intervalFit(inv.Revenue, tgt.Revenue, revenueMiss),
	)
}

// scoreProfile averages the employee-count, years-in-business, and
// company-type fits.
func scoreProfile(inv profile.Investor, tgt profile.Target, year int) float64 {
	return average(
		intervalFit(inv.EmployeeCount, tgt.EmployeeCount, flatMiss(0.2)),
		yearsFit(inv.YearsInBusiness, tgt.YearFounded, year),
		companyTypeFit(profile.Names(inv.CompanyTypes), tgt.CompanyType),
	)
}

// intervalFit applies the shared interval rule: nil when both sides lack
// data, 0.4 when only one side has it, 1.0 on containment, 0.7 on overlap,
// and miss otherwise.
func intervalFit(want, have *profile.Range, miss missFunc) *float64 {
	switch {
	case want == nil && have == nil:
		return nil
	case want == nil || have == nil:
		return ptr(0.4)
	}
	a, b := *want, *have
	switch {
	case a.Contains(b) || b.Contains(a):
		return ptr(1.0)
	case a.Overlaps(b):
		return ptr(0.7)
	default:
		return ptr(clamp01(miss(a, b)))
	}
}

// budgetMiss decays with the gap relative to the combined extent.
func budgetMiss(want, have profile.Range) float64 {
	span := want.Span(have)
	if span <= 0 {
		return 0
	}
	return math.Max(0, 1-want.Gap(have)/span) * 0.5
}

// revenueMiss gives 0.7 inside a ±30% band around the investor's range.
func revenueMiss(want, have profile.Range) float64 {
	if want.Scale(0.7, 1.3).Overlaps(have) {
		return 0.7
	}
	return 0.3
}

func flatMiss(v float64) missFunc {
	return func(profile.Range, profile.Range) float64 { return v }
}

// yearsFit checks the target's age against the investor's
// years-in-business range.
func yearsFit(want *profile.Range, founded, year int) *float64 {
	known := founded > 0 && founded <= year
	switch {
	case want == nil && !known:
		return nil
	case want == nil || !known:
		return ptr(0.4)
	}
	if want.ContainsValue(float64(year - founded)) {
		return ptr(1.0)
	}
	return ptr(0.3)
}

// companyTypeFit matches the target's company type against the investor's
// accepted types: exact 1.0, close text the similarity, otherwise 0.2.
func companyTypeFit(want []string, have string) *float64 {
	switch {
	case len(want) == 0 && have == "":
		return nil
	case len(want) == 0 || have == "":
		return ptr(0.4)
	}
	var best float64
	for _, w := range want {
		if textnorm.Fold(w) == textnorm.Fold(have) {
			return ptr(1.0)
		}
		best = math.Max(best, textnorm.EditSimilarity(textnorm.Normalize(w), textnorm.Normalize(have)))
	}
	if best >= 0.7 {
		return ptr(best)
	}
	return ptr(0.2)
}
