package profile

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Ownership stances an investor can take.
const (
	StakeMinority = "minority"
	StakeMajority = "majority"
)

// Investor is the typed view of an investor profile used by the scorer.
// Absent fields stay nil or empty.
type Investor struct {
	ID                 int64
	Name               string
	Industries         []Item
	Countries          []Item
	Budget             *Range
	EBITDA             *Range
	Revenue            *Range
	EmployeeCount      *Range
	YearsInBusiness    *Range
	CompanyTypes       []Item
	Timeline           string
	Stake              string // StakeMinority, StakeMajority, or ""
	OwnershipText      string
	Negotiable         bool
	AcquisitionPercent *Range
}

// Target is the typed view of a target profile used by the scorer.
type Target struct {
	ID                  int64
	Name                string
	Industries          []Item
	HQ                  []Item
	OperatingCountries  []Item
	ExpectedAmount      *Range
	EBITDA              *Range
	Revenue             *Range
	EmployeeCount       *Range
	YearFounded         int
	CompanyType         string
	Timeline            string
	MaxShareholding     *float64
	InvestmentCondition string
}

// DecodeInvestor decodes rec.Data into an Investor view.
func DecodeInvestor(rec Record) (Investor, error) {
	doc, err := Decode(rec.Data)
	if err != nil {
		return Investor{}, eris.Wrapf(err, "profile: investor %d", rec.ID)
	}
	inv := NewInvestor(doc)
	inv.ID = rec.ID
	if rec.Name != "" {
		inv.Name = rec.Name
	}
	return inv, nil
}

// DecodeTarget decodes rec.Data into a Target view.
func DecodeTarget(rec Record) (Target, error) {
	doc, err := Decode(rec.Data)
	if err != nil {
		return Target{}, eris.Wrapf(err, "profile: target %d", rec.ID)
	}
	tgt := NewTarget(doc)
	tgt.ID = rec.ID
	if rec.Name != "" {
		tgt.Name = rec.Name
	}
	return tgt, nil
}

// NewInvestor builds an Investor view from a decoded document.
func NewInvestor(doc Document) Investor {
	inv := Investor{
		Name: doc.String("name", "company_overview.name", "company_overview.company_name"),
		Industries: Items(doc.Lookup(
			"target_preferences.industries",
			"target_preferences.preferred_industries",
			"target_preferences.industry",
			"company_overview.preferred_industries",
		)),
		Countries: Items(doc.Lookup(
			"target_preferences.countries",
			"target_preferences.target_countries",
			"target_preferences.target_country",
			"target_preferences.geography",
		)),
		Budget: rangeAt(doc,
			"financial_details.investment_budget",
			"target_preferences.investment_budget",
			"financial_details.budget",
		),
		EBITDA: rangeAt(doc,
			"target_preferences.ebitda",
			"target_preferences.ebitda_range",
			"financial_details.target_ebitda",
		),
		Revenue: rangeAt(doc,
			"target_preferences.revenue",
			"target_preferences.revenue_range",
			"financial_details.target_revenue",
		),
		EmployeeCount: rangeAt(doc,
			"target_preferences.employee_count",
			"target_preferences.employee_range",
		),
		YearsInBusiness: rangeAt(doc, "target_preferences.years_in_business"),
		CompanyTypes: Items(doc.Lookup(
			"target_preferences.company_types",
			"target_preferences.company_type",
		)),
		Timeline: doc.String(
			"target_preferences.investment_timeline",
			"target_preferences.timeline",
			"company_overview.investment_timeline",
		),
		OwnershipText: doc.String(
			"target_preferences.ownership_preference",
			"target_preferences.stake_preference",
			"target_preferences.ownership",
			"target_preferences.investment_condition",
		),
		AcquisitionPercent: rangeAt(doc,
			"target_preferences.acquisition_percentage",
			"target_preferences.stake_range",
		),
	}
	inv.Stake = classifyStake(inv.OwnershipText)
	inv.Negotiable = truthy(doc.Lookup(
		"target_preferences.ownership_negotiable",
		"target_preferences.is_negotiable",
	)) || mentionsNegotiable(inv.OwnershipText)
	return inv
}

// NewTarget builds a Target view from a decoded document.
func NewTarget(doc Document) Target {
	tgt := Target{
		Name: doc.String("name", "company_overview.name", "company_overview.company_name"),
		Industries: Items(doc.Lookup(
			"company_overview.industries",
			"company_overview.industry",
			"company_overview.industry_ops",
		)),
		HQ: Items(doc.Lookup(
			"company_overview.hq_country",
			"company_overview.origin_country",
			"company_overview.country",
		)),
		OperatingCountries: Items(doc.Lookup(
			"company_overview.operating_countries",
			"company_overview.countries",
		)),
		ExpectedAmount: rangeAt(doc,
			"financial_details.expected_investment_amount",
			"financial_details.expected_amount",
			"financial_details.asking_price",
		),
		EBITDA: rangeAt(doc, "financial_details.ebitda"),
		Revenue: rangeAt(doc,
			"financial_details.annual_revenue",
			"financial_details.revenue",
		),
		EmployeeCount: rangeAt(doc,
			"company_overview.employee_count",
			"company_overview.employees",
		),
		CompanyType: doc.String("company_overview.company_type"),
		Timeline: doc.String(
			"target_preferences.investment_timeline",
			"target_preferences.timeline",
			"company_overview.timeline",
		),
		InvestmentCondition: doc.String(
			"target_preferences.investment_condition",
			"financial_details.investment_condition",
			"company_overview.ownership_type",
		),
	}
	if f, ok := toFloat(doc.Lookup("company_overview.year_founded", "company_overview.founded")); ok {
		tgt.YearFounded = int(f)
	}
	if f, ok := toFloat(doc.Lookup(
		"financial_details.max_investor_shareholding",
		"target_preferences.max_investor_shareholding",
	)); ok {
		tgt.MaxShareholding = &f
	}
	return tgt
}

// Countries returns the target's HQ followed by its operating countries.
func (t Target) Countries() []Item {
	out := make([]Item, 0, len(t.HQ)+len(t.OperatingCountries))
	out = append(out, t.HQ...)
	return append(out, t.OperatingCountries...)
}

func rangeAt(doc Document, paths ...string) *Range {
	r, ok := ParseRange(doc.Lookup(paths...))
	if !ok {
		return nil
	}
	return &r
}

func classifyStake(text string) string {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return ""
	case strings.Contains(t, "minority"):
		return StakeMinority
	case strings.Contains(t, "majority"), strings.Contains(t, "full"),
		strings.Contains(t, "control"), strings.Contains(t, "100%"):
		return StakeMajority
	default:
		return ""
	}
}

func mentionsNegotiable(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "negotiable") || strings.Contains(t, "flexible")
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "true", "y", "1":
			return true
		}
	}
	return false
}
