// Package importer validates bulk-import rows against per-entity column
// definitions and the option catalogs.
package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealmatch/internal/catalog"
	"github.com/sells-group/dealmatch/internal/profile"
)

// FieldType selects how a column is validated.
type FieldType string

// Column field types.
const (
	TypeText           FieldType = "text"
	TypeDropdown       FieldType = "dropdown"
	TypeCommaSeparated FieldType = "comma_separated"
	TypeNumber         FieldType = "number"
)

// Well-known column keys.
const (
	KeyReferenceCode = "reference_code"
	KeyOriginCountry = "origin_country"
)

// Column describes one importable field.
type Column struct {
	Key      string    `json:"key" validate:"required"`
	Label    string    `json:"label" validate:"required"`
	Required bool      `json:"required"`
	Type     FieldType `json:"type" validate:"required,oneof=text dropdown comma_separated number"`
	// Catalog is the vocabulary a dropdown resolves against, or the
	// match_against catalog of a comma-separated list.
	Catalog string `json:"catalog,omitempty" validate:"required_if=Type dropdown"`
	// Flexible passes unresolved list tokens through verbatim.
	Flexible bool `json:"flexible,omitempty"`
}

var investorColumns = []Column{
	{Key: KeyReferenceCode, Label: "Reference Code", Type: TypeText},
	{Key: "name", Label: "Company Name", Required: true, Type: TypeText},
	{Key: KeyOriginCountry, Label: "Origin Country", Required: true, Type: TypeDropdown, Catalog: catalog.Countries},
	{Key: "company_type", Label: "Company Type", Type: TypeDropdown, Catalog: catalog.CompanyTypes},
	{Key: "rank", Label: "Rank", Type: TypeDropdown, Catalog: catalog.Ranks},
	{Key: "status", Label: "Status", Type: TypeDropdown, Catalog: catalog.Statuses},
	{Key: "channel", Label: "Channel", Type: TypeDropdown, Catalog: catalog.Channels},
	{Key: "purpose", Label: "Investment Purpose", Type: TypeDropdown, Catalog: catalog.Purposes},
	{Key: "industries", Label: "Target Industries", Type: TypeCommaSeparated, Catalog: catalog.Industries, Flexible: true},
	{Key: "target_countries", Label: "Target Countries", Type: TypeCommaSeparated, Catalog: catalog.Countries},
	{Key: "currency", Label: "Currency", Type: TypeDropdown, Catalog: catalog.Currencies},
	{Key: "budget_min", Label: "Budget Min", Type: TypeNumber},
	{Key: "budget_max", Label: "Budget Max", Type: TypeNumber},
	{Key: "ebitda", Label: "Target EBITDA", Type: TypeText},
	{Key: "revenue", Label: "Target Revenue", Type: TypeText},
	{Key: "ownership", Label: "Ownership Preference", Type: TypeDropdown, Catalog: catalog.Ownership},
	{Key: "timeline", Label: "Investment Timeline", Type: TypeDropdown, Catalog: catalog.Timelines},
	{Key: "contact_email", Label: "Contact Email", Type: TypeText},
	{Key: "website", Label: "Website", Type: TypeText},
	{Key: "notes", Label: "Notes", Type: TypeText},
}

var targetColumns = []Column{
	{Key: KeyReferenceCode, Label: "Reference Code", Type: TypeText},
	{Key: "name", Label: "Company Name", Required: true, Type: TypeText},
	{Key: KeyOriginCountry, Label: "Origin Country", Required: true, Type: TypeDropdown, Catalog: catalog.Countries},
	{Key: "company_type", Label: "Company Type", Type: TypeDropdown, Catalog: catalog.CompanyTypes},
	{Key: "status", Label: "Status", Type: TypeDropdown, Catalog: catalog.Statuses},
	{Key: "channel", Label: "Channel", Type: TypeDropdown, Catalog: catalog.Channels},
	{Key: "industries", Label: "Industries", Type: TypeCommaSeparated, Catalog: catalog.Industries, Flexible: true},
	{Key: "operating_countries", Label: "Operating Countries", Type: TypeCommaSeparated, Catalog: catalog.Countries},
	{Key: "currency", Label: "Currency", Type: TypeDropdown, Catalog: catalog.Currencies},
	{Key: "year_founded", Label: "Year Founded", Type: TypeNumber},
	{Key: "employee_count", Label: "Employee Count", Type: TypeText},
	{Key: "revenue", Label: "Annual Revenue", Type: TypeNumber},
	{Key: "ebitda", Label: "EBITDA", Type: TypeNumber},
	{Key: "expected_amount", Label: "Expected Investment Amount", Type: TypeText},
	{Key: "max_shareholding", Label: "Max Investor Shareholding (%)", Type: TypeNumber},
	{Key: "investment_condition", Label: "Investment Condition", Type: TypeDropdown, Catalog: catalog.Conditions},
	{Key: "timeline", Label: "Sale Timeline", Type: TypeDropdown, Catalog: catalog.Timelines},
	{Key: "contact_email", Label: "Contact Email", Type: TypeText},
	{Key: "website", Label: "Website", Type: TypeText},
	{Key: "notes", Label: "Notes", Type: TypeText},
}

// Columns returns a copy of the column definitions for kind.
func Columns(kind profile.Kind) []Column {
	src := investorColumns
	if kind == profile.KindTarget {
		src = targetColumns
	}
	out := make([]Column, len(src))
	copy(out, src)
	return out
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateColumns checks column definitions for missing keys, unknown types,
// dropdowns without a catalog, catalogs absent from snap, and duplicate keys.
func ValidateColumns(cols []Column, snap *catalog.Snapshot) error {
	var errs []string
	seen := make(map[string]bool, len(cols))
	for i, c := range cols {
		if err := structValidator.Struct(c); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					errs = append(errs, fmt.Sprintf("column %d (%s): %s failed %s", i, c.Key, strings.ToLower(fe.Field()), fe.Tag()))
				}
			} else {
				errs = append(errs, fmt.Sprintf("column %d (%s): %v", i, c.Key, err))
			}
		}
		if c.Key != "" && seen[c.Key] {
			errs = append(errs, fmt.Sprintf("column %d: duplicate key %q", i, c.Key))
		}
		seen[c.Key] = true
		if c.Catalog != "" && snap != nil && !snap.Has(c.Catalog) {
			errs = append(errs, fmt.Sprintf("column %d (%s): unknown catalog %q", i, c.Key, c.Catalog))
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("importer: invalid columns: %s", strings.Join(errs, "; "))
	}
	return nil
}
