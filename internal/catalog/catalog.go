// Package catalog holds the controlled vocabularies (option catalogs) that
// free-typed values are resolved against, and the informal region alias table.
package catalog

import (
	"sort"
	"strings"

	"github.com/sells-group/dealmatch/internal/textnorm"
)

// Known catalog names.
const (
	Countries    = "countries"
	Industries   = "industries"
	Currencies   = "currencies"
	Ranks        = "ranks"
	Channels     = "channels"
	Statuses     = "statuses"
	Purposes     = "purposes"
	Conditions   = "conditions"
	Ownership    = "ownership"
	Timelines    = "timelines"
	CompanyTypes = "company_types"
)

// Option is one entry of a catalog.
type Option struct {
	ID     int64  `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Code   string `json:"code,omitempty" yaml:"code,omitempty"`     // two-letter country code
	Region bool   `json:"region,omitempty" yaml:"region,omitempty"` // synthetic region entry
}

// Catalog is an ordered, read-only list of options.
type Catalog struct {
	name    string
	options []Option
}

// New creates a catalog holding a copy of opts. Options without an ID are
// numbered by position. The countries catalog is ordered regions first,
// then alphabetically.
func New(name string, opts []Option) *Catalog {
	cp := make([]Option, len(opts))
	copy(cp, opts)
	for i := range cp {
		if cp[i].ID == 0 {
			cp[i].ID = int64(i + 1)
		}
	}
	if name == Countries {
		cp = OrderCountries(cp)
	}
	return &Catalog{name: name, options: cp}
}

// Name returns the catalog name.
func (c *Catalog) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Len returns the number of options.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.options)
}

// Options returns a copy of the options in catalog order.
func (c *Catalog) Options() []Option {
	if c == nil {
		return nil
	}
	cp := make([]Option, len(c.options))
	copy(cp, c.options)
	return cp
}

// Names returns the display names in catalog order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.options))
	for i, o := range c.options {
		names[i] = o.Name
	}
	return names
}

// Lookup finds an option by display name, ignoring case and dash style.
func (c *Catalog) Lookup(name string) (Option, bool) {
	if c == nil {
		return Option{}, false
	}
	key := textnorm.Fold(name)
	if key == "" {
		return Option{}, false
	}
	for _, o := range c.options {
		if textnorm.Fold(o.Name) == key {
			return o, true
		}
	}
	return Option{}, false
}

// ByCode finds the (non-region) option owning a two-letter code.
func (c *Catalog) ByCode(code string) (Option, bool) {
	if c == nil {
		return Option{}, false
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Option{}, false
	}
	for _, o := range c.options {
		if !o.Region && strings.EqualFold(o.Code, code) {
			return o, true
		}
	}
	return Option{}, false
}

// ByID finds an option by its identifier.
func (c *Catalog) ByID(id int64) (Option, bool) {
	if c == nil {
		return Option{}, false
	}
	for _, o := range c.options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// OrderCountries returns opts with region entries first (in their given
// order) followed by literal countries sorted by name.
func OrderCountries(opts []Option) []Option {
	var regions, countries []Option
	for _, o := range opts {
		if o.Region {
			regions = append(regions, o)
		} else {
			countries = append(countries, o)
		}
	}
	sort.SliceStable(countries, func(i, j int) bool {
		return strings.ToLower(countries[i].Name) < strings.ToLower(countries[j].Name)
	})
	return append(regions, countries...)
}
