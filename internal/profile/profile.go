// Package profile defines investor and target entity profiles and normalizes
// their loosely-typed JSON documents into typed views before scoring.
package profile

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Kind distinguishes investor (buyer) from target (seller) records.
type Kind string

// Entity kinds.
const (
	KindInvestor Kind = "investor"
	KindTarget   Kind = "target"
)

// ParseKind accepts "investor"/"buyer" and "target"/"seller".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "investor", "buyer", "b":
		return KindInvestor, nil
	case "target", "seller", "s":
		return KindTarget, nil
	default:
		return "", eris.Errorf("profile: unknown entity type %q", s)
	}
}

// Letter returns the entity-type letter used in reference codes.
func (k Kind) Letter() string {
	if k == KindTarget {
		return "S"
	}
	return "B"
}

// Table returns the store table holding this kind.
func (k Kind) Table() string {
	if k == KindTarget {
		return "targets"
	}
	return "investors"
}

// Record is a persisted profile: identity columns plus the raw JSON document
// with its company_overview, financial_details, and target_preferences sections.
type Record struct {
	ID            int64           `json:"id" db:"id"`
	Kind          Kind            `json:"kind" db:"kind"`
	ReferenceCode string          `json:"reference_code,omitempty" db:"reference_code"`
	Name          string          `json:"name" db:"name"`
	Active        bool            `json:"active" db:"active"`
	Data          json.RawMessage `json:"data" db:"data"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Document is a decoded profile document.
type Document map[string]any

// Decode parses a profile document. An empty payload decodes to an empty document.
func Decode(data []byte) (Document, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Document{}, nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "profile: decode document")
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Lookup returns the first non-empty value among dotted paths
// ("target_preferences.industries").
func (d Document) Lookup(paths ...string) any {
	for _, p := range paths {
		if v := d.at(p); !isEmpty(v) {
			return v
		}
	}
	return nil
}

// String returns the first non-empty value among paths rendered as text.
func (d Document) String(paths ...string) string {
	switch v := d.Lookup(paths...).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		return strings.TrimSpace(itemFromMap(v).Name)
	default:
		if f, ok := toFloat(v); ok {
			return formatNumber(f)
		}
		return ""
	}
}

func (d Document) at(path string) any {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
