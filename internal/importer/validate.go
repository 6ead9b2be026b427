package importer

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/dealmatch/internal/catalog"
	"github.com/sells-group/dealmatch/internal/profile"
	"github.com/sells-group/dealmatch/internal/resolve"
)

// Row statuses.
const (
	StatusValid = "valid"
	StatusError = "error"
)

// Row is one import row: raw cell values keyed by column key. Index is the
// caller's positional row number.
type Row struct {
	Index  int               `json:"row_index"`
	Values map[string]string `json:"values"`
}

// FieldError is a validation problem on one field.
type FieldError struct {
	Field       string   `json:"field"`
	Label       string   `json:"label"`
	Value       string   `json:"value,omitempty"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// RowResult is the validated form of one row. Data holds the resolved
// values that will be imported.
type RowResult struct {
	RowIndex int               `json:"row_index"`
	Status   string            `json:"status"`
	Data     map[string]string `json:"data"`
	Errors   []FieldError      `json:"errors"`
}

func (r *RowResult) addError(fe FieldError) {
	r.Errors = append(r.Errors, fe)
	r.Status = StatusError
}

// Summary counts rows by status.
type Summary struct {
	Total  int `json:"total"`
	Valid  int `json:"valid"`
	Errors int `json:"errors"`
}

// Result is the outcome of validating a batch.
type Result struct {
	Summary Summary     `json:"summary"`
	Rows    []RowResult `json:"rows"`
	Columns []Column    `json:"columns"`
}

// CodeChecker reports whether a reference code is already persisted.
type CodeChecker interface {
	ReferenceCodeExists(ctx context.Context, kind profile.Kind, code string) (bool, error)
}

// Validator validates rows against one catalog snapshot. It is read-only
// after construction and safe for concurrent use.
type Validator struct {
	snap     *catalog.Snapshot
	resolver *resolve.Resolver
	codes    CodeChecker
	columns  map[profile.Kind][]Column
}

// NewValidator creates a Validator over snap. codes may be nil, in which
// case the persisted-duplicate check is skipped.
func NewValidator(snap *catalog.Snapshot, codes CodeChecker) (*Validator, error) {
	if snap == nil {
		snap = catalog.Default()
	}
	v := &Validator{
		snap:     snap,
		resolver: resolve.New(snap.Aliases()),
		codes:    codes,
		columns: map[profile.Kind][]Column{
			profile.KindInvestor: Columns(profile.KindInvestor),
			profile.KindTarget:   Columns(profile.KindTarget),
		},
	}
	for _, cols := range v.columns {
		if err := ValidateColumns(cols, snap); err != nil {
			return nil, err
		}
	}
	return v, nil
}

var blankValues = map[string]bool{
	"":          true,
	"n/a":       true,
	"na":        true,
	"-":         true,
	"null":      true,
	"undefined": true,
}

// Sanitize trims v and collapses placeholder values to "".
func Sanitize(v string) string {
	v = strings.TrimSpace(v)
	if blankValues[strings.ToLower(v)] {
		return ""
	}
	return v
}

// ValidateRow validates one row for kind.
func (v *Validator) ValidateRow(ctx context.Context, row Row, kind profile.Kind) RowResult {
	res := RowResult{
		RowIndex: row.Index,
		Status:   StatusValid,
		Data:     make(map[string]string),
		Errors:   []FieldError{},
	}

	for _, col := range v.columns[kind] {
		val := Sanitize(row.Values[col.Key])
		if val == "" {
			if col.Required {
				res.addError(FieldError{Field: col.Key, Label: col.Label, Message: col.Label + " is required"})
			}
			continue
		}

		switch col.Type {
		case TypeDropdown:
			v.validateDropdown(&res, col, val)
		case TypeCommaSeparated:
			v.validateList(&res, col, val)
		case TypeNumber:
			validateNumber(&res, col, val)
		default:
			res.Data[col.Key] = val
		}
	}

	v.validateReferenceCode(ctx, &res, kind)
	return res
}

func (v *Validator) validateDropdown(res *RowResult, col Column, val string) {
	r := v.resolver.Resolve(val, v.snap.Get(col.Catalog).Names())
	if r.OK() {
		res.Data[col.Key] = r.Matched
		return
	}
	res.Data[col.Key] = val
	msg := fmt.Sprintf("%q is not a valid %s", val, col.Label)
	if r.NearMatch && len(r.Suggestions) > 0 {
		msg = fmt.Sprintf("%q is not a valid %s; did you mean %q?", val, col.Label, r.Suggestions[0])
	}
	res.addError(FieldError{Field: col.Key, Label: col.Label, Value: val, Message: msg, Suggestions: r.Suggestions})
}

// SplitList splits a comma- or semicolon-separated cell into trimmed,
// non-empty tokens.
func SplitList(val string) []string {
	parts := strings.FieldsFunc(val, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (v *Validator) validateList(res *RowResult, col Column, val string) {
	tokens := SplitList(val)
	if col.Catalog == "" {
		res.Data[col.Key] = strings.Join(tokens, ", ")
		return
	}

	options := v.snap.Get(col.Catalog).Names()
	kept := make([]string, 0, len(tokens))
	var unresolved, suggestions []string
	seen := make(map[string]bool)
	for _, tok := range tokens {
		r := v.resolver.Resolve(tok, options)
		switch {
		case r.OK():
			kept = append(kept, r.Matched)
		case col.Flexible:
			kept = append(kept, tok)
		default:
			unresolved = append(unresolved, tok)
			for _, s := range r.Suggestions {
				if !seen[s] {
					seen[s] = true
					suggestions = append(suggestions, s)
				}
			}
		}
	}

	if len(unresolved) > 0 {
		res.Data[col.Key] = val
		res.addError(FieldError{
			Field:       col.Key,
			Label:       col.Label,
			Value:       val,
			Message:     fmt.Sprintf("unrecognized %s: %s", col.Label, strings.Join(unresolved, ", ")),
			Suggestions: suggestions,
		})
		return
	}
	res.Data[col.Key] = strings.Join(kept, ", ")
}

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// ParseNumber strips everything but digits, '.', and '-' and parses the rest.
func ParseNumber(val string) (float64, bool) {
	cleaned := nonNumeric.ReplaceAllString(val, "")
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func validateNumber(res *RowResult, col Column, val string) {
	f, ok := ParseNumber(val)
	if !ok {
		res.Data[col.Key] = val
		res.addError(FieldError{Field: col.Key, Label: col.Label, Value: val, Message: fmt.Sprintf("%s must be a number", col.Label)})
		return
	}
	res.Data[col.Key] = strconv.FormatFloat(f, 'f', -1, 64)
}

// ValidateAll validates every row and then flags reference codes repeated
// within the batch.
func (v *Validator) ValidateAll(ctx context.Context, rows []Row, kind profile.Kind) Result {
	out := Result{
		Rows:    make([]RowResult, 0, len(rows)),
		Columns: Columns(kind),
	}
	for _, row := range rows {
		out.Rows = append(out.Rows, v.ValidateRow(ctx, row, kind))
	}

	out.Summary.Total = len(out.Rows)
	for _, r := range out.Rows {
		if r.Status == StatusValid {
			out.Summary.Valid++
		} else {
			out.Summary.Errors++
		}
	}

	markBatchDuplicates(&out)
	return out
}

const duplicateInFile = "duplicate reference code within file"

// markBatchDuplicates appends a duplicate error to every row sharing a
// reference code with another row. Rows flip from valid to error once and
// the summary follows; a row never carries the error twice.
func markBatchDuplicates(out *Result) {
	byCode := make(map[string][]int)
	for i, r := range out.Rows {
		if code := strings.ToUpper(r.Data[KeyReferenceCode]); code != "" {
			byCode[code] = append(byCode[code], i)
		}
	}

	codes := make([]string, 0, len(byCode))
	for code, idx := range byCode {
		if len(idx) > 1 {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	for _, code := range codes {
		idx := byCode[code]
		for _, i := range idx {
			row := &out.Rows[i]
			if hasDuplicateError(row) {
				continue
			}
			var others []string
			for _, j := range idx {
				if j != i {
					others = append(others, strconv.Itoa(out.Rows[j].RowIndex))
				}
			}
			wasValid := row.Status == StatusValid
			row.addError(FieldError{
				Field:   KeyReferenceCode,
				Label:   "Reference Code",
				Value:   code,
				Message: fmt.Sprintf("%s: also in row %s", duplicateInFile, strings.Join(others, ", ")),
			})
			if wasValid {
				out.Summary.Valid--
				out.Summary.Errors++
			}
		}
	}
}

func hasDuplicateError(r *RowResult) bool {
	for _, e := range r.Errors {
		if e.Field == KeyReferenceCode && strings.HasPrefix(e.Message, duplicateInFile) {
			return true
		}
	}
	return false
}

// logCheckFailure records a failed persisted-duplicate lookup. The check is
// skipped rather than failing the row.
func logCheckFailure(kind profile.Kind, code string, err error) {
	zap.L().Warn("importer: reference code lookup failed",
		zap.String("kind", string(kind)),
		zap.String("code", code),
		zap.Error(err),
	)
}
