package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// maxBodyBytes caps request payloads. Import batches are the largest.
const maxBodyBytes = 8 << 20

var payloadValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidationError lists the payload fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return strings.Join(e.Fields, "; ")
}

// decode reads a JSON body into dest and validates it.
func decode[T any](w http.ResponseWriter, r *http.Request, dest *T) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return eris.New("request body is required")
		}
		return eris.Wrap(err, "invalid request body")
	}
	return validatePayload(dest)
}

func validatePayload(v any) error {
	if err := payloadValidator.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			out := &ValidationError{Fields: make([]string, len(ve))}
			for i, fe := range ve {
				out.Fields[i] = formatFieldError(fe)
			}
			return out
		}
		return eris.Wrap(err, "validation failed")
	}
	return nil
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_without":
		return fmt.Sprintf("%s is required when %s is absent", field, strings.ToLower(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s entries", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
