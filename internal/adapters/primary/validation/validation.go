// Package validation parses request parameters and collects every problem
// into one ValidationErrors so a caller sees all bad fields at once.
package validation

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
)

type Validator struct {
	fields *apperrors.ValidationErrors
}

func NewValidator() *Validator {
	return &Validator{fields: apperrors.NewValidationErrors()}
}

func (v *Validator) HasErrors() bool { return v.fields.HasErrors() }

func (v *Validator) Errors() *apperrors.ValidationErrors { return v.fields }

// Err returns the collected errors, or nil when there are none.
func (v *Validator) Err() error {
	if !v.fields.HasErrors() {
		return nil
	}
	return v.fields
}

// Range records a field error when value lies outside [lo, hi].
func (v *Validator) Range(field string, value, lo, hi int) *Validator {
	if value < lo || value > hi {
		v.fields.Add(field, fmt.Sprintf("Must be between %d and %d", lo, hi))
	}
	return v
}

// OneOf accepts an empty value; anything else must be listed.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value != "" && !slices.Contains(allowed, value) {
		v.fields.Add(field, "Must be one of: "+strings.Join(allowed, ", "))
	}
	return v
}

func (v *Validator) Custom(field string, ok bool, message string) *Validator {
	if !ok {
		v.fields.Add(field, message)
	}
	return v
}

// ID parses a positive integer identifier. Failures are recorded and 0 is
// returned.
func (v *Validator) ID(field, raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		v.fields.Add(field, "Must be a positive integer")
		return 0
	}
	return id
}

// OptionalID parses an optional positive integer query parameter.
func (v *Validator) OptionalID(r *http.Request, key string) *int64 {
	raw, ok := query(r, key)
	if !ok {
		return nil
	}
	if id := v.ID(key, raw); id != 0 {
		return &id
	}
	return nil
}

// Int parses an integer query parameter, recording malformed values.
func (v *Validator) Int(r *http.Request, key string, fallback int) int {
	raw, ok := query(r, key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		v.fields.Add(key, "Must be an integer")
		return fallback
	}
	return n
}

// ParseBoolQueryParam reads a boolean flag. Unparseable values fall back
// silently; flags only narrow a listing.
func ParseBoolQueryParam(r *http.Request, key string, fallback bool) bool {
	raw, ok := query(r, key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}

func query(r *http.Request, key string) (string, bool) {
	raw := r.URL.Query().Get(key)
	return raw, raw != ""
}
