package domain

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	MinTitleLength = 2
	MaxTitleLength = 200
	MinRuntime     = 1
	MaxRuntime     = 600
	MinRating      = 0.0
	MaxRating      = 10.0
)

// FieldError names a single failing field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every rule a record breaks.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate applies the entry-form rules. The id is never checked: the store owns it.
func (m Movie) Validate() error {
	verr := &ValidationError{}

	title := strings.TrimSpace(m.PrimaryTitle)
	switch n := utf8.RuneCountInString(title); {
	case n == 0:
		verr.add("primaryTitle", "is required")
	case n < MinTitleLength || n > MaxTitleLength:
		verr.add("primaryTitle", "must be between %d and %d characters", MinTitleLength, MaxTitleLength)
	}

	if m.ReleaseDate == nil || m.ReleaseDate.IsZero() {
		verr.add("releaseDate", "is required")
	}

	if m.RuntimeMinutes != nil && (*m.RuntimeMinutes < MinRuntime || *m.RuntimeMinutes > MaxRuntime) {
		verr.add("runtimeMinutes", "must be between %d and %d", MinRuntime, MaxRuntime)
	}

	genres := 0
	for _, g := range m.Genres {
		if strings.TrimSpace(g) != "" {
			genres++
		}
	}
	if genres == 0 {
		verr.add("genres", "at least one genre is required")
	}

	if r := m.AverageRating; r != nil && (math.IsNaN(*r) || *r < MinRating || *r > MaxRating) {
		verr.add("averageRating", "must be between %g and %g", MinRating, MaxRating)
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
