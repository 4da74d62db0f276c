// Package parcel locates tax parcels in county feature services and maps
// their heterogeneous attribute schemas onto one canonical record shape.
package parcel

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxIdentifierLen bounds raw identifier input before any reshaping.
const MaxIdentifierLen = 64

// identifierAllowList matches letters, digits, dashes, spaces, and periods.
// Anything else is rejected before the value reaches an upstream filter
// expression.
var identifierAllowList = regexp.MustCompile(`^[A-Za-z0-9\-\s.]+$`)

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// Validation failure reasons.
const (
	ReasonEmpty        = "empty"
	ReasonTooLong      = "too long"
	ReasonInvalidChars = "invalid characters"
)

// ValidationError reports why a raw identifier was rejected. It is never
// retried and never reaches an upstream call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("parcel: invalid identifier: %s", e.Reason)
}

// Format describes the identifier shape one county's parcel source expects.
type Format struct {
	// Segments holds dash-separated group lengths, e.g. 2-2-2-5-3-4 for
	// Pinellas. Empty means no reshaping beyond validation.
	Segments []int

	// Dashed is true when the source expects dashes between segments and
	// false when it expects a bare digit run.
	Dashed bool
}

// Total returns the digit count of a fully-populated identifier.
func (f Format) Total() int {
	n := 0
	for _, s := range f.Segments {
		n += s
	}
	return n
}

// Normalize validates raw against the identifier allow-list and reshapes it
// into the form the county source expects. A bare digit run of exactly the
// expected length gains dashes at the fixed segment offsets; a dashed value
// headed for an undashed source loses them; anything else passes through
// trimmed but unchanged.
func Normalize(raw string, f Format) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &ValidationError{Reason: ReasonEmpty}
	}
	if len(trimmed) > MaxIdentifierLen {
		return "", &ValidationError{Reason: ReasonTooLong}
	}
	if !identifierAllowList.MatchString(trimmed) {
		return "", &ValidationError{Reason: ReasonInvalidChars}
	}

	if len(f.Segments) == 0 {
		return trimmed, nil
	}

	if !f.Dashed {
		return strings.ReplaceAll(trimmed, "-", ""), nil
	}

	// Insert dashes only when the input is a single digit run of the exact
	// expected total length.
	if digitsOnly.MatchString(trimmed) && len(trimmed) == f.Total() {
		parts := make([]string, 0, len(f.Segments))
		offset := 0
		for _, seg := range f.Segments {
			parts = append(parts, trimmed[offset:offset+seg])
			offset += seg
		}
		return strings.Join(parts, "-"), nil
	}

	return trimmed, nil
}
