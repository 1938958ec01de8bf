package errors

import (
	"math"
	"strings"
	"unicode"
)

// MaxNameLength bounds member display names.
const MaxNameLength = 120

// ValidateMemberName validates a member display name.
//
// Names must be non-blank after trimming, at most [MaxNameLength] runes,
// and free of control characters (they end up inside SVG text and terminal
// tables).
func ValidateMemberName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return New(ErrCodeInvalidName, "member name cannot be empty")
	}

	if len([]rune(trimmed)) > MaxNameLength {
		return New(ErrCodeInvalidName, "member name too long (max %d characters)", MaxNameLength)
	}

	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidName, "member name contains invalid control characters")
		}
	}

	return nil
}

// ValidateCapital validates a starting capital amount.
// NaN, infinities and negative amounts are rejected.
func ValidateCapital(capital float64) error {
	if math.IsNaN(capital) || math.IsInf(capital, 0) {
		return New(ErrCodeInvalidCapital, "capital must be a finite number")
	}
	if capital < 0 {
		return New(ErrCodeInvalidCapital, "capital cannot be negative: %g", capital)
	}
	return nil
}

// ValidateMemberLevel validates the level of a member being added.
// Only levels 1 through 3 can be created; the root exists implicitly.
func ValidateMemberLevel(level int) error {
	if level < 1 || level > 3 {
		return New(ErrCodeInvalidLevel, "level must be 1, 2 or 3, got %d", level)
	}
	return nil
}

// ValidateMemberID validates a caller-supplied member identifier.
// Identifiers end up in URLs, SVG ids and file names, so path-like and
// control characters are rejected.
func ValidateMemberID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "member id cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "member id too long (max 128 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "member id contains invalid characters")
		}
	}

	for _, pattern := range []string{"/", "\\", "..", "\"", "<", ">", "&"} {
		if strings.Contains(id, pattern) {
			return New(ErrCodeInvalidInput, "member id contains invalid characters: %q", pattern)
		}
	}

	return nil
}
