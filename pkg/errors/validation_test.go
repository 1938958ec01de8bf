package errors

import (
	"math"
	"strings"
	"testing"
)

func TestValidateMemberName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "Alice", false},
		{"valid with spaces", "Alice Smith", false},
		{"valid unicode", "Zoë", false},
		{"padded", "  Bob  ", false},

		{"empty", "", true},
		{"blank", "   ", true},
		{"too long", strings.Repeat("a", MaxNameLength+1), true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMemberName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMemberName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidName) {
				t.Errorf("ValidateMemberName(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidName)
			}
		})
	}
}

func TestValidateCapital(t *testing.T) {
	tests := []struct {
		name    string
		input   float64
		wantErr bool
	}{
		{"zero", 0, false},
		{"positive", 1500.5, false},
		{"negative", -1, true},
		{"NaN", math.NaN(), true},
		{"+Inf", math.Inf(1), true},
		{"-Inf", math.Inf(-1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCapital(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCapital(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateMemberLevel(t *testing.T) {
	for level := -1; level <= 5; level++ {
		err := ValidateMemberLevel(level)
		wantErr := level < 1 || level > 3
		if (err != nil) != wantErr {
			t.Errorf("ValidateMemberLevel(%d) error = %v, wantErr %v", level, err, wantErr)
		}
	}
}

func TestValidateMemberID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"uuid", "0b7e1f1c-8d1f-4b8e-9e0e-2a6f6b1f3c10", false},
		{"root", "me-user42", false},
		{"short", "a1", false},

		{"empty", "", true},
		{"space", "a b", true},
		{"slash", "a/b", true},
		{"traversal", "..", true},
		{"markup", "<b>", true},
		{"too long", strings.Repeat("x", 129), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMemberID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMemberID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
