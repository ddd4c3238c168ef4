package validator

import (
	"strings"
	"testing"
	"time"
)

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail("raj@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateEmail("raj@"); err != ErrInvalidEmail {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestValidateUsername(t *testing.T) {
	if err := ValidateUsername("raj_01"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateUsername("r"); err != ErrInvalidUsername {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err != ErrInvalidPassword {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestValidatePartyName(t *testing.T) {
	if err := ValidatePartyName("Raj Traders"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"", "   ", "a\nb", strings.Repeat("x", 121)} {
		if err := ValidatePartyName(name); err != ErrInvalidPartyName {
			t.Fatalf("expected ErrInvalidPartyName for %q, got %v", name, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2024-03-04", "04-03-2024", "04/03/2024", "2024-03-04T15:04:05+05:30"} {
		got, err := ParseDate(raw)
		if err != nil {
			t.Fatalf("ParseDate(%q): unexpected error: %v", raw, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", raw, got, want)
		}
	}
	if _, err := ParseDate("yesterday"); err != ErrInvalidDate {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
