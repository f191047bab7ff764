package validate

import (
	"errors"
	"testing"
)

func TestEmail(t *testing.T) {
	valid := []string{"alice@example.com", "a.b@sub.example.org", `"quoted name"@example.com`, "x@[10.0.0.1]"}
	for _, e := range valid {
		if err := Email(e); err != nil {
			t.Errorf("Email(%q) = %v, want nil", e, err)
		}
	}

	if err := Email(""); !errors.Is(err, ErrEmailRequired) {
		t.Errorf("expected ErrEmailRequired, got %v", err)
	}
	invalid := []string{"plain", "a@b", "a@@example.com", "a b@example.com", ".a@example.com"}
	for _, e := range invalid {
		if err := Email(e); !errors.Is(err, ErrEmailInvalid) {
			t.Errorf("Email(%q) = %v, want ErrEmailInvalid", e, err)
		}
	}
}

func TestPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "Passw0rd!", true},
		{"shortest", "aB3$ef", true},
		{"empty", "", false},
		{"too short", "aB3$e", false},
		{"too long", "aB3$aaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
		{"no digit", "Password!", false},
		{"no lower", "PASSW0RD!", false},
		{"no upper", "passw0rd!", false},
		{"no symbol", "Passw0rd", false},
		{"underscore is a word character", "Passw0rd_", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Password(tc.password)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
