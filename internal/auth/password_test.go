package auth

import (
	"errors"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		want     error
	}{
		{"valid", "Str0ngPass", nil},
		{"too short", "Ab1", ErrPasswordTooShort},
		{"no digit", "Abcdefghij", ErrPasswordNoDigit},
		{"no upper", "abcdefgh1", ErrPasswordNoUpper},
		{"no lower", "ABCDEFGH1", ErrPasswordNoLower},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidatePassword(tc.password); !errors.Is(err, tc.want) {
				t.Fatalf("ValidatePassword(%q) = %v, want %v", tc.password, err, tc.want)
			}
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Str0ngPass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "Str0ngPass" {
		t.Fatalf("hash must not equal the plaintext")
	}
	if !CheckPassword("Str0ngPass", hash) {
		t.Fatalf("correct password should verify")
	}
	if CheckPassword("Str0ngPasS", hash) {
		t.Fatalf("altered password must not verify")
	}
}

func TestAPIKeyRoundTrip(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	hash, err := HashAPIKey(key)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyAPIKey(key, hash) {
		t.Fatalf("generated key should verify against its hash")
	}
	if VerifyAPIKey(key+"x", hash) {
		t.Fatalf("modified key must not verify")
	}
}
