package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("halisaha-pass")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "halisaha-pass" {
		t.Fatal("hash equals plaintext")
	}

	if !VerifyPassword(hash, "halisaha-pass") {
		t.Error("correct password rejected")
	}
	if VerifyPassword(hash, "wrong-pass") {
		t.Error("wrong password accepted")
	}
	if VerifyPassword("not-a-hash", "halisaha-pass") {
		t.Error("garbage hash accepted")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := ValidatePassword(strings.Repeat("x", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("expected ErrPasswordTooLong, got %v", err)
	}
	if err := ValidatePassword("long-enough"); err != nil {
		t.Errorf("valid password rejected: %v", err)
	}

	if _, err := HashPassword("nope"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("HashPassword skipped policy check: %v", err)
	}
}
