package authutil

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name string
		pw   string
		want error
	}{
		{"signup minimum", "secret1", nil},
		{"exactly six", "abcdef", nil},
		{"at max length", strings.Repeat("v", MaxPasswordLength), nil},
		{"empty", "", ErrPasswordTooShort},
		{"five chars", "abcde", ErrPasswordTooShort},
		{"over max length", strings.Repeat("v", MaxPasswordLength+1), ErrPasswordTooLong},
		{"common", "password", ErrPasswordCommon},
		{"common digits", "123456", ErrPasswordCommon},
		{"common any case", "LetMeIn", ErrPasswordCommon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidatePassword(tt.pw); !errors.Is(got, tt.want) {
				t.Errorf("ValidatePassword(%q) = %v, want %v", tt.pw, got, tt.want)
			}
		})
	}
}

func TestHashAndCheck(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash %q is not a bcrypt hash", hash)
	}

	if !CheckPassword("secret1", hash) {
		t.Error("matching password rejected")
	}
	if CheckPassword("secret2", hash) {
		t.Error("wrong password accepted")
	}
	if CheckPassword("", hash) || CheckPassword("secret1", "") {
		t.Error("blank input must never match")
	}
}

func TestHashPassword_Salted(t *testing.T) {
	a, err := HashPassword("volunteer-42")
	if err != nil {
		t.Fatal(err)
	}
	b, err := HashPassword("volunteer-42")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two hashes of one password should differ")
	}
}

func TestHashPassword_TruncatesPast72Bytes(t *testing.T) {
	long := strings.Repeat("n", 80)
	hash, err := HashPassword(long)
	if err != nil {
		t.Fatalf("HashPassword on long input: %v", err)
	}
	if !CheckPassword(long, hash) {
		t.Error("long password should verify against its own hash")
	}
	if !CheckPassword(long[:72], hash) {
		t.Error("bcrypt only reads the first 72 bytes")
	}
}

func TestPasswordRules(t *testing.T) {
	if !strings.Contains(PasswordRules(), "6") {
		t.Errorf("rules %q should state the minimum length", PasswordRules())
	}
}
