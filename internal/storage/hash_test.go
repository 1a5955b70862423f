package storage

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "regular password", password: "correct horse battery"},
		{name: "long password", password: strings.Repeat("a", 100)},
		{name: "empty password", password: "", wantErr: ErrPasswordEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hashPasswordCost(tt.password, bcrypt.MinCost)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("hashPasswordCost() error = %v, want %v", err, tt.wantErr)
				}

				if hash != "" {
					t.Errorf("hash = %q, want empty on error", hash)
				}

				return
			}

			if err != nil {
				t.Fatalf("hashPasswordCost() unexpected error: %v", err)
			}

			if hash == tt.password {
				t.Error("hash equals plaintext")
			}

			if !ComparePassword(hash, tt.password) {
				t.Error("ComparePassword() = false for the hashed password")
			}

			if ComparePassword(hash, tt.password+"x") {
				t.Error("ComparePassword() = true for a different password")
			}
		})
	}
}

func TestHashPasswordIsSalted(t *testing.T) {
	first, err := hashPasswordCost("same-password", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	second, err := hashPasswordCost("same-password", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Error("identical passwords produced identical hashes")
	}
}

func TestComparePasswordRejectsBadInput(t *testing.T) {
	if ComparePassword("", "pw") {
		t.Error("empty hash matched")
	}

	if ComparePassword("not-a-bcrypt-hash", "pw") {
		t.Error("malformed hash matched")
	}

	if ComparePassword("$2a$04$abcdefghijklmnopqrstuv", "") {
		t.Error("empty password matched")
	}
}
