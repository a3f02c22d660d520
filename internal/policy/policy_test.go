package policy

import (
	"testing"

	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
)

func TestCheckCommandAllowed(t *testing.T) {
	if err := CheckCommandAllowed(nil, "wallet send"); err != nil {
		t.Fatalf("unexpected error with empty allowlist: %v", err)
	}
	if err := CheckCommandAllowed([]string{"wallet balance"}, "Wallet  Balance"); err != nil {
		t.Fatalf("expected command to be allowed: %v", err)
	}
	err := CheckCommandAllowed([]string{"wallet balance"}, "wallet send")
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeBlocked {
		t.Fatalf("expected blocked error, got %v", err)
	}
}

func TestCheckCommandAllowedParentEntry(t *testing.T) {
	if err := CheckCommandAllowed([]string{"wallet"}, "wallet inscriptions"); err != nil {
		t.Fatalf("expected parent entry to allow subcommand: %v", err)
	}
	if err := CheckCommandAllowed([]string{"wall"}, "wallet inscriptions"); err == nil {
		t.Fatal("prefix must match whole command words")
	}
	if err := CheckCommandAllowed([]string{" ", "version"}, "wallet dump"); err == nil {
		t.Fatal("expected blank entries to allow nothing")
	}
}
