package main

import (
	"context"
	"testing"
	"time"

	"github.com/joshsymonds/footprint/internal/account"
)

func TestParseChecklist(t *testing.T) {
	patch, err := parseChecklist([]string{"-password-changed", "-two-factor=false"})
	if err != nil {
		t.Fatalf("parseChecklist: %v", err)
	}
	if patch.PasswordChanged == nil || !*patch.PasswordChanged {
		t.Fatalf("password changed = %v", patch.PasswordChanged)
	}
	if patch.TwoFactorEnabled == nil || *patch.TwoFactorEnabled {
		t.Fatalf("two factor = %v", patch.TwoFactorEnabled)
	}
	if patch.AccountDeleted != nil || patch.ReviewedTerms != nil {
		t.Fatalf("unset items must stay nil: %+v", patch)
	}

	for _, bad := range [][]string{nil, {"-bogus"}, {"-reviewed-terms", "extra"}} {
		if _, err := parseChecklist(bad); err == nil {
			t.Fatalf("parseChecklist(%v) expected error", bad)
		}
	}
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	store := account.NewMemoryStore()
	saved, err := store.Upsert(ctx, account.Account{
		ID: account.NewID(), UserID: "u1", ServiceDomain: "acme.com", ServiceName: "acme.com",
		Category: account.CategoryOther, Status: account.StatusActive,
		FirstSeenDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), LastActivityDate: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, got []account.Account)
	}{
		{"list", []string{"list"}, func(t *testing.T, got []account.Account) {
			if len(got) != 1 {
				t.Fatalf("list = %d accounts", len(got))
			}
		}},
		{"confirm", []string{"confirm", saved.ID}, func(t *testing.T, got []account.Account) {
			if !got[0].UserConfirmed {
				t.Fatal("account not confirmed")
			}
		}},
		{"checklist", []string{"checklist", saved.ID, "-reviewed-terms"}, func(t *testing.T, got []account.Account) {
			if !got[0].Checklist.ReviewedTerms {
				t.Fatal("reviewed terms not set")
			}
		}},
		{"status", []string{"status", saved.ID, "archived"}, func(t *testing.T, got []account.Account) {
			if got[0].Status != account.StatusArchived {
				t.Fatalf("status = %s", got[0].Status)
			}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := dispatch(ctx, store, accountsConfig{user: "u1", args: tc.args})
			if err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			tc.check(t, got)
		})
	}

	for _, bad := range [][]string{{"status", saved.ID, "gone"}, {"confirm"}, {"explode"}} {
		if _, err := dispatch(ctx, store, accountsConfig{user: "u1", args: bad}); err == nil {
			t.Fatalf("dispatch(%v) expected error", bad)
		}
	}
}
