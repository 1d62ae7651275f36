package policy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStoreHistoryNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < DefaultHistoryLimit+5; i++ {
		a := Analysis{ID: fmt.Sprintf("a%02d", i), UserID: "u1", Hash: "h", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if _, err := store.Create(ctx, a); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if _, err := store.Create(ctx, Analysis{ID: "other", UserID: "u2", CreatedAt: base}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	hist, err := store.History(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != DefaultHistoryLimit || hist[0].ID != "a24" {
		t.Fatalf("history len %d first %s", len(hist), hist[0].ID)
	}
	latest, ok, err := store.FindByHash(ctx, "u1", "h")
	if err != nil || !ok || latest.ID != "a24" {
		t.Fatalf("FindByHash = %s %v %v", latest.ID, ok, err)
	}
	if _, ok, _ := store.FindByHash(ctx, "u2", "h"); ok {
		t.Fatalf("FindByHash crossed users")
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	a := Analysis{ID: "a", UserID: "u1", Evidence: []Evidence{{Sentences: []string{"x"}}}}
	if _, err := store.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, _ := store.Get(ctx, "u1", "a")
	got.Evidence[0].Sentences[0] = "mutated"
	again, _ := store.Get(ctx, "u1", "a")
	if again.Evidence[0].Sentences[0] != "x" {
		t.Fatalf("store shares memory with callers")
	}
	if _, err := store.Get(ctx, "u2", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get other user err = %v", err)
	}
}
