package profile

import (
	"context"
	"errors"
	"testing"
)

func defaults() *Record {
	return &Record{Level: 1, MaxAttempts: 10}
}

func TestReconcileCreatesMissingRecord(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec, granted, err := Reconcile(ctx, store, "u1", defaults(), false, 100)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if granted {
		t.Fatal("bonus granted without qualifying provider")
	}
	if rec.UserID != "u1" || rec.Level != 1 || rec.Coins != 0 {
		t.Fatalf("record = %+v", rec)
	}
	if _, err := store.Get(ctx, "u1"); err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
}

func TestReconcileCreatesWithBonus(t *testing.T) {
	store := NewMemoryStore()
	rec, granted, err := Reconcile(context.Background(), store, "u1", defaults(), true, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !granted || rec.Coins != 100 || !rec.BonusGranted {
		t.Fatalf("granted=%v record=%+v", granted, rec)
	}
}

func TestReconcileGrantsBonusOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Insert(ctx, &Record{UserID: "u1", Level: 3, Coins: 40, MaxAttempts: 6})

	rec, granted, err := Reconcile(ctx, store, "u1", defaults(), true, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !granted || rec.Coins != 140 || !rec.BonusGranted {
		t.Fatalf("first grant: granted=%v record=%+v", granted, rec)
	}
	// Existing fields are preserved, not reset to defaults.
	if rec.Level != 3 || rec.MaxAttempts != 6 {
		t.Fatalf("record overwritten: %+v", rec)
	}

	rec, granted, err = Reconcile(ctx, store, "u1", defaults(), true, 100)
	if err != nil {
		t.Fatal(err)
	}
	if granted || rec.Coins != 140 {
		t.Fatalf("second grant: granted=%v coins=%d", granted, rec.Coins)
	}
}

func TestReconcilePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("down")
	if _, _, err := Reconcile(context.Background(), failingStore{err: boom}, "u1", defaults(), false, 100); !errors.Is(err, boom) {
		t.Fatalf("got %v, want store error", err)
	}
}

// failingStore errors on every operation.
type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (*Record, error) { return nil, f.err }
func (f failingStore) Insert(context.Context, *Record) error        { return f.err }
func (f failingStore) Update(context.Context, *Record) error        { return f.err }
func (f failingStore) Upsert(context.Context, *Record) error        { return f.err }

func TestMemoryStoreCRUD(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	rec := &Record{UserID: "u1", Level: 2, Coins: 7, RecentWords: []string{"gatto"}}
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, rec); !errors.Is(err, ErrExists) {
		t.Fatalf("got %v, want ErrExists", err)
	}

	// Stored copy is isolated from later caller mutation.
	rec.RecentWords[0] = "mutato"
	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.RecentWords[0] != "gatto" {
		t.Fatalf("stored record aliased: %v", got.RecentWords)
	}

	got.Coins = 9
	if err := store.Update(ctx, got); err != nil {
		t.Fatal(err)
	}
	if err := store.Update(ctx, &Record{UserID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	if err := store.Upsert(ctx, &Record{UserID: "u2", Level: 5}); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.Get(ctx, "u2"); got.Level != 5 {
		t.Fatalf("upsert insert failed: %+v", got)
	}
}
