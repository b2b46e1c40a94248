package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/worldepixel/worlde-server/internal/game"
	"github.com/worldepixel/worlde-server/internal/profile"
)

type fixedSelector struct{ word, theme string }

func (f fixedSelector) Select(level int, rw, rt []string) (string, string, error) {
	return f.word, f.theme, nil
}

func readyController(t *testing.T, store profile.Store) *Controller {
	t.Helper()
	c := NewController("u1", false, fixedSelector{word: "gatto", theme: "animali"}, store, 10*time.Millisecond)
	t.Cleanup(func() { c.Close(context.Background()) })
	if err := c.LoadProfile(context.Background(), "ANNA", false, 100); err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	return c
}

func TestGuessRejectedBeforeProfileLoaded(t *testing.T) {
	c := NewController("u1", false, fixedSelector{word: "gatto"}, profile.NewMemoryStore(), time.Hour)
	defer c.Close(context.Background())
	if _, _, err := c.Guess("a"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("got %v, want ErrNotReady", err)
	}
	if _, err := c.StartRound(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("got %v, want ErrNotReady", err)
	}
}

func TestLoadProfileCreatesAndEntersReady(t *testing.T) {
	store := profile.NewMemoryStore()
	c := readyController(t, store)

	snap := c.Snapshot()
	if snap.Phase != PhaseReady {
		t.Fatalf("phase = %q", snap.Phase)
	}
	if snap.Progression.PlayerName != "ANNA" {
		t.Fatalf("name = %q", snap.Progression.PlayerName)
	}
	if _, err := store.Get(context.Background(), "u1"); err != nil {
		t.Fatalf("profile not created: %v", err)
	}
}

func TestLoadProfileWithoutNameNeedsOnboarding(t *testing.T) {
	c := NewController("u1", false, fixedSelector{word: "gatto"}, profile.NewMemoryStore(), time.Hour)
	defer c.Close(context.Background())
	if err := c.LoadProfile(context.Background(), "", false, 100); err != nil {
		t.Fatal(err)
	}
	if c.Snapshot().Phase != PhaseNeedsName {
		t.Fatalf("phase = %q", c.Snapshot().Phase)
	}

	if err := c.SetName("troppo"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("lowercase name accepted: %v", err)
	}
	if err := c.SetName("ABCDEF"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("six-letter name accepted: %v", err)
	}
	if err := c.SetName("A B"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("name with space accepted: %v", err)
	}
	if err := c.SetName("PIPPO"); err != nil {
		t.Fatal(err)
	}
	if c.Snapshot().Phase != PhaseReady {
		t.Fatalf("phase = %q", c.Snapshot().Phase)
	}
	if err := c.SetName("ALTRO"); !errors.Is(err, ErrNameAlreadySet) {
		t.Fatalf("rename allowed: %v", err)
	}
}

func TestLoadProfileOverwritesProgression(t *testing.T) {
	store := profile.NewMemoryStore()
	_ = store.Insert(context.Background(), &profile.Record{
		UserID: "u1", Level: 7, Coins: 42, MaxAttempts: 6,
		RecentWords: []string{"vento"}, Theme: "natura",
	})
	c := readyController(t, store)

	p := c.Snapshot().Progression
	if p.Level != 7 || p.Coins != 42 || p.MaxAttempts != 6 {
		t.Fatalf("progression = %+v", p)
	}
	if len(p.RecentWords) != 1 || p.RecentWords[0] != "vento" {
		t.Fatalf("recent words = %v", p.RecentWords)
	}
	if len(p.RecentThemes) != 1 || p.RecentThemes[0] != "natura" {
		t.Fatalf("recent themes = %v", p.RecentThemes)
	}
}

func TestLoadProfileBonusOnce(t *testing.T) {
	store := profile.NewMemoryStore()
	c := NewController("u1", false, fixedSelector{word: "gatto"}, store, time.Hour)
	if err := c.LoadProfile(context.Background(), "ANNA", true, 100); err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	if snap.Progression.Coins != 100 || !snap.BonusGranted {
		t.Fatalf("snapshot = %+v", snap)
	}
	c.Close(context.Background())

	// A second sign-in with the provider still linked must not re-grant.
	c2 := NewController("u1", false, fixedSelector{word: "gatto"}, store, time.Hour)
	defer c2.Close(context.Background())
	if err := c2.LoadProfile(context.Background(), "ANNA", true, 100); err != nil {
		t.Fatal(err)
	}
	if got := c2.Snapshot().Progression.Coins; got != 100 {
		t.Fatalf("coins = %d, want 100", got)
	}
}

func TestLoadProfileFetchFailureFallsBack(t *testing.T) {
	c := NewController("u1", false, fixedSelector{word: "gatto"}, errorStore{}, time.Hour)
	defer c.Close(context.Background())
	if err := c.LoadProfile(context.Background(), "ANNA", false, 100); err != nil {
		t.Fatalf("fetch failure must be non-fatal: %v", err)
	}
	snap := c.Snapshot()
	if snap.Phase != PhaseReady {
		t.Fatalf("phase = %q", snap.Phase)
	}
	if snap.Progression.Level != 1 || snap.Progression.MaxAttempts != game.DefaultMaxAttempts {
		t.Fatalf("progression = %+v", snap.Progression)
	}
	if snap.SyncStatus == "" {
		t.Fatal("fetch failure not surfaced")
	}
}

type errorStore struct{}

func (errorStore) Get(context.Context, string) (*profile.Record, error) {
	return nil, errors.New("down")
}
func (errorStore) Insert(context.Context, *profile.Record) error { return errors.New("down") }
func (errorStore) Update(context.Context, *profile.Record) error { return errors.New("down") }
func (errorStore) Upsert(context.Context, *profile.Record) error { return errors.New("down") }

func TestWinSchedulesDebouncedSync(t *testing.T) {
	store := profile.NewMemoryStore()
	c := readyController(t, store)

	if _, err := c.StartRound(); err != nil {
		t.Fatal(err)
	}
	for _, l := range []string{"g", "a", "t", "o"} {
		if _, _, err := c.Guess(l); err != nil {
			t.Fatal(err)
		}
	}
	snap := c.Snapshot()
	if snap.Session.State != game.StateWon {
		t.Fatalf("state = %q", snap.Session.State)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, err := store.Get(context.Background(), "u1")
		if err == nil && rec.Level == 2 {
			if rec.Coins != 10 {
				t.Fatalf("coins = %d, want 10", rec.Coins)
			}
			if rec.Theme != "animali" {
				t.Fatalf("theme = %q", rec.Theme)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("win not persisted by debounced sync")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCloseFlushesAndCancels(t *testing.T) {
	store := profile.NewMemoryStore()
	c := NewController("u1", false, fixedSelector{word: "gatto", theme: "animali"}, store, time.Hour)
	if err := c.LoadProfile(context.Background(), "ANNA", false, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := c.StartRound(); err != nil {
		t.Fatal(err)
	}
	c.Close(context.Background())

	// The hour-long debounce was pending; Close flushed the state instead.
	rec, err := store.Get(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.RecentWords) != 1 || rec.RecentWords[0] != "gatto" {
		t.Fatalf("recent words = %v", rec.RecentWords)
	}
}

func TestRegistryLifecycle(t *testing.T) {
	store := profile.NewMemoryStore()
	r := NewRegistry(fixedSelector{word: "gatto"}, time.Hour)

	c1 := r.GetOrCreate("u1", false, store)
	if c2 := r.GetOrCreate("u1", false, store); c2 != c1 {
		t.Fatal("GetOrCreate returned a new controller for a live user")
	}
	if r.Get("u2") != nil {
		t.Fatal("Get returned controller for unknown user")
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d", r.Len())
	}
	r.Remove(context.Background(), "u1")
	if r.Get("u1") != nil || r.Len() != 0 {
		t.Fatal("controller not removed")
	}
}
