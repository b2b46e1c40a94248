// internal/profile/profile.go
//
// Persistent player profile: the authoritative copy of the in-memory
// progression, keyed by user identity. Store implementations live in
// sqlite.go (default backend), redis.go (alternative backend) and
// memory.go (guest mode, tests).

package profile

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound distinguishes a missing record from other store failures.
var ErrNotFound = errors.New("profile: not found")

// ErrExists is returned by Insert when a record is already present.
var ErrExists = errors.New("profile: already exists")

// Record is the persisted snapshot of a player's progression.
type Record struct {
	UserID       string    `json:"userId"`
	Level        int       `json:"level"`
	Coins        int       `json:"coins"`
	MaxAttempts  int       `json:"maxAttempts"`
	RecentWords  []string  `json:"recentWords"`
	Theme        string    `json:"theme"` // most recently played theme
	BonusGranted bool      `json:"bonusGranted"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// Store is the persistence interface for profile records.
type Store interface {
	// Get returns the record for userID, or ErrNotFound.
	Get(ctx context.Context, userID string) (*Record, error)

	// Insert creates a new record; ErrExists if one is already present.
	Insert(ctx context.Context, r *Record) error

	// Update overwrites the mutable fields of an existing record.
	Update(ctx context.Context, r *Record) error

	// Upsert writes the full snapshot, keyed by UserID (last write wins).
	Upsert(ctx context.Context, r *Record) error
}

// Reconcile loads the record for userID, creating it from defaults when
// missing, and applies the one-time linked-provider bonus at most once.
// The returned flag reports whether the bonus was granted by this call.
//
// At-most-once semantics: the persisted BonusGranted flag blocks re-granting
// across sessions; qualifying is whether the player currently has the
// qualifying provider linked.
func Reconcile(ctx context.Context, store Store, userID string, defaults *Record, qualifying bool, bonusCoins int) (*Record, bool, error) {
	rec, err := store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		created := *defaults
		created.UserID = userID
		created.LastActiveAt = time.Now().UTC()
		granted := false
		if qualifying && !created.BonusGranted {
			created.Coins += bonusCoins
			created.BonusGranted = true
			granted = true
		}
		if err := store.Insert(ctx, &created); err != nil {
			return nil, false, err
		}
		return &created, granted, nil
	}
	if err != nil {
		return nil, false, err
	}

	if qualifying && !rec.BonusGranted {
		rec.Coins += bonusCoins
		rec.BonusGranted = true
		rec.LastActiveAt = time.Now().UTC()
		if err := store.Update(ctx, rec); err != nil {
			return nil, false, err
		}
		return rec, true, nil
	}
	return rec, false, nil
}
