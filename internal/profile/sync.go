// internal/profile/sync.go
//
// Debounced profile persistence. Each qualifying progression change calls
// Schedule, which restarts a fixed-delay timer; when the timer fires, the
// snapshot function is queried for the *current* state and the full record
// is upserted. Rapid changes (a quick run of guesses) coalesce into one
// write. Close cancels any pending write, so teardown never writes against
// a dead identity.
//
// Failures are non-fatal: they are logged, counted, and handed to the
// optional onError callback for a user-visible status string. There is no
// retry beyond the next naturally scheduled debounce cycle.

package profile

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultDebounce is the delay between the last change and the write.
const DefaultDebounce = 600 * time.Millisecond

// Syncer debounces upserts of a player's profile snapshot.
type Syncer struct {
	store    Store
	delay    time.Duration
	snapshot func() *Record // queried at fire time, never captured early
	onError  func(error)

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewSyncer builds a Syncer. snapshot must return the current full record;
// onError may be nil.
func NewSyncer(store Store, delay time.Duration, snapshot func() *Record, onError func(error)) *Syncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Syncer{store: store, delay: delay, snapshot: snapshot, onError: onError}
}

// Schedule (re)arms the debounce timer. Safe to call from any goroutine.
func (s *Syncer) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
}

// Flush writes the current snapshot immediately, cancelling any pending
// timer first. Used on sign-out to not lose the last debounce window.
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.write(ctx)
}

// Close cancels any pending write. Further Schedule calls are no-ops.
func (s *Syncer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Syncer) fire() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.write(ctx)
}

func (s *Syncer) write(ctx context.Context) error {
	rec := s.snapshot()
	if rec == nil {
		return nil
	}
	rec.LastActiveAt = time.Now().UTC()
	if err := s.store.Upsert(ctx, rec); err != nil {
		log.Warn().Err(err).Str("user", rec.UserID).Msg("profile sync failed")
		if s.onError != nil {
			s.onError(err)
		}
		return err
	}
	return nil
}
