// internal/session/controller.go
//
// Per-player controller: owns the game machine, the progression cache, the
// lifecycle FSM, and the debounced profile syncer. All entry points take the
// controller mutex, so guesses are processed strictly in arrival order and
// a transition always completes before the next call is accepted.

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/worldepixel/worlde-server/internal/game"
	"github.com/worldepixel/worlde-server/internal/profile"
)

// ErrNotReady is returned for game actions outside the ready phase.
var ErrNotReady = errors.New("session: player is not ready")

// ErrNameAlreadySet rejects renames; the player name is immutable.
var ErrNameAlreadySet = errors.New("session: name already set")

// ErrInvalidName rejects names that are not 1–5 uppercase letters.
var ErrInvalidName = errors.New("session: name must be 1-5 uppercase letters, no spaces")

const maxNameLength = 5

// Snapshot is the client-facing view of one player's full state.
type Snapshot struct {
	Phase        Phase            `json:"phase"`
	Session      *game.Session    `json:"session,omitempty"`
	Progression  game.Progression `json:"progression"`
	Message      string           `json:"message"`
	WordLength   int              `json:"wordLength"`
	SyncStatus   string           `json:"syncStatus,omitempty"`
	BonusGranted bool             `json:"bonusGranted"`
}

// Controller binds one player's identity to their game state and sync loop.
type Controller struct {
	userID string
	guest  bool
	store  profile.Store

	mu           sync.Mutex
	fsm          *FSM
	machine      *game.Machine
	syncer       *profile.Syncer
	bonusGranted bool
	syncStatus   string // last non-fatal sync failure, user-visible
}

// NewController builds a controller in the unauthenticated phase.
// For guests the store should be a memory store; sync still runs against it,
// which keeps guest progression across reconnects within one process.
func NewController(userID string, guest bool, sel game.Selector, store profile.Store, debounce time.Duration) *Controller {
	c := &Controller{
		userID:  userID,
		guest:   guest,
		store:   store,
		fsm:     NewFSM(),
		machine: game.NewMachine(sel, game.NewProgression()),
	}
	_ = c.fsm.Boot()
	c.syncer = profile.NewSyncer(store, debounce, c.snapshotRecord, func(err error) {
		c.mu.Lock()
		c.syncStatus = "Salvataggio non riuscito, riprovo al prossimo aggiornamento."
		c.mu.Unlock()
	})
	return c
}

// UserID returns the owning identity key.
func (c *Controller) UserID() string { return c.userID }

// Guest reports whether this controller bypasses remote sync.
func (c *Controller) Guest() bool { return c.guest }

// LoadProfile fetches (or creates) the profile record and overwrites the
// in-memory progression from it. playerName is the name already attached to
// the identity, "" when onboarding still has to collect one; qualifying is
// whether the identity carries the bonus-qualifying linked provider.
func (c *Controller) LoadProfile(ctx context.Context, playerName string, qualifying bool, bonusCoins int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fsm.Authenticated(); err != nil {
		return err
	}

	defaults := recordFromProgression(c.userID, c.machine.Progression(), "")
	rec, _, err := profile.Reconcile(ctx, c.store, c.userID, defaults, qualifying, bonusCoins)
	if err != nil {
		// Non-fatal: fall back to in-memory defaults and let the player in.
		log.Warn().Err(err).Str("user", c.userID).Msg("profile fetch failed")
		c.syncStatus = "Profilo non raggiungibile, uso i dati locali."
		rec = defaults
	}
	c.bonusGranted = rec.BonusGranted

	prog := c.machine.Progression()
	prog.Level = rec.Level
	prog.Coins = rec.Coins
	prog.MaxAttempts = rec.MaxAttempts
	prog.RecentWords = append([]string(nil), rec.RecentWords...)
	if rec.Theme != "" {
		prog.RecentThemes = []string{rec.Theme}
	}
	prog.PlayerName = playerName
	c.machine.SetProgression(prog)

	return c.fsm.ProfileLoaded(prog.PlayerName != "")
}

// SetName validates and sets the player name once, completing onboarding.
func (c *Controller) SetName(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prog := c.machine.Progression()
	if prog.PlayerName != "" {
		return ErrNameAlreadySet
	}
	name = strings.TrimSpace(name)
	if !validName(name) {
		return ErrInvalidName
	}
	if err := c.fsm.NameSet(); err != nil {
		return err
	}
	prog.PlayerName = name
	c.machine.SetProgression(prog)
	c.syncer.Schedule()
	return nil
}

// GrantBonus awards the one-time provider-link bonus to a live session.
// Returns false when the bonus was already granted. The flag is persisted on
// the next sync so a reconnect cannot re-earn it.
func (c *Controller) GrantBonus(coins int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bonusGranted {
		return false
	}
	c.bonusGranted = true
	c.machine.AddCoins(coins)
	c.syncer.Schedule()
	return true
}

// StartRound begins a new round at the current level.
func (c *Controller) StartRound() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fsm.Playable() {
		return Snapshot{}, ErrNotReady
	}
	if err := c.machine.StartRound(); err != nil {
		return Snapshot{}, err
	}
	// History moved; persist it on the usual debounce cycle.
	c.syncer.Schedule()
	return c.snapshotLocked(), nil
}

// Guess applies one letter and schedules a sync when progression moved.
func (c *Controller) Guess(letter string) (Snapshot, game.Transition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fsm.Playable() {
		return Snapshot{}, game.Transition{}, ErrNotReady
	}
	tr, err := c.machine.Guess(letter)
	if err != nil {
		return Snapshot{}, game.Transition{}, err
	}
	if tr.ProgressionChanged {
		c.syncer.Schedule()
	}
	return c.snapshotLocked(), tr, nil
}

// Snapshot returns the current client-facing state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close tears the controller down: the pending sync timer is cancelled and
// a final flush is attempted so the last debounce window is not lost.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	playable := c.fsm.Playable()
	c.mu.Unlock()

	// Flush before signing out; afterwards the snapshot is gone.
	if playable {
		if err := c.syncer.Flush(ctx); err != nil {
			log.Warn().Err(err).Str("user", c.userID).Msg("final profile flush failed")
		}
	}
	c.syncer.Close()

	c.mu.Lock()
	c.fsm.SignedOut()
	c.mu.Unlock()
}

func (c *Controller) snapshotLocked() Snapshot {
	var wordLen int
	if s := c.machine.Session(); s != nil {
		wordLen = len(s.Revealed)
	}
	return Snapshot{
		Phase:        c.fsm.Phase(),
		Session:      c.machine.Session(),
		Progression:  c.machine.Progression(),
		Message:      c.machine.Message(),
		WordLength:   wordLen,
		SyncStatus:   c.syncStatus,
		BonusGranted: c.bonusGranted,
	}
}

// snapshotRecord feeds the syncer the state at timer-fire time.
// Returns nil before the profile phase is reached.
func (c *Controller) snapshotRecord() *profile.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fsm.Phase() == PhaseLoading || c.fsm.Phase() == PhaseUnauthenticated {
		return nil
	}
	prog := c.machine.Progression()
	theme := ""
	if len(prog.RecentThemes) > 0 {
		theme = prog.RecentThemes[0]
	}
	rec := recordFromProgression(c.userID, prog, theme)
	rec.BonusGranted = c.bonusGranted
	return rec
}

func recordFromProgression(userID string, p game.Progression, theme string) *profile.Record {
	return &profile.Record{
		UserID:      userID,
		Level:       p.Level,
		Coins:       p.Coins,
		MaxAttempts: p.MaxAttempts,
		RecentWords: append([]string(nil), p.RecentWords...),
		Theme:       theme,
	}
}

// validName enforces the onboarding rule: 1–5 chars, uppercase A–Z only.
func validName(name string) bool {
	if name == "" || len(name) > maxNameLength {
		return false
	}
	for _, r := range name {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
