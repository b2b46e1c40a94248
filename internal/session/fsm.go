// internal/session/fsm.go
//
// Player lifecycle finite state machine. Replaces the ad hoc boolean
// conjunctions of the reference client (loading && authReady && profileLoaded
// && nameSet) with explicit states and named transitions:
//
//   loading → unauthenticated            Boot
//   unauthenticated → profileLoading     Authenticated
//   profileLoading → needsName           ProfileLoaded (no player name yet)
//   profileLoading → ready               ProfileLoaded (name present)
//   needsName → ready                    NameSet
//   any → unauthenticated                SignedOut
//
// The game is playable only in ready; in particular guesses are rejected
// while a profile fetch is outstanding, so stale progression is never
// played against.

package session

import "fmt"

// Phase names the lifecycle states.
type Phase string

const (
	PhaseLoading         Phase = "loading"
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseProfileLoading  Phase = "profileLoading"
	PhaseNeedsName       Phase = "needsName"
	PhaseReady           Phase = "ready"
)

// ErrBadTransition reports a transition attempted from the wrong phase.
type ErrBadTransition struct {
	From  Phase
	Event string
}

func (e *ErrBadTransition) Error() string {
	return fmt.Sprintf("session: %s not allowed in phase %s", e.Event, e.From)
}

// FSM tracks one player's lifecycle phase. Not safe for concurrent use;
// the owning Controller serializes access.
type FSM struct {
	phase Phase
}

// NewFSM starts in loading.
func NewFSM() *FSM { return &FSM{phase: PhaseLoading} }

// Phase returns the current phase.
func (f *FSM) Phase() Phase { return f.phase }

// Boot completes startup: loading → unauthenticated.
func (f *FSM) Boot() error {
	if f.phase != PhaseLoading {
		return &ErrBadTransition{From: f.phase, Event: "Boot"}
	}
	f.phase = PhaseUnauthenticated
	return nil
}

// Authenticated records a usable identity: unauthenticated → profileLoading.
func (f *FSM) Authenticated() error {
	if f.phase != PhaseUnauthenticated {
		return &ErrBadTransition{From: f.phase, Event: "Authenticated"}
	}
	f.phase = PhaseProfileLoading
	return nil
}

// ProfileLoaded completes the profile fetch. The named guard decides whether
// onboarding still owes a player name.
func (f *FSM) ProfileLoaded(named bool) error {
	if f.phase != PhaseProfileLoading {
		return &ErrBadTransition{From: f.phase, Event: "ProfileLoaded"}
	}
	if named {
		f.phase = PhaseReady
	} else {
		f.phase = PhaseNeedsName
	}
	return nil
}

// NameSet completes onboarding: needsName → ready.
func (f *FSM) NameSet() error {
	if f.phase != PhaseNeedsName {
		return &ErrBadTransition{From: f.phase, Event: "NameSet"}
	}
	f.phase = PhaseReady
	return nil
}

// SignedOut is allowed from every phase.
func (f *FSM) SignedOut() {
	f.phase = PhaseUnauthenticated
}

// Playable reports whether guesses are accepted.
func (f *FSM) Playable() bool { return f.phase == PhaseReady }
