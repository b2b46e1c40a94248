// internal/game/machine.go
//
// Game session state machine.
// Responsibilities:
//   - Start rounds via the word selection policy, updating history.
//   - Validate and apply single-letter guesses (trim, lowercase, a–z).
//   - Track state transitions: playing → won/lost.
//   - Apply progression arithmetic on win/loss and produce the exact
//     user-facing Italian message for every transition.
//
// Notes:
//   - Guessing an already-judged letter is allowed; a repeated miss still
//     costs an attempt (matches the reference behavior).
//   - The Machine is not safe for concurrent use; callers serialize guesses.

package game

import (
	"errors"
	"fmt"
	"strings"
)

// Selector narrows and samples the word bank for a round.
// Implemented by *wordbank.Bank.
type Selector interface {
	Select(level int, recentWords, recentThemes []string) (word, theme string, err error)
}

// ErrNotPlaying is returned by Guess when no round is in progress.
var ErrNotPlaying = errors.New("game: session is not playing")

// ErrNoRound is returned by Guess before the first StartRound.
var ErrNoRound = errors.New("game: no round started")

// TransitionKind classifies the outcome of a guess.
type TransitionKind string

const (
	TransitionInvalid TransitionKind = "invalid" // malformed input, no state change
	TransitionHit     TransitionKind = "hit"     // letter revealed, round continues
	TransitionWin     TransitionKind = "win"     // word completed
	TransitionMiss    TransitionKind = "miss"    // wrong letter, attempts remain
	TransitionLoss    TransitionKind = "loss"    // attempts exhausted
)

// Transition is the result of one Guess call.
type Transition struct {
	Kind    TransitionKind
	Message string
	// ProgressionChanged reports whether persistent state (level, coins,
	// attempt budget) moved; callers use it to schedule a profile sync.
	ProgressionChanged bool
}

// Message templates, reproduced verbatim for client compatibility.
const (
	msgRoundStart = "Inserisci una lettera per iniziare."
	msgInvalid    = "Inserisci una sola lettera (a-z)."
	msgGoodLetter = "Ottima lettera!"
	msgWin        = "Complimenti!! Hai indovinato la parola: %s. Livello %d!"
	msgMiss       = "Lettera errata! Tentativi rimasti: %d"
	msgLossRetry  = "Hai finito i tentativi! La parola era: %s. Riprovi il livello %d con %d tentativi."
	msgLossOver   = "Hai finito i tentativi! La parola era: %s. Game over. %s con %d tentativi."
	msgLevelDown  = "Scendi al livello %d"
	msgLevelFloor = "Resti al livello 1"
)

// Machine owns the per-round Session and the cross-round Progression and
// defines the transition function triggered by each letter guess.
type Machine struct {
	sel     Selector
	prog    Progression
	session *Session
	message string
}

// NewMachine builds a machine around an existing progression snapshot.
func NewMachine(sel Selector, prog Progression) *Machine {
	if prog.Level < 1 {
		prog.Level = 1
	}
	if prog.MaxAttempts < 1 {
		prog.MaxAttempts = DefaultMaxAttempts
	}
	return &Machine{sel: sel, prog: prog}
}

// Progression returns the current progression snapshot.
func (m *Machine) Progression() Progression { return m.prog }

// SetProgression overwrites the progression, e.g. after a profile fetch.
// Ignored mid-round to keep session arithmetic consistent.
func (m *Machine) SetProgression(p Progression) {
	if m.session != nil && m.session.State == StatePlaying {
		return
	}
	if p.Level < 1 {
		p.Level = 1
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	m.prog = p
}

// AddCoins credits coins outside the win path (e.g. an account-link bonus).
// Safe mid-round: coins never enter session arithmetic.
func (m *Machine) AddCoins(n int) {
	if n > 0 {
		m.prog.Coins += n
	}
}

// Session returns the active session, nil before the first round.
func (m *Machine) Session() *Session { return m.session }

// Message returns the current user-facing status line.
func (m *Machine) Message() string { return m.message }

// StartRound selects a fresh word for the current level, records it in the
// history, and resets the session. The previous session is discarded whatever
// state it was in.
func (m *Machine) StartRound() error {
	word, theme, err := m.sel.Select(m.prog.Level, m.prog.RecentWords, m.prog.RecentThemes)
	if err != nil {
		return err
	}
	m.prog.PushHistory(word, theme)
	m.session = newSession(word, theme, m.prog.MaxAttempts)
	m.message = msgRoundStart
	return nil
}

// Guess applies one letter to the active round.
func (m *Machine) Guess(raw string) (Transition, error) {
	if m.session == nil {
		return Transition{}, ErrNoRound
	}
	if m.session.State != StatePlaying {
		return Transition{}, ErrNotPlaying
	}

	letter := strings.ToLower(strings.TrimSpace(raw))
	if len(letter) != 1 || letter[0] < 'a' || letter[0] > 'z' {
		m.message = msgInvalid
		return Transition{Kind: TransitionInvalid, Message: msgInvalid}, nil
	}

	if strings.Contains(m.session.Word, letter) {
		return m.applyHit(letter), nil
	}
	return m.applyMiss(letter), nil
}

// applyHit reveals every matching position and checks for a win.
func (m *Machine) applyHit(letter string) Transition {
	s := m.session
	for i := 0; i < len(s.Word); i++ {
		if string(s.Word[i]) == letter {
			s.Revealed[i] = letter
		}
	}
	s.LetterStatus[letter] = StatusHit

	if !s.solved() {
		m.message = msgGoodLetter
		return Transition{Kind: TransitionHit, Message: msgGoodLetter}
	}

	// Win: level up, award coins, restore the attempt budget.
	s.State = StateWon
	m.prog.Level++
	award := s.AttemptsLeft
	if award < 1 {
		award = 1
	}
	m.prog.Coins += award
	m.prog.MaxAttempts = DefaultMaxAttempts

	m.message = fmt.Sprintf(msgWin, s.Word, m.prog.Level)
	return Transition{Kind: TransitionWin, Message: m.message, ProgressionChanged: true}
}

// applyMiss burns an attempt and, on exhaustion, applies the penalty rule.
func (m *Machine) applyMiss(letter string) Transition {
	s := m.session
	s.AttemptsLeft--
	s.LetterStatus[letter] = StatusMiss

	if s.AttemptsLeft > 0 {
		m.message = fmt.Sprintf(msgMiss, s.AttemptsLeft)
		return Transition{Kind: TransitionMiss, Message: m.message}
	}

	s.State = StateLost
	if m.prog.MaxAttempts-LossPenalty > 0 {
		// Retry the same level with a reduced budget.
		m.prog.MaxAttempts -= LossPenalty
		m.message = fmt.Sprintf(msgLossRetry, s.Word, m.prog.Level, m.prog.MaxAttempts)
		return Transition{Kind: TransitionLoss, Message: m.message, ProgressionChanged: true}
	}

	// Budget exhausted: restore it and drop a level, floored at 1.
	m.prog.MaxAttempts = DefaultMaxAttempts
	levelMsg := msgLevelFloor
	if m.prog.Level > 1 {
		m.prog.Level--
		levelMsg = fmt.Sprintf(msgLevelDown, m.prog.Level)
	}
	m.message = fmt.Sprintf(msgLossOver, s.Word, levelMsg, DefaultMaxAttempts)
	return Transition{Kind: TransitionLoss, Message: m.message, ProgressionChanged: true}
}
