// internal/game/session.go
//
// Core types for a single round of the letter-guessing game.
// Defines:
//   - LetterStatus: per-letter keyboard outcome (hit/miss).
//   - RoundState: playing/won/lost, terminal once won or lost.
//   - Session: per-round mutable state, discarded at every round start.

package game

// LetterStatus records the outcome of a distinct guessed letter.
// Used only for keyboard affordance, never for game logic.
type LetterStatus string

const (
	StatusHit  LetterStatus = "hit"
	StatusMiss LetterStatus = "miss"
)

// RoundState is the lifecycle of one round.
// No transitions are defined out of won/lost except starting a new round.
type RoundState string

const (
	StatePlaying RoundState = "playing"
	StateWon     RoundState = "won"
	StateLost    RoundState = "lost"
)

// Placeholder fills unrevealed positions in Session.Revealed.
const Placeholder = "_"

// Session holds the state of one round. It is owned by the Machine and
// recreated from scratch by every StartRound.
type Session struct {
	Word         string                  `json:"-"` // never serialized to clients
	Theme        string                  `json:"theme"`
	Revealed     []string                `json:"revealed"` // same length as Word
	AttemptsLeft int                     `json:"attemptsLeft"`
	LetterStatus map[string]LetterStatus `json:"letterStatus"`
	State        RoundState              `json:"state"`
}

// newSession builds a fresh playing session for word.
func newSession(word, theme string, attempts int) *Session {
	revealed := make([]string, len(word))
	for i := range revealed {
		revealed[i] = Placeholder
	}
	return &Session{
		Word:         word,
		Theme:        theme,
		Revealed:     revealed,
		AttemptsLeft: attempts,
		LetterStatus: make(map[string]LetterStatus),
		State:        StatePlaying,
	}
}

// solved reports whether every position has been revealed.
func (s *Session) solved() bool {
	for _, c := range s.Revealed {
		if c == Placeholder {
			return false
		}
	}
	return true
}
