// internal/game/progression.go
//
// Cross-round progression: level, attempt budget, coin balance, and the
// recent word/theme history used to bias selection away from repeats.
// The in-memory Progression is a cache of the player's profile record;
// profile sync keeps the two eventually consistent.

package game

const (
	// DefaultMaxAttempts is the attempt budget restored on every win.
	DefaultMaxAttempts = 10
	// LossPenalty is subtracted from the budget on a loss that keeps the level.
	LossPenalty = 2

	maxRecentWords  = 30
	maxRecentThemes = 3
)

// Progression is the persisted per-player state.
type Progression struct {
	Level        int      `json:"level"`
	MaxAttempts  int      `json:"maxAttempts"`
	Coins        int      `json:"coins"`
	RecentWords  []string `json:"recentWords"`
	RecentThemes []string `json:"recentThemes"`
	PlayerName   string   `json:"playerName"`
}

// NewProgression returns first-run defaults.
func NewProgression() Progression {
	return Progression{Level: 1, MaxAttempts: DefaultMaxAttempts}
}

// PushHistory records a freshly selected word and theme, most-recent-first,
// de-duplicated and bounded.
func (p *Progression) PushHistory(word, theme string) {
	p.RecentWords = pushFront(p.RecentWords, word, maxRecentWords)
	p.RecentThemes = pushFront(p.RecentThemes, theme, maxRecentThemes)
}

// pushFront moves v to the front of list, dropping any previous occurrence
// and truncating to limit.
func pushFront(list []string, v string, limit int) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, v)
	for _, s := range list {
		if s == v {
			continue
		}
		out = append(out, s)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
