// internal/wordbank/select.go
//
// Word selection policy: given a difficulty level and recent word/theme
// history, narrow the bank and sample one word.
//
// Narrowing steps:
//   1. Per theme, keep words meeting the level's minimum length ("eligible");
//      drop themes with none.
//   2. Within each surviving theme, "filtered" = eligible minus recent words.
//   3. Candidate themes = those with non-empty filtered, else all survivors.
//   4. Prefer candidate themes not in recent-theme history; fall back to the
//      full candidate pool if that empties it.
//   5. Sample a theme uniformly at random.
//   6. Sample a word from its filtered set, else its eligible set.
//
// Sampling uses crypto/rand (rand.Int rejection-samples, so no modulo bias).

package wordbank

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// ErrExhausted is returned when no theme has a word long enough for the
// requested level. The caller must not start a round in that case.
var ErrExhausted = errors.New("wordbank: no eligible word for level")

// MinLengthForLevel returns the minimum acceptable word length for a level:
// 4 at level 1, growing by one every two levels, capped at 8.
func MinLengthForLevel(level int) int {
	if level < 1 {
		level = 1
	}
	n := 4 + (level-1)/2
	if n > 8 {
		return 8
	}
	return n
}

// Select picks a (word, theme) pair for the given level, biased away from
// recently played words and themes.
func (b *Bank) Select(level int, recentWords, recentThemes []string) (word, theme string, err error) {
	minLen := MinLengthForLevel(level)
	recentW := toSet(recentWords)
	recentT := toSet(recentThemes)

	type pool struct {
		theme    string
		eligible []string
		filtered []string
	}

	var surviving []pool
	anyFiltered := false
	for _, t := range b.names {
		var eligible, filtered []string
		for _, w := range b.themes[t] {
			if len(w) < minLen {
				continue
			}
			eligible = append(eligible, w)
			if _, played := recentW[w]; !played {
				filtered = append(filtered, w)
			}
		}
		if len(eligible) == 0 {
			continue
		}
		if len(filtered) > 0 {
			anyFiltered = true
		}
		surviving = append(surviving, pool{theme: t, eligible: eligible, filtered: filtered})
	}
	if len(surviving) == 0 {
		return "", "", ErrExhausted
	}

	// Step 3: themes with fresh words, if any exist.
	candidates := surviving
	if anyFiltered {
		candidates = candidates[:0:0]
		for _, p := range surviving {
			if len(p.filtered) > 0 {
				candidates = append(candidates, p)
			}
		}
	}

	// Step 4: prefer themes outside the recent-theme history.
	fresh := candidates[:0:0]
	for _, p := range candidates {
		if _, recent := recentT[p.theme]; !recent {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) > 0 {
		candidates = fresh
	}

	// Steps 5–6: uniform sampling.
	chosen := candidates[randIndex(len(candidates))]
	words := chosen.filtered
	if len(words) == 0 {
		words = chosen.eligible
	}
	return words[randIndex(len(words))], chosen.theme, nil
}

// randIndex returns a cryptographically uniform index in [0, n).
func randIndex(n int) int {
	if n <= 1 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, s := range list {
		m[s] = struct{}{}
	}
	return m
}
