// internal/wordbank/wordbank.go
//
// Themed word bank for the Worlde game.
//
// Responsibilities:
//   - Load a theme → word list mapping from a YAML file, or fall back to the
//     embedded default bank.
//   - Normalize words (lowercase, trimmed, a–z only) and drop duplicates
//     within a theme while keeping file order.
//   - Expose read-only accessors; a Bank is never mutated after Load.
//
// File format (YAML):
//   animali:
//     - gatto
//     - delfino
//   cibo:
//     - pizza

package wordbank

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_bank.yaml
var embeddedBank []byte

// Bank is an immutable mapping from theme name to an ordered set of words.
type Bank struct {
	themes map[string][]string
	names  []string // sorted theme names, fixed iteration order
}

// Load reads a bank from path, or from the embedded default when path is "".
func Load(path string) (*Bank, error) {
	data := embeddedBank
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("wordbank: read %s: %w", path, err)
		}
		data = b
	}
	return parse(data)
}

// parse builds a Bank from YAML bytes, normalizing and de-duplicating words.
func parse(data []byte) (*Bank, error) {
	raw := map[string][]string{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("wordbank: parse: %w", err)
	}

	themes := make(map[string][]string, len(raw))
	for theme, words := range raw {
		theme = strings.TrimSpace(strings.ToLower(theme))
		if theme == "" {
			continue
		}
		seen := make(map[string]struct{}, len(words))
		var out []string
		for _, w := range words {
			w = strings.TrimSpace(strings.ToLower(w))
			if w == "" || !isAlpha(w) {
				continue
			}
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, w)
		}
		if len(out) > 0 {
			themes[theme] = out
		}
	}
	if len(themes) == 0 {
		return nil, errors.New("wordbank: no themes with valid words")
	}

	names := make([]string, 0, len(themes))
	for t := range themes {
		names = append(names, t)
	}
	sort.Strings(names)
	return &Bank{themes: themes, names: names}, nil
}

// Themes returns the theme names in sorted order.
func (b *Bank) Themes() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

// Words returns a copy of the word list for a theme (nil if unknown).
func (b *Bank) Words(theme string) []string {
	ws, ok := b.themes[theme]
	if !ok {
		return nil
	}
	out := make([]string, len(ws))
	copy(out, ws)
	return out
}

// Stats returns the number of themes and total words loaded.
func (b *Bank) Stats() (themes int, words int) {
	for _, ws := range b.themes {
		words += len(ws)
	}
	return len(b.themes), words
}

// isAlpha reports whether s is all lowercase ASCII letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
