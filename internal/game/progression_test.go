package game

import (
	"fmt"
	"testing"
)

func TestPushHistoryMoveToFront(t *testing.T) {
	p := NewProgression()
	p.PushHistory("gatto", "animali")
	p.PushHistory("pizza", "cibo")
	p.PushHistory("gatto", "animali")

	if len(p.RecentWords) != 2 || p.RecentWords[0] != "gatto" || p.RecentWords[1] != "pizza" {
		t.Fatalf("recent words = %v", p.RecentWords)
	}
	if len(p.RecentThemes) != 2 || p.RecentThemes[0] != "animali" {
		t.Fatalf("recent themes = %v", p.RecentThemes)
	}
}

func TestPushHistorySameWordTwice(t *testing.T) {
	p := NewProgression()
	p.PushHistory("gatto", "animali")
	p.PushHistory("gatto", "animali")
	if len(p.RecentWords) != 1 {
		t.Fatalf("duplicate entry: %v", p.RecentWords)
	}
}

func TestPushHistoryBounds(t *testing.T) {
	p := NewProgression()
	for i := 0; i < 100; i++ {
		p.PushHistory(fmt.Sprintf("parola%d", i), fmt.Sprintf("tema%d", i))
	}
	if len(p.RecentWords) != maxRecentWords {
		t.Errorf("recent words length = %d, want %d", len(p.RecentWords), maxRecentWords)
	}
	if len(p.RecentThemes) != maxRecentThemes {
		t.Errorf("recent themes length = %d, want %d", len(p.RecentThemes), maxRecentThemes)
	}
	if p.RecentWords[0] != "parola99" {
		t.Errorf("front = %q, want most recent", p.RecentWords[0])
	}
}

func TestNewProgressionDefaults(t *testing.T) {
	p := NewProgression()
	if p.Level != 1 || p.MaxAttempts != DefaultMaxAttempts || p.Coins != 0 {
		t.Fatalf("defaults = %+v", p)
	}
}
