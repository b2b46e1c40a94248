// internal/profile/sqlite.go
//
// SQLite-backed profile store. The profiles table is created by the
// sql/*.sql migrations; recent words are stored as a JSON array in a TEXT
// column. Timestamps are RFC3339 strings, as elsewhere in the schema.

package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore implements Store over a *sql.DB.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already-open database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore { return &SQLiteStore{db: db} }

func (s *SQLiteStore) Get(ctx context.Context, userID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT user_id, level, coins, max_attempts, recent_words, theme, bonus_granted, last_active_at
        FROM profiles WHERE user_id=?`, userID)
	return scanRecord(row)
}

func (s *SQLiteStore) Insert(ctx context.Context, r *Record) error {
	words, err := json.Marshal(r.RecentWords)
	if err != nil {
		return fmt.Errorf("profile: marshal recent words: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO profiles (user_id, level, coins, max_attempts, recent_words, theme, bonus_granted, last_active_at)
        VALUES (?,?,?,?,?,?,?,?)`,
		r.UserID, r.Level, r.Coins, r.MaxAttempts, string(words), r.Theme,
		boolToInt(r.BonusGranted), r.LastActiveAt.UTC().Format(time.RFC3339))
	if err != nil {
		// UNIQUE violation on the primary key means the record exists.
		if existing, gerr := s.Get(ctx, r.UserID); gerr == nil && existing != nil {
			return ErrExists
		}
		return fmt.Errorf("profile: insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, r *Record) error {
	words, err := json.Marshal(r.RecentWords)
	if err != nil {
		return fmt.Errorf("profile: marshal recent words: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
        UPDATE profiles SET level=?, coins=?, max_attempts=?, recent_words=?, theme=?, bonus_granted=?, last_active_at=?
        WHERE user_id=?`,
		r.Level, r.Coins, r.MaxAttempts, string(words), r.Theme,
		boolToInt(r.BonusGranted), r.LastActiveAt.UTC().Format(time.RFC3339), r.UserID)
	if err != nil {
		return fmt.Errorf("profile: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, r *Record) error {
	words, err := json.Marshal(r.RecentWords)
	if err != nil {
		return fmt.Errorf("profile: marshal recent words: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO profiles (user_id, level, coins, max_attempts, recent_words, theme, bonus_granted, last_active_at)
        VALUES (?,?,?,?,?,?,?,?)
        ON CONFLICT(user_id) DO UPDATE SET
            level=excluded.level,
            coins=excluded.coins,
            max_attempts=excluded.max_attempts,
            recent_words=excluded.recent_words,
            theme=excluded.theme,
            bonus_granted=excluded.bonus_granted,
            last_active_at=excluded.last_active_at`,
		r.UserID, r.Level, r.Coins, r.MaxAttempts, string(words), r.Theme,
		boolToInt(r.BonusGranted), r.LastActiveAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("profile: upsert: %w", err)
	}
	return nil
}

// TopByLevel returns up to limit records ordered by level, then coins.
func (s *SQLiteStore) TopByLevel(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT user_id, level, coins, max_attempts, recent_words, theme, bonus_granted, last_active_at
        FROM profiles
        ORDER BY level DESC, coins DESC, last_active_at DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	var words string
	var bonus int
	var lastActive string
	err := row.Scan(&r.UserID, &r.Level, &r.Coins, &r.MaxAttempts, &words, &r.Theme, &bonus, &lastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile: scan: %w", err)
	}
	if words != "" {
		if err := json.Unmarshal([]byte(words), &r.RecentWords); err != nil {
			return nil, fmt.Errorf("profile: decode recent words: %w", err)
		}
	}
	r.BonusGranted = bonus == 1
	r.LastActiveAt, _ = time.Parse(time.RFC3339, lastActive)
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
