// internal/store/sqlite.go
//
// SQLite implementation of Store.
// Responsibilities:
//   - Opening the database file with safe defaults (WAL, busy timeout, IMMEDIATE tx locks).
//   - Applying embedded migrations (idempotent, recorded in _migrations).
//   - Score and chat queries.
//
// Timestamps are stored as RFC3339Nano text in UTC.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/InFirePro/alien/assets"
)

// SQLite is a Store backed by a single SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if missing) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

/**
 * openDB opens a SQLite database file.
 *
 * - Ensures parent directory exists for relative paths (e.g. ./data/alien.db).
 * - Configures busy timeout and WAL journaling.
 * - Uses BEGIN IMMEDIATE for transactions so read-then-write sequences
 *   take the write lock up front.
 */
func openDB(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", path+sep+"_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

/**
 * migrateSQLite applies the embedded sqlite migrations.
 *
 * - Uses a _migrations table to track applied files.
 * - Executes each script inside its own transaction, in lexical order.
 * - Skips scripts already recorded.
 */
func migrateSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	migrations, err := assets.Migrations("sqlite")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	for _, m := range migrations {
		var done int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM _migrations WHERE name=?`, m.Name).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", m.Name).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations(name) VALUES (?)`, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", m.Name, err)
		}
		log.Info().Str("migration", m.Name).Msg("applied")
	}
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func (s *SQLite) GetScore(ctx context.Context, name string) (*ScoreRecord, error) {
	var (
		r       ScoreRecord
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, score, updated_at FROM highscores WHERE name=?`, name,
	).Scan(&r.Name, &r.Score, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get score", err)
	}
	r.UpdatedAt = parseTime(updated)
	return &r, nil
}

func (s *SQLite) SetScore(ctx context.Context, name string, score int64, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO highscores (name, score, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET score=excluded.score, updated_at=excluded.updated_at`,
		name, score, formatTime(updatedAt),
	)
	return unavailable("set score", err)
}

// SetScoreIfHigher runs the compare and the write in one IMMEDIATE transaction.
func (s *SQLite) SetScoreIfHigher(ctx context.Context, name string, score int64, at time.Time) (SubmitOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SubmitOutcome{}, unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	var prev int64
	err = tx.QueryRowContext(ctx, `SELECT score FROM highscores WHERE name=?`, name).Scan(&prev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO highscores (name, score, updated_at) VALUES (?, ?, ?)`,
			name, score, formatTime(at)); err != nil {
			return SubmitOutcome{}, unavailable("insert score", err)
		}
		if err := tx.Commit(); err != nil {
			return SubmitOutcome{}, unavailable("commit", err)
		}
		return SubmitOutcome{Accepted: true}, nil
	case err != nil:
		return SubmitOutcome{}, unavailable("read score", err)
	}

	if prev >= score {
		return SubmitOutcome{Accepted: false, Previous: lo.ToPtr(prev)}, nil
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE highscores SET score=?, updated_at=? WHERE name=?`,
		score, formatTime(at), name); err != nil {
		return SubmitOutcome{}, unavailable("update score", err)
	}
	if err := tx.Commit(); err != nil {
		return SubmitOutcome{}, unavailable("commit", err)
	}
	return SubmitOutcome{Accepted: true, Previous: lo.ToPtr(prev)}, nil
}

func (s *SQLite) RenameScore(ctx context.Context, oldName, newName string, updatedAt time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM highscores WHERE name=?`, oldName).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("read score", err)
	}

	// Last write wins: the renamed record replaces whatever newName held.
	if _, err := tx.ExecContext(ctx, `DELETE FROM highscores WHERE name=? AND id<>?`, newName, id); err != nil {
		return false, unavailable("clear target name", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE highscores SET name=?, updated_at=? WHERE id=?`,
		newName, formatTime(updatedAt), id); err != nil {
		return false, unavailable("rename score", err)
	}
	if err := tx.Commit(); err != nil {
		return false, unavailable("commit", err)
	}
	return true, nil
}

func (s *SQLite) TopScores(ctx context.Context, limit int) ([]ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT name, score, updated_at
        FROM highscores
        ORDER BY score DESC, id ASC
        LIMIT ?`, limit,
	)
	if err != nil {
		return nil, unavailable("top scores", err)
	}
	defer rows.Close()

	out := make([]ScoreRecord, 0, limit)
	for rows.Next() {
		var (
			r       ScoreRecord
			updated string
		)
		if err := rows.Scan(&r.Name, &r.Score, &updated); err != nil {
			return nil, unavailable("scan score", err)
		}
		r.UpdatedAt = parseTime(updated)
		out = append(out, r)
	}
	return out, unavailable("top scores", rows.Err())
}

func (s *SQLite) CountScoresAbove(ctx context.Context, score int64) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM highscores WHERE score > ?`, score,
	).Scan(&n); err != nil {
		return 0, unavailable("count scores", err)
	}
	return n, nil
}

func (s *SQLite) AppendChat(ctx context.Context, m ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (name, message, sent_at) VALUES (?, ?, ?)`,
		m.Name, m.Text, formatTime(m.SentAt),
	)
	return unavailable("append chat", err)
}

func (s *SQLite) RecentChat(ctx context.Context, limit int) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT name, message, sent_at FROM (
            SELECT id, name, message, sent_at
            FROM chat_messages
            ORDER BY id DESC
            LIMIT ?
        ) ORDER BY id ASC`, limit,
	)
	if err != nil {
		return nil, unavailable("recent chat", err)
	}
	defer rows.Close()

	out := make([]ChatMessage, 0, limit)
	for rows.Next() {
		var (
			m    ChatMessage
			sent string
		)
		if err := rows.Scan(&m.Name, &m.Text, &sent); err != nil {
			return nil, unavailable("scan chat", err)
		}
		m.SentAt = parseTime(sent)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("recent chat", err)
	}
	return out, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return unavailable("ping", s.db.PingContext(ctx))
}

func (s *SQLite) Close() error { return s.db.Close() }
