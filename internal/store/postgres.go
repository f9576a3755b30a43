// internal/store/postgres.go
//
// Postgres implementation of Store, selected when DATABASE_URL is set.
// Uses a pgx connection pool; migrations are the embedded postgres scripts,
// tracked in _migrations exactly like the SQLite backend.

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/InFirePro/alien/assets"
)

// Postgres is a Store backed by a pgx pool.
type Postgres struct {
	db *pgxpool.Pool
}

// OpenPostgres connects to dsn, verifies the connection, and migrates.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MaxConnIdleTime = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{db: pool}, nil
}

func migratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	migrations, err := assets.Migrations("postgres")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	for _, m := range migrations {
		var applied bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM _migrations WHERE name=$1)`, m.Name,
		).Scan(&applied); err != nil {
			return fmt.Errorf("query _migrations: %w", err)
		}
		if applied {
			log.Debug().Str("migration", m.Name).Msg("already applied")
			continue
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO _migrations(name) VALUES ($1)`, m.Name); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record %s: %w", m.Name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit %s: %w", m.Name, err)
		}
		log.Info().Str("migration", m.Name).Msg("applied")
	}
	return nil
}

func (p *Postgres) GetScore(ctx context.Context, name string) (*ScoreRecord, error) {
	var r ScoreRecord
	err := p.db.QueryRow(ctx,
		`SELECT name, score, updated_at FROM highscores WHERE name=$1`, name,
	).Scan(&r.Name, &r.Score, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get score", err)
	}
	return &r, nil
}

func (p *Postgres) SetScore(ctx context.Context, name string, score int64, updatedAt time.Time) error {
	_, err := p.db.Exec(ctx, `
        INSERT INTO highscores (name, score, updated_at) VALUES ($1, $2, $3)
        ON CONFLICT (name) DO UPDATE SET score=EXCLUDED.score, updated_at=EXCLUDED.updated_at`,
		name, score, updatedAt,
	)
	return unavailable("set score", err)
}

// SetScoreIfHigher locks the existing row (if any) before comparing.
// A concurrent first insert for the same name is resolved by ON CONFLICT.
func (p *Postgres) SetScoreIfHigher(ctx context.Context, name string, score int64, at time.Time) (SubmitOutcome, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return SubmitOutcome{}, unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prev int64
	err = tx.QueryRow(ctx, `SELECT score FROM highscores WHERE name=$1 FOR UPDATE`, name).Scan(&prev)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		tag, err := tx.Exec(ctx, `
            INSERT INTO highscores (name, score, updated_at) VALUES ($1, $2, $3)
            ON CONFLICT (name) DO UPDATE SET score=EXCLUDED.score, updated_at=EXCLUDED.updated_at
            WHERE highscores.score < EXCLUDED.score`,
			name, score, at)
		if err != nil {
			return SubmitOutcome{}, unavailable("insert score", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return SubmitOutcome{}, unavailable("commit", err)
		}
		return SubmitOutcome{Accepted: tag.RowsAffected() > 0}, nil
	case err != nil:
		return SubmitOutcome{}, unavailable("read score", err)
	}

	if prev >= score {
		return SubmitOutcome{Accepted: false, Previous: lo.ToPtr(prev)}, nil
	}
	if _, err := tx.Exec(ctx,
		`UPDATE highscores SET score=$1, updated_at=$2 WHERE name=$3`, score, at, name); err != nil {
		return SubmitOutcome{}, unavailable("update score", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return SubmitOutcome{}, unavailable("commit", err)
	}
	return SubmitOutcome{Accepted: true, Previous: lo.ToPtr(prev)}, nil
}

func (p *Postgres) RenameScore(ctx context.Context, oldName, newName string, updatedAt time.Time) (bool, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return false, unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `SELECT id FROM highscores WHERE name=$1 FOR UPDATE`, oldName).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("read score", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM highscores WHERE name=$1 AND id<>$2`, newName, id); err != nil {
		return false, unavailable("clear target name", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE highscores SET name=$1, updated_at=$2 WHERE id=$3`, newName, updatedAt, id); err != nil {
		return false, unavailable("rename score", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, unavailable("commit", err)
	}
	return true, nil
}

func (p *Postgres) TopScores(ctx context.Context, limit int) ([]ScoreRecord, error) {
	rows, err := p.db.Query(ctx, `
        SELECT name, score, updated_at
        FROM highscores
        ORDER BY score DESC, id ASC
        LIMIT $1`, limit)
	if err != nil {
		return nil, unavailable("top scores", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ScoreRecord, error) {
		var r ScoreRecord
		err := row.Scan(&r.Name, &r.Score, &r.UpdatedAt)
		return r, err
	})
	if err != nil {
		return nil, unavailable("scan scores", err)
	}
	return out, nil
}

func (p *Postgres) CountScoresAbove(ctx context.Context, score int64) (int64, error) {
	var n int64
	if err := p.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM highscores WHERE score > $1`, score,
	).Scan(&n); err != nil {
		return 0, unavailable("count scores", err)
	}
	return n, nil
}

func (p *Postgres) AppendChat(ctx context.Context, m ChatMessage) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO chat_messages (name, message, sent_at) VALUES ($1, $2, $3)`,
		m.Name, m.Text, m.SentAt,
	)
	return unavailable("append chat", err)
}

func (p *Postgres) RecentChat(ctx context.Context, limit int) ([]ChatMessage, error) {
	rows, err := p.db.Query(ctx, `
        SELECT name, message, sent_at FROM (
            SELECT id, name, message, sent_at
            FROM chat_messages
            ORDER BY id DESC
            LIMIT $1
        ) recent ORDER BY id ASC`, limit)
	if err != nil {
		return nil, unavailable("recent chat", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ChatMessage, error) {
		var m ChatMessage
		err := row.Scan(&m.Name, &m.Text, &m.SentAt)
		return m, err
	})
	if err != nil {
		return nil, unavailable("scan chat", err)
	}
	return out, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return unavailable("ping", p.db.Ping(ctx))
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
