// internal/ledger/ledger.go
//
// Score Ledger: the only writer of the score table.
// Responsibilities:
//   - Keep at most one record per name, holding that name's best score.
//   - Rename a player's record, carrying the score forward.
//   - Answer leaderboard + rank queries, degrading to an empty board when the
//     store is down so callers never see a raw store failure.
//
// Notes:
//   - When the store implements store.ConditionalScorer the best-score check
//     and write are one atomic step. Otherwise Submit reads then writes, and two
//     concurrent submissions for the same name may race; the loser can report
//     accepted=true while the other write survives. The next higher submission
//     corrects the record.
//   - Rank is count(score > mine) + 1, so tied scores share the better rank.

package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/InFirePro/alien/internal/store"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// SubmitResult reports whether a submission became the stored best.
// Previous is the stored score before the call (nil for a first submission);
// when Accepted is false it is the score that was kept.
type SubmitResult struct {
	Accepted bool
	Score    int64
	Previous *int64
}

// RenameResult carries the normalized new name.
type RenameResult struct {
	NewName string
}

// Board is a leaderboard page. Degraded is set when the store could not be read.
type Board struct {
	Scores   []store.ScoreRecord
	Rank     *int64
	Degraded bool
}

// Ledger mediates every read and write of the score table.
type Ledger struct {
	store store.Store
	now   func() time.Time
	log   zerolog.Logger
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// WithLogger sets the logger (default: global zerolog logger).
func WithLogger(lg zerolog.Logger) Option { return func(l *Ledger) { l.log = lg } }

// New constructs a Ledger over st.
func New(st store.Store, opts ...Option) *Ledger {
	l := &Ledger{store: st, now: time.Now, log: log.Logger}
	for _, o := range opts {
		o(l)
	}
	l.log = l.log.With().Str("component", "ledger").Logger()
	return l
}

// Submit records score for name if it beats the stored best.
// A non-improving score is a normal outcome (Accepted=false), not an error.
func (l *Ledger) Submit(ctx context.Context, name string, score int64) (SubmitResult, error) {
	name = NormalizeName(name)
	if err := Invalid(entryProblems(name, score)...); err != nil {
		return SubmitResult{}, err
	}

	now := l.now().UTC()
	res := SubmitResult{Score: score}

	if cond, ok := l.store.(store.ConditionalScorer); ok {
		out, err := cond.SetScoreIfHigher(ctx, name, score, now)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("submit score: %w", err)
		}
		res.Accepted, res.Previous = out.Accepted, out.Previous
		l.logSubmit(name, res)
		return res, nil
	}

	existing, err := l.store.GetScore(ctx, name)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("read score: %w", err)
	}
	if existing != nil {
		res.Previous = lo.ToPtr(existing.Score)
		if existing.Score >= score {
			l.logSubmit(name, res)
			return res, nil
		}
	}
	if err := l.store.SetScore(ctx, name, score, now); err != nil {
		return SubmitResult{}, fmt.Errorf("write score: %w", err)
	}
	res.Accepted = true
	l.logSubmit(name, res)
	return res, nil
}

func (l *Ledger) logSubmit(name string, res SubmitResult) {
	ev := l.log.Debug().Str("name", name).Int64("score", res.Score).Bool("accepted", res.Accepted)
	if res.Previous != nil {
		ev = ev.Int64("previous", *res.Previous)
	}
	ev.Msg("score submitted")
}

// Rename moves oldName's record to newName. newName is validated like any
// score name; a missing oldName yields ErrNotFound.
func (l *Ledger) Rename(ctx context.Context, oldName, newName string) (RenameResult, error) {
	oldName = NormalizeName(oldName)
	newName = NormalizeName(newName)

	probs := NameProblems(newName)
	if oldName == "" {
		probs = append(probs, "Old name is required")
	}
	if err := Invalid(probs...); err != nil {
		return RenameResult{}, err
	}

	ok, err := l.store.RenameScore(ctx, oldName, newName, l.now().UTC())
	if err != nil {
		return RenameResult{}, fmt.Errorf("rename score: %w", err)
	}
	if !ok {
		return RenameResult{}, fmt.Errorf("rename %q: %w", oldName, ErrNotFound)
	}
	l.log.Info().Str("old", oldName).Str("new", newName).Msg("nickname updated")
	return RenameResult{NewName: newName}, nil
}

// Leaderboard returns the top limit scores and, when forName has a record,
// its rank. It never returns an error: store failures produce a degraded,
// empty board.
func (l *Ledger) Leaderboard(ctx context.Context, limit int, forName string) Board {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	scores, err := l.store.TopScores(ctx, limit)
	if err != nil {
		return l.degraded(err)
	}
	board := Board{Scores: scores}
	if board.Scores == nil {
		board.Scores = []store.ScoreRecord{}
	}

	forName = strings.TrimSpace(forName)
	if forName == "" {
		return board
	}
	rec, err := l.store.GetScore(ctx, forName)
	if err != nil {
		return l.degraded(err)
	}
	if rec == nil {
		return board
	}
	above, err := l.store.CountScoresAbove(ctx, rec.Score)
	if err != nil {
		return l.degraded(err)
	}
	board.Rank = lo.ToPtr(above + 1)
	return board
}

func (l *Ledger) degraded(err error) Board {
	l.log.Warn().Err(err).Msg("leaderboard degraded")
	return Board{Scores: []store.ScoreRecord{}, Degraded: true}
}
