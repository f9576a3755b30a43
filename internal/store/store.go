// internal/store/store.go
//
// Persistence contract for the arcade backend.
// Two record kinds live here:
//   - ScoreRecord: best score per player name (the Ledger keeps it that way).
//   - ChatMessage: append-only chat log; only the most recent few are replayed.
//
// Every backend failure is reported as ErrUnavailable (wrapping the cause) so
// callers can apply a single policy per component. Stores never retry.

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable marks any failure of the durability layer: lost
// connectivity, timeouts, constraint violations.
var ErrUnavailable = errors.New("store unavailable")

// ScoreRecord is the single stored score for a player name.
type ScoreRecord struct {
	Name      string    `json:"name"`
	Score     int64     `json:"score"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatMessage is an immutable chat line.
type ChatMessage struct {
	Name   string    `json:"name"`
	Text   string    `json:"message"`
	SentAt time.Time `json:"timestamp"`
}

// SubmitOutcome is the result of an atomic upsert-if-greater.
// Previous is the stored score before the call, nil when there was none.
type SubmitOutcome struct {
	Accepted bool
	Previous *int64
}

// Store is the narrow contract shared by the HTTP gateway and the chat relay.
type Store interface {
	// GetScore returns the record for name, or nil when absent.
	GetScore(ctx context.Context, name string) (*ScoreRecord, error)

	// SetScore creates or overwrites the record for name.
	SetScore(ctx context.Context, name string, score int64, updatedAt time.Time) error

	// RenameScore moves oldName's record to newName. It reports false when
	// oldName has no record. An existing newName record is overwritten.
	RenameScore(ctx context.Context, oldName, newName string, updatedAt time.Time) (bool, error)

	// TopScores returns up to limit records, score descending, ties in arrival order.
	TopScores(ctx context.Context, limit int) ([]ScoreRecord, error)

	// CountScoresAbove counts records with a strictly greater score.
	CountScoresAbove(ctx context.Context, score int64) (int64, error)

	AppendChat(ctx context.Context, m ChatMessage) error

	// RecentChat returns the most recent limit messages, oldest first.
	RecentChat(ctx context.Context, limit int) ([]ChatMessage, error)

	Ping(ctx context.Context) error
	Close() error
}

// ConditionalScorer is implemented by stores that can perform
// "write only if higher" as one atomic step.
type ConditionalScorer interface {
	SetScoreIfHigher(ctx context.Context, name string, score int64, at time.Time) (SubmitOutcome, error)
}

// unavailable wraps cause with ErrUnavailable and the failing operation.
func unavailable(op string, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, ErrUnavailable) {
		return cause
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, cause)
}
