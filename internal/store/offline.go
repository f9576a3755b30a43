package store

import (
	"context"
	"errors"
	"time"
)

// errNotConfigured is the cause reported by Offline.
var errNotConfigured = errors.New("no database connected")

// Offline fails every call with ErrUnavailable. The server runs on it when
// the configured database cannot be opened, so the leaderboard degrades and
// chat still relays live.
type Offline struct{}

func (Offline) GetScore(context.Context, string) (*ScoreRecord, error) {
	return nil, unavailable("get score", errNotConfigured)
}

func (Offline) SetScore(context.Context, string, int64, time.Time) error {
	return unavailable("set score", errNotConfigured)
}

func (Offline) RenameScore(context.Context, string, string, time.Time) (bool, error) {
	return false, unavailable("rename score", errNotConfigured)
}

func (Offline) TopScores(context.Context, int) ([]ScoreRecord, error) {
	return nil, unavailable("top scores", errNotConfigured)
}

func (Offline) CountScoresAbove(context.Context, int64) (int64, error) {
	return 0, unavailable("count scores", errNotConfigured)
}

func (Offline) AppendChat(context.Context, ChatMessage) error {
	return unavailable("append chat", errNotConfigured)
}

func (Offline) RecentChat(context.Context, int) ([]ChatMessage, error) {
	return nil, unavailable("recent chat", errNotConfigured)
}

func (Offline) Ping(context.Context) error { return unavailable("ping", errNotConfigured) }

func (Offline) Close() error { return nil }
