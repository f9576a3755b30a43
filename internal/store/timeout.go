package store

import (
	"context"
	"time"
)

// WithTimeout bounds every call on inner with a per-call deadline of d.
// An expired deadline is reported as ErrUnavailable, like any other failure.
// The returned Store implements ConditionalScorer when inner does.
func WithTimeout(inner Store, d time.Duration) Store {
	t := &timeoutStore{inner: inner, d: d}
	if c, ok := inner.(ConditionalScorer); ok {
		return &timeoutConditional{timeoutStore: t, cond: c}
	}
	return t
}

type timeoutStore struct {
	inner Store
	d     time.Duration
}

func (t *timeoutStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.d)
}

func (t *timeoutStore) GetScore(ctx context.Context, name string) (*ScoreRecord, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	r, err := t.inner.GetScore(ctx, name)
	return r, unavailable("get score", err)
}

func (t *timeoutStore) SetScore(ctx context.Context, name string, score int64, updatedAt time.Time) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return unavailable("set score", t.inner.SetScore(ctx, name, score, updatedAt))
}

func (t *timeoutStore) RenameScore(ctx context.Context, oldName, newName string, updatedAt time.Time) (bool, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	ok, err := t.inner.RenameScore(ctx, oldName, newName, updatedAt)
	return ok, unavailable("rename score", err)
}

func (t *timeoutStore) TopScores(ctx context.Context, limit int) ([]ScoreRecord, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	out, err := t.inner.TopScores(ctx, limit)
	return out, unavailable("top scores", err)
}

func (t *timeoutStore) CountScoresAbove(ctx context.Context, score int64) (int64, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	n, err := t.inner.CountScoresAbove(ctx, score)
	return n, unavailable("count scores", err)
}

func (t *timeoutStore) AppendChat(ctx context.Context, m ChatMessage) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return unavailable("append chat", t.inner.AppendChat(ctx, m))
}

func (t *timeoutStore) RecentChat(ctx context.Context, limit int) ([]ChatMessage, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	out, err := t.inner.RecentChat(ctx, limit)
	return out, unavailable("recent chat", err)
}

func (t *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return unavailable("ping", t.inner.Ping(ctx))
}

func (t *timeoutStore) Close() error { return t.inner.Close() }

type timeoutConditional struct {
	*timeoutStore
	cond ConditionalScorer
}

func (t *timeoutConditional) SetScoreIfHigher(ctx context.Context, name string, score int64, at time.Time) (SubmitOutcome, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	out, err := t.cond.SetScoreIfHigher(ctx, name, score, at)
	return out, unavailable("set score if higher", err)
}
