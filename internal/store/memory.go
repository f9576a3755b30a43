// internal/store/memory.go
//
// In-memory implementation of Store.
// Used by tests and by STORE_DRIVER=memory for local play without a database.
//
// Characteristics:
//   - Scores keyed by name; a sequence number records arrival order for ties.
//   - Chat kept as an append-only slice.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

type memScore struct {
	rec ScoreRecord
	seq uint64
}

// Memory is a map-based Store. The zero value is not usable; call NewMemoryStore.
type Memory struct {
	mu     sync.RWMutex
	scores map[string]*memScore
	chat   []ChatMessage
	seq    uint64
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() *Memory {
	return &Memory{scores: make(map[string]*memScore)}
}

func (m *Memory) GetScore(ctx context.Context, name string) (*ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("get score", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.scores[name]; ok {
		rec := s.rec
		return &rec, nil
	}
	return nil, nil
}

func (m *Memory) SetScore(ctx context.Context, name string, score int64, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return unavailable("set score", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(name, score, updatedAt)
	return nil
}

// putLocked overwrites in place so the arrival sequence survives updates.
func (m *Memory) putLocked(name string, score int64, at time.Time) {
	if s, ok := m.scores[name]; ok {
		s.rec.Score = score
		s.rec.UpdatedAt = at
		return
	}
	m.seq++
	m.scores[name] = &memScore{rec: ScoreRecord{Name: name, Score: score, UpdatedAt: at}, seq: m.seq}
}

// SetScoreIfHigher performs the best-score check and write under one lock.
func (m *Memory) SetScoreIfHigher(ctx context.Context, name string, score int64, at time.Time) (SubmitOutcome, error) {
	if err := ctx.Err(); err != nil {
		return SubmitOutcome{}, unavailable("set score if higher", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scores[name]
	if !ok {
		m.putLocked(name, score, at)
		return SubmitOutcome{Accepted: true}, nil
	}
	prev := s.rec.Score
	if prev >= score {
		return SubmitOutcome{Accepted: false, Previous: lo.ToPtr(prev)}, nil
	}
	m.putLocked(name, score, at)
	return SubmitOutcome{Accepted: true, Previous: lo.ToPtr(prev)}, nil
}

func (m *Memory) RenameScore(ctx context.Context, oldName, newName string, updatedAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("rename score", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scores[oldName]
	if !ok {
		return false, nil
	}
	delete(m.scores, oldName)
	s.rec.Name = newName
	s.rec.UpdatedAt = updatedAt
	m.scores[newName] = s
	return true, nil
}

func (m *Memory) TopScores(ctx context.Context, limit int) ([]ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("top scores", err)
	}
	m.mu.RLock()
	all := make([]memScore, 0, len(m.scores))
	for _, s := range m.scores {
		all = append(all, *s)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].rec.Score != all[j].rec.Score {
			return all[i].rec.Score > all[j].rec.Score
		}
		return all[i].seq < all[j].seq
	})
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]ScoreRecord, 0, len(all))
	for _, s := range all {
		out = append(out, s.rec)
	}
	return out, nil
}

func (m *Memory) CountScoresAbove(ctx context.Context, score int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("count scores", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, s := range m.scores {
		if s.rec.Score > score {
			n++
		}
	}
	return n, nil
}

func (m *Memory) AppendChat(ctx context.Context, msg ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return unavailable("append chat", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chat = append(m.chat, msg)
	return nil
}

func (m *Memory) RecentChat(ctx context.Context, limit int) ([]ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("recent chat", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := 0
	if limit >= 0 && len(m.chat) > limit {
		start = len(m.chat) - limit
	}
	out := make([]ChatMessage, len(m.chat)-start)
	copy(out, m.chat[start:])
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return unavailable("ping", ctx.Err()) }

func (m *Memory) Close() error { return nil }
