package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// runContract exercises the Store contract against a fresh, empty store.
func runContract(t *testing.T, open func(t *testing.T) Store) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("get missing score returns nil", func(t *testing.T) {
		req := require.New(t)
		s := open(t)

		rec, err := s.GetScore(context.Background(), "nobody")

		req.NoError(err)
		req.Nil(rec)
	})

	t.Run("set score creates then overwrites", func(t *testing.T) {
		req := require.New(t)
		s := open(t)
		ctx := context.Background()

		req.NoError(s.SetScore(ctx, "alice", 100, t0))
		req.NoError(s.SetScore(ctx, "alice", 40, t0.Add(time.Minute)))

		rec, err := s.GetScore(ctx, "alice")
		req.NoError(err)
		req.NotNil(rec)
		req.Equal("alice", rec.Name)
		req.EqualValues(40, rec.Score)
		req.True(rec.UpdatedAt.Equal(t0.Add(time.Minute)))
	})

	t.Run("names are case sensitive", func(t *testing.T) {
		req := require.New(t)
		s := open(t)
		ctx := context.Background()

		req.NoError(s.SetScore(ctx, "Bob", 10, t0))
		req.NoError(s.SetScore(ctx, "bob", 20, t0))

		top, err := s.TopScores(ctx, 10)
		req.NoError(err)
		req.Len(top, 2)
	})

	t.Run("top scores descending with ties in arrival order", func(t *testing.T) {
		req := require.New(t)
		s := open(t)
		ctx := context.Background()

		req.NoError(s.SetScore(ctx, "first", 50, t0))
		req.NoError(s.SetScore(ctx, "high", 90, t0))
		req.NoError(s.SetScore(ctx, "second", 50, t0))
		req.NoError(s.SetScore(ctx, "low", 5, t0))

		top, err := s.TopScores(ctx, 3)
		req.NoError(err)
		req.Equal([]string{"high", "first", "second"}, names(top))
	})

	t.Run("count scores above", func(t *testing.T) {
		req := require.New(t)
		s := open(t)
		ctx := context.Background()
		for i, sc := range []int64{10, 20, 20, 30} {
			req.NoError(s.SetScore(ctx, fmt.Sprintf("p%d", i), sc, t0))
		}

		n, err := s.CountScoresAbove(ctx, 20)
		req.NoError(err)
		req.EqualValues(1, n)

		n, err = s.CountScoresAbove(ctx, 30)
		req.NoError(err)
		req.EqualValues(0, n)
	})

	t.Run("rename carries score and frees old name", func(t *testing.T) {
		req := require.New(t)
		s := open(t)
		ctx := context.Background()
		req.NoError(s.SetScore(ctx, "old", 77, t0))

		ok, err := s.RenameScore(ctx, "old", "new", t0.Add(time.Hour))
		req.NoError(err)
		req.True(ok)

		rec, err := s.GetScore(ctx, "new")
		req.NoError(err)
		req.NotNil(rec)
		req.EqualValues(77, rec.Score)

		gone, err := s.GetScore(ctx, "old")
		req.NoError(err)
		req.Nil(gone)
	})

	t.Run("rename missing name reports false and changes nothing", func(t *testing.T) {
		req := require.New(t)
		s := open(t)
		ctx := context.Background()
		req.NoError(s.SetScore(ctx, "target", 5, t0))

		ok, err := s.RenameScore(ctx, "ghost", "target", t0)
		req.NoError(err)
		req.False(ok)

		rec, err := s.GetScore(ctx, "target")
		req.NoError(err)
		req.EqualValues(5, rec.Score)
	})

	t.Run("rename onto existing name overwrites it", func(t *testing.T) {
		req := require.New(t)
		s := open(t)
		ctx := context.Background()
		req.NoError(s.SetScore(ctx, "a", 10, t0))
		req.NoError(s.SetScore(ctx, "b", 99, t0))

		ok, err := s.RenameScore(ctx, "a", "b", t0)
		req.NoError(err)
		req.True(ok)

		top, err := s.TopScores(ctx, 10)
		req.NoError(err)
		req.Len(top, 1)
		req.Equal("b", top[0].Name)
		req.EqualValues(10, top[0].Score)
	})

	t.Run("recent chat returns newest window oldest first", func(t *testing.T) {
		req := require.New(t)
		s := open(t)
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			req.NoError(s.AppendChat(ctx, ChatMessage{
				Name: "n", Text: fmt.Sprintf("m%d", i), SentAt: t0.Add(time.Duration(i) * time.Second),
			}))
		}

		msgs, err := s.RecentChat(ctx, 3)
		req.NoError(err)
		req.Len(msgs, 3)
		req.Equal("m2", msgs[0].Text)
		req.Equal("m4", msgs[2].Text)
		req.True(msgs[2].SentAt.Equal(t0.Add(4 * time.Second)))
	})

	t.Run("conditional set keeps the best score", func(t *testing.T) {
		req := require.New(t)
		s := open(t)
		cond, ok := s.(ConditionalScorer)
		if !ok {
			t.Skip("store has no atomic conditional write")
		}
		ctx := context.Background()

		out, err := cond.SetScoreIfHigher(ctx, "alice", 100, t0)
		req.NoError(err)
		req.True(out.Accepted)
		req.Nil(out.Previous)

		out, err = cond.SetScoreIfHigher(ctx, "alice", 100, t0)
		req.NoError(err)
		req.False(out.Accepted)
		req.EqualValues(100, *out.Previous)

		out, err = cond.SetScoreIfHigher(ctx, "alice", 150, t0)
		req.NoError(err)
		req.True(out.Accepted)
		req.EqualValues(100, *out.Previous)

		rec, err := s.GetScore(ctx, "alice")
		req.NoError(err)
		req.EqualValues(150, rec.Score)
	})
}

func names(recs []ScoreRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Name)
	}
	return out
}
