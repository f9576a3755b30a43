// internal/httpserver/routes_scores.go
//
// HTTP routes for the score ledger. Mounted under /api:
//   - POST /api/highscore        → submit a score (kept only if it beats the stored best)
//   - GET  /api/highscores       → top scores, plus the caller's rank when ?name= is given
//   - POST /api/update_nickname  → move a player's score to a new name
//
// Writes are rate limited per client IP. Validation problems are reported
// together in one 400; a store outage is a 503 on writes and an empty board
// on reads.

package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/InFirePro/alien/internal/ledger"
	"github.com/InFirePro/alien/internal/store"
)

const (
	msgScoreSaved      = "Score saved"
	msgScoreUpdated    = "Score updated"
	msgScoreNotUpdated = "Score not updated, existing score is higher or equal"
	msgNicknameUpdated = "Nickname updated"
)

// mountScores registers the score routes on an /api router.
func (s *Server) mountScores(r chi.Router) {
	r.With(s.rateLimit).Post("/highscore", s.handleSubmit)
	r.Get("/highscores", s.handleLeaderboard)
	r.With(s.rateLimit).Post("/update_nickname", s.handleRename)
}

// submitReq accepts name/score in whatever JSON type the client sent so
// type problems can be reported alongside the other validation problems.
type submitReq struct {
	Name  json.RawMessage `json:"name"`
	Score json.RawMessage `json:"score"`
}

type submitRes struct {
	Message  string `json:"message"`
	Score    *int64 `json:"score,omitempty"`
	Previous *int64 `json:"previous,omitempty"`
	Current  *int64 `json:"current,omitempty"`
	New      *int64 `json:"new,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}

	name := ledger.NormalizeName(jsonString(req.Name))
	score, scoreProblem := parseScore(req.Score)
	if scoreProblem != "" {
		probs := append(ledger.NameProblems(name), scoreProblem)
		s.writeLedgerError(w, "Invalid data", ledger.Invalid(probs...))
		return
	}

	res, err := s.ledger.Submit(r.Context(), name, score)
	if err != nil {
		s.writeLedgerError(w, "Invalid data", err)
		return
	}

	out := submitRes{Message: msgScoreSaved, Score: lo.ToPtr(res.Score)}
	switch {
	case !res.Accepted:
		out = submitRes{Message: msgScoreNotUpdated, Current: res.Previous, New: lo.ToPtr(res.Score)}
	case res.Previous != nil:
		out.Message = msgScoreUpdated
		out.Previous = res.Previous
	}
	_ = json.NewEncoder(w).Encode(out)
}

type scoreRow struct {
	Name  string `json:"name"`
	Score int64  `json:"score"`
}

type leaderboardRes struct {
	Scores   []scoreRow `json:"scores"`
	Rank     *int64     `json:"rank"`
	Degraded bool       `json:"degraded,omitempty"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := ledger.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, `{"error":"limit must be a positive integer"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	board := s.ledger.Leaderboard(r.Context(), limit, r.URL.Query().Get("name"))
	_ = json.NewEncoder(w).Encode(leaderboardRes{
		Scores: lo.Map(board.Scores, func(rec store.ScoreRecord, _ int) scoreRow {
			return scoreRow{Name: rec.Name, Score: rec.Score}
		}),
		Rank:     board.Rank,
		Degraded: board.Degraded,
	})
}

type renameReq struct {
	OldName json.RawMessage `json:"old_name"`
	NewName json.RawMessage `json:"new_name"`
}

type renameRes struct {
	Message string `json:"message"`
	NewName string `json:"newName"`
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req renameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}

	res, err := s.ledger.Rename(r.Context(), jsonString(req.OldName), jsonString(req.NewName))
	if err != nil {
		s.writeLedgerError(w, "Invalid new name", err)
		return
	}
	_ = json.NewEncoder(w).Encode(renameRes{Message: msgNicknameUpdated, NewName: res.NewName})
}

type validationRes struct {
	Error   string   `json:"error"`
	Details []string `json:"details"`
}

// writeLedgerError maps ledger/store failures to a status and a short body.
func (s *Server) writeLedgerError(w http.ResponseWriter, label string, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, validationRes{Error: label, Details: verr.Problems})
	case errors.Is(err, ledger.ErrNotFound):
		http.Error(w, `{"error":"Old nickname not found"}`, http.StatusNotFound)
	case errors.Is(err, store.ErrUnavailable):
		s.log.Warn().Err(err).Msg("store unavailable")
		http.Error(w, `{"error":"Database unavailable"}`, http.StatusServiceUnavailable)
	default:
		s.log.Error().Err(err).Msg("ledger request failed")
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
	}
}

// jsonString returns raw as a string, or "" when raw is absent or not a
// JSON string.
func jsonString(raw json.RawMessage) string {
	var v string
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return ""
	}
	return v
}

// parseScore accepts a JSON integer or a string holding one. Integral
// floats such as 120.0 are accepted; fractions are not.
func parseScore(raw json.RawMessage) (int64, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, "Score is required"
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, "Score must be a valid number"
		}
		text = strings.TrimSpace(text)
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, ""
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) ||
		f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, "Score must be a valid number"
	}
	return int64(f), ""
}
