// internal/httpserver/routes_admin.go
//
// Admin diagnostics. Mounted under /api only when ADMIN_PASSWORD_HASH and
// ADMIN_JWT_SECRET are both set:
//   - POST /api/admin/login → bcrypt-check the password, return an HS256 token
//   - GET  /api/test-db     → connectivity, record counts and a few samples
//   - GET  /api/debug       → dump of the score table and recent chat
//
// Tokens are bearer-only; there is no cookie session for admins.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/InFirePro/alien/internal/store"
)

const (
	adminSubject   = "admin"
	debugScoreRows = 1000
	debugChatRows  = 20
	sampleRows     = 3
)

func (s *Server) mountAdmin(r chi.Router) {
	r.With(s.rateLimit).Post("/admin/login", s.handleAdminLogin)
	r.With(s.requireAdmin).Get("/test-db", s.handleTestDB)
	r.With(s.requireAdmin).Get("/debug", s.handleDebug)
}

type adminLoginReq struct {
	Password string `json:"password"`
}

type adminLoginRes struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var body adminLoginReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	if !checkPassword(s.opts.AdminPasswordHash, body.Password) {
		s.log.Warn().Str("ip", r.RemoteAddr).Msg("admin login rejected")
		http.Error(w, `{"error":"Invalid password"}`, http.StatusUnauthorized)
		return
	}
	tok, exp, err := s.signAdminJWT()
	if err != nil {
		s.log.Error().Err(err).Msg("sign admin token")
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(adminLoginRes{Token: tok, ExpiresAt: exp})
}

// checkPassword is a bcrypt verifier.
func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// signAdminJWT creates an HS256 JWT for the admin subject, valid for AdminTokenTTL.
func (s *Server) signAdminJWT() (string, time.Time, error) {
	now := s.opts.Clock()
	exp := now.Add(s.opts.AdminTokenTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	ss, err := t.SignedString([]byte(s.opts.AdminSecret))
	return ss, exp, err
}

// bearerToken extracts a bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return ""
}

// requireAdmin enforces a valid admin JWT.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}
		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(s.opts.AdminSecret), nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(s.opts.Clock),
			jwt.WithExpirationRequired(),
		)
		if err != nil || !token.Valid || claims.Subject != adminSubject {
			http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type tableStats struct {
	Highscores int64 `json:"highscores"`
}

type sampleData struct {
	Highscores []store.ScoreRecord `json:"highscores"`
	Chat       []store.ChatMessage `json:"chat"`
}

type testDBRes struct {
	Connected   bool       `json:"connected"`
	StoreDriver string     `json:"storeDriver"`
	Stats       tableStats `json:"stats"`
	SampleData  sampleData `json:"sampleData"`
	Timestamp   string     `json:"timestamp"`
}

// handleTestDB probes the store. Individual query failures are logged and
// leave their section empty.
func (s *Server) handleTestDB(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.StoreTimeout)
	defer cancel()

	res := testDBRes{
		StoreDriver: s.opts.StoreDriver,
		SampleData:  sampleData{Highscores: []store.ScoreRecord{}, Chat: []store.ChatMessage{}},
		Timestamp:   s.opts.Clock().UTC().Format(time.RFC3339Nano),
	}
	if err := s.store.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("test-db ping failed")
		_ = json.NewEncoder(w).Encode(res)
		return
	}
	res.Connected = true

	// Every stored score is >= 0, so counting above -1 counts them all.
	if n, err := s.store.CountScoresAbove(ctx, -1); err == nil {
		res.Stats.Highscores = n
	} else {
		s.log.Warn().Err(err).Msg("test-db count failed")
	}
	if top, err := s.store.TopScores(ctx, sampleRows); err == nil && top != nil {
		res.SampleData.Highscores = top
	}
	if chat, err := s.store.RecentChat(ctx, sampleRows); err == nil && chat != nil {
		res.SampleData.Chat = chat
	}
	_ = json.NewEncoder(w).Encode(res)
}

type debugRes struct {
	Highscores      []store.ScoreRecord `json:"highscores"`
	ChatMessages    []store.ChatMessage `json:"chatMessages"`
	TotalHighscores int                 `json:"totalHighscores"`
	TotalChat       int                 `json:"totalChat"`
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.StoreTimeout)
	defer cancel()

	scores, err := s.store.TopScores(ctx, debugScoreRows)
	if err != nil {
		s.log.Warn().Err(err).Msg("debug dump failed")
		http.Error(w, `{"error":"Database not ready"}`, http.StatusServiceUnavailable)
		return
	}
	chat, err := s.store.RecentChat(ctx, debugChatRows)
	if err != nil {
		s.log.Warn().Err(err).Msg("debug dump failed")
		http.Error(w, `{"error":"Database not ready"}`, http.StatusServiceUnavailable)
		return
	}
	if scores == nil {
		scores = []store.ScoreRecord{}
	}
	if chat == nil {
		chat = []store.ChatMessage{}
	}
	_ = json.NewEncoder(w).Encode(debugRes{
		Highscores:      scores,
		ChatMessages:    chat,
		TotalHighscores: len(scores),
		TotalChat:       len(chat),
	})
}
