package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/InFirePro/alien/internal/store"
)

const adminPassword = "correct horse battery staple"

func withAdmin(t *testing.T) func(*Options) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return func(o *Options) {
		o.AdminPasswordHash = string(hash)
		o.AdminSecret = "test-secret"
		o.AdminTokenTTL = time.Hour
	}
}

func login(t *testing.T, f fixture) string {
	t.Helper()
	w, body := f.do(t, http.MethodPost, "/api/admin/login", `{"password":"`+adminPassword+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	tok, _ := body["token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

func TestAdmin_DisabledWithoutCredentials(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, store.NewMemoryStore(), nil)

	for _, path := range []string{"/api/debug", "/api/test-db"} {
		w, _ := f.do(t, http.MethodGet, path, "")
		req.Equal(http.StatusNotFound, w.Code, path)
	}
	w, _ := f.do(t, http.MethodPost, "/api/admin/login", `{"password":"x"}`)
	req.Equal(http.StatusNotFound, w.Code)
}

func TestAdmin_Login(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, store.NewMemoryStore(), withAdmin(t))

	w, body := f.do(t, http.MethodPost, "/api/admin/login", `{"password":"wrong"}`)
	req.Equal(http.StatusUnauthorized, w.Code)
	req.Equal("Invalid password", body["error"])

	w, body = f.do(t, http.MethodPost, "/api/admin/login", `{"password":"`+adminPassword+`"}`)
	req.Equal(http.StatusOK, w.Code)
	req.NotEmpty(body["token"])
	req.Equal("2025-06-01T21:00:00Z", body["expiresAt"])
}

func TestAdmin_RequiresValidToken(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, store.NewMemoryStore(), withAdmin(t))
	tok := login(t, f)

	w, _ := f.do(t, http.MethodGet, "/api/debug", "")
	req.Equal(http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/debug", "", "Authorization", "Bearer not-a-jwt")
	req.Equal(http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/debug", "", "Authorization", "Bearer "+tok)
	req.Equal(http.StatusOK, w.Code)

	// Expired tokens are rejected
	f.clock.Advance(2 * time.Hour)
	w, body := f.do(t, http.MethodGet, "/api/debug", "", "Authorization", "Bearer "+tok)
	req.Equal(http.StatusUnauthorized, w.Code)
	req.Equal("Invalid token", body["error"])
}

func TestAdmin_TokenFromAnotherSecretIsRejected(t *testing.T) {
	req := require.New(t)
	other := newFixture(t, store.NewMemoryStore(), func(o *Options) {
		withAdmin(t)(o)
		o.AdminSecret = "someone-else"
	})
	foreign := login(t, other)

	f := newFixture(t, store.NewMemoryStore(), withAdmin(t))
	w, _ := f.do(t, http.MethodGet, "/api/test-db", "", "Authorization", "Bearer "+foreign)
	req.Equal(http.StatusUnauthorized, w.Code)
}

func TestAdmin_TestDBAndDebug(t *testing.T) {
	req := require.New(t)
	st := store.NewMemoryStore()
	f := newFixture(t, st, withAdmin(t))
	ctx := t.Context()
	at := f.clock.Now()
	for i, name := range []string{"ivy", "jack", "kim", "lou"} {
		req.NoError(st.SetScore(ctx, name, int64(10*(i+1)), at))
	}
	req.NoError(st.AppendChat(ctx, store.ChatMessage{Name: "ivy", Text: "hello", SentAt: at}))
	tok := login(t, f)
	auth := []string{"Authorization", "Bearer " + tok}

	w, body := f.do(t, http.MethodGet, "/api/test-db", "", auth...)
	req.Equal(http.StatusOK, w.Code)
	req.Equal(true, body["connected"])
	req.Equal("memory", body["storeDriver"])
	req.EqualValues(4, body["stats"].(map[string]any)["highscores"])
	samples := body["sampleData"].(map[string]any)
	req.Len(samples["highscores"], 3)
	req.Len(samples["chat"], 1)

	w, body = f.do(t, http.MethodGet, "/api/debug", "", auth...)
	req.Equal(http.StatusOK, w.Code)
	req.EqualValues(4, body["totalHighscores"])
	req.EqualValues(1, body["totalChat"])
	first := body["highscores"].([]any)[0].(map[string]any)
	req.Equal("lou", first["name"])
}

func TestAdmin_StoreDown(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, store.Offline{}, withAdmin(t))
	tok := login(t, f)
	auth := []string{"Authorization", "Bearer " + tok}

	w, body := f.do(t, http.MethodGet, "/api/test-db", "", auth...)
	req.Equal(http.StatusOK, w.Code)
	req.Equal(false, body["connected"])

	w, body = f.do(t, http.MethodGet, "/api/debug", "", auth...)
	req.Equal(http.StatusServiceUnavailable, w.Code)
	req.Equal("Database not ready", body["error"])
}
