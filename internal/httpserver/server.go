// internal/httpserver/server.go
//
// HTTP gateway for the arcade backend.
// Responsibilities:
//   - Router + middleware (request IDs, real IP, access log, panic recovery, CORS).
//   - Public endpoints: "/", "/health", "/favicon.ico", "/ws".
//   - Score endpoints under /api (see routes_scores.go).
//   - Admin diagnostics under /api (see routes_admin.go), mounted only when
//     an admin password hash and token secret are configured.
//   - Optional static file serving for the game client.
//
// Notes:
//   - Handler timeouts and the JSON content type apply to /api only; the
//     websocket upgrade and static files are served outside that group.
//   - Error bodies are short fixed messages; causes go to the log.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/InFirePro/alien/internal/ledger"
	"github.com/InFirePro/alien/internal/realtime"
	"github.com/InFirePro/alien/internal/store"
)

// Options configures a Server. Zero values fall back to sensible defaults.
type Options struct {
	ClientOrigin   string
	StaticDir      string
	StoreDriver    string
	StoreTimeout   time.Duration // bound on /health and admin store probes (5s)
	RequestTimeout time.Duration // chi Timeout for /api handlers (10s)

	Rate  float64 // per-IP requests/second on /api writes
	Burst int

	AdminPasswordHash string
	AdminSecret       string
	AdminTokenTTL     time.Duration

	Clock  func() time.Time
	Logger *zerolog.Logger
}

func (o *Options) defaults() {
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.Rate <= 0 {
		o.Rate = 5
	}
	if o.Burst <= 0 {
		o.Burst = 10
	}
	if o.AdminTokenTTL <= 0 {
		o.AdminTokenTTL = 12 * time.Hour
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = &log.Logger
	}
}

// Server bundles the router with the services it exposes.
type Server struct {
	r       *chi.Mux
	ledger  *ledger.Ledger
	store   store.Store
	hub     *realtime.Hub
	opts    Options
	log     zerolog.Logger
	limiter *ipLimiter
	static  http.Handler
	started time.Time
}

// New constructs a Server, installs middleware, and registers routes.
func New(led *ledger.Ledger, st store.Store, hub *realtime.Hub, opts Options) *Server {
	opts.defaults()
	s := &Server{
		r:       chi.NewRouter(),
		ledger:  led,
		store:   st,
		hub:     hub,
		opts:    opts,
		log:     opts.Logger.With().Str("component", "http").Logger(),
		limiter: newIPLimiter(opts.Rate, opts.Burst, opts.Clock),
		started: opts.Clock(),
	}
	if opts.StaticDir != "" {
		s.static = http.FileServer(http.Dir(opts.StaticDir))
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)         // add X-Request-ID
	s.r.Use(chimw.RealIP)            // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(s.accessLog)             // one line per request
	s.r.Use(chimw.Recoverer)         // recover from panics
	s.r.Use(cors(opts.ClientOrigin)) // single-origin CORS

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	// --- diagnostics ---
	s.r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	s.r.With(jsonContentType).Get("/health", s.handleHealth)

	// --- realtime ---
	s.r.Get("/ws", hub.ServeWS)

	// --- api ---
	s.r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(opts.RequestTimeout))
		r.Use(jsonContentType)
		s.mountScores(r)
		if opts.AdminPasswordHash != "" && opts.AdminSecret != "" {
			s.mountAdmin(r)
		}
	})

	s.r.Get("/", s.handleRoot)
	if s.static != nil {
		s.r.Handle("/*", s.static)
	}

	return s
}

// Handler returns the root handler for an http.Server.
func (s *Server) Handler() http.Handler { return s.r }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// handleRoot upgrades websocket requests (clients may connect to "/"),
// serves the client's index when static files are configured, and
// otherwise describes the service.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.hub.ServeWS(w, r)
		return
	}
	if s.static != nil {
		s.static.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte(`{"service":"alien-arcade","endpoints":["/health","/ws","POST /api/highscore","GET /api/highscores","POST /api/update_nickname"]}`))
}

type healthRes struct {
	Status           string  `json:"status"`
	Timestamp        string  `json:"timestamp"`
	DBReady          bool    `json:"dbReady"`
	StoreDriver      string  `json:"storeDriver"`
	WebsocketClients int     `json:"websocketClients"`
	Uptime           float64 `json:"uptime"`
}

// handleHealth always answers 200; dbReady reflects a bounded store ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.StoreTimeout)
	defer cancel()
	err := s.store.Ping(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("health ping failed")
	}

	now := s.opts.Clock()
	_ = json.NewEncoder(w).Encode(healthRes{
		Status:           "ok",
		Timestamp:        now.UTC().Format(time.RFC3339Nano),
		DBReady:          err == nil,
		StoreDriver:      s.opts.StoreDriver,
		WebsocketClients: s.hub.Count(),
		Uptime:           now.Sub(s.started).Seconds(),
	})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
