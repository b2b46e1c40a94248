// internal/httpserver/server.go
//
// HTTP server wiring for the Worlde backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/metrics", "/debug/words".
//   - Game endpoints (optional auth, guests welcome): POST /game/new,
//     POST /game/guess, GET /game/state.
//   - Profile endpoints: POST /profile/name, GET /leaderboard.
//   - Live state push over /ws.
//   - Auth endpoints live in auth.go.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Optional auth decorates requests with user context when a valid token is
//     present; guests play against an in-process profile store keyed by an
//     anonymous cookie.

package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/worldepixel/worlde-server/internal/config"
	"github.com/worldepixel/worlde-server/internal/game"
	"github.com/worldepixel/worlde-server/internal/profile"
	"github.com/worldepixel/worlde-server/internal/session"
	"github.com/worldepixel/worlde-server/internal/wordbank"
)

// Server bundles router, session registry, word bank, and persistence handles.
type Server struct {
	r        *chi.Mux
	cfg      *config.Config
	bank     *wordbank.Bank
	registry *session.Registry
	db       *sql.DB
	profiles profile.Store
	guests   *profile.MemoryStore
	hub      *hub
}

// New constructs a Server, installs middleware, and registers routes.
// db carries the users/identities tables and may back profiles too; profiles
// holds saved progressions for signed-in players. Guests get a per-process
// memory store regardless of backend.
func New(cfg *config.Config, db *sql.DB, profiles profile.Store, bank *wordbank.Bank, reg *session.Registry) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		cfg:      cfg,
		bank:     bank,
		registry: reg,
		db:       db,
		profiles: profiles,
		guests:   profile.NewMemoryStore(),
		hub:      newHub(cfg.ClientOrigin),
	}
	registerSessionGauge(reg)

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(s.cors)                          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"worlde-go","endpoints":["/health","POST /game/new","POST /game/guess","GET /game/state","/auth/*","/ws"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	s.r.Handle("/metrics", promhttp.Handler())
	s.r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
		themes, words := bank.Stats()
		_ = json.NewEncoder(w).Encode(map[string]int{"themes": themes, "words": words})
	})

	// Game + profile endpoints — OPTIONAL AUTH (guests can play)
	s.r.Group(func(g chi.Router) {
		g.Use(s.withOptionalAuth())
		g.Post("/game/new", s.handleNewRound)
		g.Post("/game/guess", s.handleGuess)
		g.Get("/game/state", s.handleGameState)
		g.Post("/profile/name", s.handleSetName)
		g.Get("/ws", s.handleWS)
	})

	s.r.Get("/leaderboard", s.handleLeaderboard)

	// Auth (signup/login/anonymous/oauth/link)
	s.mountAuthRoutes()

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.ClientOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ GAME ---------------------------------------

// controllerFor resolves the caller's session controller, creating one on the
// first game request. Signed-in players sync against the configured profile
// backend; guests get the in-process memory store keyed by the anon cookie.
func (s *Server) controllerFor(w http.ResponseWriter, r *http.Request) *session.Controller {
	if me := userFrom(r.Context()); me != nil {
		c := s.registry.GetOrCreate(me.ID, false, s.profiles)
		s.ensureLoaded(r, c, me.PlayerName, s.hasBonusProvider(me.ID))
		return c
	}
	anon := s.ensureAnonID(w, r)
	c := s.registry.GetOrCreate(anon, true, s.guests)
	name := ""
	if ck, err := r.Cookie(guestNameCookie); err == nil {
		name = ck.Value
	}
	s.ensureLoaded(r, c, name, false)
	return c
}

// hasBonusProvider reports whether the bonus provider is linked to the
// account, which qualifies the profile for the one-time coin grant.
func (s *Server) hasBonusProvider(userID string) bool {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM identities WHERE user_id=? AND provider=?`, userID, s.cfg.BonusProvider).Scan(&one)
	return err == nil && one == 1
}

// ensureLoaded moves a freshly-created controller past the profile fetch.
// Already-loaded controllers report a phase error, which is the normal case.
func (s *Server) ensureLoaded(r *http.Request, c *session.Controller, playerName string, qualifying bool) {
	err := c.LoadProfile(r.Context(), playerName, qualifying, s.cfg.BonusCoins)
	if err == nil {
		return
	}
	var bad *session.ErrBadTransition
	if !errors.As(err, &bad) {
		log.Warn().Err(err).Str("user", c.UserID()).Msg("profile load")
	}
}

// handleNewRound starts a round at the caller's current level.
func (s *Server) handleNewRound(w http.ResponseWriter, r *http.Request) {
	c := s.controllerFor(w, r)
	snap, err := c.StartRound()
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	roundsStarted.Inc()
	s.hub.push(c.UserID(), snap)
	_ = json.NewEncoder(w).Encode(snap)
}

type guessReq struct {
	Letter string `json:"letter"`
}

type guessRes struct {
	session.Snapshot
	Result string `json:"result"` // "invalid" | "hit" | "win" | "miss" | "loss"
}

// handleGuess applies one letter to the caller's active round.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	c := s.controllerFor(w, r)
	snap, tr, err := c.Guess(req.Letter)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	guesses.WithLabelValues(string(tr.Kind)).Inc()
	s.hub.push(c.UserID(), snap)
	_ = json.NewEncoder(w).Encode(guessRes{Snapshot: snap, Result: string(tr.Kind)})
}

// handleGameState returns the caller's current snapshot without mutating it.
func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	c := s.controllerFor(w, r)
	_ = json.NewEncoder(w).Encode(c.Snapshot())
}

// writeGameError maps session/game errors onto HTTP statuses.
func (s *Server) writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotReady):
		http.Error(w, `{"error":"name_required"}`, http.StatusConflict)
	case errors.Is(err, wordbank.ErrExhausted):
		http.Error(w, `{"error":"no_word_available"}`, http.StatusConflict)
	case errors.Is(err, game.ErrNoRound):
		http.Error(w, `{"error":"no_round"}`, http.StatusConflict)
	case errors.Is(err, game.ErrNotPlaying):
		http.Error(w, `{"error":"round_over"}`, http.StatusConflict)
	default:
		log.Error().Err(err).Msg("game handler")
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	}
}

// ------------------------------ PROFILE ------------------------------------

const guestNameCookie = "worlde_name"

type setNameReq struct {
	Name string `json:"name"`
}

// handleSetName records the player's display name (set once, max 5 letters).
// Registered users get it written to their account row; guests get a cookie so
// the name survives a reconnect.
func (s *Server) handleSetName(w http.ResponseWriter, r *http.Request) {
	var req setNameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	c := s.controllerFor(w, r)
	if err := c.SetName(req.Name); err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidName):
			http.Error(w, `{"error":"invalid_name"}`, http.StatusBadRequest)
		case errors.Is(err, session.ErrNameAlreadySet):
			http.Error(w, `{"error":"name_already_set"}`, http.StatusConflict)
		default:
			s.writeGameError(w, err)
		}
		return
	}

	name := c.Snapshot().Progression.PlayerName
	if me := userFrom(r.Context()); me != nil {
		if _, err := s.db.Exec(`UPDATE users SET player_name=? WHERE id=?`, name, me.ID); err != nil {
			log.Warn().Err(err).Str("user", me.ID).Msg("persist player name")
		}
	} else {
		http.SetCookie(w, &http.Cookie{
			Name:     guestNameCookie,
			Value:    name,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.cfg.Production,
			SameSite: s.sameSite(),
			Expires:  time.Now().Add(180 * 24 * time.Hour),
		})
	}
	snap := c.Snapshot()
	s.hub.push(c.UserID(), snap)
	_ = json.NewEncoder(w).Encode(snap)
}

// ---------------------------- LEADERBOARD ----------------------------------

type leaderboardRow struct {
	PlayerName string `json:"playerName"`
	Level      int    `json:"level"`
	Coins      int    `json:"coins"`
}

// handleLeaderboard lists the top saved progressions by level, then coins.
// Only available on the sqlite backend; redis deployments get a 503.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	top, ok := s.profiles.(*profile.SQLiteStore)
	if !ok {
		http.Error(w, `{"error":"leaderboard_unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	recs, err := top.TopByLevel(r.Context(), 10)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard query")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	out := make([]leaderboardRow, 0, len(recs))
	for _, rec := range recs {
		name := ""
		_ = s.db.QueryRow(`SELECT player_name FROM users WHERE id=?`, rec.UserID).Scan(&name)
		if name == "" {
			name = "?????"
		}
		out = append(out, leaderboardRow{PlayerName: name, Level: rec.Level, Coins: rec.Coins})
	}
	_ = json.NewEncoder(w).Encode(out)
}
