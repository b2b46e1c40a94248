// internal/httpserver/auth.go
//
// Authentication for the Worlde backend.
// Responsibilities:
//   - Password accounts: POST /auth/signup, /auth/login.
//   - Anonymous accounts: POST /auth/anonymous (DB-backed guest identity).
//   - Provider sign-in: /auth/oauth/{provider}/start + /callback. The client
//     SDK runs the provider flow; the callback receives the verified subject
//     together with the state the start handler issued.
//   - Provider linking for existing accounts: POST /auth/link. Linking the
//     bonus provider credits a one-time coin bonus.
//   - JWT + cookie handling, anonymous fallback cookie, user row helpers.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/worldepixel/worlde-server/internal/profile"
)

// Request payloads for signup/login.
type signupReq struct{ Username, Password string }
type loginReq struct{ Username, Password string }

// authUser is placed into request context by auth middleware.
type authUser struct {
	ID         string `json:"id"`
	Username   string `json:"username,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	Anonymous  bool   `json:"anonymous"`
}

// ctxUserKey is the context key type for storing authUser.
type ctxUserKey struct{}

// userFrom pulls the authenticated user out of the request context, or nil.
func userFrom(ctx context.Context) *authUser {
	u, _ := ctx.Value(ctxUserKey{}).(*authUser)
	return u
}

// mountAuthRoutes registers authentication routes.
func (s *Server) mountAuthRoutes() {
	s.r.Post("/auth/signup", s.handleSignup)
	s.r.Post("/auth/login", s.handleLogin)
	s.r.Post("/auth/anonymous", s.handleAnonymous)
	s.r.Post("/auth/logout", s.handleLogout)

	s.r.Get("/auth/oauth/{provider}/start", s.handleOAuthStart)
	s.r.Post("/auth/oauth/{provider}/callback", s.handleOAuthCallback)

	s.r.With(s.requireAuth()).Post("/auth/link", s.handleLink)
	s.r.With(s.requireAuth()).Get("/auth/me", s.handleMe)
}

// handleMe returns the signed-in user together with any linked providers.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	providers := []string{}
	rows, err := s.db.Query(`SELECT provider FROM identities WHERE user_id=? ORDER BY provider`, me.ID)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err == nil {
				providers = append(providers, p)
			}
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":         me.ID,
		"username":   me.Username,
		"playerName": me.PlayerName,
		"anonymous":  me.Anonymous,
		"providers":  providers,
	})
}

// handleSignup creates a new password account, signs a JWT, and sets the
// auth cookie.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body signupReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	u, err := s.createUser(body.Username, body.Password)
	if err != nil {
		if err.Error() == "username taken" {
			http.Error(w, `{"error":"Username taken"}`, http.StatusConflict)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	if !s.issueSession(w, u) {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "username": u.Username})
}

// handleLogin authenticates a password account and sets the cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	u, err := s.findUserByUsername(strings.TrimSpace(body.Username))
	if err != nil || !checkPassword(u.PasswordHash, body.Password) {
		http.Error(w, `{"error":"Invalid username or password"}`, http.StatusUnauthorized)
		return
	}
	if !s.issueSession(w, u) {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "username": u.Username, "playerName": u.PlayerName})
}

// handleAnonymous creates a DB-backed anonymous account so guest progression
// survives server restarts (unlike the cookie-only fallback).
func (s *Server) handleAnonymous(w http.ResponseWriter, r *http.Request) {
	u, err := s.createAnonUser()
	if err != nil {
		log.Error().Err(err).Msg("create anonymous user")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if !s.issueSession(w, u) {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "anonymous": true})
}

// handleLogout tears down the live session (flushing any pending sync) and
// clears the auth cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if tok := bearerOrCookie(r, s.cfg.CookieName); tok != "" {
		if id, _, err := s.verifyJWT(tok); err == nil {
			s.registry.Remove(r.Context(), id)
		}
	}
	s.clearAuthCookie(w)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// ------------------------------- OAUTH -------------------------------------

const oauthStateCookie = "worlde_oauth_state"

// handleOAuthStart issues a state nonce for the client-side provider flow.
// The nonce rides a short-lived cookie and must come back on the callback.
func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if provider == "" {
		http.Error(w, `{"error":"provider_required"}`, http.StatusBadRequest)
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		MaxAge:   600,
	})
	_ = json.NewEncoder(w).Encode(map[string]string{"provider": provider, "state": state})
}

type oauthCallbackReq struct {
	State   string `json:"state"`
	Subject string `json:"subject"`
}

// handleOAuthCallback completes a provider sign-in: finds or creates the
// account bound to (provider, subject), sets the auth cookie, and credits the
// one-time bonus when the provider qualifies.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	var body oauthCallbackReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	ck, err := r.Cookie(oauthStateCookie)
	if err != nil || ck.Value == "" || ck.Value != body.State {
		http.Error(w, `{"error":"state_mismatch"}`, http.StatusUnauthorized)
		return
	}
	if body.Subject == "" {
		http.Error(w, `{"error":"subject_required"}`, http.StatusBadRequest)
		return
	}

	u, err := s.findOrCreateOAuthUser(provider, body.Subject)
	if err != nil {
		log.Error().Err(err).Str("provider", provider).Msg("oauth user")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if !s.issueSession(w, u) {
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	if provider == s.cfg.BonusProvider {
		s.grantBonus(r.Context(), u.ID)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "playerName": u.PlayerName, "provider": provider})
}

type linkReq struct {
	Provider string `json:"provider"`
	Subject  string `json:"subject"`
}

// handleLink attaches a provider identity to the signed-in account. Linking
// the bonus provider credits the one-time bonus if it was never granted.
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	var body linkReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Provider == "" {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`INSERT OR IGNORE INTO identities (user_id, provider, subject, linked_at) VALUES (?,?,?,?)`,
		me.ID, body.Provider, body.Subject, now)
	if err != nil {
		log.Error().Err(err).Msg("link identity")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	inserted, _ := res.RowsAffected()
	if inserted == 0 {
		http.Error(w, `{"error":"already_linked"}`, http.StatusConflict)
		return
	}
	if body.Provider == s.cfg.BonusProvider {
		s.grantBonus(r.Context(), me.ID)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "provider": body.Provider})
}

// grantBonus credits the one-time provider bonus. A live session gets it
// in-memory (and on the next sync); otherwise the stored record is updated
// directly. Reconcile's BonusGranted flag keeps it at-most-once either way.
func (s *Server) grantBonus(ctx context.Context, userID string) {
	if c := s.registry.Get(userID); c != nil {
		c.GrantBonus(s.cfg.BonusCoins)
		s.hub.push(userID, c.Snapshot())
		return
	}
	defaults := &profile.Record{UserID: userID, Level: 1, Coins: 0, MaxAttempts: 10}
	if _, _, err := profile.Reconcile(ctx, s.profiles, userID, defaults, true, s.cfg.BonusCoins); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("grant bonus")
	}
}

// --------------------------- optional auth ---------------------------------

// withOptionalAuth decorates requests with user context if a valid JWT is
// present. It never 401s; used for routes where guests are allowed.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := bearerOrCookie(r, s.cfg.CookieName); tok != "" {
				if id, _, err := s.verifyJWT(tok); err == nil {
					if u, err := s.findUserByID(id); err == nil {
						ctx := context.WithValue(r.Context(), ctxUserKey{}, u.authUser())
						r = r.WithContext(ctx)
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAuth enforces a valid JWT and injects authUser into request context.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerOrCookie(r, s.cfg.CookieName)
			if tok == "" {
				http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
				return
			}
			id, _, err := s.verifyJWT(tok)
			if err != nil {
				http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
				return
			}
			u, err := s.findUserByID(id)
			if err != nil {
				http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxUserKey{}, u.authUser())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

const anonCookieName = "worlde_anon"

// ensureAnonID returns an existing anon cookie or sets a new one. Used to key
// guest sessions that never created an account.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		Expires:  time.Now().Add(180 * 24 * time.Hour),
	})
	return id
}

// ------------------------ auth helpers & users -----------------------------

// userRow matches the users table shape.
type userRow struct {
	ID           string
	Username     string
	PasswordHash string
	PlayerName   string
	Anonymous    bool
	CreatedAt    string
}

func (u *userRow) authUser() *authUser {
	return &authUser{ID: u.ID, Username: u.Username, PlayerName: u.PlayerName, Anonymous: u.Anonymous}
}

// createUser validates input, checks uniqueness, hashes password, and inserts
// a new user.
func (s *Server) createUser(username, pw string) (*userRow, error) {
	username = strings.TrimSpace(username)
	if err := validateSignup(username, pw); err != nil {
		return nil, err
	}
	var exists int
	_ = s.db.QueryRow(`SELECT 1 FROM users WHERE lower(username)=lower(?)`, username).Scan(&exists)
	if exists == 1 {
		return nil, errors.New("username taken")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	id := uuid.NewString()
	if _, err := s.db.Exec(`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		id, username, string(h), now); err != nil {
		return nil, err
	}
	return &userRow{ID: id, Username: username, PasswordHash: string(h), CreatedAt: now}, nil
}

// createAnonUser inserts a user row with no credentials.
func (s *Server) createAnonUser() (*userRow, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	id := uuid.NewString()
	if _, err := s.db.Exec(`INSERT INTO users (id, is_anonymous, created_at) VALUES (?,1,?)`, id, now); err != nil {
		return nil, err
	}
	return &userRow{ID: id, Anonymous: true, CreatedAt: now}, nil
}

// findOrCreateOAuthUser resolves a provider subject to an account, creating
// one on first sign-in.
func (s *Server) findOrCreateOAuthUser(provider, subject string) (*userRow, error) {
	var userID string
	err := s.db.QueryRow(`SELECT user_id FROM identities WHERE provider=? AND subject=?`, provider, subject).Scan(&userID)
	if err == nil {
		return s.findUserByID(userID)
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	id := uuid.NewString()
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`INSERT INTO users (id, created_at) VALUES (?,?)`, id, now); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`INSERT INTO identities (user_id, provider, subject, linked_at) VALUES (?,?,?,?)`,
		id, provider, subject, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &userRow{ID: id, CreatedAt: now}, nil
}

// findUserByUsername/ID load a user row or return an error if missing.
func (s *Server) findUserByUsername(username string) (*userRow, error) {
	row := s.db.QueryRow(`SELECT id, COALESCE(username,''), COALESCE(password_hash,''), player_name, is_anonymous, created_at
	                      FROM users WHERE lower(username)=lower(?)`, username)
	return scanUser(row)
}
func (s *Server) findUserByID(id string) (*userRow, error) {
	row := s.db.QueryRow(`SELECT id, COALESCE(username,''), COALESCE(password_hash,''), player_name, is_anonymous, created_at
	                      FROM users WHERE id=?`, id)
	return scanUser(row)
}

// scanUser converts a *sql.Row into a userRow.
func scanUser(row *sql.Row) (*userRow, error) {
	var u userRow
	var anon int
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.PlayerName, &anon, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Anonymous = anon == 1
	return &u, nil
}

// checkPassword is a bcrypt verifier.
func checkPassword(hash, pw string) bool {
	return hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// validateSignup enforces basic username/password rules.
func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return errors.New("username must be 3-24 chars")
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return errors.New("username: letters, numbers, underscore only")
		}
	}
	if len(p) < 8 || len(p) > 100 {
		return errors.New("password must be 8-100 chars")
	}
	return nil
}

// ------------------------------ JWT & cookies ------------------------------

// issueSession signs a JWT for the user and sets the auth cookie. Returns
// false after writing an error response.
func (s *Server) issueSession(w http.ResponseWriter, u *userRow) bool {
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		log.Error().Err(err).Msg("sign jwt")
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return false
	}
	s.setAuthCookie(w, tok, exp)
	return true
}

// signJWT creates an HS256 JWT with id/username and a configurable expiry.
func (s *Server) signJWT(id, username string) (string, time.Time, error) {
	exp := time.Now().Add(time.Duration(s.cfg.JWTExpiryDays) * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      time.Now().Unix(),
	})
	ss, err := t.SignedString([]byte(s.cfg.JWTSecret))
	return ss, exp, err
}

// verifyJWT validates a token and returns the id/username claims.
func (s *Server) verifyJWT(tok string) (id, username string, err error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return "", "", err
	}
	if !t.Valid {
		return "", "", errors.New("invalid token")
	}
	id, _ = claims["id"].(string)
	if id == "" {
		return "", "", errors.New("missing id claim")
	}
	username, _ = claims["username"].(string)
	return id, username, nil
}

// sameSite picks the cookie SameSite mode; cross-site contexts need None
// when Secure.
func (s *Server) sameSite() http.SameSite {
	if s.cfg.Production {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// setAuthCookie writes the auth token cookie with appropriate security
// attributes.
func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		Expires:  exp,
	})
}

// clearAuthCookie deletes the auth token cookie.
func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		MaxAge:   -1,
	})
}

// bearerOrCookie extracts a bearer token from the Authorization header or the
// auth cookie.
func bearerOrCookie(r *http.Request, cookieName string) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}
