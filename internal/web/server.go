package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bronxbot/internal/config"
	"bronxbot/internal/store"
)

type contextKey string

const sessionContextKey contextKey = "session"

const manageGuildBit = 0x20

var settingsUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bronxbot_settings_updates_total",
	Help: "Guild settings updates through the dashboard.",
}, []string{"outcome"})

// Server is the dashboard: OAuth2 login, guild settings management,
// health and metrics.
type Server struct {
	cfg      config.WebConfig
	log      *slog.Logger
	oauth    *DiscordClient
	sessions *Sessions
	st       store.Store
	mux      *chi.Mux
}

func New(cfg config.WebConfig, logger *slog.Logger, oauth *DiscordClient, sessions *Sessions, st store.Store) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		log:      logger,
		oauth:    oauth,
		sessions: sessions,
		st:       st,
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/login", s.handleLogin)
	r.Get("/callback", s.handleCallback)

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Get("/servers", s.handleServers)
		r.Get("/servers/{guildID}/settings", s.handleSettingsGet)
		r.Post("/servers/{guildID}/settings", s.handleSettingsUpdate)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.oauth.AuthURL(state), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}
	token, err := s.oauth.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	user, err := s.oauth.CurrentUser(r.Context(), token.AccessToken)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if _, err := s.st.EnsureUser(r.Context(), user.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	signed, err := s.sessions.Issue(Session{
		UserID:      user.ID,
		Username:    user.Username,
		AccessToken: token.AccessToken,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/servers", http.StatusFound)
}

func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		sess, err := s.sessions.Verify(cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) (Session, error) {
	sess, ok := ctx.Value(sessionContextKey).(Session)
	if !ok || sess.UserID == "" {
		return Session{}, errors.New("missing session context")
	}
	return sess, nil
}

// manageable reports whether the session user can manage the guild:
// owner, or the Manage Server permission bit.
func manageable(g DiscordGuild) bool {
	if g.Owner {
		return true
	}
	perms, err := strconv.ParseInt(g.Permissions, 10, 64)
	if err != nil {
		return false
	}
	return perms&manageGuildBit != 0
}

func (s *Server) managedGuild(r *http.Request, guildID string) (DiscordGuild, error) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		return DiscordGuild{}, err
	}
	guilds, err := s.oauth.UserGuilds(r.Context(), sess.AccessToken)
	if err != nil {
		return DiscordGuild{}, err
	}
	for _, g := range guilds {
		if g.ID == guildID && manageable(g) {
			return g, nil
		}
	}
	return DiscordGuild{}, errors.New("guild not managed by you")
}

func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	guilds, err := s.oauth.UserGuilds(r.Context(), sess.AccessToken)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	var managed []DiscordGuild
	for _, g := range guilds {
		if manageable(g) {
			managed = append(managed, g)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"servers": managed})
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	if _, err := s.managedGuild(r, guildID); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	gs, err := s.st.GuildSettings(r.Context(), guildID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gs)
}

func (s *Server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	if _, err := s.managedGuild(r, guildID); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	var in struct {
		Prefixes   []string                  `json:"prefixes"`
		Welcome    *store.WelcomeSettings    `json:"welcome"`
		Moderation *store.ModerationSettings `json:"moderation"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	gs, err := s.st.GuildSettings(r.Context(), guildID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if in.Prefixes != nil {
		gs.Prefixes = in.Prefixes
	}
	if in.Welcome != nil {
		gs.Welcome = *in.Welcome
	}
	if in.Moderation != nil {
		gs.Moderation = *in.Moderation
	}
	gs.GuildID = guildID
	if err := s.st.UpdateGuildSettings(r.Context(), gs); err != nil {
		settingsUpdates.WithLabelValues("error").Inc()
		writeDomainError(w, err)
		return
	}
	settingsUpdates.WithLabelValues("ok").Inc()
	s.log.Info("guild settings updated", "guild", guildID)
	writeJSON(w, http.StatusOK, gs)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInsufficientFunds), errors.Is(err, store.ErrOverLimit),
		errors.Is(err, store.ErrInterestCap), errors.Is(err, store.ErrInsufficientItems):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrFrozen):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
