package server

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"adminconsole/internal/util"
	"adminconsole/services/console/internal/apiclient"
	"adminconsole/services/console/internal/app"
	"adminconsole/services/console/internal/forum"
	"adminconsole/services/console/internal/gate"
	"adminconsole/services/console/internal/resource"
	"adminconsole/services/console/internal/security"
	"adminconsole/services/console/internal/session"

	"github.com/go-chi/chi/v5"
)

// Config wires required dependencies for the HTTP surface.
type Config struct {
	App           *app.App
	AllowedOrigin string
	// LoginPath must match the path the gate redirects to.
	LoginPath string
	// Alerter, when set, counts failed security events per client.
	Alerter *security.AuditAlerter
}

// Server exposes the console over HTTP.
type Server struct {
	app           *app.App
	thread        *forum.Thread
	router        chi.Router
	allowedOrigin string
	loginPath     string
	alerter       *security.AuditAlerter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires an app")
	}
	s := &Server{
		app:           cfg.App,
		thread:        cfg.App.Forum.Thread(),
		router:        chi.NewRouter(),
		allowedOrigin: cfg.AllowedOrigin,
		loginPath:     cfg.LoginPath,
		alerter:       cfg.Alerter,
	}
	if !strings.HasPrefix(s.loginPath, "/") {
		s.loginPath = gate.DefaultLoginPath
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("console",
		util.WithSecurityHeaders(util.WithCORS(s.allowedOrigin, s.router))))
}

func (s *Server) routes() {
	r := s.router
	r.Get("/healthz", s.handleHealth)
	r.Get(s.loginPath, s.handleLoginView)
	r.Post(s.loginPath, s.handleLogin)
	r.Method(http.MethodGet, "/metrics", s.app.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.app.Gate.Middleware)

		r.Post("/logout", s.handleLogout)
		r.Get("/me", s.handleMe)
		r.Patch("/me", s.handleUpdateMe)
		r.Get("/toasts", s.handleToasts)
		r.Delete("/toasts/{id}", s.handleDismissToast)

		r.Route("/forum", func(r chi.Router) {
			r.Get("/", s.handleForumState)
			r.Post("/fetch", s.handleForumFetch)
			r.Put("/search", s.handleForumSearch)
			r.Put("/filters", s.handleForumFilters)
			r.Put("/page", s.handleForumPage)

			r.Get("/editor", s.handleEditorState)
			r.Post("/editor", s.handleEditorOpen)
			r.Put("/editor/form", s.handleEditorForm)
			r.Put("/editor/attachment", s.handleEditorAttachment)
			r.Delete("/editor/attachment", s.handleEditorRemoveAttachment)
			r.Post("/editor/submit", s.handleEditorSubmit)
			r.Delete("/editor", s.handleEditorClose)

			r.Get("/thread", s.handleThreadState)
			r.Post("/thread/like", s.handleThreadLike)
			r.Post("/thread/comments", s.handleAddComment)
			r.Post("/thread/comments/{commentID}/like", s.handleLikeComment)
			r.Delete("/thread/comments/{commentID}", s.handleDeleteComment)

			r.Post("/{id}/like", s.handlePostLike)
			r.Post("/{id}/thread", s.handleThreadLoad)
			r.Delete("/{id}", s.handlePostDelete)
		})

		r.Route("/resources", func(r chi.Router) {
			r.Get("/", s.handleResources)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleResourceState)
				r.Post("/", s.handleResourceCreate)
				r.Post("/fetch", s.handleResourceFetch)
				r.Put("/search", s.handleResourceSearch)
				r.Put("/filters", s.handleResourceFilter)
				r.Put("/page", s.handleResourcePage)
				r.Put("/{id}", s.handleResourceUpdate)
				r.Delete("/{id}", s.handleResourceDelete)
			})
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "session": string(s.app.Gate.State())})
}

// auth handlers
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	From     string `json:"from"`
}

func (s *Server) handleLoginView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"view":          "login",
		"authenticated": s.app.Session.IsAuthenticated(),
		"from":          s.returnPath(r.URL.Query().Get("from")),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		s.audit(r, "console.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, app.ErrRateLimited):
		s.audit(r, "console.login", "rate_limited")
		secs := int(math.Ceil(s.app.RetryAfter().Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	case errors.Is(err, app.ErrMissingCredentials):
		s.audit(r, "console.login", "fail", "reason", "missing_credentials")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.audit(r, "console.login", "fail", "reason", err.Error())
		writeRemoteError(w, err, "Login gagal")
		return
	}
	s.audit(r, "console.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       user,
		"redirectTo": s.returnPath(req.From),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.app.Logout(r.Context())
	s.audit(r, "console.logout", "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Session.Snapshot().Profile)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var in apiclient.ProfileInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.UpdateProfile(r.Context(), in)
	if err != nil {
		s.audit(r, "console.profile.update", "fail", "reason", err.Error())
		writeActionError(w, err)
		return
	}
	s.audit(r, "console.profile.update", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}

// toasts
func (s *Server) handleToasts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Toasts.Active())
}

func (s *Server) handleDismissToast(w http.ResponseWriter, r *http.Request) {
	s.app.Toasts.Dismiss(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// returnPath keeps only local paths so the login flow cannot redirect
// off-site.
func (s *Server) returnPath(from string) string {
	from = strings.TrimSpace(from)
	if from == "" || strings.HasPrefix(from, s.loginPath) || !gate.IsLocalPath(from) {
		return "/"
	}
	return from
}

func confirmed(r *http.Request) resource.Confirm {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return func() bool { return ok }
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeActionError maps operation failures to a status. The toast for the
// failure has already been shown by the operation itself.
func writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resource.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, resource.ErrNotConfirmed):
		writeError(w, http.StatusConflict, "confirmation required")
	case errors.Is(err, forum.ErrNotCommentAuthor):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, forum.ErrEditorClosed), errors.Is(err, forum.ErrNoThread):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		writeRemoteError(w, err, resource.DefaultMutationError)
	}
}

func writeRemoteError(w http.ResponseWriter, err error, fallback string) {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 {
		writeError(w, apiErr.Status, resource.MessageFor(err, fallback))
		return
	}
	writeError(w, http.StatusBadGateway, resource.MessageFor(err, fallback))
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := clientIP(r)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)

	result, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security alert check failed", "event", event, "err", err)
		return
	}
	if result.Triggered {
		logger.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", result.Count,
			"threshold", result.Threshold,
			"window", result.Window.String(),
		)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
