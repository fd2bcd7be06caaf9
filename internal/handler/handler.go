package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/slidequiz/internal/model"
	"github.com/pavelanni/slidequiz/internal/store"
	"github.com/pavelanni/slidequiz/internal/workspace"
)

// maxRequestBytes caps any request body; uploads are the largest.
const maxRequestBytes = 32 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	spaces *workspace.Manager
	config model.AppConfig
}

// New creates a new Handler.
func New(s *store.Store, spaces *workspace.Manager, cfg model.AppConfig) *Handler {
	return &Handler{store: s, spaces: spaces, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(limitBody)
	r.Use(h.csrfMiddleware)

	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/logout", h.handleLogout)

		r.Get("/", h.handleDashboard)
		r.Post("/topics/upload", h.handleUpload)
		r.Post("/topics/import", h.handleImportBank)
		r.Post("/topics/generate", h.handleGenerate)
		r.Post("/topics/{topicID}/delete", h.handleDeleteTopic)

		r.Get("/bank/export.json", h.handleExportBank)
		r.Get("/bank/{topicID}", h.handleBankPage)
		r.Get("/bank/{topicID}/docx", h.handleBankDocx)
		r.Get("/bank/{topicID}/export.json", h.handleExportBank)
		r.Post("/bank/{topicID}/questions/{questionID}", h.handleUpdateQuestion)

		r.Get("/exam", h.handleExamPage)
		r.Post("/exam/compose", h.handleCompose)
		r.Get("/exam/exam.docx", h.handleExamDocx)
		r.Get("/exam/key.docx", h.handleKeyDocx)

		r.Get("/settings", h.handleSettingsPage)
		r.Post("/settings", h.handleSaveSettings)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/users", h.handleAdminUsersPage)
			r.Post("/users", h.handleCreateUser)
			r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
		})
	})
}

// BasePathMiddleware makes the configured URL prefix available to views.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// path prefixes p with the base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

// workspace returns the signed-in user's workspace, writing an error
// response when it cannot be loaded.
func (h *Handler) workspace(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	user := model.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	ws, err := h.spaces.Get(user.ID)
	if err != nil {
		slog.Error("failed to load workspace", "user_id", user.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return ws, true
}

func renderPage(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "path", r.URL.Path, "error", err)
	}
}

func topicIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "topicID"), 10, 64)
}

// httpError maps workspace errors onto status codes.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, workspace.ErrNoActiveExam):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// formInt reads a non-negative integer field, returning def when the field
// is absent or unparseable.
func formInt(r *http.Request, name string, def int) int {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
