package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/duesjobs/duesjobs/internal/model"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Store is the persistence surface the API reads and writes.
type Store interface {
	model.MatchStore
	model.PreferenceStore
}

// Deps wires the API to the rest of the application.
type Deps struct {
	Store Store
	// Trigger starts one pipeline run. It is called on its own goroutine
	// and must not assume the request is still alive.
	Trigger    func(ctx context.Context)
	CronSecret string
	// RunContext bounds triggered runs; it is cancelled on shutdown.
	RunContext context.Context
	Logger     *slog.Logger
	Now        func() time.Time
}

// NewRouter returns the HTTP handler serving everything under /api/v1.
func NewRouter(deps Deps) http.Handler {
	if deps.RunContext == nil {
		deps.RunContext = context.Background()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(deps.Logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(CronSecretAuth(deps.CronSecret))
			r.Post("/fetch/run", handleTriggerRun(deps))
			r.Post("/jobs/run", handleTriggerRun(deps))
		})

		r.Group(func(r chi.Router) {
			r.Use(UserIdentity)
			r.Get("/jobs", handleListJobs(deps))
			r.Post("/jobs/{job_id}/mark", handleMarkJob(deps))
			r.Get("/users/me/preferences", handleGetPreferences(deps))
			r.Put("/users/me/preferences", handlePutPreferences(deps))
			r.Post("/users/me/telegram", handleLinkTelegram(deps))
			r.Delete("/users/me/telegram", handleUnlinkTelegram(deps))
		})
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// CronSecretAuth rejects requests whose X-Cron-Secret (or cron_secret) header
// does not match secret. An empty secret rejects everything.
func CronSecretAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Cron-Secret")
			if got == "" {
				got = r.Header.Get("cron_secret")
			}
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				httpError(w, http.StatusForbidden, "forbidden", "invalid cron secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type userIDKey struct{}

// UserIdentity reads the caller's id from X-User-ID, set by the upstream
// auth layer. Missing or non-UUID values are rejected with 401.
func UserIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get("X-User-ID"))
		if err != nil {
			httpError(w, http.StatusUnauthorized, "authentication_error", "missing or invalid X-User-ID")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, id.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey{}).(string)
	return id
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleTriggerRun(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Trigger != nil {
			go deps.Trigger(deps.RunContext)
		}
		deps.Logger.Info("pipeline run triggered", "path", r.URL.Path)
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "Job fetch triggered"})
	}
}

type listJobsResponse struct {
	Data  []model.MatchedJob `json:"data"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

func handleListJobs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		q := model.MatchQuery{Source: qs.Get("source")}

		if s := qs.Get("status"); s != "" {
			q.Status = model.MatchStatus(s)
			if !q.Status.Valid() {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid status %q", s)
				return
			}
		}
		if days := parseIntParam(r, "days", 0, 0); days > 0 {
			q.Since = deps.Now().Add(-time.Duration(days) * 24 * time.Hour)
		}

		page := parseIntParam(r, "page", 1, 0)
		if page < 1 {
			page = 1
		}
		limit := parseIntParam(r, "limit", 20, 100)
		if limit < 1 {
			limit = 20
		}
		q.Limit = limit
		q.Offset = (page - 1) * limit

		jobs, err := deps.Store.ListMatches(r.Context(), userID(r), q)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list jobs: %v", err)
			return
		}
		if jobs == nil {
			jobs = []model.MatchedJob{}
		}
		writeJSON(w, http.StatusOK, listJobsResponse{Data: jobs, Page: page, Limit: limit})
	}
}

type markRequest struct {
	Status model.MatchStatus `json:"status"`
	Notes  *string           `json:"notes"`
}

func handleMarkJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := strconv.ParseInt(chi.URLParam(r, "job_id"), 10, 64)
		if err != nil || jobID < 1 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid job id")
			return
		}

		var req markRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !req.Status.Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "Invalid status")
			return
		}

		m, err := deps.Store.UpdateMatchStatus(r.Context(), userID(r), jobID, req.Status, req.Notes)
		if errors.Is(err, model.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "job %d is not in your matches", jobID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update job: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func handleGetPreferences(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Store.GetPreferences(r.Context(), userID(r))
		if errors.Is(err, model.ErrNotFound) {
			writeJSON(w, http.StatusOK, struct{}{})
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get preferences: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

type preferencesRequest struct {
	Email           string   `json:"email"`
	Keywords        []string `json:"keywords"`
	Locations       []string `json:"locations"`
	RemoteOnly      bool     `json:"remote_only"`
	Sources         []string `json:"sources"`
	EmailEnabled    bool     `json:"email_enabled"`
	TelegramEnabled bool     `json:"telegram_enabled"`
}

func handlePutPreferences(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req preferencesRequest
		if !decodeBody(w, r, &req) {
			return
		}

		p := model.UserPreferences{
			UserID:          userID(r),
			Email:           req.Email,
			Keywords:        req.Keywords,
			Locations:       req.Locations,
			RemoteOnly:      req.RemoteOnly,
			Sources:         req.Sources,
			EmailEnabled:    req.EmailEnabled,
			TelegramEnabled: req.TelegramEnabled,
		}
		// The chat id is owned by the telegram link routes.
		existing, err := deps.Store.GetPreferences(r.Context(), p.UserID)
		switch {
		case err == nil:
			p.TelegramChatID = existing.TelegramChatID
		case !errors.Is(err, model.ErrNotFound):
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load preferences: %v", err)
			return
		}

		saved, err := deps.Store.PutPreferences(r.Context(), p)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save preferences: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

type telegramLinkRequest struct {
	ChatID json.Number `json:"chat_id"`
}

func handleLinkTelegram(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req telegramLinkRequest
		if !decodeBody(w, r, &req) {
			return
		}
		chatID := string(req.ChatID)
		if chatID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "chat_id is required")
			return
		}
		if _, err := strconv.ParseInt(chatID, 10, 64); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "chat_id must be numeric")
			return
		}
		setTelegram(w, r, deps, &chatID)
	}
}

func handleUnlinkTelegram(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setTelegram(w, r, deps, nil)
	}
}

func setTelegram(w http.ResponseWriter, r *http.Request, deps Deps, chatID *string) {
	p, err := deps.Store.SetTelegramChat(r.Context(), userID(r), chatID)
	if errors.Is(err, model.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "save your preferences before linking telegram")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to update telegram link: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
