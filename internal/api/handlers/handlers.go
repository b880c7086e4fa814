// Package handlers implements the HTTP handlers for the briefdesk
// orchestration engine: the chat endpoint, the resume endpoint for paused
// workflows, conversation management, and article reads.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/briefdesk/briefdesk/internal/api/middleware"
	"github.com/briefdesk/briefdesk/internal/articles"
	"github.com/briefdesk/briefdesk/internal/authz"
	"github.com/briefdesk/briefdesk/internal/hitl"
	"github.com/briefdesk/briefdesk/internal/orchestrator"
	"github.com/briefdesk/briefdesk/internal/state"
	"github.com/briefdesk/briefdesk/pkg/models"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Engine   *orchestrator.Engine
	Articles *articles.Store
}

// New creates a Handlers instance.
func New(engine *orchestrator.Engine, arts *articles.Store) *Handlers {
	return &Handlers{Engine: engine, Articles: arts}
}

// ── Chat ────────────────────────────────────────────────────

// Chat handles one user utterance.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user := middleware.GetUser(r.Context())
	resp, err := h.Engine.HandleMessage(r.Context(), user, &req)
	if err != nil {
		log.Error().Err(err).Str("thread_id", req.ThreadID).Msg("chat failed")
		respondError(w, http.StatusInternalServerError, "chat processing failed")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Resume applies a human decision to a paused workflow.
func (h *Handlers) Resume(w http.ResponseWriter, r *http.Request) {
	var req models.ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ThreadID == "" {
		respondError(w, http.StatusBadRequest, "thread_id is required")
		return
	}

	user := middleware.GetUser(r.Context())
	resp, err := h.Engine.Resume(r.Context(), user, &req)
	if err != nil {
		status, msg := resumeErrorStatus(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("thread_id", req.ThreadID).Msg("resume failed")
		}
		respondError(w, status, msg)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// resumeErrorStatus maps resume failures to HTTP statuses. Each failure mode
// is distinct so clients can tell a duplicate from a bogus thread id.
func resumeErrorStatus(err error) (int, string) {
	switch {
	case state.IsNotFound(err):
		return http.StatusNotFound, "no pending confirmation for this thread"
	case errors.Is(err, state.ErrAlreadyResolved):
		return http.StatusConflict, "confirmation already resolved"
	case errors.Is(err, state.ErrExpired):
		return http.StatusGone, "confirmation expired"
	case errors.Is(err, hitl.ErrInvalidDecision):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, hitl.ErrPermissionDenied):
		return http.StatusForbidden, "you no longer have permission for this action"
	default:
		return http.StatusInternalServerError, "resume processing failed"
	}
}

// ── Conversations ───────────────────────────────────────────

// GetConversation returns a thread's message history.
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	threadID := chi.URLParam(r, "threadId")
	history, err := h.Engine.History(r.Context(), user, threadID)
	if err != nil && !state.IsNotFound(err) {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []models.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"thread_id": threadID,
		"messages":  history,
	})
}

// DeleteConversation clears a thread's message history.
func (h *Handlers) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	threadID := chi.URLParam(r, "threadId")
	if err := h.Engine.ClearThread(r.Context(), user, threadID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetConfirmation returns a thread's checkpoint, pending or resolved.
func (h *Handlers) GetConfirmation(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	threadID := chi.URLParam(r, "threadId")
	cp, err := h.Engine.PendingConfirmation(r.Context(), user, threadID)
	if err != nil {
		if state.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "no confirmation for this thread")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cp)
}

// GetAudit returns a thread's confirmation audit trail.
func (h *Handlers) GetAudit(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	threadID := chi.URLParam(r, "threadId")
	events, err := h.Engine.AuditTrail(r.Context(), user, threadID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	respondJSON(w, http.StatusOK, events)
}

// ── Articles ────────────────────────────────────────────────

// ListArticles returns articles filtered by optional topic and status query
// parameters.
func (h *Handlers) ListArticles(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	status := models.ArticleStatus(r.URL.Query().Get("status"))
	list, err := h.Articles.List(r.Context(), topic, status)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []models.Article{}
	}
	respondJSON(w, http.StatusOK, list)
}

// GetArticle returns one article by id.
func (h *Handlers) GetArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "articleId")
	article, err := h.Articles.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, articles.ErrNotFound) {
			respondError(w, http.StatusNotFound, "article not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, article)
}

// CreateArticle creates a draft. The caller must hold the analyst role on
// the article's topic.
func (h *Handlers) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic    string `json:"topic"`
		Headline string `json:"headline"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Topic == "" || req.Headline == "" {
		respondError(w, http.StatusBadRequest, "topic and headline are required")
		return
	}

	user := middleware.GetUser(r.Context())
	if !authz.HasPermission(user.Scopes, models.RoleAnalyst, req.Topic) {
		respondError(w, http.StatusForbidden, "analyst role required for this topic")
		return
	}

	article, err := h.Articles.Create(r.Context(), req.Topic, req.Headline, user.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().Str("article_id", article.ID).Str("topic", article.Topic).Msg("article created")
	respondJSON(w, http.StatusCreated, article)
}

// ── helpers ─────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
