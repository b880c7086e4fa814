// Package hitl implements the two-phase human-in-the-loop protocol for
// destructive actions.
//
// Phase 1 (RequestConfirmation): build a confirmation descriptor from the
// per-action template table, persist a pending checkpoint keyed by thread,
// and return the descriptor. No side effect occurs.
//
// Phase 2 (Resume): load the checkpoint, re-validate the caller's permission
// against their current scopes, atomically consume the checkpoint, and only
// then execute the gated article transition. The checkpoint transitions out
// of pending exactly once; duplicate resumes get ErrAlreadyResolved from the
// state store no matter how they interleave.
package hitl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/briefdesk/briefdesk/internal/articles"
	"github.com/briefdesk/briefdesk/internal/authz"
	"github.com/briefdesk/briefdesk/internal/state"
	"github.com/briefdesk/briefdesk/pkg/models"
)

var (
	// ErrUnknownAction is returned for action types outside the template table.
	ErrUnknownAction = errors.New("unknown destructive action")

	// ErrInvalidDecision is returned for resume decisions other than
	// approve or reject.
	ErrInvalidDecision = errors.New("decision must be \"approve\" or \"reject\"")

	// ErrPermissionDenied is returned when the resuming user's current
	// scopes no longer satisfy the action's required role. The checkpoint
	// is left pending so a correctly entitled retry can still land before
	// the window closes.
	ErrPermissionDenied = errors.New("permission denied for gated action")
)

// DefaultConfirmationTTL bounds how long a checkpoint stays resumable.
const DefaultConfirmationTTL = 15 * time.Minute

// Manager owns checkpoint creation and resumption.
type Manager struct {
	store    state.Store
	articles *articles.Store
	ttl      time.Duration

	mu      sync.Mutex
	threads map[string]*sync.Mutex
}

// NewManager creates a manager. ttl <= 0 selects DefaultConfirmationTTL.
func NewManager(store state.Store, articleStore *articles.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultConfirmationTTL
	}
	return &Manager{
		store:    store,
		articles: articleStore,
		ttl:      ttl,
		threads:  make(map[string]*sync.Mutex),
	}
}

// threadLock serializes resume processing per thread within this process.
// Cross-process atomicity is the state store's job.
func (m *Manager) threadLock(threadID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.threads[threadID]
	if !ok {
		l = &sync.Mutex{}
		m.threads[threadID] = l
	}
	return l
}

// forgetThread drops a thread's resume lock once its checkpoint has reached
// a terminal state. Without this the map grows with every confirmation ever
// issued.
func (m *Manager) forgetThread(threadID string) {
	m.mu.Lock()
	delete(m.threads, threadID)
	m.mu.Unlock()
}

// RequestConfirmation persists a pending checkpoint for the action and
// returns the state update carrying the confirmation descriptor. The gated
// action itself does not run.
func (m *Manager) RequestConfirmation(ctx context.Context, user models.UserContext, threadID, actionType string, params map[string]string) (*models.StateUpdate, error) {
	tmpl, ok := actionTemplates[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, actionType)
	}

	articleID := params[models.DetailArticleID]
	confirmationID := uuid.NewString()
	now := time.Now().UTC()

	cp := &models.Checkpoint{
		ThreadID:       threadID,
		ConfirmationID: confirmationID,
		UserID:         user.UserID,
		Action:         actionType,
		Params:         params,
		Status:         models.CheckpointPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(m.ttl),
	}
	if err := m.store.SaveCheckpoint(ctx, cp); err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}

	m.audit(ctx, threadID, user.UserID, "confirmation_requested", actionType, map[string]string{
		"confirmation_id": confirmationID,
		"article_id":      articleID,
	})

	desc := buildDescriptor(confirmationID, threadID, tmpl, articleID)
	log.Info().
		Str("thread_id", threadID).
		Str("action", actionType).
		Str("confirmation_id", confirmationID).
		Msg("confirmation requested")

	return &models.StateUpdate{
		ResponseText: desc.Title + " " + desc.Message,
		Confirmation: desc,
		RequiresHITL: true,
		IsFinal:      true,
	}, nil
}

// Resume applies a human decision to the thread's pending checkpoint.
//
// The order of operations is claim-then-execute: the checkpoint is atomically
// consumed in the store before the article transition runs, so a competing
// resume can never observe a half-done action or trigger it twice.
func (m *Manager) Resume(ctx context.Context, user models.UserContext, threadID string, decision models.Decision) (*models.StateUpdate, error) {
	if decision != models.DecisionApprove && decision != models.DecisionReject {
		return nil, ErrInvalidDecision
	}

	lock := m.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	cp, err := m.store.GetCheckpoint(ctx, threadID)
	if err != nil {
		if state.IsNotFound(err) {
			m.forgetThread(threadID)
		}
		return nil, err
	}

	// Permission is checked against CURRENT scopes. A role revoked between
	// request and resume disables the approval, but the checkpoint stays
	// pending in case an entitled retry arrives before expiry.
	if decision == models.DecisionApprove {
		requiredRole, ok := RequiredRoleFor(cp.Action)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAction, cp.Action)
		}
		topic := m.resolveTopic(ctx, cp)
		if !authz.HasPermission(user.Scopes, requiredRole, topic) {
			m.audit(ctx, threadID, user.UserID, "resume_denied", cp.Action, map[string]string{
				"confirmation_id": cp.ConfirmationID,
				"required_role":   string(requiredRole),
			})
			return nil, ErrPermissionDenied
		}
	}

	resolved, err := m.store.ResolveCheckpoint(ctx, threadID, decision, user.UserID)
	if err != nil {
		if errors.Is(err, state.ErrAlreadyResolved) || errors.Is(err, state.ErrExpired) {
			m.forgetThread(threadID)
		}
		return nil, err
	}
	// The checkpoint is terminal from here on; the lock has no further work.
	defer m.forgetThread(threadID)

	if decision == models.DecisionReject {
		m.audit(ctx, threadID, user.UserID, "resume_rejected", resolved.Action, map[string]string{
			"confirmation_id": resolved.ConfirmationID,
		})
		return &models.StateUpdate{
			ResponseText: fmt.Sprintf("Okay, I won't go ahead with %s. Nothing was changed.", describeAction(resolved.Action)),
			IsFinal:      true,
		}, nil
	}

	article, err := m.execute(ctx, resolved)
	if err != nil {
		m.audit(ctx, threadID, user.UserID, "resume_failed", resolved.Action, map[string]string{
			"confirmation_id": resolved.ConfirmationID,
			"error":           err.Error(),
		})
		return nil, fmt.Errorf("execute %s: %w", resolved.Action, err)
	}

	m.audit(ctx, threadID, user.UserID, "resume_approved", resolved.Action, map[string]string{
		"confirmation_id": resolved.ConfirmationID,
	})
	log.Info().
		Str("thread_id", threadID).
		Str("action", resolved.Action).
		Msg("gated action executed")

	update := &models.StateUpdate{
		ResponseText: fmt.Sprintf("Done. I've completed %s.", describeAction(resolved.Action)),
		IsFinal:      true,
	}
	if article != nil {
		update.Articles = []models.Article{*article}
		update.ResponseText = fmt.Sprintf("Done. Article %q is now %s.", article.Headline, article.Status)
	}
	return update, nil
}

// execute runs the gated article transition for an approved checkpoint.
func (m *Manager) execute(ctx context.Context, cp *models.Checkpoint) (*models.Article, error) {
	articleID := cp.Params[models.DetailArticleID]
	switch cp.Action {
	case "publish_article":
		return m.articles.Publish(ctx, articleID)
	case "delete_article", "deactivate_article":
		return m.articles.Deactivate(ctx, articleID)
	case "recall_article":
		return m.articles.Recall(ctx, articleID)
	case "purge_article":
		return nil, m.articles.Purge(ctx, articleID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, cp.Action)
	}
}

// resolveTopic finds the topic the permission check applies to: explicit
// param first, then the target article's own topic.
func (m *Manager) resolveTopic(ctx context.Context, cp *models.Checkpoint) string {
	if topic := cp.Params[models.DetailTopic]; topic != "" {
		return topic
	}
	if id := cp.Params[models.DetailArticleID]; id != "" {
		if a, err := m.articles.Get(ctx, id); err == nil {
			return a.Topic
		}
	}
	return ""
}

func (m *Manager) audit(ctx context.Context, threadID, userID, kind, action string, detail map[string]string) {
	err := m.store.AppendAudit(ctx, &models.AuditEvent{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		UserID:    userID,
		Kind:      kind,
		Action:    action,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Str("thread_id", threadID).Str("kind", kind).Msg("audit append failed")
	}
}

func describeAction(action string) string {
	switch action {
	case "publish_article":
		return "publishing the article"
	case "delete_article":
		return "deleting the article"
	case "deactivate_article":
		return "deactivating the article"
	case "recall_article":
		return "recalling the article"
	case "purge_article":
		return "purging the article"
	default:
		return "the requested action"
	}
}
