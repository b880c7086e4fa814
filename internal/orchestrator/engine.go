// Package orchestrator runs the per-request pipeline: context building,
// intent classification, routing, handler dispatch, state persistence, and
// response building. A resume request short-circuits the pipeline and goes
// straight to the confirmation manager.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/briefdesk/briefdesk/internal/agents"
	"github.com/briefdesk/briefdesk/internal/authz"
	"github.com/briefdesk/briefdesk/internal/classifier"
	"github.com/briefdesk/briefdesk/internal/hitl"
	"github.com/briefdesk/briefdesk/internal/router"
	"github.com/briefdesk/briefdesk/internal/state"
	"github.com/briefdesk/briefdesk/pkg/models"
)

var tracer = otel.Tracer("briefdesk-engine")

// threadKey namespaces a client-supplied thread id per user so two users can
// never collide on a history or checkpoint key. Ids that already carry the
// caller's prefix (echoed back from an earlier response or a confirmation
// descriptor) pass through unchanged.
func threadKey(userID, threadID string) string {
	prefix := userID + "::"
	if strings.HasPrefix(threadID, prefix) {
		return threadID
	}
	return prefix + threadID
}

// Engine is the chat orchestration engine.
type Engine struct {
	store      state.Store
	classifier *classifier.Classifier
	router     *router.Router
	agents     *agents.Agents
	hitl       *hitl.Manager
}

// New wires the engine from its stages.
func New(store state.Store, cls *classifier.Classifier, rt *router.Router, ag *agents.Agents, manager *hitl.Manager) *Engine {
	return &Engine{store: store, classifier: cls, router: rt, agents: ag, hitl: manager}
}

// HandleMessage runs one user utterance through the pipeline and returns the
// unified response. Message history for the thread is append-only: the user
// turn and the assistant turn are both persisted before returning.
func (e *Engine) HandleMessage(ctx context.Context, user models.UserContext, req *models.ChatRequest) (*models.ChatResponse, error) {
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	threadID = threadKey(user.UserID, threadID)

	ctx, span := tracer.Start(ctx, "engine.handle_message")
	span.SetAttributes(
		attribute.String("briefdesk.thread_id", threadID),
		attribute.String("briefdesk.section", req.NavigationContext.Section),
	)
	defer span.End()

	authz.EnrichUserContext(&user)

	// Storage failures degrade: the turn proceeds without history rather
	// than failing the request.
	history, err := e.store.History(ctx, threadID)
	if err != nil && !state.IsNotFound(err) {
		log.Warn().Err(err).Str("thread_id", threadID).Msg("history load failed, continuing without it")
		history = nil
	}

	st := &models.ConversationState{
		ThreadID:          threadID,
		Messages:          history,
		UserContext:       user,
		NavigationContext: req.NavigationContext,
	}

	userMsg := models.Message{
		ID:        uuid.NewString(),
		Role:      "user",
		Content:   req.Message,
		Timestamp: time.Now().UTC(),
	}
	st.AppendMessages(userMsg)

	intent := e.classifier.Classify(ctx, req.Message, req.NavigationContext, user.Scopes)
	st.Intent = &intent
	span.SetAttributes(
		attribute.String("briefdesk.intent", string(intent.IntentType)),
		attribute.Float64("briefdesk.confidence", intent.Confidence),
	)

	handler, reason := e.router.Route(&intent, req.NavigationContext.Section)
	st.SelectedHandler = handler
	st.RoutingReason = reason
	span.SetAttributes(attribute.String("briefdesk.handler", string(handler)))

	update, err := e.agents.Dispatch(ctx, handler, st)
	if err != nil {
		return nil, fmt.Errorf("handler %s: %w", handler, err)
	}
	st.Apply(update)

	resp := BuildResponse(st)

	assistantMsg := models.Message{
		ID:        uuid.NewString(),
		Role:      "assistant",
		Content:   resp.Response,
		Timestamp: time.Now().UTC(),
	}
	// A persist failure only costs durability of this turn; the caller
	// still gets the handler's response.
	if err := e.store.AppendMessages(ctx, threadID, userMsg, assistantMsg); err != nil {
		log.Warn().Err(err).Str("thread_id", threadID).Msg("message persist failed, turn not recorded")
	}

	log.Info().
		Str("thread_id", threadID).
		Str("intent", string(intent.IntentType)).
		Str("handler", string(handler)).
		Bool("requires_hitl", st.RequiresHITL).
		Msg("message handled")

	return resp, nil
}

// Resume applies a human decision to the thread's paused workflow. The
// engine's classification and routing stages are skipped entirely; the
// confirmation manager owns the whole turn.
func (e *Engine) Resume(ctx context.Context, user models.UserContext, req *models.ResumeRequest) (*models.ChatResponse, error) {
	threadID := threadKey(user.UserID, req.ThreadID)

	ctx, span := tracer.Start(ctx, "engine.resume")
	span.SetAttributes(
		attribute.String("briefdesk.thread_id", threadID),
		attribute.String("briefdesk.decision", string(req.Decision)),
	)
	defer span.End()

	authz.EnrichUserContext(&user)

	update, err := e.hitl.Resume(ctx, user, threadID, req.Decision)
	if err != nil {
		return nil, err
	}

	st := &models.ConversationState{
		ThreadID:    threadID,
		UserContext: user,
	}
	st.Apply(update)

	resp := BuildResponse(st)
	resp.AgentType = "hitl"
	resp.RoutingReason = fmt.Sprintf("resume decision %q applied", req.Decision)

	assistantMsg := models.Message{
		ID:        uuid.NewString(),
		Role:      "assistant",
		Content:   resp.Response,
		Timestamp: time.Now().UTC(),
	}
	// The decision itself is already durable in the checkpoint; losing the
	// transcript line is not worth failing the resume over.
	if err := e.store.AppendMessages(ctx, threadID, assistantMsg); err != nil {
		log.Warn().Err(err).Str("thread_id", threadID).Msg("resume message persist failed")
	}

	log.Info().
		Str("thread_id", threadID).
		Str("decision", string(req.Decision)).
		Msg("workflow resumed")

	return resp, nil
}

// History returns the caller's conversation for the thread, oldest first.
func (e *Engine) History(ctx context.Context, user models.UserContext, threadID string) ([]models.Message, error) {
	return e.store.History(ctx, threadKey(user.UserID, threadID))
}

// ClearThread deletes the caller's conversation history for the thread.
func (e *Engine) ClearThread(ctx context.Context, user models.UserContext, threadID string) error {
	return e.store.ClearHistory(ctx, threadKey(user.UserID, threadID))
}

// PendingConfirmation returns the thread's checkpoint, if any.
func (e *Engine) PendingConfirmation(ctx context.Context, user models.UserContext, threadID string) (*models.Checkpoint, error) {
	return e.store.GetCheckpoint(ctx, threadKey(user.UserID, threadID))
}

// AuditTrail returns the thread's confirmation audit events, oldest first.
func (e *Engine) AuditTrail(ctx context.Context, user models.UserContext, threadID string) ([]models.AuditEvent, error) {
	return e.store.ListAudit(ctx, threadKey(user.UserID, threadID))
}
