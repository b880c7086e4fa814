// Package agents implements the handler nodes the router dispatches to.
//
// Each handler consumes the accumulated conversation state and returns a
// partial state update. Role handlers (reader, analyst, editor, admin) first
// dispatch on the intent family so a ui_action classified inside the editor
// review section still lands on the UI-action flow; only when no intent
// family claims the message does the role's own default flow run.
package agents

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/briefdesk/briefdesk/internal/articles"
	"github.com/briefdesk/briefdesk/internal/hitl"
	"github.com/briefdesk/briefdesk/internal/navigation"
	"github.com/briefdesk/briefdesk/pkg/contracts"
	"github.com/briefdesk/briefdesk/pkg/models"
)

// Deps are the collaborators handlers need. All fields are required except
// Authoring and Retriever, which fall back to community implementations
// when nil.
type Deps struct {
	Registry  *navigation.Registry
	Catalog   *navigation.TopicCatalog
	Articles  *articles.Store
	HITL      *hitl.Manager
	Authoring contracts.ContentAuthoring
	Retriever contracts.Retriever
}

// HandlerFunc is one handler node.
type HandlerFunc func(ctx context.Context, st *models.ConversationState) (*models.StateUpdate, error)

// Agents holds the dispatch table. The table is total over the closed
// HandlerName set; Dispatch never fails to find a handler.
type Agents struct {
	deps  Deps
	table map[models.HandlerName]HandlerFunc
}

// New wires the handler table. Nil Authoring/Retriever select the community
// implementations backed by the article store.
func New(deps Deps) *Agents {
	if deps.Authoring == nil {
		deps.Authoring = NewTemplateAuthoring()
	}
	if deps.Retriever == nil {
		deps.Retriever = NewArticleRetriever(deps.Articles)
	}
	a := &Agents{deps: deps}
	a.table = map[models.HandlerName]HandlerFunc{
		models.HandlerNavigation:   a.handleNavigation,
		models.HandlerReader:       a.handleReader,
		models.HandlerAnalyst:      a.handleAnalyst,
		models.HandlerEditor:       a.handleEditor,
		models.HandlerAdmin:        a.handleAdmin,
		models.HandlerEntitlements: a.handleEntitlements,
		models.HandlerGeneralChat:  a.handleGeneralChat,
	}
	return a
}

// Dispatch runs the named handler. Unknown names degrade to general chat
// rather than failing the request.
func (a *Agents) Dispatch(ctx context.Context, name models.HandlerName, st *models.ConversationState) (*models.StateUpdate, error) {
	h, ok := a.table[name]
	if !ok {
		log.Warn().Str("handler", string(name)).Msg("unknown handler, using general chat")
		h = a.handleGeneralChat
	}
	return h(ctx, st)
}

// roleDispatch routes a role handler's input by intent family, falling back
// to the role's default flow for navigation-less conversational turns.
func (a *Agents) roleDispatch(ctx context.Context, st *models.ConversationState, fallback HandlerFunc) (*models.StateUpdate, error) {
	if st.Intent != nil {
		switch st.Intent.IntentType {
		case models.IntentUIAction:
			return a.handleUIAction(ctx, st)
		case models.IntentContentGeneration:
			return a.handleContentGeneration(ctx, st)
		case models.IntentEditorWorkflow:
			return a.handleEditorWorkflow(ctx, st)
		case models.IntentEntitlements:
			return a.handleEntitlements(ctx, st)
		}
	}
	return fallback(ctx, st)
}

// ── shared helpers ──────────────────────────────────────────

func lastUserMessage(st *models.ConversationState) string {
	for i := len(st.Messages) - 1; i >= 0; i-- {
		if st.Messages[i].Role == "user" {
			return st.Messages[i].Content
		}
	}
	return ""
}

// currentTopic prefers the classifier's extraction over the UI's context.
func currentTopic(st *models.ConversationState) string {
	if t := st.Intent.Detail(models.DetailTopic); t != "" {
		return t
	}
	return st.NavigationContext.Topic
}

// targetArticleID prefers the classifier's extraction over the UI's context.
func targetArticleID(st *models.ConversationState) string {
	if id := st.Intent.Detail(models.DetailArticleID); id != "" {
		return id
	}
	return st.NavigationContext.ArticleID
}

func finalText(text string) *models.StateUpdate {
	return &models.StateUpdate{ResponseText: text, IsFinal: true}
}

func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
	}
}
