package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/briefdesk/briefdesk/internal/articles"
	"github.com/briefdesk/briefdesk/internal/authz"
	"github.com/briefdesk/briefdesk/internal/hitl"
	"github.com/briefdesk/briefdesk/internal/navigation"
	"github.com/briefdesk/briefdesk/pkg/models"
)

// handleReader serves read-only sections. UI actions classified here go
// through the shared UI-action flow; everything else browses published
// content.
func (a *Agents) handleReader(ctx context.Context, st *models.ConversationState) (*models.StateUpdate, error) {
	return a.roleDispatch(ctx, st, a.browsePublished)
}

func (a *Agents) browsePublished(ctx context.Context, st *models.ConversationState) (*models.StateUpdate, error) {
	topic := currentTopic(st)
	list, err := a.deps.Articles.List(ctx, topic, models.ArticlePublished)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	if len(list) == 0 {
		if topic != "" {
			return finalText(fmt.Sprintf("There are no published articles on %s yet.", topic)), nil
		}
		return finalText("There are no published articles yet."), nil
	}
	text := fmt.Sprintf("Here are the %d most recent published articles.", len(list))
	if topic != "" {
		text = fmt.Sprintf("Here are the %d published articles on %s.", len(list), topic)
	}
	return &models.StateUpdate{
		ResponseText: text,
		Articles:     list,
		IsFinal:      true,
	}, nil
}

// handleUIAction executes non-destructive UI actions directly and delegates
// everything in the destructive set to the confirmation manager. The gated
// side effect never runs on this code path.
func (a *Agents) handleUIAction(ctx context.Context, st *models.ConversationState) (*models.StateUpdate, error) {
	actionType := st.Intent.Detail(models.DetailActionType)
	if actionType == "" {
		actionType = inferActionType(lastUserMessage(st))
	}
	if actionType == "" {
		return finalText("I couldn't tell which action you meant. Try something like \"refresh the view\" or \"delete article <id>\"."), nil
	}

	if !hitl.IsDestructive(actionType) {
		// Even view-level actions respect the section's role requirement:
		// a caller who cannot enter the section cannot act inside it.
		requiredRole := navigation.RoleForSection(st.NavigationContext.Section)
		if sec, ok := a.deps.Registry.Get(st.NavigationContext.Section); ok {
			requiredRole = sec.RequiredRole
		}
		if !authz.HasPermission(st.UserContext.Scopes, requiredRole, currentTopic(st)) {
			return finalText(fmt.Sprintf(
				"You need the %s role to do that here.", requiredRole)), nil
		}
		params := map[string]string{}
		if s := st.NavigationContext.Section; s != "" {
			params["section"] = s
		}
		if t := currentTopic(st); t != "" {
			params["topic"] = t
		}
		return &models.StateUpdate{
			ResponseText: fmt.Sprintf("Done, I've applied %s.", strings.ReplaceAll(actionType, "_", " ")),
			UIAction:     &models.UIAction{Type: actionType, Params: params},
			IsFinal:      true,
		}, nil
	}

	articleID := targetArticleID(st)
	if articleID == "" {
		return finalText(fmt.Sprintf(
			"Which article should I %s? Tell me the article id.",
			strings.TrimSuffix(strings.ReplaceAll(actionType, "_", " "), " article"))), nil
	}

	article, err := a.deps.Articles.Get(ctx, articleID)
	if err != nil {
		if errors.Is(err, articles.ErrNotFound) {
			return finalText(fmt.Sprintf("I can't find an article with id %s.", articleID)), nil
		}
		return nil, fmt.Errorf("load article: %w", err)
	}

	requiredRole, _ := hitl.RequiredRoleFor(actionType)
	if !authz.HasPermission(st.UserContext.Scopes, requiredRole, article.Topic) {
		return finalText(fmt.Sprintf(
			"You need the %s role on %s to do that.", requiredRole, article.Topic)), nil
	}

	return a.deps.HITL.RequestConfirmation(ctx, st.UserContext, st.ThreadID, actionType, map[string]string{
		models.DetailArticleID: article.ID,
		models.DetailTopic:     article.Topic,
	})
}

// inferActionType recovers an action type from the raw message when the
// classifier produced a ui_action intent without one.
func inferActionType(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "purge"):
		return "purge_article"
	case strings.Contains(lower, "deactivate"):
		return "deactivate_article"
	case strings.Contains(lower, "delete"):
		return "delete_article"
	case strings.Contains(lower, "recall"):
		return "recall_article"
	case strings.Contains(lower, "refresh"):
		return "refresh_view"
	case strings.Contains(lower, "filter"):
		return "apply_filter"
	case strings.Contains(lower, "export"):
		return "export_view"
	default:
		return ""
	}
}
