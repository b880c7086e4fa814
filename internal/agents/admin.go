package agents

import (
	"context"
	"fmt"

	"github.com/briefdesk/briefdesk/internal/authz"
	"github.com/briefdesk/briefdesk/pkg/models"
)

// handleAdmin serves the admin panel. Its default flow reports platform
// content counts; destructive actions still go through the shared UI-action
// flow and its confirmation gate, admin role notwithstanding.
func (a *Agents) handleAdmin(ctx context.Context, st *models.ConversationState) (*models.StateUpdate, error) {
	if !authz.HasPermission(st.UserContext.Scopes, models.RoleAdmin, currentTopic(st)) {
		return finalText("The admin panel requires the admin role."), nil
	}
	return a.roleDispatch(ctx, st, a.adminOverview)
}

func (a *Agents) adminOverview(ctx context.Context, st *models.ConversationState) (*models.StateUpdate, error) {
	counts := map[models.ArticleStatus]int{}
	for _, status := range []models.ArticleStatus{
		models.ArticleDraft, models.ArticleEditor, models.ArticlePendingApproval,
		models.ArticlePublished, models.ArticleDeactivated,
	} {
		list, err := a.deps.Articles.List(ctx, "", status)
		if err != nil {
			return nil, fmt.Errorf("count %s articles: %w", status, err)
		}
		counts[status] = len(list)
	}
	return finalText(fmt.Sprintf(
		"Platform content: %d drafts, %d in review, %d awaiting publish approval, %d published, %d deactivated. "+
			"You can deactivate, recall, or purge any article from here.",
		counts[models.ArticleDraft], counts[models.ArticleEditor],
		counts[models.ArticlePendingApproval], counts[models.ArticlePublished],
		counts[models.ArticleDeactivated])), nil
}
