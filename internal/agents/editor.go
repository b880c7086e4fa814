package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/briefdesk/briefdesk/internal/articles"
	"github.com/briefdesk/briefdesk/internal/authz"
	"github.com/briefdesk/briefdesk/pkg/models"
)

// handleEditor serves the review section. Its default flow summarizes the
// review queue.
func (a *Agents) handleEditor(ctx context.Context, st *models.ConversationState) (*models.StateUpdate, error) {
	return a.roleDispatch(ctx, st, a.reviewQueue)
}

func (a *Agents) reviewQueue(ctx context.Context, st *models.ConversationState) (*models.StateUpdate, error) {
	inReview, err := a.deps.Articles.List(ctx, currentTopic(st), models.ArticleEditor)
	if err != nil {
		return nil, fmt.Errorf("list review queue: %w", err)
	}
	pending, err := a.deps.Articles.List(ctx, currentTopic(st), models.ArticlePendingApproval)
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	queue := append(inReview, pending...)
	if len(queue) == 0 {
		return finalText("The review queue is empty."), nil
	}
	return &models.StateUpdate{
		ResponseText: fmt.Sprintf("There are %d articles waiting for editorial review.", len(queue)),
		Articles:     queue,
		IsFinal:      true,
	}, nil
}

// handleEditorWorkflow runs status transitions. Submit, request-publish, and
// reject execute directly; publish and recall are destructive and go through
// the confirmation manager. An invalid transition is terminal: the user gets
// the message naming the required prior step and no confirmation is issued.
func (a *Agents) handleEditorWorkflow(ctx context.Context, st *models.ConversationState) (*models.StateUpdate, error) {
	articleID := targetArticleID(st)
	if articleID == "" {
		return finalText("Which article do you mean? Tell me the article id."), nil
	}

	article, err := a.deps.Articles.Get(ctx, articleID)
	if err != nil {
		if errors.Is(err, articles.ErrNotFound) {
			return finalText(fmt.Sprintf("I can't find an article with id %s.", articleID)), nil
		}
		return nil, fmt.Errorf("load article: %w", err)
	}

	action := st.Intent.Detail(models.DetailActionType)
	if action == "" {
		action = inferWorkflowAction(lastUserMessage(st))
	}

	// Submitting a draft for review is the author's move; everything after
	// that is editorial.
	requiredRole := models.RoleEditor
	if action == "submit" {
		requiredRole = models.RoleAnalyst
	}
	if !authz.HasPermission(st.UserContext.Scopes, requiredRole, article.Topic) {
		return finalText(fmt.Sprintf(
			"You need the %s role on %s to do that.", requiredRole, article.Topic)), nil
	}

	switch action {
	case "submit":
		return a.applyTransition(ctx, "submitted for review", func() (*models.Article, error) {
			return a.deps.Articles.Submit(ctx, articleID)
		})
	case "request_publish":
		return a.applyTransition(ctx, "queued for publish approval", func() (*models.Article, error) {
			return a.deps.Articles.RequestPublish(ctx, articleID)
		})
	case "reject":
		return a.applyTransition(ctx, "sent back to draft", func() (*models.Article, error) {
			return a.deps.Articles.Reject(ctx, articleID)
		})
	case "publish", "approve":
		if article.Status != models.ArticleEditor && article.Status != models.ArticlePendingApproval {
			return finalText(publishHint(article)), nil
		}
		return a.deps.HITL.RequestConfirmation(ctx, st.UserContext, st.ThreadID, "publish_article", map[string]string{
			models.DetailArticleID: article.ID,
			models.DetailTopic:     article.Topic,
		})
	case "recall":
		if article.Status != models.ArticlePublished {
			return finalText(fmt.Sprintf(
				"Article %q isn't published, so there's nothing to recall.", article.Headline)), nil
		}
		return a.deps.HITL.RequestConfirmation(ctx, st.UserContext, st.ThreadID, "recall_article", map[string]string{
			models.DetailArticleID: article.ID,
			models.DetailTopic:     article.Topic,
		})
	default:
		return finalText("I can submit, publish, reject, or recall an article. What would you like to do?"), nil
	}
}

func (a *Agents) applyTransition(_ context.Context, done string, fn func() (*models.Article, error)) (*models.StateUpdate, error) {
	article, err := fn()
	if err != nil {
		var invalid *articles.ErrInvalidTransition
		if errors.As(err, &invalid) {
			return finalText(fmt.Sprintf("I can't do that: %s", invalid.Hint)), nil
		}
		return nil, err
	}
	return &models.StateUpdate{
		ResponseText: fmt.Sprintf("Article %q has been %s.", article.Headline, done),
		Articles:     []models.Article{*article},
		IsFinal:      true,
	}, nil
}

func publishHint(a *models.Article) string {
	switch a.Status {
	case models.ArticleDraft:
		return fmt.Sprintf("Article %q is still a draft; submit it for review first.", a.Headline)
	case models.ArticlePublished:
		return fmt.Sprintf("Article %q is already published.", a.Headline)
	case models.ArticleDeactivated:
		return fmt.Sprintf("Article %q is deactivated and can't be published.", a.Headline)
	default:
		return fmt.Sprintf("Article %q can't be published from status %q.", a.Headline, a.Status)
	}
}

func inferWorkflowAction(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "submit"):
		return "submit"
	case strings.Contains(lower, "request publish"):
		return "request_publish"
	case strings.Contains(lower, "reject") || strings.Contains(lower, "send back"):
		return "reject"
	case strings.Contains(lower, "recall"):
		return "recall"
	case strings.Contains(lower, "approve"):
		return "approve"
	case strings.Contains(lower, "publish"):
		return "publish"
	default:
		return ""
	}
}
