package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/briefdesk/briefdesk/internal/articles"
	"github.com/briefdesk/briefdesk/internal/authz"
	"github.com/briefdesk/briefdesk/pkg/contracts"
	"github.com/briefdesk/briefdesk/pkg/models"
)

// handleAnalyst serves the authoring section. Its default flow is content
// generation.
func (a *Agents) handleAnalyst(ctx context.Context, st *models.ConversationState) (*models.StateUpdate, error) {
	return a.roleDispatch(ctx, st, a.handleContentGeneration)
}

// handleContentGeneration drafts or revises article material. The analyst
// role is checked for the specific topic; the denial names the topics the
// user can author in instead of a bare refusal.
func (a *Agents) handleContentGeneration(ctx context.Context, st *models.ConversationState) (*models.StateUpdate, error) {
	topic := currentTopic(st)
	if topic == "" {
		known := a.deps.Catalog.Topics(ctx)
		if len(known) == 0 {
			return finalText("Which topic is this brief for?"), nil
		}
		return finalText(fmt.Sprintf("Which topic is this brief for? I know about %s.", joinOr(known))), nil
	}

	if !authz.HasPermission(st.UserContext.Scopes, models.RoleAnalyst, topic) {
		accessible := authz.TopicsWithRole(st.UserContext.Scopes, models.RoleAnalyst)
		if len(accessible) == 0 {
			return finalText(fmt.Sprintf(
				"You don't have analyst access on %s, and no other topics grant you authoring rights.", topic)), nil
		}
		return finalText(fmt.Sprintf(
			"You don't have analyst access on %s. You can author content on %s.",
			topic, joinOr(accessible))), nil
	}

	prompt := lastUserMessage(st)
	var existing *models.Article
	if id := targetArticleID(st); id != "" {
		found, err := a.deps.Articles.Get(ctx, id)
		if err != nil && !errors.Is(err, articles.ErrNotFound) {
			return nil, fmt.Errorf("load article: %w", err)
		}
		existing = found
	}

	result, err := a.deps.Authoring.Draft(ctx, &contracts.AuthoringRequest{
		Topic:    topic,
		Prompt:   prompt,
		Existing: existing,
	})
	if err != nil {
		return nil, fmt.Errorf("draft content: %w", err)
	}

	var article *models.Article
	if existing != nil {
		article, err = a.deps.Articles.UpdateContent(ctx, existing.ID, result.Headline, result.Content, result.Keywords)
		if err != nil {
			var invalid *articles.ErrInvalidTransition
			if errors.As(err, &invalid) {
				return finalText(fmt.Sprintf("I can't revise that article: %s", invalid.Hint)), nil
			}
			return nil, fmt.Errorf("update article: %w", err)
		}
	} else {
		article, err = a.deps.Articles.Create(ctx, topic, result.Headline, st.UserContext.UserID)
		if err != nil {
			return nil, fmt.Errorf("create article: %w", err)
		}
		article, err = a.deps.Articles.UpdateContent(ctx, article.ID, result.Headline, result.Content, result.Keywords)
		if err != nil {
			return nil, fmt.Errorf("fill draft: %w", err)
		}
		a.deps.Catalog.Invalidate()
	}

	action := "draft_created"
	text := fmt.Sprintf("I've drafted %q for %s. Review it in the editor pane and submit it when ready.", result.Headline, topic)
	if existing != nil {
		action = "draft_revised"
		text = fmt.Sprintf("I've revised %q. The updated draft is in the editor pane.", result.Headline)
	}

	return &models.StateUpdate{
		ResponseText: text,
		Articles:     []models.Article{*article},
		EditorContent: &models.EditorContent{
			Headline:  result.Headline,
			Content:   result.Content,
			Keywords:  result.Keywords,
			ArticleID: article.ID,
			Action:    action,
			Timestamp: article.UpdatedAt,
		},
		IsFinal: true,
	}, nil
}
