package agents

import (
	"context"
	"fmt"

	"github.com/briefdesk/briefdesk/internal/authz"
	"github.com/briefdesk/briefdesk/pkg/models"
)

// handleNavigation resolves a navigation target and checks permission
// against the TARGET area, never the one the user is currently in.
// goto_back carries no permission check; the client's history owns it.
func (a *Agents) handleNavigation(ctx context.Context, st *models.ConversationState) (*models.StateUpdate, error) {
	if st.Intent.Detail(models.DetailActionType) == "goto_back" {
		return &models.StateUpdate{
			ResponseText:      "Taking you back.",
			UIAction:          &models.UIAction{Type: "goto_back"},
			NavigationCommand: &models.NavigationCommand{Action: "goto_back"},
			IsFinal:           true,
		}, nil
	}

	target := st.Intent.Detail(models.DetailTarget)
	if target == "" {
		if section, ok := a.deps.Registry.Infer(lastUserMessage(st)); ok {
			target = section.Name
		}
	}
	if target == "" {
		return finalText("Where would you like to go? You can ask for home, article search, market overview, the analyst editor, the review queue, or your entitlements."), nil
	}

	section, ok := a.deps.Registry.Get(target)
	if !ok {
		if inferred, found := a.deps.Registry.Infer(target); found {
			section = inferred
		} else {
			return finalText(fmt.Sprintf("I don't know a section called %q.", target)), nil
		}
	}

	topic := currentTopic(st)
	if !authz.HasPermission(st.UserContext.Scopes, section.RequiredRole, topic) {
		return finalText(fmt.Sprintf(
			"You don't have access to %s; it requires the %s role.",
			section.Name, section.RequiredRole)), nil
	}

	params := map[string]string{"section": section.Name}
	if topic != "" {
		params["topic"] = topic
	}
	if id := targetArticleID(st); id != "" {
		params["article_id"] = id
	}

	return &models.StateUpdate{
		ResponseText:      fmt.Sprintf("Taking you to %s.", section.Name),
		UIAction:          &models.UIAction{Type: "goto", Params: params},
		NavigationCommand: &models.NavigationCommand{Action: "goto", Target: section.Name, Params: params},
		IsFinal:           true,
	}, nil
}
