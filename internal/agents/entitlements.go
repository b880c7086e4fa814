package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/briefdesk/briefdesk/pkg/models"
)

// handleEntitlements explains the caller's own access. Read-only: it never
// grants, revokes, or escalates anything.
func (a *Agents) handleEntitlements(_ context.Context, st *models.ConversationState) (*models.StateUpdate, error) {
	roles := st.UserContext.TopicRoles
	if len(roles) == 0 {
		return finalText("You currently have no scope grants. Contact your administrator to get access to a topic."), nil
	}

	topics := make([]string, 0, len(roles))
	for topic := range roles {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	var b strings.Builder
	b.WriteString("Here's your access: ")
	parts := make([]string, 0, len(topics))
	for _, topic := range topics {
		if topic == models.ScopeGlobal {
			parts = append(parts, fmt.Sprintf("%s on every topic", roles[topic]))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s on %s", roles[topic], topic))
	}
	b.WriteString(strings.Join(parts, "; "))
	b.WriteString(". ")
	b.WriteString(roleCapabilities(st.UserContext.HighestRole))
	return finalText(b.String()), nil
}

func roleCapabilities(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return "As an admin you can also manage the platform, deactivate content, and purge articles."
	case models.RoleAnalyst:
		return "As an analyst you can draft and revise briefs in your topics."
	case models.RoleEditor:
		return "As an editor you can review, reject, and publish submitted briefs."
	default:
		return "As a reader you can browse and search published articles."
	}
}
