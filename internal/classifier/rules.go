package classifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/briefdesk/briefdesk/internal/authz"
	"github.com/briefdesk/briefdesk/pkg/models"
)

// Rule-based fallback classification. Fixed confidences: explicit
// navigation phrasing scores 0.8, everything else 0.7 or lower and the
// default bucket 0.5, so callers can threshold on them deterministically.

var (
	navigationPhrases = []string{
		"go to", "go home", "take me to", "navigate to", "open the",
		"switch to", "go back", "take me back",
	}
	entitlementPhrases = []string{
		"permission", "entitle", "am i allowed", "what can i do",
		"my role", "my access", "access to",
	}
	editorPhrases = []string{
		"submit for review", "publish", "approve", "reject",
		"send to editor", "review queue", "recall",
	}
	contentPhrases = []string{
		"write ", "draft ", "generate", "summarize", "headline",
		"rewrite", "compose", "create an article", "create a brief",
	}
	uiActionPhrases = []string{
		"delete", "deactivate", "purge", "refresh", "filter",
		"export", "close the", "clear the",
	}

	articleIDPattern = regexp.MustCompile(`\barticle\s+([a-z0-9][a-z0-9-]*)`)
)

func (c *Classifier) classifyByRules(ctx context.Context, message string, nav models.NavigationContext, scopes []string) models.IntentClassification {
	lower := strings.ToLower(message)
	details := map[string]string{}

	if m := articleIDPattern.FindStringSubmatch(lower); m != nil {
		details[models.DetailArticleID] = m[1]
	}
	if topic := c.matchTopic(ctx, lower); topic != "" {
		details[models.DetailTopic] = topic
	}

	if phrase := firstMatch(lower, navigationPhrases); phrase != "" {
		if phrase == "go back" || phrase == "take me back" {
			details[models.DetailActionType] = "goto_back"
		} else if section, ok := c.registry.Infer(lower); ok {
			details[models.DetailTarget] = section.Name
		}
		details[models.DetailReason] = "matched navigation phrase " + quote(phrase)
		return models.IntentClassification{IntentType: models.IntentNavigation, Confidence: 0.8, Details: details}
	}

	if phrase := firstMatch(lower, entitlementPhrases); phrase != "" {
		details[models.DetailReason] = "matched entitlements phrase " + quote(phrase)
		return models.IntentClassification{IntentType: models.IntentEntitlements, Confidence: 0.7, Details: details}
	}

	// Workflow and generation intents only make sense for users who hold
	// the role anywhere; otherwise the same words read as conversation.
	if phrase := firstMatch(lower, editorPhrases); phrase != "" && holdsRoleSomewhere(scopes, models.RoleEditor) {
		details[models.DetailReason] = "matched editor workflow phrase " + quote(phrase)
		return models.IntentClassification{IntentType: models.IntentEditorWorkflow, Confidence: 0.7, Details: details}
	}

	if phrase := firstMatch(lower, contentPhrases); phrase != "" && holdsRoleSomewhere(scopes, models.RoleAnalyst) {
		details[models.DetailReason] = "matched content generation phrase " + quote(phrase)
		return models.IntentClassification{IntentType: models.IntentContentGeneration, Confidence: 0.7, Details: details}
	}

	if phrase := firstMatch(lower, uiActionPhrases); phrase != "" {
		details[models.DetailActionType] = actionForPhrase(phrase)
		details[models.DetailReason] = "matched action phrase " + quote(phrase)
		return models.IntentClassification{IntentType: models.IntentUIAction, Confidence: 0.6, Details: details}
	}

	details[models.DetailReason] = "no rule matched"
	return models.IntentClassification{IntentType: models.IntentGeneralChat, Confidence: 0.5, Details: details}
}

func (c *Classifier) matchTopic(ctx context.Context, lower string) string {
	if c.catalog == nil {
		return ""
	}
	for _, t := range c.catalog.Topics(ctx) {
		if strings.Contains(lower, strings.ToLower(t)) {
			return t
		}
	}
	return ""
}

func firstMatch(lower string, phrases []string) string {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return p
		}
	}
	return ""
}

func holdsRoleSomewhere(scopes []string, role models.Role) bool {
	for _, s := range scopes {
		_, r, ok := authz.ParseScope(s)
		if !ok {
			continue
		}
		if authz.RoleAtLeast(r, role) {
			return true
		}
	}
	return false
}

func actionForPhrase(phrase string) string {
	switch {
	case strings.HasPrefix(phrase, "delete"):
		return "delete_article"
	case strings.HasPrefix(phrase, "deactivate"):
		return "deactivate_article"
	case strings.HasPrefix(phrase, "purge"):
		return "purge_article"
	case strings.HasPrefix(phrase, "refresh"):
		return "refresh_view"
	case strings.HasPrefix(phrase, "filter"):
		return "apply_filter"
	case strings.HasPrefix(phrase, "export"):
		return "export_view"
	default:
		return "ui_action"
	}
}

func quote(s string) string { return `"` + s + `"` }
