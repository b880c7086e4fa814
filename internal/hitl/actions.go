package hitl

import (
	"fmt"

	"github.com/briefdesk/briefdesk/pkg/models"
)

// ActionTemplate drives the confirmation descriptor for one destructive
// action type. Title and MessageFmt are shown to the human; MessageFmt takes
// the article id. RequiredRole is re-validated against the caller's current
// scopes at resume time, not just when the confirmation is issued.
type ActionTemplate struct {
	Type          string
	RequiredRole  models.Role
	Title         string
	MessageFmt    string
	ConfirmLabel  string
	CancelLabel   string
	ConfirmMethod string
}

// resumeEndpoint is where the client sends the human decision.
const resumeEndpoint = "/api/v1/chat/resume"

// actionTemplates is the closed set of destructive actions. Anything not in
// this table is either not destructive (handlers execute it directly) or
// unknown (rejected).
var actionTemplates = map[string]ActionTemplate{
	"publish_article": {
		Type:          "publish_article",
		RequiredRole:  models.RoleEditor,
		Title:         "Publish article?",
		MessageFmt:    "This will publish article %s to all subscribers. Published articles are visible immediately.",
		ConfirmLabel:  "Publish",
		CancelLabel:   "Cancel",
		ConfirmMethod: "POST",
	},
	"delete_article": {
		Type:          "delete_article",
		RequiredRole:  models.RoleEditor,
		Title:         "Delete article?",
		MessageFmt:    "This will delete article %s. It will no longer be visible to readers.",
		ConfirmLabel:  "Delete",
		CancelLabel:   "Keep",
		ConfirmMethod: "DELETE",
	},
	"deactivate_article": {
		Type:          "deactivate_article",
		RequiredRole:  models.RoleEditor,
		Title:         "Deactivate article?",
		MessageFmt:    "This will deactivate article %s and remove it from all reader views.",
		ConfirmLabel:  "Deactivate",
		CancelLabel:   "Cancel",
		ConfirmMethod: "POST",
	},
	"recall_article": {
		Type:          "recall_article",
		RequiredRole:  models.RoleEditor,
		Title:         "Recall published article?",
		MessageFmt:    "This will recall article %s from publication back to draft. Subscribers lose access immediately.",
		ConfirmLabel:  "Recall",
		CancelLabel:   "Cancel",
		ConfirmMethod: "POST",
	},
	"purge_article": {
		Type:          "purge_article",
		RequiredRole:  models.RoleAdmin,
		Title:         "Permanently purge article?",
		MessageFmt:    "This will permanently erase article %s, including all revisions. This cannot be undone.",
		ConfirmLabel:  "Purge forever",
		CancelLabel:   "Cancel",
		ConfirmMethod: "POST",
	},
}

// IsDestructive reports whether actionType must be gated by a confirmation.
func IsDestructive(actionType string) bool {
	_, ok := actionTemplates[actionType]
	return ok
}

// RequiredRoleFor returns the role an action demands, or false for unknown
// action types.
func RequiredRoleFor(actionType string) (models.Role, bool) {
	t, ok := actionTemplates[actionType]
	if !ok {
		return "", false
	}
	return t.RequiredRole, true
}

// buildDescriptor renders the template into a descriptor for the client.
func buildDescriptor(id, threadID string, t ActionTemplate, articleID string) *models.ConfirmationDescriptor {
	return &models.ConfirmationDescriptor{
		ID:              id,
		Type:            t.Type,
		Title:           t.Title,
		Message:         fmt.Sprintf(t.MessageFmt, articleID),
		ArticleID:       articleID,
		ResourceID:      articleID,
		ConfirmLabel:    t.ConfirmLabel,
		CancelLabel:     t.CancelLabel,
		ConfirmEndpoint: resumeEndpoint,
		ConfirmMethod:   t.ConfirmMethod,
		ConfirmBody: map[string]string{
			"thread_id": threadID,
			"decision":  string(models.DecisionApprove),
		},
	}
}
