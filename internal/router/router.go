// Package router implements the briefdesk routing state machine.
//
// Route is a pure, total function from the classified intent and the current
// UI section to a handler name. Priority order, highest first:
//
//  1. Navigation intents — and ui_action intents whose action type is "goto"
//     or starts with "goto_" — always route to the navigation handler,
//     regardless of the current section or role. Users must always be able
//     to navigate away by chat from any page.
//  2. Entitlement questions route to the entitlements handler.
//  3. For a known section, the role derived from the section name maps to
//     the same-named handler (reader → reader, analyst → analyst,
//     editor → editor, admin → admin).
//  4. Otherwise the intent type picks a fallback handler (ui_action →
//     reader, content_generation → analyst, editor_workflow → editor,
//     general_chat → general_chat).
//
// Unroutable combinations resolve to general_chat with a logged warning; the
// request never fails on routing.
package router

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/briefdesk/briefdesk/internal/navigation"
	"github.com/briefdesk/briefdesk/pkg/models"
)

// roleHandlers maps a section-derived role to its same-named handler.
var roleHandlers = map[models.Role]models.HandlerName{
	models.RoleReader:  models.HandlerReader,
	models.RoleEditor:  models.HandlerEditor,
	models.RoleAnalyst: models.HandlerAnalyst,
	models.RoleAdmin:   models.HandlerAdmin,
}

// intentFallbacks maps an intent type to its fallback handler when the
// current section gives no better answer.
var intentFallbacks = map[models.IntentType]models.HandlerName{
	models.IntentUIAction:          models.HandlerReader,
	models.IntentContentGeneration: models.HandlerAnalyst,
	models.IntentEditorWorkflow:    models.HandlerEditor,
	models.IntentGeneralChat:       models.HandlerGeneralChat,
}

// Router selects handlers for classified intents. It consults the section
// registry but performs no I/O and keeps no mutable state.
type Router struct {
	registry *navigation.Registry
}

// New creates a router over the given section registry.
func New(registry *navigation.Registry) *Router {
	return &Router{registry: registry}
}

// Route selects the handler for a classified intent. Deterministic and
// total; the returned reason is the audit trail entry explaining the
// decision.
func (r *Router) Route(intent *models.IntentClassification, section string) (models.HandlerName, string) {
	if intent == nil {
		log.Warn().Str("section", section).Msg("routing without intent, defaulting to general_chat")
		return models.HandlerGeneralChat, "no intent classification available"
	}

	// Priority 1: navigation always wins.
	if intent.IntentType == models.IntentNavigation {
		return models.HandlerNavigation, "navigation intent takes priority over current section"
	}
	if intent.IntentType == models.IntentUIAction && isGotoAction(intent.Detail(models.DetailActionType)) {
		return models.HandlerNavigation,
			fmt.Sprintf("ui_action %q is a navigation action", intent.Detail(models.DetailActionType))
	}

	// Priority 2: entitlement questions.
	if intent.IntentType == models.IntentEntitlements {
		return models.HandlerEntitlements, "entitlements question"
	}

	// Priority 3: a known section's role picks the same-named handler.
	// Unknown or empty sections fall through to the intent fallback.
	if _, known := r.registry.Get(section); known {
		role := navigation.RoleForSection(section)
		if h, ok := roleHandlers[role]; ok {
			return h, fmt.Sprintf("section %q implies role %s", section, role)
		}
	}

	// Priority 4: fallback by intent type.
	if h, ok := intentFallbacks[intent.IntentType]; ok {
		return h, fmt.Sprintf("fallback for intent %s", intent.IntentType)
	}

	log.Warn().
		Str("intent_type", string(intent.IntentType)).
		Str("section", section).
		Msg("unroutable intent, defaulting to general_chat")
	return models.HandlerGeneralChat, fmt.Sprintf("unroutable intent %q", intent.IntentType)
}

// isGotoAction reports whether a ui_action action type is really navigation.
func isGotoAction(actionType string) bool {
	return actionType == "goto" || strings.HasPrefix(actionType, "goto_")
}
