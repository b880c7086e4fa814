package router_test

import (
	"testing"

	"github.com/briefdesk/briefdesk/internal/navigation"
	"github.com/briefdesk/briefdesk/internal/router"
	"github.com/briefdesk/briefdesk/pkg/models"
)

func newTestRouter(t *testing.T) *router.Router {
	t.Helper()
	return router.New(navigation.NewRegistry())
}

func intent(it models.IntentType, details map[string]string) *models.IntentClassification {
	return &models.IntentClassification{IntentType: it, Confidence: 0.9, Details: details}
}

func TestRoute_NavigationAlwaysWins(t *testing.T) {
	r := newTestRouter(t)

	sections := []string{"home", "analyst_editor", "editor_review", "admin_panel", "", "unknown_section"}
	for _, section := range sections {
		got, _ := r.Route(intent(models.IntentNavigation, nil), section)
		if got != models.HandlerNavigation {
			t.Errorf("Route(navigation, %q) = %s, want navigation", section, got)
		}
	}
}

func TestRoute_GotoUIActionRoutesToNavigation(t *testing.T) {
	r := newTestRouter(t)

	for _, actionType := range []string{"goto", "goto_home", "goto_back", "goto_article_search"} {
		got, _ := r.Route(intent(models.IntentUIAction, map[string]string{
			models.DetailActionType: actionType,
		}), "analyst_editor")
		if got != models.HandlerNavigation {
			t.Errorf("Route(ui_action %q) = %s, want navigation", actionType, got)
		}
	}

	// A non-goto ui_action must not route to navigation.
	got, _ := r.Route(intent(models.IntentUIAction, map[string]string{
		models.DetailActionType: "open_filters",
	}), "")
	if got == models.HandlerNavigation {
		t.Error("non-goto ui_action should not route to navigation")
	}
}

func TestRoute_Entitlements(t *testing.T) {
	r := newTestRouter(t)

	got, _ := r.Route(intent(models.IntentEntitlements, nil), "analyst_editor")
	if got != models.HandlerEntitlements {
		t.Errorf("Route(entitlements) = %s, want entitlements", got)
	}
}

func TestRoute_SectionRolePicksHandler(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		section string
		want    models.HandlerName
	}{
		{"analyst_editor", models.HandlerAnalyst},
		{"editor_review", models.HandlerEditor},
		{"admin_panel", models.HandlerAdmin},
		{"home", models.HandlerReader},
		{"article_search", models.HandlerReader},
	}

	for _, tt := range tests {
		got, reason := r.Route(intent(models.IntentGeneralChat, nil), tt.section)
		if got != tt.want {
			t.Errorf("Route(general_chat, %q) = %s (%s), want %s", tt.section, got, reason, tt.want)
		}
	}
}

func TestRoute_UnknownSectionFallsBackByIntent(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		it   models.IntentType
		want models.HandlerName
	}{
		{models.IntentUIAction, models.HandlerReader},
		{models.IntentContentGeneration, models.HandlerAnalyst},
		{models.IntentEditorWorkflow, models.HandlerEditor},
		{models.IntentGeneralChat, models.HandlerGeneralChat},
	}

	for _, tt := range tests {
		got, _ := r.Route(intent(tt.it, nil), "somewhere_new")
		if got != tt.want {
			t.Errorf("Route(%s, unknown section) = %s, want %s", tt.it, got, tt.want)
		}
	}
}

func TestRoute_UnroutableDefaultsToGeneralChat(t *testing.T) {
	r := newTestRouter(t)

	got, _ := r.Route(intent(models.IntentType("bogus"), nil), "")
	if got != models.HandlerGeneralChat {
		t.Errorf("Route(bogus intent) = %s, want general_chat", got)
	}

	got, _ = r.Route(nil, "home")
	if got != models.HandlerGeneralChat {
		t.Errorf("Route(nil intent) = %s, want general_chat", got)
	}
}

func TestRoleForSection_Canonical(t *testing.T) {
	tests := []struct {
		section string
		want    models.Role
	}{
		{"admin_panel", models.RoleAdmin},
		{"analyst_editor", models.RoleAnalyst},
		{"editor_review", models.RoleEditor},
		{"home", models.RoleReader},
		{"article_search", models.RoleReader},
		{"", models.RoleReader},
		{"ANALYST_EDITOR", models.RoleAnalyst},
	}

	for _, tt := range tests {
		if got := navigation.RoleForSection(tt.section); got != tt.want {
			t.Errorf("RoleForSection(%q) = %s, want %s", tt.section, got, tt.want)
		}
	}
}
