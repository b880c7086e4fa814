package navigation

import (
	"testing"

	"github.com/briefdesk/briefdesk/pkg/models"
)

func TestGetResolvesEveryRegisteredSection(t *testing.T) {
	r := NewRegistry()
	for _, want := range r.Sections() {
		got, ok := r.Get(want.Name)
		if !ok {
			t.Fatalf("Get(%q) not found", want.Name)
		}
		if got.Name != want.Name || got.RequiredRole != want.RequiredRole {
			t.Errorf("Get(%q) = %+v, want %+v", want.Name, got, want)
		}
	}
}

func TestInferMatchesLongestKeyword(t *testing.T) {
	r := NewRegistry()
	s, ok := r.Infer("open the review queue please")
	if !ok || s.Name != "editor_review" {
		t.Fatalf("Infer = %+v, want editor_review", s)
	}
}

func TestRoleForSectionPrefixRules(t *testing.T) {
	cases := map[string]models.Role{
		"admin_panel":    models.RoleAdmin,
		"analyst_editor": models.RoleAnalyst,
		"editor_review":  models.RoleEditor,
		"home":           models.RoleReader,
		"unknown":        models.RoleReader,
		"":               models.RoleReader,
	}
	for section, want := range cases {
		if got := RoleForSection(section); got != want {
			t.Errorf("RoleForSection(%q) = %q, want %q", section, got, want)
		}
	}
}
