package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/briefdesk/briefdesk/internal/articles"
	"github.com/briefdesk/briefdesk/internal/authz"
	"github.com/briefdesk/briefdesk/internal/hitl"
	"github.com/briefdesk/briefdesk/internal/navigation"
	"github.com/briefdesk/briefdesk/internal/state"
	"github.com/briefdesk/briefdesk/pkg/contracts"
	"github.com/briefdesk/briefdesk/pkg/models"
)

func newTestAgents(t *testing.T) (*Agents, *articles.Store) {
	t.Helper()
	arts := articles.NewStore()
	st := state.NewMemoryStore()
	reg := navigation.NewRegistry()
	return New(Deps{
		Registry: reg,
		Catalog:  navigation.NewTopicCatalog(arts, time.Minute),
		Articles: arts,
		HITL:     hitl.NewManager(st, arts, time.Minute),
	}), arts
}

func convState(threadID, message string, scopes []string, nav models.NavigationContext, intent *models.IntentClassification) *models.ConversationState {
	uc := models.UserContext{UserID: "u-1", Scopes: scopes}
	authz.EnrichUserContext(&uc)
	return &models.ConversationState{
		ThreadID:          threadID,
		Messages:          []models.Message{{Role: "user", Content: message, Timestamp: time.Now()}},
		UserContext:       uc,
		NavigationContext: nav,
		Intent:            intent,
	}
}

func intentWith(t models.IntentType, details map[string]string) *models.IntentClassification {
	return &models.IntentClassification{IntentType: t, Confidence: 0.9, Details: details}
}

// ── navigation ──────────────────────────────────────────────

func TestNavigationChecksTargetAreaPermission(t *testing.T) {
	a, _ := newTestAgents(t)
	st := convState("th", "go to the admin panel", []string{"energy:reader"},
		models.NavigationContext{Section: "home"},
		intentWith(models.IntentNavigation, map[string]string{models.DetailTarget: "admin_panel"}))

	update, err := a.Dispatch(context.Background(), models.HandlerNavigation, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if update.UIAction != nil {
		t.Errorf("uiAction issued despite missing permission: %+v", update.UIAction)
	}
	if !strings.Contains(update.ResponseText, "admin") {
		t.Errorf("denial should name the required role, got %q", update.ResponseText)
	}
}

func TestNavigationGrantedReturnsGoto(t *testing.T) {
	a, _ := newTestAgents(t)
	st := convState("th", "take me to market overview", []string{"energy:reader"},
		models.NavigationContext{Section: "home", Topic: "energy"},
		intentWith(models.IntentNavigation, map[string]string{models.DetailTarget: "market_overview"}))

	update, err := a.Dispatch(context.Background(), models.HandlerNavigation, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if update.UIAction == nil || update.UIAction.Type != "goto" {
		t.Fatalf("uiAction = %+v, want goto", update.UIAction)
	}
	if update.UIAction.Params["section"] != "market_overview" {
		t.Errorf("section param = %q", update.UIAction.Params["section"])
	}
	if update.NavigationCommand == nil || update.NavigationCommand.Target != "market_overview" {
		t.Errorf("navigation command = %+v", update.NavigationCommand)
	}
}

func TestNavigationGotoBackSkipsPermissionCheck(t *testing.T) {
	a, _ := newTestAgents(t)
	st := convState("th", "go back", nil,
		models.NavigationContext{Section: "admin_panel"},
		intentWith(models.IntentNavigation, map[string]string{models.DetailActionType: "goto_back"}))

	update, err := a.Dispatch(context.Background(), models.HandlerNavigation, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if update.UIAction == nil || update.UIAction.Type != "goto_back" {
		t.Fatalf("uiAction = %+v, want goto_back", update.UIAction)
	}
}

func TestNavigationInfersTargetFromMessage(t *testing.T) {
	a, _ := newTestAgents(t)
	st := convState("th", "show me the review queue", []string{"global:editor"},
		models.NavigationContext{Section: "home"},
		intentWith(models.IntentNavigation, nil))

	update, err := a.Dispatch(context.Background(), models.HandlerNavigation, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if update.NavigationCommand == nil || update.NavigationCommand.Target != "editor_review" {
		t.Fatalf("navigation command = %+v, want editor_review", update.NavigationCommand)
	}
}

// ── UI actions ──────────────────────────────────────────────

func TestDestructiveUIActionIsGated(t *testing.T) {
	a, arts := newTestAgents(t)
	art, _ := arts.Create(context.Background(), "energy", "Pipelines", "ana")

	st := convState("th-del", "delete article "+art.ID, []string{"global:admin"},
		models.NavigationContext{Section: "article_search"},
		intentWith(models.IntentUIAction, map[string]string{
			models.DetailActionType: "delete_article",
			models.DetailArticleID:  art.ID,
		}))

	update, err := a.Dispatch(context.Background(), models.HandlerReader, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !update.RequiresHITL || update.Confirmation == nil {
		t.Fatalf("want confirmation + requiresHITL, got %+v", update)
	}
	if update.Confirmation.Type != "delete_article" {
		t.Errorf("confirmation type = %q", update.Confirmation.Type)
	}
	if update.Confirmation.ConfirmMethod != "DELETE" {
		t.Errorf("confirm method = %q, want DELETE", update.Confirmation.ConfirmMethod)
	}

	got, err := arts.Get(context.Background(), art.ID)
	if err != nil {
		t.Fatalf("article gone: %v", err)
	}
	if got.Status == models.ArticleDeactivated {
		t.Error("article deactivated before confirmation")
	}
}

func TestDestructiveUIActionWithoutArticleIDPrompts(t *testing.T) {
	a, _ := newTestAgents(t)
	st := convState("th", "delete it", []string{"global:admin"},
		models.NavigationContext{Section: "article_search"},
		intentWith(models.IntentUIAction, map[string]string{models.DetailActionType: "delete_article"}))

	update, err := a.Dispatch(context.Background(), models.HandlerReader, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if update.Confirmation != nil {
		t.Error("confirmation issued without an article id")
	}
	if !strings.Contains(strings.ToLower(update.ResponseText), "which article") {
		t.Errorf("want a prompt for the article id, got %q", update.ResponseText)
	}
}

func TestNonDestructiveUIActionExecutesDirectly(t *testing.T) {
	a, _ := newTestAgents(t)
	st := convState("th", "refresh the view", []string{"energy:reader"},
		models.NavigationContext{Section: "market_overview", Topic: "energy"},
		intentWith(models.IntentUIAction, map[string]string{models.DetailActionType: "refresh_view"}))

	update, err := a.Dispatch(context.Background(), models.HandlerReader, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if update.Confirmation != nil || update.RequiresHITL {
		t.Error("non-destructive action should not be gated")
	}
	if update.UIAction == nil || update.UIAction.Type != "refresh_view" {
		t.Fatalf("uiAction = %+v, want refresh_view", update.UIAction)
	}
}

func TestNonDestructiveUIActionRequiresSectionRole(t *testing.T) {
	a, _ := newTestAgents(t)
	st := convState("th", "refresh the view", nil,
		models.NavigationContext{Section: "editor_review"},
		intentWith(models.IntentUIAction, map[string]string{models.DetailActionType: "refresh_view"}))

	update, err := a.Dispatch(context.Background(), models.HandlerReader, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if update.UIAction != nil {
		t.Errorf("uiAction issued despite missing permission: %+v", update.UIAction)
	}
	if !strings.Contains(update.ResponseText, "editor") {
		t.Errorf("denial should name the required role, got %q", update.ResponseText)
	}
}

// ── analyst ─────────────────────────────────────────────────

func TestContentGenerationDenialNamesAccessibleTopics(t *testing.T) {
	a, _ := newTestAgents(t)
	st := convState("th", "draft a brief on semiconductors", []string{"energy:analyst", "macro:analyst"},
		models.NavigationContext{Section: "analyst_editor", Topic: "semiconductors"},
		intentWith(models.IntentContentGeneration, map[string]string{models.DetailTopic: "semiconductors"}))

	update, err := a.Dispatch(context.Background(), models.HandlerAnalyst, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	for _, topic := range []string{"energy", "macro"} {
		if !strings.Contains(update.ResponseText, topic) {
			t.Errorf("denial %q should name accessible topic %s", update.ResponseText, topic)
		}
	}
	if update.EditorContent != nil {
		t.Error("content generated despite denial")
	}
}

func TestContentGenerationCreatesDraft(t *testing.T) {
	a, arts := newTestAgents(t)
	st := convState("th", "write a brief about gas storage levels", []string{"energy:analyst"},
		models.NavigationContext{Section: "analyst_editor", Topic: "energy"},
		intentWith(models.IntentContentGeneration, map[string]string{models.DetailTopic: "energy"}))

	update, err := a.Dispatch(context.Background(), models.HandlerAnalyst, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if update.EditorContent == nil || update.EditorContent.ArticleID == "" {
		t.Fatalf("editor content = %+v, want a created draft", update.EditorContent)
	}
	got, err := arts.Get(context.Background(), update.EditorContent.ArticleID)
	if err != nil {
		t.Fatalf("created article: %v", err)
	}
	if got.Status != models.ArticleDraft {
		t.Errorf("status = %q, want draft", got.Status)
	}
}

// ── editor workflow ─────────────────────────────────────────

func TestPublishDraftIsTerminalWithHint(t *testing.T) {
	a, arts := newTestAgents(t)
	art, _ := arts.Create(context.Background(), "energy", "Grid strain", "ana")

	st := convState("th", "publish article "+art.ID, []string{"energy:editor"},
		models.NavigationContext{Section: "editor_review"},
		intentWith(models.IntentEditorWorkflow, map[string]string{
			models.DetailActionType: "publish",
			models.DetailArticleID:  art.ID,
		}))

	update, err := a.Dispatch(context.Background(), models.HandlerEditor, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if update.Confirmation != nil {
		t.Error("confirmation issued for an invalid transition")
	}
	if !strings.Contains(update.ResponseText, "submit it for review first") {
		t.Errorf("hint missing, got %q", update.ResponseText)
	}
}

func TestPublishInReviewRequestsConfirmation(t *testing.T) {
	a, arts := newTestAgents(t)
	art, _ := arts.Create(context.Background(), "energy", "Grid strain", "ana")
	if _, err := arts.Submit(context.Background(), art.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	st := convState("th-pub", "publish article "+art.ID, []string{"energy:editor"},
		models.NavigationContext{Section: "editor_review"},
		intentWith(models.IntentEditorWorkflow, map[string]string{
			models.DetailActionType: "publish",
			models.DetailArticleID:  art.ID,
		}))

	update, err := a.Dispatch(context.Background(), models.HandlerEditor, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if update.Confirmation == nil || update.Confirmation.Type != "publish_article" {
		t.Fatalf("confirmation = %+v, want publish_article", update.Confirmation)
	}
	got, _ := arts.Get(context.Background(), art.ID)
	if got.Status != models.ArticleEditor {
		t.Errorf("status changed to %q before approval", got.Status)
	}
}

func TestSubmitExecutesDirectly(t *testing.T) {
	a, arts := newTestAgents(t)
	art, _ := arts.Create(context.Background(), "energy", "Grid strain", "ana")

	st := convState("th", "submit article "+art.ID+" for review", []string{"energy:analyst"},
		models.NavigationContext{Section: "analyst_editor"},
		intentWith(models.IntentEditorWorkflow, map[string]string{
			models.DetailActionType: "submit",
			models.DetailArticleID:  art.ID,
		}))

	update, err := a.Dispatch(context.Background(), models.HandlerEditor, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if update.Confirmation != nil {
		t.Error("submit is not destructive, no confirmation expected")
	}
	got, _ := arts.Get(context.Background(), art.ID)
	if got.Status != models.ArticleEditor {
		t.Errorf("status = %q, want editor", got.Status)
	}
}

func TestEditorWorkflowPermission(t *testing.T) {
	a, arts := newTestAgents(t)
	art, _ := arts.Create(context.Background(), "energy", "Grid strain", "ana")
	if _, err := arts.Submit(context.Background(), art.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	st := convState("th", "publish article "+art.ID, []string{"energy:reader"},
		models.NavigationContext{Section: "editor_review"},
		intentWith(models.IntentEditorWorkflow, map[string]string{
			models.DetailActionType: "publish",
			models.DetailArticleID:  art.ID,
		}))

	update, err := a.Dispatch(context.Background(), models.HandlerEditor, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if update.Confirmation != nil {
		t.Error("confirmation issued despite missing role")
	}
	if !strings.Contains(update.ResponseText, "editor") {
		t.Errorf("denial should name the required role, got %q", update.ResponseText)
	}
}

// ── entitlements & general chat ─────────────────────────────

func TestEntitlementsExplainsAccess(t *testing.T) {
	a, _ := newTestAgents(t)
	st := convState("th", "what can I do here?", []string{"energy:analyst", "macro:reader"},
		models.NavigationContext{Section: "entitlements"},
		intentWith(models.IntentEntitlements, nil))

	update, err := a.Dispatch(context.Background(), models.HandlerEntitlements, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	for _, want := range []string{"analyst on energy", "reader on macro"} {
		if !strings.Contains(update.ResponseText, want) {
			t.Errorf("response %q missing %q", update.ResponseText, want)
		}
	}
}

func TestGeneralChatGroundsInPublishedContent(t *testing.T) {
	a, arts := newTestAgents(t)
	ctx := context.Background()
	art, _ := arts.Create(ctx, "energy", "Storage levels hit record", "ana")
	arts.UpdateContent(ctx, art.ID, art.Headline, "European gas storage levels reached a seasonal record this week.", nil)
	arts.Submit(ctx, art.ID)
	arts.Publish(ctx, art.ID)

	st := convState("th", "what's happening with storage levels?", []string{"energy:reader"},
		models.NavigationContext{Section: "home"},
		intentWith(models.IntentGeneralChat, nil))

	update, err := a.Dispatch(ctx, models.HandlerGeneralChat, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(update.ResponseText, "Storage levels hit record") {
		t.Errorf("response %q not grounded in the published article", update.ResponseText)
	}
}

type brokenRetriever struct{}

func (brokenRetriever) Retrieve(ctx context.Context, query string, limit int) ([]contracts.Snippet, error) {
	return nil, errors.New("index offline")
}

func TestGeneralChatDegradesWhenRetrievalFails(t *testing.T) {
	arts := articles.NewStore()
	stateStore := state.NewMemoryStore()
	a := New(Deps{
		Registry:  navigation.NewRegistry(),
		Catalog:   navigation.NewTopicCatalog(arts, time.Minute),
		Articles:  arts,
		HITL:      hitl.NewManager(stateStore, arts, time.Minute),
		Retriever: brokenRetriever{},
	})

	st := convState("th", "what's new?", nil, models.NavigationContext{}, intentWith(models.IntentGeneralChat, nil))
	update, err := a.Dispatch(context.Background(), models.HandlerGeneralChat, st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if update.ResponseText == "" {
		t.Error("retrieval failure should still produce an answer")
	}
}

func TestDispatchUnknownHandlerFallsBack(t *testing.T) {
	a, _ := newTestAgents(t)
	st := convState("th", "hello", nil, models.NavigationContext{}, intentWith(models.IntentGeneralChat, nil))
	update, err := a.Dispatch(context.Background(), models.HandlerName("mystery"), st)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if update.ResponseText == "" {
		t.Error("fallback handler produced no response")
	}
}
