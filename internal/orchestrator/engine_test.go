package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/briefdesk/briefdesk/internal/agents"
	"github.com/briefdesk/briefdesk/internal/articles"
	"github.com/briefdesk/briefdesk/internal/classifier"
	"github.com/briefdesk/briefdesk/internal/hitl"
	"github.com/briefdesk/briefdesk/internal/navigation"
	"github.com/briefdesk/briefdesk/internal/router"
	"github.com/briefdesk/briefdesk/internal/state"
	"github.com/briefdesk/briefdesk/pkg/models"
)

type fixture struct {
	engine   *Engine
	store    state.Store
	articles *articles.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stateStore := state.NewMemoryStore()
	arts := articles.NewStore()
	reg := navigation.NewRegistry()
	catalog := navigation.NewTopicCatalog(arts, time.Minute)
	manager := hitl.NewManager(stateStore, arts, time.Minute)
	ag := agents.New(agents.Deps{
		Registry: reg,
		Catalog:  catalog,
		Articles: arts,
		HITL:     manager,
	})
	cls := classifier.New(nil, reg, catalog)
	eng := New(stateStore, cls, router.New(reg), ag, manager)
	return &fixture{engine: eng, store: stateStore, articles: arts}
}

func user(scopes ...string) models.UserContext {
	return models.UserContext{UserID: "u-1", Name: "Sam", Scopes: scopes}
}

func TestGoHomeFromAnalystEditor(t *testing.T) {
	f := newFixture(t)
	resp, err := f.engine.HandleMessage(context.Background(), user("energy:analyst"), &models.ChatRequest{
		ThreadID:          "th-1",
		Message:           "go home",
		NavigationContext: models.NavigationContext{Section: "analyst_editor"},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.AgentType != string(models.HandlerNavigation) {
		t.Errorf("agent = %q, want navigation", resp.AgentType)
	}
	if resp.UIAction == nil || resp.UIAction.Type != "goto" {
		t.Fatalf("uiAction = %+v, want goto", resp.UIAction)
	}
	if resp.UIAction.Params["section"] != "home" {
		t.Errorf("section param = %q, want home", resp.UIAction.Params["section"])
	}
}

func TestDeleteArticleAsAdminIsGated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	art, _ := f.articles.Create(ctx, "energy", "Pipelines under review", "ana")

	resp, err := f.engine.HandleMessage(ctx, user("global:admin"), &models.ChatRequest{
		ThreadID:          "th-2",
		Message:           "delete article " + art.ID,
		NavigationContext: models.NavigationContext{Section: "article_search"},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Confirmation == nil || resp.Confirmation.Type != "delete_article" {
		t.Fatalf("confirmation = %+v, want delete_article", resp.Confirmation)
	}
	if resp.Confirmation.ConfirmMethod != "DELETE" {
		t.Errorf("confirm method = %q, want DELETE", resp.Confirmation.ConfirmMethod)
	}
	if !resp.RequiresHITL {
		t.Error("requiresHITL = false, want true")
	}

	// No deletion happened yet.
	got, err := f.articles.Get(ctx, art.ID)
	if err != nil {
		t.Fatalf("article gone before approval: %v", err)
	}
	if got.Status == models.ArticleDeactivated {
		t.Error("article deactivated before approval")
	}
}

func TestContentGenerationDeniedOutsideScopedTopic(t *testing.T) {
	f := newFixture(t)
	resp, err := f.engine.HandleMessage(context.Background(), user("macro:analyst"), &models.ChatRequest{
		ThreadID:          "th-3",
		Message:           "write a brief on equity flows",
		NavigationContext: models.NavigationContext{Section: "analyst_editor", Topic: "equity"},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(resp.Response, "macro") {
		t.Errorf("denial %q should name the accessible topic macro", resp.Response)
	}
	if resp.EditorContent != nil {
		t.Error("content was produced despite the denial")
	}
}

func TestApproveResumePublishesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	art, _ := f.articles.Create(ctx, "energy", "Storage brief", "ana")
	if _, err := f.articles.Submit(ctx, art.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ed := user("energy:editor")
	resp, err := f.engine.HandleMessage(ctx, ed, &models.ChatRequest{
		ThreadID:          "th-4",
		Message:           "publish article " + art.ID,
		NavigationContext: models.NavigationContext{Section: "editor_review"},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Confirmation == nil {
		t.Fatalf("no confirmation issued, response %q", resp.Response)
	}

	resumed, err := f.engine.Resume(ctx, ed, &models.ResumeRequest{ThreadID: "th-4", Decision: models.DecisionApprove})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.AgentType != "hitl" {
		t.Errorf("agent = %q, want hitl", resumed.AgentType)
	}

	got, _ := f.articles.Get(ctx, art.ID)
	if got.Status != models.ArticlePublished {
		t.Fatalf("status = %q, want published", got.Status)
	}

	_, err = f.engine.Resume(ctx, ed, &models.ResumeRequest{ThreadID: "th-4", Decision: models.DecisionApprove})
	if !errors.Is(err, state.ErrAlreadyResolved) {
		t.Fatalf("second resume err = %v, want ErrAlreadyResolved", err)
	}
}

func TestHistoryAccumulatesAcrossTurns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := user("energy:reader")

	for _, msg := range []string{"hello there", "go home"} {
		if _, err := f.engine.HandleMessage(ctx, u, &models.ChatRequest{
			ThreadID:          "th-5",
			Message:           msg,
			NavigationContext: models.NavigationContext{Section: "home"},
		}); err != nil {
			t.Fatalf("handle %q: %v", msg, err)
		}
	}

	history, err := f.engine.History(ctx, u, "th-5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4 (two user + two assistant turns)", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "assistant" {
		t.Errorf("unexpected turn order: %s, %s", history[0].Role, history[1].Role)
	}

	if err := f.engine.ClearThread(ctx, u, "th-5"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	history, _ = f.engine.History(ctx, u, "th-5")
	if len(history) != 0 {
		t.Errorf("history length after clear = %d, want 0", len(history))
	}
}

func TestThreadsAreIsolatedPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := models.UserContext{UserID: "u-alice", Scopes: []string{"energy:reader"}}
	bob := models.UserContext{UserID: "u-bob", Scopes: []string{"energy:reader"}}

	for _, u := range []models.UserContext{alice, bob} {
		if _, err := f.engine.HandleMessage(ctx, u, &models.ChatRequest{
			ThreadID:          "shared-id",
			Message:           "hello from " + u.UserID,
			NavigationContext: models.NavigationContext{Section: "home"},
		}); err != nil {
			t.Fatalf("handle for %s: %v", u.UserID, err)
		}
	}

	history, err := f.engine.History(ctx, alice, "shared-id")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2 (alice's turns only)", len(history))
	}
	if strings.Contains(history[0].Content, "u-bob") {
		t.Error("alice's thread contains bob's message")
	}
}

func TestResponseCarriesThreadID(t *testing.T) {
	f := newFixture(t)
	resp, err := f.engine.HandleMessage(context.Background(), user("energy:reader"), &models.ChatRequest{
		Message:           "hello",
		NavigationContext: models.NavigationContext{Section: "home"},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.ThreadID == "" {
		t.Fatal("response missing thread id for an engine-minted thread")
	}

	// Echoing the returned id back lands on the same thread.
	if _, err := f.engine.HandleMessage(context.Background(), user("energy:reader"), &models.ChatRequest{
		ThreadID:          resp.ThreadID,
		Message:           "and again",
		NavigationContext: models.NavigationContext{Section: "home"},
	}); err != nil {
		t.Fatalf("second handle: %v", err)
	}
	history, _ := f.engine.History(context.Background(), user("energy:reader"), resp.ThreadID)
	if len(history) != 4 {
		t.Errorf("history length = %d, want 4", len(history))
	}
}

func TestEmptyMessageGetsGeneralChat(t *testing.T) {
	f := newFixture(t)
	resp, err := f.engine.HandleMessage(context.Background(), user(), &models.ChatRequest{
		ThreadID:          "th-6",
		Message:           "",
		NavigationContext: models.NavigationContext{Section: "home"},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Response == "" {
		t.Error("empty message should still get a response")
	}
	if resp.Articles == nil {
		t.Error("articles must be non-nil in every response")
	}
}

// faultyStore simulates a state backend outage: reads and writes both fail.
type faultyStore struct {
	state.Store
}

func (f *faultyStore) History(context.Context, string) ([]models.Message, error) {
	return nil, errors.New("connection refused")
}

func (f *faultyStore) AppendMessages(context.Context, string, ...models.Message) error {
	return errors.New("connection refused")
}

func TestStorageFailuresDegradeToBestEffort(t *testing.T) {
	broken := &faultyStore{Store: state.NewMemoryStore()}
	arts := articles.NewStore()
	reg := navigation.NewRegistry()
	catalog := navigation.NewTopicCatalog(arts, time.Minute)
	manager := hitl.NewManager(broken, arts, time.Minute)
	ag := agents.New(agents.Deps{Registry: reg, Catalog: catalog, Articles: arts, HITL: manager})
	eng := New(broken, classifier.New(nil, reg, catalog), router.New(reg), ag, manager)

	resp, err := eng.HandleMessage(context.Background(), user("energy:reader"), &models.ChatRequest{
		ThreadID:          "th-broken",
		Message:           "go home",
		NavigationContext: models.NavigationContext{Section: "analyst_editor"},
	})
	if err != nil {
		t.Fatalf("turn should survive a storage outage, got error: %v", err)
	}
	if resp.Response == "" {
		t.Error("want a best-effort response despite the storage outage")
	}
	if resp.UIAction == nil || resp.UIAction.Type != "goto" {
		t.Errorf("uiAction = %+v, want goto despite the storage outage", resp.UIAction)
	}
}

func TestBuildResponseFallbacks(t *testing.T) {
	st := &models.ConversationState{
		Messages: []models.Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "previous answer"},
		},
		Intent: &models.IntentClassification{IntentType: models.IntentGeneralChat},
	}
	resp := BuildResponse(st)
	if resp.Response != "previous answer" {
		t.Errorf("response = %q, want last assistant message", resp.Response)
	}
	if resp.AgentType != "general_chat" {
		t.Errorf("agent = %q, want general_chat (intent fallback)", resp.AgentType)
	}

	empty := BuildResponse(&models.ConversationState{})
	if empty.Response == "" {
		t.Error("want generic fallback text")
	}
	if empty.Articles == nil {
		t.Error("articles must be non-nil")
	}
}
