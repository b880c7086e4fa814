package state_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/briefdesk/briefdesk/internal/state"
	"github.com/briefdesk/briefdesk/pkg/models"
)

func newTestStore(t *testing.T) state.Store {
	t.Helper()
	s := state.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

func pendingCheckpoint(threadID string) *models.Checkpoint {
	return &models.Checkpoint{
		ThreadID:       threadID,
		ConfirmationID: "conf-1",
		UserID:         "u1",
		Action:         "publish_article",
		Params:         map[string]string{"article_id": "a1"},
		Status:         models.CheckpointPending,
		CreatedAt:      time.Now().UTC(),
		ExpiresAt:      time.Now().UTC().Add(15 * time.Minute),
	}
}

// ─── History ─────────────────────────────────────────────────

func TestAppendMessages_PreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, content := range []string{"first", "second", "third"} {
		err := s.AppendMessages(ctx, "t1", models.Message{Role: "user", Content: content})
		if err != nil {
			t.Fatalf("AppendMessages() #%d error = %v", i, err)
		}
	}

	history, err := s.History(ctx, "t1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("History() returned %d messages, want 3", len(history))
	}
	for i, want := range []string{"first", "second", "third"} {
		if history[i].Content != want {
			t.Errorf("History()[%d].Content = %q, want %q", i, history[i].Content, want)
		}
	}
}

func TestHistory_ThreadsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AppendMessages(ctx, "alice-thread", models.Message{Role: "user", Content: "hi"})
	s.AppendMessages(ctx, "bob-thread", models.Message{Role: "user", Content: "yo"})

	alice, _ := s.History(ctx, "alice-thread")
	bob, _ := s.History(ctx, "bob-thread")
	if len(alice) != 1 || len(bob) != 1 {
		t.Fatalf("histories leaked across threads: alice=%d bob=%d", len(alice), len(bob))
	}
	if alice[0].Content == bob[0].Content {
		t.Error("threads must not share history entries")
	}
}

func TestClearHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AppendMessages(ctx, "t1", models.Message{Role: "user", Content: "hi"})
	if err := s.ClearHistory(ctx, "t1"); err != nil {
		t.Fatalf("ClearHistory() error = %v", err)
	}
	history, _ := s.History(ctx, "t1")
	if len(history) != 0 {
		t.Errorf("History() after clear returned %d messages, want 0", len(history))
	}
}

// ─── Checkpoints ─────────────────────────────────────────────

func TestSaveAndGetCheckpoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cp := pendingCheckpoint("t1")
	if err := s.SaveCheckpoint(ctx, cp); err != nil {
		t.Fatalf("SaveCheckpoint() error = %v", err)
	}

	got, err := s.GetCheckpoint(ctx, "t1")
	if err != nil {
		t.Fatalf("GetCheckpoint() error = %v", err)
	}
	if got.Action != "publish_article" {
		t.Errorf("GetCheckpoint().Action = %q, want publish_article", got.Action)
	}
	if got.Status != models.CheckpointPending {
		t.Errorf("GetCheckpoint().Status = %q, want pending", got.Status)
	}
}

func TestGetCheckpoint_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetCheckpoint(context.Background(), "missing")
	if !state.IsNotFound(err) {
		t.Errorf("GetCheckpoint(missing) error = %v, want ErrNotFound", err)
	}
}

func TestResolveCheckpoint_Approve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SaveCheckpoint(ctx, pendingCheckpoint("t1"))

	got, err := s.ResolveCheckpoint(ctx, "t1", models.DecisionApprove, "editor-1")
	if err != nil {
		t.Fatalf("ResolveCheckpoint() error = %v", err)
	}
	if got.Status != models.CheckpointApproved {
		t.Errorf("Status = %q, want approved", got.Status)
	}
	if got.ResolvedBy != "editor-1" {
		t.Errorf("ResolvedBy = %q, want editor-1", got.ResolvedBy)
	}
	if got.ResolvedAt == nil {
		t.Error("ResolvedAt should be set")
	}
}

func TestResolveCheckpoint_SingleUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SaveCheckpoint(ctx, pendingCheckpoint("t1"))

	if _, err := s.ResolveCheckpoint(ctx, "t1", models.DecisionApprove, "u1"); err != nil {
		t.Fatalf("first ResolveCheckpoint() error = %v", err)
	}
	_, err := s.ResolveCheckpoint(ctx, "t1", models.DecisionApprove, "u1")
	if !errors.Is(err, state.ErrAlreadyResolved) {
		t.Errorf("second ResolveCheckpoint() error = %v, want ErrAlreadyResolved", err)
	}
	_, err = s.ResolveCheckpoint(ctx, "t1", models.DecisionReject, "u1")
	if !errors.Is(err, state.ErrAlreadyResolved) {
		t.Errorf("reject after approve error = %v, want ErrAlreadyResolved", err)
	}
}

func TestResolveCheckpoint_ConcurrentResumesHaveOneWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SaveCheckpoint(ctx, pendingCheckpoint("t1"))

	const n = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ResolveCheckpoint(ctx, "t1", models.DecisionApprove, "u1"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for range wins {
		winners++
	}
	if winners != 1 {
		t.Errorf("concurrent resolves had %d winners, want exactly 1", winners)
	}
}

func TestResolveCheckpoint_Expired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cp := pendingCheckpoint("t1")
	cp.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	s.SaveCheckpoint(ctx, cp)

	_, err := s.ResolveCheckpoint(ctx, "t1", models.DecisionApprove, "u1")
	if !errors.Is(err, state.ErrExpired) {
		t.Fatalf("ResolveCheckpoint() error = %v, want ErrExpired", err)
	}

	got, _ := s.GetCheckpoint(ctx, "t1")
	if got.Status != models.CheckpointExpired {
		t.Errorf("Status after expired resolve = %q, want expired", got.Status)
	}
}

func TestExpireCheckpoints(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stale := pendingCheckpoint("stale")
	stale.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	fresh := pendingCheckpoint("fresh")
	s.SaveCheckpoint(ctx, stale)
	s.SaveCheckpoint(ctx, fresh)

	n, err := s.ExpireCheckpoints(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ExpireCheckpoints() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ExpireCheckpoints() = %d, want 1", n)
	}

	got, _ := s.GetCheckpoint(ctx, "fresh")
	if got.Status != models.CheckpointPending {
		t.Errorf("fresh checkpoint Status = %q, want pending", got.Status)
	}
}

func TestExpireCheckpoints_NeverOverwritesResolved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cp := pendingCheckpoint("t1")
	cp.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	s.SaveCheckpoint(ctx, cp)

	// The resume lands first and stamps the terminal status.
	if _, err := s.ResolveCheckpoint(ctx, "t1", models.DecisionApprove, "u1"); !errors.Is(err, state.ErrExpired) {
		t.Fatalf("ResolveCheckpoint() error = %v, want ErrExpired", err)
	}
	got, _ := s.GetCheckpoint(ctx, "t1")
	terminal := got.Status

	// A sweep arriving afterwards must not re-stamp the checkpoint.
	n, err := s.ExpireCheckpoints(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ExpireCheckpoints() error = %v", err)
	}
	if n != 0 {
		t.Errorf("ExpireCheckpoints() = %d, want 0 (already resolved)", n)
	}
	got, _ = s.GetCheckpoint(ctx, "t1")
	if got.Status != terminal {
		t.Errorf("Status changed from %q to %q after sweep", terminal, got.Status)
	}

	// Same for a checkpoint approved before its window closed.
	s.SaveCheckpoint(ctx, pendingCheckpoint("t2"))
	if _, err := s.ResolveCheckpoint(ctx, "t2", models.DecisionApprove, "u1"); err != nil {
		t.Fatalf("ResolveCheckpoint() error = %v", err)
	}
	if _, err := s.ExpireCheckpoints(ctx, time.Now().UTC().Add(24*time.Hour)); err != nil {
		t.Fatalf("ExpireCheckpoints() error = %v", err)
	}
	got, _ = s.GetCheckpoint(ctx, "t2")
	if got.Status != models.CheckpointApproved {
		t.Errorf("approved checkpoint re-stamped to %q by the sweep", got.Status)
	}
}

// ─── Audit ───────────────────────────────────────────────────

func TestAppendAndListAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, kind := range []string{"confirmation_requested", "resume_approved"} {
		err := s.AppendAudit(ctx, &models.AuditEvent{
			ID: kind, ThreadID: "t1", UserID: "u1", Kind: kind, CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("AppendAudit(%s) error = %v", kind, err)
		}
	}

	events, err := s.ListAudit(ctx, "t1")
	if err != nil {
		t.Fatalf("ListAudit() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("ListAudit() returned %d events, want 2", len(events))
	}
	if events[0].Kind != "confirmation_requested" || events[1].Kind != "resume_approved" {
		t.Errorf("audit events out of order: %v", events)
	}
}
