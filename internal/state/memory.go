package state

import (
	"context"
	"sync"
	"time"

	"github.com/briefdesk/briefdesk/pkg/models"
)

// MemoryStore is a thread-safe in-memory Store for tests and single-node
// zero-config deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	histories   map[string][]models.Message
	checkpoints map[string]*models.Checkpoint
	audits      map[string][]models.AuditEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		histories:   make(map[string][]models.Message),
		checkpoints: make(map[string]*models.Checkpoint),
		audits:      make(map[string][]models.AuditEvent),
	}
}

// AppendMessages implements Store.
func (s *MemoryStore) AppendMessages(_ context.Context, threadID string, msgs ...models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[threadID] = append(s.histories[threadID], msgs...)
	return nil
}

// History implements Store.
func (s *MemoryStore) History(_ context.Context, threadID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.histories[threadID]
	out := make([]models.Message, len(history))
	copy(out, history)
	return out, nil
}

// ClearHistory implements Store.
func (s *MemoryStore) ClearHistory(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, threadID)
	return nil
}

// SaveCheckpoint implements Store.
func (s *MemoryStore) SaveCheckpoint(_ context.Context, cp *models.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cp
	s.checkpoints[cp.ThreadID] = &c
	return nil
}

// GetCheckpoint implements Store.
func (s *MemoryStore) GetCheckpoint(_ context.Context, threadID string) (*models.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[threadID]
	if !ok {
		return nil, &ErrNotFound{Entity: "checkpoint", Key: threadID}
	}
	c := *cp
	return &c, nil
}

// ResolveCheckpoint implements Store. The pending → resolved transition is a
// compare-and-swap under the store lock, so concurrent resumes for the same
// thread see exactly one winner.
func (s *MemoryStore) ResolveCheckpoint(_ context.Context, threadID string, decision models.Decision, resolvedBy string) (*models.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.checkpoints[threadID]
	if !ok {
		return nil, &ErrNotFound{Entity: "checkpoint", Key: threadID}
	}
	if cp.Status != models.CheckpointPending {
		return nil, ErrAlreadyResolved
	}
	now := time.Now().UTC()
	if cp.Expired(now) {
		cp.Status = models.CheckpointExpired
		cp.ResolvedAt = &now
		return nil, ErrExpired
	}

	if decision == models.DecisionApprove {
		cp.Status = models.CheckpointApproved
	} else {
		cp.Status = models.CheckpointRejected
	}
	cp.ResolvedAt = &now
	cp.ResolvedBy = resolvedBy

	c := *cp
	return &c, nil
}

// ExpireCheckpoints implements Store.
func (s *MemoryStore) ExpireCheckpoints(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for _, cp := range s.checkpoints {
		if cp.Status == models.CheckpointPending && cp.Expired(now) {
			resolvedAt := now
			cp.Status = models.CheckpointExpired
			cp.ResolvedAt = &resolvedAt
			expired++
		}
	}
	return expired, nil
}

// AppendAudit implements Store.
func (s *MemoryStore) AppendAudit(_ context.Context, event *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits[event.ThreadID] = append(s.audits[event.ThreadID], *event)
	return nil
}

// ListAudit implements Store.
func (s *MemoryStore) ListAudit(_ context.Context, threadID string) ([]models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.audits[threadID]
	out := make([]models.AuditEvent, len(events))
	copy(out, events)
	return out, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
