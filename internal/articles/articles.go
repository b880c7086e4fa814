// Package articles implements the article entity and its status lifecycle.
//
// Articles move draft → editor (submitted for review) → pending_approval
// (publish requested) → published, with reject (back to draft), recall
// (published back to draft), deactivate (soft delete) and purge (hard
// delete, admin-only). All mutations go through explicit transition
// operations; the chat layer never writes fields directly.
package articles

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/briefdesk/briefdesk/pkg/models"
)

// ErrNotFound is returned when the requested article does not exist.
var ErrNotFound = errors.New("article not found")

// ErrInvalidTransition is returned when an article's current status is not
// compatible with the requested operation. The message names the required
// prior step; it is shown to the user as-is, so keep it self-contained.
type ErrInvalidTransition struct {
	ArticleID string
	From      models.ArticleStatus
	Op        string
	Hint      string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot %s article %s in status %q: %s", e.Op, e.ArticleID, e.From, e.Hint)
}

// Store holds articles. Mutations are the explicit transition methods; the
// in-memory implementation is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	articles map[string]*models.Article
}

// NewStore creates an empty article store.
func NewStore() *Store {
	return &Store{articles: make(map[string]*models.Article)}
}

// Create adds a new draft article authored for a topic.
func (s *Store) Create(_ context.Context, topic, headline, author string) (*models.Article, error) {
	now := time.Now().UTC()
	a := &models.Article{
		ID:        uuid.New().String(),
		Topic:     topic,
		Headline:  headline,
		Status:    models.ArticleDraft,
		Author:    author,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.articles[a.ID] = a
	s.mu.Unlock()
	return copyOf(a), nil
}

// Get returns an article by id.
func (s *Store) Get(_ context.Context, id string) (*models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOf(a), nil
}

// List returns articles, optionally filtered by topic and/or status,
// newest first.
func (s *Store) List(_ context.Context, topic string, status models.ArticleStatus) ([]models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Article
	for _, a := range s.articles {
		if topic != "" && a.Topic != topic {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListTopics returns the distinct topic slugs with at least one article.
// Satisfies navigation.TopicSource.
func (s *Store) ListTopics(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var topics []string
	for _, a := range s.articles {
		if !seen[a.Topic] {
			seen[a.Topic] = true
			topics = append(topics, a.Topic)
		}
	}
	sort.Strings(topics)
	return topics, nil
}

// UpdateContent replaces an article's authored content. Only drafts and
// articles in review may be edited.
func (s *Store) UpdateContent(_ context.Context, id, headline, content string, keywords []string) (*models.Article, error) {
	return s.mutate(id, "edit", func(a *models.Article) error {
		if a.Status != models.ArticleDraft && a.Status != models.ArticleEditor {
			return &ErrInvalidTransition{ArticleID: id, From: a.Status, Op: "edit",
				Hint: "recall or reject it back to draft before editing"}
		}
		if headline != "" {
			a.Headline = headline
		}
		if content != "" {
			a.Content = content
		}
		if keywords != nil {
			a.Keywords = keywords
		}
		return nil
	})
}

// ── Lifecycle Transitions ────────────────────────────────────

// Submit moves a draft into editorial review (draft → editor).
func (s *Store) Submit(_ context.Context, id string) (*models.Article, error) {
	return s.mutate(id, "submit", func(a *models.Article) error {
		if a.Status != models.ArticleDraft {
			return &ErrInvalidTransition{ArticleID: id, From: a.Status, Op: "submit",
				Hint: "only draft articles can be submitted for review"}
		}
		a.Status = models.ArticleEditor
		return nil
	})
}

// RequestPublish marks an in-review article as awaiting publish approval
// (editor → pending_approval).
func (s *Store) RequestPublish(_ context.Context, id string) (*models.Article, error) {
	return s.mutate(id, "request publish", func(a *models.Article) error {
		switch a.Status {
		case models.ArticleEditor:
			a.Status = models.ArticlePendingApproval
			return nil
		case models.ArticleDraft:
			return &ErrInvalidTransition{ArticleID: id, From: a.Status, Op: "request publish",
				Hint: "submit it for review first"}
		case models.ArticlePublished:
			return &ErrInvalidTransition{ArticleID: id, From: a.Status, Op: "request publish",
				Hint: "it is already published"}
		default:
			return &ErrInvalidTransition{ArticleID: id, From: a.Status, Op: "request publish",
				Hint: "only articles in review can be queued for publishing"}
		}
	})
}

// Publish makes an article live (editor|pending_approval → published).
// This is the side effect gated by HITL approval; callers must hold an
// approved checkpoint.
func (s *Store) Publish(_ context.Context, id string) (*models.Article, error) {
	return s.mutate(id, "publish", func(a *models.Article) error {
		switch a.Status {
		case models.ArticleEditor, models.ArticlePendingApproval:
			a.Status = models.ArticlePublished
			return nil
		case models.ArticleDraft:
			return &ErrInvalidTransition{ArticleID: id, From: a.Status, Op: "publish",
				Hint: "submit it for review first"}
		case models.ArticlePublished:
			return &ErrInvalidTransition{ArticleID: id, From: a.Status, Op: "publish",
				Hint: "it is already published"}
		default:
			return &ErrInvalidTransition{ArticleID: id, From: a.Status, Op: "publish",
				Hint: "deactivated articles cannot be published"}
		}
	})
}

// Reject sends an article back to its author (editor|pending_approval → draft).
func (s *Store) Reject(_ context.Context, id string) (*models.Article, error) {
	return s.mutate(id, "reject", func(a *models.Article) error {
		if a.Status != models.ArticleEditor && a.Status != models.ArticlePendingApproval {
			return &ErrInvalidTransition{ArticleID: id, From: a.Status, Op: "reject",
				Hint: "only articles in review can be rejected"}
		}
		a.Status = models.ArticleDraft
		return nil
	})
}

// Recall pulls a published article back to draft (published → draft).
func (s *Store) Recall(_ context.Context, id string) (*models.Article, error) {
	return s.mutate(id, "recall", func(a *models.Article) error {
		if a.Status != models.ArticlePublished {
			return &ErrInvalidTransition{ArticleID: id, From: a.Status, Op: "recall",
				Hint: "only published articles can be recalled"}
		}
		a.Status = models.ArticleDraft
		return nil
	})
}

// Deactivate soft-deletes an article from any status.
func (s *Store) Deactivate(_ context.Context, id string) (*models.Article, error) {
	return s.mutate(id, "deactivate", func(a *models.Article) error {
		if a.Status == models.ArticleDeactivated {
			return &ErrInvalidTransition{ArticleID: id, From: a.Status, Op: "deactivate",
				Hint: "it is already deactivated"}
		}
		a.Status = models.ArticleDeactivated
		return nil
	})
}

// Purge hard-deletes an article. Outside the normal lifecycle and
// irreversible; the caller is responsible for the admin-only gate.
func (s *Store) Purge(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[id]; !ok {
		return ErrNotFound
	}
	delete(s.articles, id)
	return nil
}

// mutate applies fn to the stored article under the write lock.
func (s *Store) mutate(id, op string, fn func(*models.Article) error) (*models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	a.UpdatedAt = time.Now().UTC()
	return copyOf(a), nil
}

func copyOf(a *models.Article) *models.Article {
	c := *a
	return &c
}
