// Package navigation defines the UI section registry: which sections exist,
// which role each one requires, and the keyword aliases used to infer a
// navigation target from free text.
//
// RoleForSection is the single canonical "role from section name" derivation.
// Both the router and the permission checks use it; nothing else may reimplement
// the prefix rules.
package navigation

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/briefdesk/briefdesk/pkg/models"
)

// Section describes one navigable UI area.
type Section struct {
	Name         string
	RequiredRole models.Role
	// Keywords are lowercase aliases matched against user messages.
	Keywords []string
}

// Registry holds the known sections. Construct with NewRegistry; no package
// globals so tests can build fresh instances.
type Registry struct {
	sections []Section
	// byName indexes into sections. Indices stay valid across appends,
	// unlike element pointers.
	byName map[string]int
}

// NewRegistry returns the registry with the platform's built-in sections.
func NewRegistry() *Registry {
	r := &Registry{}
	for _, s := range []Section{
		{Name: "home", RequiredRole: models.RoleReader, Keywords: []string{"home", "start", "main page", "dashboard"}},
		{Name: "article_search", RequiredRole: models.RoleReader, Keywords: []string{"search", "find articles", "browse", "library"}},
		{Name: "market_overview", RequiredRole: models.RoleReader, Keywords: []string{"market", "markets", "overview", "prices"}},
		{Name: "analyst_editor", RequiredRole: models.RoleAnalyst, Keywords: []string{"analyst editor", "write", "draft", "authoring", "compose"}},
		{Name: "editor_review", RequiredRole: models.RoleEditor, Keywords: []string{"review", "review queue", "editorial", "approvals"}},
		{Name: "entitlements", RequiredRole: models.RoleReader, Keywords: []string{"permissions", "entitlements", "my access", "my roles"}},
		{Name: "admin_panel", RequiredRole: models.RoleAdmin, Keywords: []string{"admin", "administration", "settings", "user management"}},
	} {
		r.add(s)
	}
	return r
}

func (r *Registry) add(s Section) {
	if r.byName == nil {
		r.byName = make(map[string]int)
	}
	r.sections = append(r.sections, s)
	r.byName[s.Name] = len(r.sections) - 1
}

// Get returns a section by exact name.
func (r *Registry) Get(name string) (*Section, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return &r.sections[i], true
}

// Sections returns all registered sections.
func (r *Registry) Sections() []Section {
	return r.sections
}

// Infer resolves a navigation target from free text: exact section name
// first, then the longest matching keyword alias.
func (r *Registry) Infer(message string) (*Section, bool) {
	text := strings.ToLower(message)
	if i, ok := r.byName[strings.TrimSpace(text)]; ok {
		return &r.sections[i], true
	}
	var best *Section
	bestLen := 0
	for i := range r.sections {
		for _, kw := range r.sections[i].Keywords {
			if strings.Contains(text, kw) && len(kw) > bestLen {
				best = &r.sections[i]
				bestLen = len(kw)
			}
		}
	}
	return best, best != nil
}

// RoleForSection derives the role implied by a section name.
// Prefix rules, checked in order: "admin" → admin, "analyst" → analyst,
// "editor" → editor; everything else (home, search, unknown) → reader.
func RoleForSection(section string) models.Role {
	s := strings.ToLower(section)
	switch {
	case strings.HasPrefix(s, "admin"):
		return models.RoleAdmin
	case strings.HasPrefix(s, "analyst"):
		return models.RoleAnalyst
	case strings.HasPrefix(s, "editor"):
		return models.RoleEditor
	default:
		return models.RoleReader
	}
}

// ── Topic Catalog ────────────────────────────────────────────

// TopicSource lists the topic slugs that currently have content.
// The article store implements this.
type TopicSource interface {
	ListTopics(ctx context.Context) ([]string, error)
}

// TopicCatalog fronts a TopicSource with a TTL cache so the classifier and
// handlers can consult the topic list on every request without hitting the
// store each time. Explicit instance, injected where needed.
type TopicCatalog struct {
	source TopicSource
	cache  *gocache.Cache
}

const topicCacheKey = "topics"

// NewTopicCatalog creates a catalog with the given cache TTL.
func NewTopicCatalog(source TopicSource, ttl time.Duration) *TopicCatalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TopicCatalog{
		source: source,
		cache:  gocache.New(ttl, 2*ttl),
	}
}

// Topics returns the cached topic list, refreshing it from the source when
// the cache entry has expired. A source failure falls back to the last known
// value (possibly empty) rather than propagating.
func (tc *TopicCatalog) Topics(ctx context.Context) []string {
	if v, ok := tc.cache.Get(topicCacheKey); ok {
		return v.([]string)
	}
	topics, err := tc.source.ListTopics(ctx)
	if err != nil {
		return nil
	}
	tc.cache.SetDefault(topicCacheKey, topics)
	return topics
}

// Invalidate drops the cached topic list.
func (tc *TopicCatalog) Invalidate() {
	tc.cache.Delete(topicCacheKey)
}
