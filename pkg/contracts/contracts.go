// Package contracts defines the service interfaces of the briefdesk
// orchestration engine.
//
// These interfaces form the seam between the chat engine and its content
// backends. The repo ships community implementations (template-based
// authoring, in-memory retrieval); a deployment can swap in model-backed or
// search-backed implementations by changing the wiring in main.go.
package contracts

import (
	"context"

	"github.com/briefdesk/briefdesk/internal/state"
	"github.com/briefdesk/briefdesk/pkg/models"
)

// Store is a type alias for the internal conversation state Store interface.
// Exposed in pkg/ so external wiring can reference it without importing
// internal/ directly.
type Store = state.Store

// ErrNotFound is a type alias for the internal ErrNotFound error.
type ErrNotFound = state.ErrNotFound

// ── Content Authoring ───────────────────────────────────────

// AuthoringRequest describes what the analyst asked to be drafted.
type AuthoringRequest struct {
	Topic    string
	Prompt   string
	Existing *models.Article // set when revising rather than drafting fresh
}

// AuthoringResult is generated draft material for the editor pane.
type AuthoringResult struct {
	Headline string
	Content  string
	Keywords []string
}

// ContentAuthoring generates draft article material for analysts.
// Community implementation: internal/agents.TemplateAuthoring.
type ContentAuthoring interface {
	// Draft produces headline, body, and keywords for the request.
	Draft(ctx context.Context, req *AuthoringRequest) (*AuthoringResult, error)
}

// ── Retrieval ───────────────────────────────────────────────

// Snippet is one grounding passage returned by a Retriever.
type Snippet struct {
	Source string
	Text   string
}

// Retriever finds passages relevant to a general-chat question so answers
// can be grounded in published content.
// Community implementation: internal/agents.ArticleRetriever.
type Retriever interface {
	// Retrieve returns up to limit snippets relevant to the query.
	Retrieve(ctx context.Context, query string, limit int) ([]Snippet, error)
}
