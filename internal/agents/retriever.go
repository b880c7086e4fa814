package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/briefdesk/briefdesk/internal/articles"
	"github.com/briefdesk/briefdesk/pkg/contracts"
	"github.com/briefdesk/briefdesk/pkg/models"
)

// ArticleRetriever is the community Retriever implementation: keyword match
// over published articles. Only published content is ever surfaced to chat.
type ArticleRetriever struct {
	store *articles.Store
}

// NewArticleRetriever creates a retriever over the article store.
func NewArticleRetriever(store *articles.Store) *ArticleRetriever {
	return &ArticleRetriever{store: store}
}

// Retrieve implements contracts.Retriever. Articles are scored by how many
// query terms appear in their headline or body.
func (r *ArticleRetriever) Retrieve(ctx context.Context, query string, limit int) ([]contracts.Snippet, error) {
	if limit <= 0 {
		limit = 3
	}
	published, err := r.store.List(ctx, "", models.ArticlePublished)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var out []contracts.Snippet
	for _, a := range published {
		text := strings.ToLower(a.Headline + " " + a.Content)
		hits := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		out = append(out, contracts.Snippet{
			Source: a.Headline,
			Text:   excerpt(a.Content, 200),
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func queryTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,!?\"'")
		if len(w) >= 4 {
			terms = append(terms, w)
		}
	}
	return terms
}

func excerpt(content string, max int) string {
	content = strings.TrimSpace(content)
	if len(content) <= max {
		return content
	}
	return content[:max] + "…"
}
