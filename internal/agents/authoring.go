package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/briefdesk/briefdesk/pkg/contracts"
)

// TemplateAuthoring is the community ContentAuthoring implementation. It
// produces a deterministic skeleton draft from the analyst's prompt so the
// authoring flow works end to end without a model backend.
type TemplateAuthoring struct{}

// NewTemplateAuthoring creates the community authoring backend.
func NewTemplateAuthoring() *TemplateAuthoring {
	return &TemplateAuthoring{}
}

// Draft implements contracts.ContentAuthoring.
func (t *TemplateAuthoring) Draft(_ context.Context, req *contracts.AuthoringRequest) (*contracts.AuthoringResult, error) {
	headline := headlineFrom(req)
	body := fmt.Sprintf(
		"%s\n\nThis brief covers %s. %s\n\nKey points:\n- TBD: fill in the lead finding.\n- TBD: fill in supporting data.\n- TBD: fill in the outlook.",
		headline, req.Topic, summarizePrompt(req.Prompt))
	return &contracts.AuthoringResult{
		Headline: headline,
		Content:  body,
		Keywords: keywordsFrom(req),
	}, nil
}

func headlineFrom(req *contracts.AuthoringRequest) string {
	if req.Existing != nil && req.Existing.Headline != "" {
		return req.Existing.Headline
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return capitalize(req.Topic) + " brief"
	}
	if len(prompt) > 60 {
		prompt = prompt[:60]
	}
	return capitalize(req.Topic) + ": " + prompt
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func summarizePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "The author has not provided direction yet."
	}
	return "The analyst asked: " + prompt
}

func keywordsFrom(req *contracts.AuthoringRequest) []string {
	seen := map[string]bool{req.Topic: true}
	keywords := []string{req.Topic}
	for _, w := range strings.Fields(strings.ToLower(req.Prompt)) {
		w = strings.Trim(w, ".,!?\"'")
		if len(w) < 5 || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
		if len(keywords) == 6 {
			break
		}
	}
	sort.Strings(keywords[1:])
	return keywords
}
