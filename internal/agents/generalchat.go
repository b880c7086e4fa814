package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/briefdesk/briefdesk/pkg/models"
)

// handleGeneralChat answers conversational questions, grounding the reply in
// published content when the retriever finds anything relevant. Retrieval
// failure degrades to an ungrounded answer rather than failing the turn.
func (a *Agents) handleGeneralChat(ctx context.Context, st *models.ConversationState) (*models.StateUpdate, error) {
	query := lastUserMessage(st)
	if strings.TrimSpace(query) == "" {
		return finalText("Hi! I can help you navigate, find published articles, draft briefs, or explain your access. What do you need?"), nil
	}

	snippets, err := a.deps.Retriever.Retrieve(ctx, query, 3)
	if err != nil {
		log.Warn().Err(err).Str("thread_id", st.ThreadID).Msg("retrieval failed, answering ungrounded")
		snippets = nil
	}

	if len(snippets) == 0 {
		return finalText("I couldn't find published content about that. I can help you navigate the platform, draft briefs, or explain your access."), nil
	}

	var b strings.Builder
	b.WriteString("Here's what our published coverage says. ")
	for i, s := range snippets {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(fmt.Sprintf("From %q: %s", s.Source, s.Text))
	}
	return finalText(b.String()), nil
}
