package orchestrator

import (
	"github.com/briefdesk/briefdesk/pkg/models"
)

// defaultResponse is the last rung of the response text fallback chain.
const defaultResponse = "I'm not sure how to help with that, but I can navigate the platform, find published articles, draft briefs, or explain your access."

// BuildResponse produces the unified response contract from the final
// conversation state, whichever handler ran.
//
// Fallback chains: response text falls back from the handler's text to the
// last assistant message to a generic offer of help; agent type falls back
// from the selected handler to the intent type to general_chat. Articles is
// always non-nil so clients can iterate without a guard.
func BuildResponse(st *models.ConversationState) *models.ChatResponse {
	resp := &models.ChatResponse{
		ThreadID:      st.ThreadID,
		Response:      st.ResponseText,
		AgentType:     string(st.SelectedHandler),
		RoutingReason: st.RoutingReason,
		Articles:      st.Articles,
		UIAction:      st.UIAction,
		Navigation:    st.NavigationCommand,
		EditorContent: st.EditorContent,
		Confirmation:  st.Confirmation,
		RequiresHITL:  st.RequiresHITL,
	}

	if resp.Response == "" {
		if last := lastAssistant(st); last != "" {
			resp.Response = last
		} else {
			resp.Response = defaultResponse
		}
	}

	if resp.AgentType == "" {
		if st.Intent != nil {
			resp.AgentType = string(st.Intent.IntentType)
		} else {
			resp.AgentType = string(models.HandlerGeneralChat)
		}
	}

	if resp.Articles == nil {
		resp.Articles = []models.Article{}
	}

	return resp
}

func lastAssistant(st *models.ConversationState) string {
	for i := len(st.Messages) - 1; i >= 0; i-- {
		if st.Messages[i].Role == "assistant" {
			return st.Messages[i].Content
		}
	}
	return ""
}
