// Package classifier maps one user utterance, plus navigation and permission
// context, to a structured intent classification.
//
// Classify is total: the model-backed path (OpenAI chat completion with a
// fixed JSON schema) is validated against the closed intent set and any
// failure — transport error, malformed output, unknown intent type, or a
// disabled client — falls back to the deterministic keyword rules in
// rules.go. The caller always gets a well-formed IntentClassification.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/briefdesk/briefdesk/internal/navigation"
	"github.com/briefdesk/briefdesk/pkg/models"
)

// CompletionClient is the model-backed classification dependency.
// Implementations must return the raw completion text.
type CompletionClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Classifier classifies utterances. Construct with New; a nil client
// disables the model path and classification is rules-only.
type Classifier struct {
	client   CompletionClient
	registry *navigation.Registry
	catalog  *navigation.TopicCatalog
}

// New creates a classifier. client may be nil (rules-only mode).
func New(client CompletionClient, registry *navigation.Registry, catalog *navigation.TopicCatalog) *Classifier {
	return &Classifier{client: client, registry: registry, catalog: catalog}
}

// Classify returns an intent classification for the message. It never
// returns an error: every failure path degrades to the rule-based fallback,
// and an empty message classifies as general_chat with zero confidence.
func (c *Classifier) Classify(ctx context.Context, message string, nav models.NavigationContext, scopes []string) models.IntentClassification {
	if strings.TrimSpace(message) == "" {
		return models.IntentClassification{
			IntentType: models.IntentGeneralChat,
			Confidence: 0.0,
			Details:    map[string]string{models.DetailReason: "no messages provided"},
		}
	}

	if c.client != nil {
		result, err := c.classifyByModel(ctx, message, nav, scopes)
		if err == nil {
			return result
		}
		log.Warn().Err(err).Msg("model classification failed, falling back to rules")
	}

	return c.classifyByRules(ctx, message, nav, scopes)
}

// ── Model-backed path ───────────────────────────────────────

// llmOutput is the fixed output schema requested from the model.
type llmOutput struct {
	IntentType string  `json:"intent_type"`
	Confidence float64 `json:"confidence"`
	Topic      string  `json:"topic,omitempty"`
	ArticleID  string  `json:"article_id,omitempty"`
	Action     string  `json:"action,omitempty"`
	Target     string  `json:"target,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

const classifySystemPrompt = `You classify a user's chat message for a research publishing platform.
Respond with a single JSON object, no prose:
{"intent_type": one of ["navigation","ui_action","content_generation","editor_workflow","general_chat","entitlements"],
 "confidence": number between 0 and 1,
 "topic": optional topic slug, "article_id": optional id,
 "action": optional action type, "target": optional navigation target,
 "reason": short explanation}`

func (c *Classifier) classifyByModel(ctx context.Context, message string, nav models.NavigationContext, scopes []string) (models.IntentClassification, error) {
	user := fmt.Sprintf("Current section: %s\nCurrent topic: %s\nUser scopes: %s\nMessage: %s",
		nav.Section, nav.Topic, strings.Join(scopes, ", "), message)

	raw, err := c.client.Complete(ctx, classifySystemPrompt, user)
	if err != nil {
		return models.IntentClassification{}, fmt.Errorf("completion: %w", err)
	}

	var out llmOutput
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		return models.IntentClassification{}, fmt.Errorf("decode classification: %w", err)
	}

	intentType := models.IntentType(out.IntentType)
	if !models.ValidIntentType(intentType) {
		// Outside the closed set: coerce rather than trust the model.
		intentType = models.IntentGeneralChat
		out.Reason = fmt.Sprintf("model returned unknown intent %q", out.IntentType)
	}

	details := map[string]string{}
	if out.Topic != "" {
		details[models.DetailTopic] = out.Topic
	}
	if out.ArticleID != "" {
		details[models.DetailArticleID] = out.ArticleID
	}
	if out.Action != "" {
		details[models.DetailActionType] = out.Action
	}
	if out.Target != "" {
		details[models.DetailTarget] = out.Target
	}
	if out.Reason != "" {
		details[models.DetailReason] = out.Reason
	}

	return models.IntentClassification{
		IntentType: intentType,
		Confidence: clamp01(out.Confidence),
		Details:    details,
	}, nil
}

// extractJSON trims any fencing the model wraps around the JSON object.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ── OpenAI client ───────────────────────────────────────────

// OpenAIClient implements CompletionClient over the OpenAI chat completions
// API with JSON-object response format.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates the production completion client.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{client: openai.NewClient(apiKey), model: model}
}

// Complete implements CompletionClient.
func (o *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		MaxTokens:   256,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
