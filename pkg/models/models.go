// Package models defines the shared domain types for the briefdesk
// orchestration engine: conversation state, intent classification, routing,
// permissions, articles, and the human-in-the-loop confirmation protocol.
//
// All enums are closed string sets so routing and dispatch stay exhaustively
// checkable, and every type that crosses the wire carries JSON tags matching
// the unified response contract consumed by the client.
package models

import (
	"time"
)

// ── Roles & Scopes ───────────────────────────────────────────

// Role is a permission level within a scope group.
// Hierarchy (lowest to highest): reader < editor < analyst < admin.
type Role string

const (
	RoleReader  Role = "reader"
	RoleEditor  Role = "editor"
	RoleAnalyst Role = "analyst"
	RoleAdmin   Role = "admin"
)

// ScopeGlobal is the scope group that grants a role on every topic.
const ScopeGlobal = "global"

// UserContext carries the authenticated caller's identity and permissions.
// It is produced by the context builder from request credentials and is
// immutable for the duration of a request.
type UserContext struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`

	// Scopes are "<group>:<role>" strings where group is "global" or a
	// topic slug, e.g. "global:admin", "macro:analyst".
	Scopes []string `json:"scopes"`

	// TopicRoles maps each topic slug to the best role held for it.
	// Derived from Scopes; global scopes apply to every topic.
	TopicRoles map[string]Role `json:"topic_roles,omitempty"`

	// HighestRole is the best role across all scopes.
	HighestRole Role `json:"highest_role,omitempty"`
}

// NavigationContext describes where the user currently is in the UI.
type NavigationContext struct {
	Section   string `json:"section"`
	Topic     string `json:"topic,omitempty"`
	ArticleID string `json:"article_id,omitempty"`
}

// ── Intent Classification ────────────────────────────────────

// IntentType is the closed set of intent families the classifier emits.
type IntentType string

const (
	IntentNavigation        IntentType = "navigation"
	IntentUIAction          IntentType = "ui_action"
	IntentContentGeneration IntentType = "content_generation"
	IntentEditorWorkflow    IntentType = "editor_workflow"
	IntentGeneralChat       IntentType = "general_chat"
	IntentEntitlements      IntentType = "entitlements"
)

// ValidIntentType reports whether t is in the closed intent set.
func ValidIntentType(t IntentType) bool {
	switch t {
	case IntentNavigation, IntentUIAction, IntentContentGeneration,
		IntentEditorWorkflow, IntentGeneralChat, IntentEntitlements:
		return true
	}
	return false
}

// IntentClassification is the classifier's structured output.
// The classifier is total: it always produces a well-formed value with
// IntentType in the closed set and Confidence in [0, 1].
type IntentClassification struct {
	IntentType IntentType        `json:"intent_type"`
	Confidence float64           `json:"confidence"`
	Details    map[string]string `json:"details,omitempty"`
}

// Detail returns the named detail, or "" when absent.
func (c *IntentClassification) Detail(key string) string {
	if c == nil || c.Details == nil {
		return ""
	}
	return c.Details[key]
}

// Detail keys used in IntentClassification.Details.
const (
	DetailTopic      = "topic"
	DetailArticleID  = "article_id"
	DetailActionType = "action_type"
	DetailTarget     = "target"
	DetailReason     = "reason"
)

// ── Routing ──────────────────────────────────────────────────

// HandlerName identifies a handler node. The dispatch table in
// internal/agents is total over this closed set.
type HandlerName string

const (
	HandlerNavigation   HandlerName = "navigation"
	HandlerReader       HandlerName = "reader" // UI actions and read-only flows
	HandlerAnalyst      HandlerName = "analyst"
	HandlerEditor       HandlerName = "editor"
	HandlerAdmin        HandlerName = "admin"
	HandlerEntitlements HandlerName = "entitlements"
	HandlerGeneralChat  HandlerName = "general_chat"
)

// ── Conversation State ───────────────────────────────────────

// Message is a single role-tagged conversation turn.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationState is the value threaded through one request's handler
// chain. Messages accumulate across turns via AppendMessages — the reducer
// rule is append-only, never replace.
type ConversationState struct {
	ThreadID string    `json:"thread_id"`
	Messages []Message `json:"messages"`

	UserContext       UserContext       `json:"user_context"`
	NavigationContext NavigationContext `json:"navigation_context"`

	Intent          *IntentClassification `json:"intent,omitempty"`
	RoutingReason   string                `json:"routing_reason,omitempty"`
	SelectedHandler HandlerName           `json:"selected_handler,omitempty"`

	// Handler outputs (partial update targets).
	ResponseText      string                  `json:"response_text,omitempty"`
	UIAction          *UIAction               `json:"ui_action,omitempty"`
	NavigationCommand *NavigationCommand      `json:"navigation,omitempty"`
	EditorContent     *EditorContent          `json:"editor_content,omitempty"`
	Articles          []Article               `json:"articles,omitempty"`
	Confirmation      *ConfirmationDescriptor `json:"confirmation,omitempty"`
	RequiresHITL      bool                    `json:"requires_hitl"`
	IsFinal           bool                    `json:"is_final"`
}

// AppendMessages applies the append-only message reducer.
func (s *ConversationState) AppendMessages(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// LastMessage returns the most recent message, or nil if there is none.
func (s *ConversationState) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// StateUpdate is the partial state update a handler node returns.
// Only non-zero fields are applied; Messages are appended, never replaced.
type StateUpdate struct {
	Messages          []Message
	ResponseText      string
	UIAction          *UIAction
	NavigationCommand *NavigationCommand
	EditorContent     *EditorContent
	Articles          []Article
	Confirmation      *ConfirmationDescriptor
	RequiresHITL      bool
	IsFinal           bool
}

// Apply merges the partial update into the conversation state.
func (s *ConversationState) Apply(u *StateUpdate) {
	if u == nil {
		return
	}
	s.AppendMessages(u.Messages...)
	if u.ResponseText != "" {
		s.ResponseText = u.ResponseText
	}
	if u.UIAction != nil {
		s.UIAction = u.UIAction
	}
	if u.NavigationCommand != nil {
		s.NavigationCommand = u.NavigationCommand
	}
	if u.EditorContent != nil {
		s.EditorContent = u.EditorContent
	}
	if u.Articles != nil {
		s.Articles = u.Articles
	}
	if u.Confirmation != nil {
		s.Confirmation = u.Confirmation
	}
	if u.RequiresHITL {
		s.RequiresHITL = true
	}
	if u.IsFinal {
		s.IsFinal = true
	}
}

// ── Handler Output Shapes ────────────────────────────────────

// UIAction instructs the client to perform a UI operation.
type UIAction struct {
	Type   string            `json:"type"`
	Params map[string]string `json:"params,omitempty"`
}

// NavigationCommand instructs the client to move to another section.
type NavigationCommand struct {
	Action string            `json:"action"`
	Target string            `json:"target"`
	Params map[string]string `json:"params,omitempty"`
}

// EditorContent carries generated or edited article content back to the UI.
type EditorContent struct {
	Headline        string    `json:"headline,omitempty"`
	Content         string    `json:"content,omitempty"`
	Keywords        []string  `json:"keywords,omitempty"`
	ArticleID       string    `json:"article_id,omitempty"`
	LinkedResources []string  `json:"linked_resources,omitempty"`
	Action          string    `json:"action,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// ── Confirmation / HITL ──────────────────────────────────────

// CheckpointStatus is the lifecycle state of a paused-workflow checkpoint.
type CheckpointStatus string

const (
	CheckpointPending  CheckpointStatus = "pending"
	CheckpointApproved CheckpointStatus = "approved"
	CheckpointRejected CheckpointStatus = "rejected"
	CheckpointExpired  CheckpointStatus = "expired"
)

// Decision is a human resume decision.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ConfirmationDescriptor describes a destructive action awaiting human
// approval. It is returned to the caller instead of performing the action.
type ConfirmationDescriptor struct {
	ID              string            `json:"id"`
	Type            string            `json:"type"`
	Title           string            `json:"title"`
	Message         string            `json:"message"`
	ArticleID       string            `json:"article_id,omitempty"`
	ResourceID      string            `json:"resource_id,omitempty"`
	ConfirmLabel    string            `json:"confirm_label"`
	CancelLabel     string            `json:"cancel_label"`
	ConfirmEndpoint string            `json:"confirm_endpoint"`
	ConfirmMethod   string            `json:"confirm_method"`
	ConfirmBody     map[string]string `json:"confirm_body,omitempty"`
}

// Checkpoint is the durable record of a paused workflow, keyed by thread.
// It holds enough state to resume: the gated action and its parameters.
// Status transitions pending → approved | rejected | expired exactly once.
type Checkpoint struct {
	ThreadID       string            `json:"thread_id"`
	ConfirmationID string            `json:"confirmation_id"`
	UserID         string            `json:"user_id"`
	Action         string            `json:"action"`
	Params         map[string]string `json:"params,omitempty"`
	Status         CheckpointStatus  `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	ExpiresAt      time.Time         `json:"expires_at"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
	ResolvedBy     string            `json:"resolved_by,omitempty"`
}

// Expired reports whether the checkpoint's approval window has passed.
func (c *Checkpoint) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ── Articles ─────────────────────────────────────────────────

// ArticleStatus is the article lifecycle state.
//
// Normal flow: draft → editor (submitted for review) → pending_approval
// (publish requested) → published. Side transitions: editor/pending_approval
// → draft (reject), published → draft (recall), any → deactivated (soft
// delete). Purge is a hard delete outside the lifecycle, admin-only.
type ArticleStatus string

const (
	ArticleDraft           ArticleStatus = "draft"
	ArticleEditor          ArticleStatus = "editor"
	ArticlePendingApproval ArticleStatus = "pending_approval"
	ArticlePublished       ArticleStatus = "published"
	ArticleDeactivated     ArticleStatus = "deactivated"
)

// Article is the domain entity most commonly gated by HITL. It is mutated
// only through explicit transition operations, never by direct field writes
// from the chat layer.
type Article struct {
	ID        string        `json:"id"`
	Topic     string        `json:"topic"`
	Headline  string        `json:"headline"`
	Content   string        `json:"content,omitempty"`
	Keywords  []string      `json:"keywords,omitempty"`
	Status    ArticleStatus `json:"status"`
	Author    string        `json:"author"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ── Request / Response Contract ──────────────────────────────

// ChatRequest is one inbound user utterance plus client-supplied UI state.
type ChatRequest struct {
	ThreadID          string            `json:"thread_id"`
	Message           string            `json:"message"`
	NavigationContext NavigationContext `json:"navigation_context"`
}

// ResumeRequest resumes a paused workflow with a human decision.
type ResumeRequest struct {
	ThreadID string   `json:"thread_id"`
	Decision Decision `json:"decision"`
}

// ChatResponse is the unified response contract, produced by the response
// builder regardless of which handler ran.
type ChatResponse struct {
	ThreadID      string                  `json:"thread_id"`
	Response      string                  `json:"response"`
	AgentType     string                  `json:"agent_type"`
	RoutingReason string                  `json:"routing_reason"`
	Articles      []Article               `json:"articles"`
	UIAction      *UIAction               `json:"ui_action,omitempty"`
	Navigation    *NavigationCommand      `json:"navigation,omitempty"`
	EditorContent *EditorContent          `json:"editor_content,omitempty"`
	Confirmation  *ConfirmationDescriptor `json:"confirmation,omitempty"`
	RequiresHITL  bool                    `json:"requires_hitl,omitempty"`
}

// ── Audit ────────────────────────────────────────────────────

// AuditEvent records a permission-relevant decision: confirmation requests
// and resume decisions.
type AuditEvent struct {
	ID        string            `json:"id"`
	ThreadID  string            `json:"thread_id"`
	UserID    string            `json:"user_id"`
	Kind      string            `json:"kind"` // "confirmation_requested", "resume_approved", "resume_rejected"
	Action    string            `json:"action,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
