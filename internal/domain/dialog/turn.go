package dialog

import (
	"encoding/json"
	"time"
)

// TurnType classifies a turn within a conversation.
type TurnType string

const (
	// TurnTypeUserQuery is a user-initiated turn.
	TurnTypeUserQuery TurnType = "user_query"
	// TurnTypeAgentResponse is an agent reply.
	TurnTypeAgentResponse TurnType = "agent_response"
	// TurnTypeSystemMessage is a notification or status update.
	TurnTypeSystemMessage TurnType = "system_message"
	// TurnTypeClarification is a clarification request.
	TurnTypeClarification TurnType = "clarification"
	// TurnTypeFeedback is feedback on a previous turn.
	TurnTypeFeedback TurnType = "feedback"
)

// MessageIntent classifies what a message is trying to do.
type MessageIntent string

const (
	IntentQuestion       MessageIntent = "question"
	IntentAnswer         MessageIntent = "answer"
	IntentStatement      MessageIntent = "statement"
	IntentCommand        MessageIntent = "command"
	IntentAcknowledgment MessageIntent = "acknowledgment"
	IntentClarification  MessageIntent = "clarification"
	IntentFeedback       MessageIntent = "feedback"
	IntentSocial         MessageIntent = "social"
)

// ContentKind discriminates message content variants.
type ContentKind string

const (
	// ContentText is plain text.
	ContentText ContentKind = "text"
	// ContentCode is source code with an optional language tag.
	ContentCode ContentKind = "code"
	// ContentStructured is templated structured data.
	ContentStructured ContentKind = "structured"
	// ContentMultimodal is text plus named opaque attachments.
	ContentMultimodal ContentKind = "multimodal"
)

// MessageContent is the tagged content of a message. Exactly the fields of
// the active kind are meaningful; the rest stay zero.
type MessageContent struct {
	Kind ContentKind `json:"kind"`
	// Text holds plain text, and the caption for multimodal content.
	Text string `json:"text,omitempty"`
	// Code and CodeLanguage hold source content for the code kind.
	Code         string `json:"code,omitempty"`
	CodeLanguage string `json:"code_language,omitempty"`
	// Template names the structure for the structured kind.
	Template string `json:"template,omitempty"`
	// Data holds structured fields or multimodal attachments as opaque JSON.
	Data map[string]json.RawMessage `json:"data,omitempty"`
}

// SearchText returns the human-searchable text of the content.
func (c MessageContent) SearchText() string {
	switch c.Kind {
	case ContentCode:
		return c.Code
	case ContentStructured:
		return c.Template
	default:
		return c.Text
	}
}

// Message is a single utterance within a turn. Sentiment and embeddings are
// upstream NLP artifacts stored as opaque values.
type Message struct {
	Content    MessageContent  `json:"content"`
	Intent     MessageIntent   `json:"intent,omitempty"`
	Language   string          `json:"language,omitempty"`
	Sentiment  json.RawMessage `json:"sentiment,omitempty"`
	Embeddings json.RawMessage `json:"embeddings,omitempty"`
}

// TurnMetadata carries processing annotations for a turn.
type TurnMetadata struct {
	Type             TurnType                   `json:"type"`
	Confidence       *float64                   `json:"confidence,omitempty"`
	ProcessingTimeMs *int64                     `json:"processing_time_ms,omitempty"`
	References       []string                   `json:"references,omitempty"`
	Properties       map[string]json.RawMessage `json:"properties,omitempty"`
}

// Turn is one participant's contribution at a point in the conversation.
// Immutable once appended.
type Turn struct {
	ID            string       `json:"id"`
	Number        int          `json:"number"`
	ParticipantID string       `json:"participant_id"`
	Messages      []Message    `json:"messages"`
	Timestamp     time.Time    `json:"timestamp"`
	Metadata      TurnMetadata `json:"metadata"`
}
