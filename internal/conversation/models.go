package conversation

import (
	"fmt"
	"math/rand"
	"time"
)

// Message roles. The store accepts any sequence of roles; alternation is a
// convention of the caller, not an invariant enforced here.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultTitle is assigned at creation, before any message arrives.
const DefaultTitle = "New Conversation"

// titleMaxLen is the truncation point for titles derived from the first
// user message.
const titleMaxLen = 50

// Message is a single utterance inside a conversation.
type Message struct {
	Role      string    `json:"role" bson:"role"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Conversation is a titled, ordered, append-only sequence of messages tied
// to a session. Both store backends serialize it identically.
type Conversation struct {
	ID        string    `json:"id" bson:"_id"`
	Title     string    `json:"title" bson:"title"`
	Messages  []Message `json:"messages" bson:"messages"`
	SessionID string    `json:"sessionId" bson:"session_id"`
	Tags      []string  `json:"tags" bson:"tags"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// ListOptions filters and paginates List.
type ListOptions struct {
	SessionID string
	Limit     int
	Skip      int
}

// SearchOptions paginates Search. Pagination applies after filtering and
// sorting.
type SearchOptions struct {
	Limit int
	Skip  int
}

// TitleFromMessage derives a conversation title from the first user message,
// truncating to 50 characters with an ellipsis appended when truncated.
func TitleFromMessage(content string) string {
	if len(content) > titleMaxLen {
		return content[:titleMaxLen] + "..."
	}
	return content
}

// NewSessionID generates an opaque session identifier for callers that did
// not supply one.
func NewSessionID() string {
	return fmt.Sprintf("session_%d_%06d", time.Now().UnixMilli(), rand.Intn(1000000))
}
