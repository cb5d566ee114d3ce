package conversation

import (
	"context"

	apierrors "github.com/aipro/chat-backend/internal/errors"
)

// ErrNotFound is returned by every store operation addressing a conversation
// id that does not exist. It carries its classification so the boundary can
// map it to a 404 without re-inspecting.
var ErrNotFound = apierrors.New(apierrors.KindNotFound, "Conversation not found")

// Store is the persistence contract for conversations. Two interchangeable
// implementations exist: MongoStore (remote, indexed) and FileStore (local,
// linear scan). Identical operation sequences must produce identical
// observable results on either backend; the implementation is selected once
// at startup and injected, never detected at call sites.
type Store interface {
	// Create assigns an id and timestamps and persists an empty conversation.
	// When sessionID is blank a fresh one is generated.
	Create(ctx context.Context, sessionID string) (*Conversation, error)

	// Get returns the conversation with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Conversation, error)

	// Append pushes a message onto the conversation, stamping its timestamp
	// when absent and bumping UpdatedAt. When the appended message is exactly
	// the 2nd, the title is recomputed from the 1st message. The title is
	// never recomputed afterward.
	Append(ctx context.Context, id string, msg Message) (*Conversation, error)

	// List returns conversations newest-UpdatedAt-first, optionally filtered
	// by session, paginated. The second return is the total match count
	// before pagination.
	List(ctx context.Context, opts ListOptions) ([]*Conversation, int, error)

	// Search returns conversations whose title, any message content, or any
	// tag contains query case-insensitively, newest-UpdatedAt-first,
	// paginated after filtering and sorting. The second return is the total
	// match count before pagination.
	Search(ctx context.Context, query string, opts SearchOptions) ([]*Conversation, int, error)

	// Delete removes the conversation and returns it, or ErrNotFound.
	Delete(ctx context.Context, id string) (*Conversation, error)
}
