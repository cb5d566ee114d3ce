package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aipro/chat-backend/internal/logger"
	"github.com/google/uuid"
)

// FileStore persists the whole collection as a single JSON snapshot,
// rewritten in full on every mutation. It is safe for concurrent use within
// one process; it takes no file locks, so it must not be shared across
// processes.
type FileStore struct {
	logger *logger.Logger
	path   string

	mu            sync.RWMutex
	conversations []*Conversation
}

// NewFileStore creates a file-backed store rooted at dataDir, loading any
// existing snapshot.
func NewFileStore(dataDir string, logger *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &FileStore{
		logger: logger.WithComponent("file-store"),
		path:   filepath.Join(dataDir, "conversations.json"),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.conversations = []*Conversation{}
			return nil
		}
		return fmt.Errorf("failed to read conversations file: %w", err)
	}

	if err := json.Unmarshal(data, &s.conversations); err != nil {
		return fmt.Errorf("failed to unmarshal conversations: %w", err)
	}

	return nil
}

// saveUnsafe rewrites the snapshot. Callers must hold the write lock.
func (s *FileStore) saveUnsafe() error {
	data, err := json.MarshalIndent(s.conversations, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversations: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write conversations file: %w", err)
	}

	return nil
}

// findUnsafe returns the index of the conversation with the given id, or -1.
// Callers must hold at least the read lock.
func (s *FileStore) findUnsafe(id string) int {
	for i, conv := range s.conversations {
		if conv.ID == id {
			return i
		}
	}
	return -1
}

func (s *FileStore) Create(ctx context.Context, sessionID string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		sessionID = NewSessionID()
	}

	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.New().String(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		SessionID: sessionID,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.conversations = append(s.conversations, conv)
	if err := s.saveUnsafe(); err != nil {
		s.conversations = s.conversations[:len(s.conversations)-1]
		return nil, err
	}

	return cloneConversation(conv), nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.findUnsafe(id)
	if i < 0 {
		return nil, ErrNotFound
	}

	return cloneConversation(s.conversations[i]), nil
}

func (s *FileStore) Append(ctx context.Context, id string, msg Message) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findUnsafe(id)
	if i < 0 {
		return nil, ErrNotFound
	}

	conv := s.conversations[i]
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = time.Now().UTC()

	// The title is derived from the first message once the first exchange
	// completes, and never recomputed afterward.
	if len(conv.Messages) == 2 {
		conv.Title = TitleFromMessage(conv.Messages[0].Content)
	}

	if err := s.saveUnsafe(); err != nil {
		return nil, err
	}

	return cloneConversation(conv), nil
}

func (s *FileStore) List(ctx context.Context, opts ListOptions) ([]*Conversation, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]*Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		if opts.SessionID != "" && conv.SessionID != opts.SessionID {
			continue
		}
		matches = append(matches, conv)
	}

	return paginate(matches, opts.Limit, opts.Skip)
}

func (s *FileStore) Search(ctx context.Context, query string, opts SearchOptions) ([]*Conversation, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(query)

	matches := make([]*Conversation, 0)
	for _, conv := range s.conversations {
		if matchesQuery(conv, term) {
			matches = append(matches, conv)
		}
	}

	return paginate(matches, opts.Limit, opts.Skip)
}

func (s *FileStore) Delete(ctx context.Context, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findUnsafe(id)
	if i < 0 {
		return nil, ErrNotFound
	}

	deleted := s.conversations[i]
	s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)

	if err := s.saveUnsafe(); err != nil {
		return nil, err
	}

	return cloneConversation(deleted), nil
}

// matchesQuery checks title, every message content, and every tag for a
// case-insensitive substring match.
func matchesQuery(conv *Conversation, term string) bool {
	if strings.Contains(strings.ToLower(conv.Title), term) {
		return true
	}
	for _, msg := range conv.Messages {
		if strings.Contains(strings.ToLower(msg.Content), term) {
			return true
		}
	}
	for _, tag := range conv.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// paginate sorts newest-UpdatedAt-first, then applies skip/limit. Returns
// clones so callers cannot mutate the snapshot behind the lock.
func paginate(matches []*Conversation, limit, skip int) ([]*Conversation, int, error) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
	})

	total := len(matches)

	if skip < 0 {
		skip = 0
	}
	if skip > total {
		skip = total
	}
	end := total
	if limit > 0 && skip+limit < total {
		end = skip + limit
	}

	page := make([]*Conversation, 0, end-skip)
	for _, conv := range matches[skip:end] {
		page = append(page, cloneConversation(conv))
	}

	return page, total, nil
}

func cloneConversation(conv *Conversation) *Conversation {
	clone := *conv
	clone.Messages = make([]Message, len(conv.Messages))
	copy(clone.Messages, conv.Messages)
	clone.Tags = make([]string, len(conv.Tags))
	copy(clone.Tags, conv.Tags)
	return &clone
}
