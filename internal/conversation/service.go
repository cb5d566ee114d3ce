package conversation

import (
	"context"
	"log/slog"

	"github.com/aipro/chat-backend/internal/genai"
	"github.com/aipro/chat-backend/internal/logger"
)

// Generator is the slice of the generation service this package needs.
type Generator interface {
	Generate(ctx context.Context, prompt, model string) (*genai.Result, error)
}

// Service composes generation with persistence: send a message, get a reply,
// persist both sides of the exchange.
type Service struct {
	store     Store
	generator Generator
	logger    *logger.Logger
}

// NewService creates a conversation service over the given store and
// generator.
func NewService(store Store, generator Generator, logger *logger.Logger) *Service {
	return &Service{
		store:     store,
		generator: generator,
		logger:    logger.WithComponent("conversation"),
	}
}

// SendMessageInput carries one chat turn. ConversationID and SessionID are
// optional; Model falls back to the default when blank.
type SendMessageInput struct {
	Text           string
	ConversationID string
	SessionID      string
	Model          string
}

// SendMessageOutput is the normalized result of a completed chat turn.
type SendMessageOutput struct {
	ConversationID    string
	SessionID         string
	AssistantMessage  Message
	ConversationTitle string
}

// SendMessage resolves or creates the conversation, appends the user
// message, generates a reply, and appends the assistant message only on
// generation success. A failed generation leaves the user message committed;
// the user's input is not lost even though no reply was produced.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	var conv *Conversation
	var err error

	if in.ConversationID != "" {
		conv, err = s.store.Get(ctx, in.ConversationID)
		if err != nil {
			return nil, err
		}
	} else {
		conv, err = s.store.Create(ctx, in.SessionID)
		if err != nil {
			return nil, err
		}
		s.logger.Info("created conversation",
			slog.String("conversation_id", conv.ID),
			slog.String("session_id", conv.SessionID))
	}

	ctx = logger.WithConversationID(ctx, conv.ID)

	conv, err = s.store.Append(ctx, conv.ID, Message{
		Role:    RoleUser,
		Content: in.Text,
	})
	if err != nil {
		return nil, err
	}

	result, err := s.generator.Generate(ctx, in.Text, in.Model)
	if err != nil {
		s.logger.LogError(ctx, err, "generation failed, user message retained")
		return nil, err
	}

	conv, err = s.store.Append(ctx, conv.ID, Message{
		Role:      RoleAssistant,
		Content:   result.Text,
		Timestamp: result.Timestamp,
	})
	if err != nil {
		return nil, err
	}

	assistant := conv.Messages[len(conv.Messages)-1]

	return &SendMessageOutput{
		ConversationID:    conv.ID,
		SessionID:         conv.SessionID,
		AssistantMessage:  assistant,
		ConversationTitle: conv.Title,
	}, nil
}
