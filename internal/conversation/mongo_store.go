package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/aipro/chat-backend/internal/logger"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const conversationsCollection = "conversations"

// MongoStore is the document-database backend. It relies on MongoDB's own
// concurrency control and is safe for concurrent callers across processes.
// Conversation ids are UUID strings, not ObjectIDs, so both store backends
// serialize identically.
type MongoStore struct {
	coll   *mongo.Collection
	logger *logger.Logger
}

// NewMongoStore connects to MongoDB and prepares the conversations
// collection, creating the search indexes the regex queries scan against.
func NewMongoStore(ctx context.Context, uri, database string, logger *logger.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &MongoStore{
		coll:   client.Database(database).Collection(conversationsCollection),
		logger: logger.WithComponent("mongo-store"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
		{Keys: bson.D{
			{Key: "title", Value: "text"},
			{Key: "messages.content", Value: "text"},
			{Key: "tags", Value: "text"},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Disconnect closes the underlying client connection.
func (s *MongoStore) Disconnect(ctx context.Context) error {
	return s.coll.Database().Client().Disconnect(ctx)
}

func (s *MongoStore) Create(ctx context.Context, sessionID string) (*Conversation, error) {
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

	if _, err := s.coll.InsertOne(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}

	return conv, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (s *MongoStore) Append(ctx context.Context, id string, msg Message) (*Conversation, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	after := options.After
	var conv Conversation
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"messages": msg},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	// Title is derived from the first message exactly when the first
	// exchange completes.
	if len(conv.Messages) == 2 {
		conv.Title = TitleFromMessage(conv.Messages[0].Content)
		_, err = s.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"title": conv.Title}})
		if err != nil {
			return nil, fmt.Errorf("failed to update title: %w", err)
		}
	}

	return &conv, nil
}

func (s *MongoStore) List(ctx context.Context, opts ListOptions) ([]*Conversation, int, error) {
	filter := bson.M{}
	if opts.SessionID != "" {
		filter["session_id"] = opts.SessionID
	}

	return s.find(ctx, filter, opts.Limit, opts.Skip)
}

func (s *MongoStore) Search(ctx context.Context, query string, opts SearchOptions) ([]*Conversation, int, error) {
	// Case-insensitive substring semantics must agree with the linear-scan
	// backend, so the query uses anchored-nowhere regexes rather than the
	// text index's stemmed matching.
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{"$or": bson.A{
		bson.M{"title": pattern},
		bson.M{"messages.content": pattern},
		bson.M{"tags": pattern},
	}}

	return s.find(ctx, filter, opts.Limit, opts.Skip)
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, limit, skip int) ([]*Conversation, int, error) {
	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetSkip(int64(skip))
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := s.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer cursor.Close(ctx)

	conversations := make([]*Conversation, 0)
	for cursor.Next(ctx) {
		var conv Conversation
		if err := cursor.Decode(&conv); err != nil {
			return nil, 0, fmt.Errorf("failed to decode conversation: %w", err)
		}
		conversations = append(conversations, &conv)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("cursor error: %w", err)
	}

	return conversations, int(total), nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete conversation: %w", err)
	}
	return &conv, nil
}
