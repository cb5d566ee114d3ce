package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apierrors "github.com/aipro/chat-backend/internal/errors"
	"github.com/aipro/chat-backend/internal/genai"
	"github.com/aipro/chat-backend/internal/logger"
	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T, gen *fakeGenerator) (*gin.Engine, *FileStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New(logger.Config{Format: "text"})
	store, err := NewFileStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	handler := NewHandler(NewService(store, gen, log), store, log)

	router := gin.New()
	router.POST("/chat", handler.SendMessage)
	router.GET("/conversations", handler.ListConversations)
	router.GET("/conversations/search", handler.SearchConversations)
	router.GET("/conversations/:id", handler.GetConversation)
	router.DELETE("/conversations/:id", handler.DeleteConversation)
	return router, store
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var parsed map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("response is not JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return rec, parsed
}

func okGenerator() *fakeGenerator {
	return &fakeGenerator{
		generateFunc: func(ctx context.Context, prompt, model string) (*genai.Result, error) {
			return &genai.Result{
				Text:      "generated reply",
				Model:     genai.DefaultModel,
				Attempt:   1,
				Timestamp: time.Now().UTC(),
			}, nil
		},
	}
}

func TestChatEndpoint_Success(t *testing.T) {
	router, store := newTestRouter(t, okGenerator())

	rec, body := doJSON(t, router, http.MethodPost, "/chat", ChatRequest{
		Message:   "hello there",
		SessionID: "sess-1",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if body["success"] != true {
		t.Error("success must be true")
	}
	if body["conversationTitle"] != "hello there" {
		t.Errorf("conversationTitle = %v, want %q", body["conversationTitle"], "hello there")
	}

	msg, ok := body["message"].(map[string]any)
	if !ok {
		t.Fatalf("message block missing: %v", body)
	}
	if msg["role"] != RoleAssistant || msg["content"] != "generated reply" {
		t.Errorf("assistant message wrong: %v", msg)
	}
	if _, err := time.Parse("2006-01-02T15:04:05.000Z07:00", msg["timestamp"].(string)); err != nil {
		t.Errorf("timestamp format: %v", err)
	}

	id, _ := body["conversationId"].(string)
	if _, err := store.Get(context.Background(), id); err != nil {
		t.Errorf("conversation %q not persisted: %v", id, err)
	}
}

func TestChatEndpoint_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		request    ChatRequest
		wantStatus int
		wantError  string
	}{
		{
			name:       "empty message",
			request:    ChatRequest{Message: "   "},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request",
		},
		{
			name:       "unsupported model",
			request:    ChatRequest{Message: "hi", Model: "gpt-4"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request",
		},
		{
			name:       "unknown conversation",
			request:    ChatRequest{Message: "hi", ConversationID: "missing"},
			wantStatus: http.StatusNotFound,
			wantError:  "Not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := okGenerator()
			router, store := newTestRouter(t, gen)

			rec, body := doJSON(t, router, http.MethodPost, "/chat", tt.request)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if body["success"] != false {
				t.Error("success must be false on errors")
			}
			if body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", body["error"], tt.wantError)
			}

			// Rejected requests must not leave conversations behind.
			if tt.request.ConversationID == "" {
				_, total, _ := store.List(context.Background(), ListOptions{})
				if total != 0 {
					t.Errorf("store has %d conversations after rejected request", total)
				}
			}
		})
	}
}

func TestChatEndpoint_RateLimitEnvelope(t *testing.T) {
	gen := &fakeGenerator{
		generateFunc: func(ctx context.Context, prompt, model string) (*genai.Result, error) {
			return nil, apierrors.RateLimited("Rate limit exceeded. Please wait a few minutes before trying again.", 45)
		},
	}
	router, _ := newTestRouter(t, gen)

	rec, body := doJSON(t, router, http.MethodPost, "/chat", ChatRequest{Message: "hi"})

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if body["error"] != "Rate limit exceeded" {
		t.Errorf("error = %v", body["error"])
	}
	if body["retryAfter"] != float64(45) {
		t.Errorf("retryAfter = %v, want 45", body["retryAfter"])
	}
}

func TestListConversationsEndpoint(t *testing.T) {
	router, store := newTestRouter(t, okGenerator())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		conv, _ := store.Create(ctx, "sess-1")
		store.Append(ctx, conv.ID, Message{Role: RoleUser, Content: fmt.Sprintf("message %d", i)})
	}

	rec, body := doJSON(t, router, http.MethodGet, "/conversations?limit=2", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	conversations, _ := body["conversations"].([]any)
	if len(conversations) != 2 {
		t.Errorf("page size = %d, want 2", len(conversations))
	}

	pagination, _ := body["pagination"].(map[string]any)
	if pagination["current"] != float64(1) || pagination["total"] != float64(2) {
		t.Errorf("pagination = %v, want current 1 of 2", pagination)
	}
	if pagination["hasNext"] != true || pagination["hasPrev"] != false {
		t.Errorf("pagination flags wrong: %v", pagination)
	}
}

func TestListConversationsEndpoint_EmptyStore(t *testing.T) {
	router, _ := newTestRouter(t, okGenerator())

	rec, body := doJSON(t, router, http.MethodGet, "/conversations", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	pagination, _ := body["pagination"].(map[string]any)
	if pagination["total"] != float64(1) {
		t.Errorf("empty store must report 1 total page, got %v", pagination["total"])
	}
}

func TestSearchConversationsEndpoint(t *testing.T) {
	router, store := newTestRouter(t, okGenerator())

	ctx := context.Background()
	conv, _ := store.Create(ctx, "sess-1")
	store.Append(ctx, conv.ID, Message{Role: RoleUser, Content: "tell me about golang"})

	t.Run("blank query is rejected", func(t *testing.T) {
		rec, body := doJSON(t, router, http.MethodGet, "/conversations/search?q=%20%20", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if body["message"] != "Search query is required" {
			t.Errorf("message = %v", body["message"])
		}
	})

	t.Run("query is echoed with results", func(t *testing.T) {
		rec, body := doJSON(t, router, http.MethodGet, "/conversations/search?q=GOLANG", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if body["query"] != "GOLANG" {
			t.Errorf("query echo = %v", body["query"])
		}
		results, _ := body["conversations"].([]any)
		if len(results) != 1 {
			t.Errorf("results = %d, want 1", len(results))
		}
	})
}

func TestGetConversationEndpoint(t *testing.T) {
	router, store := newTestRouter(t, okGenerator())

	conv, _ := store.Create(context.Background(), "sess-1")

	rec, body := doJSON(t, router, http.MethodGet, "/conversations/"+conv.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got, _ := body["conversation"].(map[string]any)
	if got["id"] != conv.ID {
		t.Errorf("conversation id = %v, want %s", got["id"], conv.ID)
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/conversations/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d, want 404", rec.Code)
	}
}

func TestDeleteConversationEndpoint(t *testing.T) {
	router, store := newTestRouter(t, okGenerator())

	conv, _ := store.Create(context.Background(), "sess-1")

	rec, body := doJSON(t, router, http.MethodDelete, "/conversations/"+conv.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["message"] != "Conversation deleted successfully" {
		t.Errorf("message = %v", body["message"])
	}

	// Second delete of the same id is a 404.
	rec, _ = doJSON(t, router, http.MethodDelete, "/conversations/"+conv.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d, want 404", rec.Code)
	}
}
