package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aipro/chat-backend/internal/config"
	"github.com/aipro/chat-backend/internal/conversation"
	apierrors "github.com/aipro/chat-backend/internal/errors"
	"github.com/aipro/chat-backend/internal/genai"
	"github.com/aipro/chat-backend/internal/logger"
	"github.com/aipro/chat-backend/internal/metrics"
	"github.com/gin-gonic/gin"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	gin.SetMode(cfg.GinMode)

	// Select the conversation store once at startup: MongoDB when a URI is
	// configured and reachable, file snapshot otherwise. Business logic
	// never knows which backend it got.
	store := newStore(cfg, log)

	client := genai.NewClient(cfg.GoogleAIAPIKey, cfg.GoogleAIBaseURL,
		time.Duration(cfg.GenerationTimeoutSeconds)*time.Second, log)
	generationService := genai.NewService(client, log, cfg.GenerationMaxAttempts)
	conversationService := conversation.NewService(store, generationService, log)

	generationHandler := genai.NewHandler(generationService, log)
	conversationHandler := conversation.NewHandler(conversationService, store, log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(corsMiddleware(cfg.AllowedOrigins()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"message":   "AI Backend Server is running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   version,
		})
	})

	router.GET("/metrics", metrics.Handler())

	api := router.Group("/api/ai")
	{
		api.POST("/generate", generationHandler.Generate)
		api.POST("/chat", conversationHandler.SendMessage)
		api.GET("/conversations", conversationHandler.ListConversations)
		api.GET("/conversations/search", conversationHandler.SearchConversations)
		api.GET("/conversations/:id", conversationHandler.GetConversation)
		api.DELETE("/conversations/:id", conversationHandler.DeleteConversation)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, apierrors.Response{
			Success: false,
			Error:   "Route not found",
			Message: "Cannot " + c.Request.Method + " " + c.Request.URL.Path,
		})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if mongoStore, ok := store.(*conversation.MongoStore); ok {
		if err := mongoStore.Disconnect(ctx); err != nil {
			log.Error("failed to close MongoDB connection", slog.String("error", err.Error()))
		}
	}

	log.Info("server exited")
}

// newStore picks the conversation backend. Mongo connection failures fall
// back to file storage rather than refusing to start.
func newStore(cfg *config.Config, log *logger.Logger) conversation.Store {
	if cfg.MongoDBURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store, err := conversation.NewMongoStore(ctx, cfg.MongoDBURI, cfg.MongoDBDatabase, log)
		if err == nil {
			log.Info("connected to MongoDB", slog.String("database", cfg.MongoDBDatabase))
			return store
		}
		log.Warn("MongoDB connection failed, falling back to file storage",
			slog.String("error", err.Error()))
	}

	store, err := conversation.NewFileStore(cfg.DataDir, log)
	if err != nil {
		log.Error("failed to initialize file storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("using file storage", slog.String("data_dir", cfg.DataDir))
	return store
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed[origin] || strings.HasSuffix(origin, ".vercel.app")) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
