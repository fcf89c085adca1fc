package main

import (
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chat-engine/internal/auth"
	"chat-engine/internal/config"
	"chat-engine/internal/database"
	"chat-engine/internal/engine"
	"chat-engine/internal/handlers"
	"chat-engine/internal/registry"
	"chat-engine/internal/services"
	"chat-engine/pkg/logger"
)

func main() {
	cfg := config.Load()

	db, err := database.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Services
	authService := auth.NewService(db, cfg)
	memberService := services.NewMembershipService(db, db)
	messageService := services.NewMessageService(db, db)

	// Realtime core
	reg := registry.New(cfg.Presence.SingleSession)
	eng := engine.New(reg, memberService, messageService)

	// Handlers
	authHandlers := handlers.NewAuthHandlers(authService)
	chatHandlers := handlers.NewChatHandlers(memberService, messageService, authService)
	wsHandlers := handlers.NewWebSocketHandlers(authService, eng, cfg.Websocket)

	mux := http.NewServeMux()
	setupRoutes(mux, authHandlers, chatHandlers, wsHandlers)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")
}

func setupRoutes(mux *http.ServeMux, authHandlers *handlers.AuthHandlers, chatHandlers *handlers.ChatHandlers, wsHandlers *handlers.WebSocketHandlers) {
	// Auth routes
	mux.HandleFunc("/login", authHandlers.Login)
	mux.HandleFunc("/register", authHandlers.Register)

	// Direct chat creation
	mux.HandleFunc("/chats/direct", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		chatHandlers.CreateDirectChat(w, r)
	})

	// Chat sub-routes: /chats/{id}/members, /chats/{id}/messages
	mux.HandleFunc("/chats/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		if len(parts) != 4 || parts[2] == "" {
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		switch parts[3] {
		case "members":
			chatHandlers.GetChatMembers(w, r)
		case "messages":
			chatHandlers.GetChatMessages(w, r)
		default:
			http.Error(w, "endpoint not found", http.StatusNotFound)
		}
	})

	// WebSocket route
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
